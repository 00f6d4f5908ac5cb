package filehandler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"stegguard/pkg/config"
)

/*
File explanation:
This file contains utility functions for getting files in front of the validator.
GatherFiles lists the regular files of a directory.
ReadFileBytes reads a whole file, refusing anything above a hard cap.
ReadFileHead reads a file up to a byte count, so an oversized file still reaches the size check.
DetectMimeType maps a file to the media type the validator is told to expect, by extension first and content second.
ReadLines reads a list file (one path or URL per line).
Download fetches a URL into memory with the same hard cap.
*/

// MaxReadSize is the hard cap for files loaded into memory
const MaxReadSize = 100 * 1024 * 1024

// ErrFileTooLarge is returned when a file or download exceeds the read cap
var ErrFileTooLarge = errors.New("filehandler: file too large")

// MimeTypesByExtension maps file extensions to the media types the validator knows
var MimeTypesByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
}

// GatherFiles collects all files in a directory (non-recursive)
func GatherFiles(dirPath string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue // Skip directories
		}

		files = append(files, filepath.Join(dirPath, entry.Name()))
	}

	return files, nil
}

// ReadFileBytes reads a file and returns its content, up to limit bytes.
// A limit of zero or less selects MaxReadSize.
func ReadFileBytes(filePath string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxReadSize
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFileTooLarge, filePath, info.Size(), limit)
	}

	content := make([]byte, info.Size())
	if _, err := io.ReadFull(file, content); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// ReadFileHead reads at most limit bytes of a file. A larger file is not an
// error: the caller gets the first limit bytes and decides what to do with them.
func ReadFileHead(filePath string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxReadSize
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// DetectMimeType returns the media type of a file from its extension, falling
// back to sniffing the first bytes of its content
func DetectMimeType(name string, head []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if mt, ok := MimeTypesByExtension[ext]; ok {
		return mt
	}
	return config.NormalizeMimeType(http.DetectContentType(head))
}

// ReadLines reads a file and returns its non-empty lines, skipping # comments
func ReadLines(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	return lines, scanner.Err()
}

// IsURL checks if the given string is a URL
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Downloaded is a file fetched by Download
type Downloaded struct {
	Data     []byte
	Name     string // last element of the URL path
	MimeType string // server Content-Type, empty when not sent
}

// Download fetches url into memory, refusing bodies larger than limit
func Download(ctx context.Context, url string, limit int64) (*Downloaded, error) {
	if limit <= 0 {
		limit = MaxReadSize
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, resp.ContentLength, limit)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}

	name := path.Base(resp.Request.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "downloaded_file"
	}
	return &Downloaded{
		Data:     body,
		Name:     name,
		MimeType: config.NormalizeMimeType(resp.Header.Get("Content-Type")),
	}, nil
}
