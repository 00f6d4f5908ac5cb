package filehandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("b"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	files, err := GatherFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.jpg")}, files)

	_, err = GatherFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReadFileBytes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	data, err := ReadFileBytes(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)

	_, err = ReadFileBytes(path, 5)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestReadFileHead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	tests := []struct {
		name  string
		limit int64
		want  []byte
	}{
		{"larger than limit", 4, []byte("0123")},
		{"one past limit", 11, []byte("0123456789")},
		{"exact", 10, []byte("0123456789")},
		{"default cap", 0, []byte("0123456789")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := ReadFileHead(path, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}

	_, err := ReadFileHead(filepath.Join(t.TempDir(), "missing"), 4)
	assert.Error(t, err)
}

func TestDetectMimeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"photo.JPG", nil, "image/jpeg"},
		{"scan.tiff", nil, "image/tiff"},
		{"upload", []byte("\x89PNG\r\n\x1a\n"), "image/png"},
		{"notes", []byte("plain words"), "text/plain"},
		{"blob", []byte{0x00, 0x01, 0x02}, "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectMimeType(tt.name, tt.head), tt.name)
	}
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "list.txt")
	content := "# inputs\nhttps://example.com/a.png\n\n  /tmp/b.jpg  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.png", "/tmp/b.jpg"}, lines)
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsURL("https://example.com/x.png"))
	assert.True(t, IsURL("http://example.com"))
	assert.False(t, IsURL("ftp://example.com"))
	assert.False(t, IsURL("/var/data/x.png"))
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/cat.png":
			w.Header().Set("Content-Type", "image/PNG")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\npayload"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	got, err := Download(ctx, srv.URL+"/files/cat.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", got.Name)
	assert.Equal(t, "image/png", got.MimeType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\npayload"), got.Data)

	_, err = Download(ctx, srv.URL+"/big", 16)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = Download(ctx, srv.URL+"/missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
