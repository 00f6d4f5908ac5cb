package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"stegguard/pkg/analyzer"
	"stegguard/pkg/config"
	"stegguard/pkg/dispatcher"
	"stegguard/pkg/filehandler"
	"stegguard/pkg/filesecurity"
	"stegguard/pkg/httpapi"
	"stegguard/pkg/logging"
	"stegguard/pkg/metrics"
	"stegguard/pkg/models"
)

const version = "1.0.0"

var (
	// Color printers
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func printAlert(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", alertColor("[!!!]"), fmt.Sprintf(format, args...))
}

// input is one file to validate, loaded lazily
type input struct {
	name string
	load func(ctx context.Context) (buf []byte, mimeType string, err error)
}

// outcome is the JSON shape of one validated input
type outcome struct {
	File     string                   `json:"file"`
	MimeType string                   `json:"mimeType,omitempty"`
	Result   *models.ValidationResult `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func main() {
	// Parse command line arguments
	var (
		filePath    = flag.String("file", "", "Path to a single file to validate")
		dirPath     = flag.String("dir", "", "Path to directory of files to validate")
		urlPath     = flag.String("url", "", "URL to download and validate")
		urlFilePath = flag.String("urlfile", "", "Path to file containing URLs to download and validate")
		configPath  = flag.String("config", "", "YAML detection configuration (defaults are built in)")
		mimeType    = flag.String("mime", "", "Declared media type (default: detect from extension and content)")
		workers     = flag.Int("workers", dispatcher.DefaultMaxWorkers, "Maximum concurrent analyses")
		timeout     = flag.Duration("timeout", dispatcher.DefaultTimeout, "Per-file analysis deadline")
		maxSize     = flag.Int64("max-size", filesecurity.DefaultMaxSize, "Maximum accepted file size in bytes")
		allow       = flag.String("allow", "", "Comma separated list of allowed media types")
		failClosed  = flag.Bool("fail-closed", false, "Reject files whose analysis times out")
		jsonOut     = flag.Bool("json", false, "Print results as JSON")
		verbose     = flag.Bool("verbose", false, "Print every analyzer result")
		logLevel    = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
		serveAddr   = flag.String("serve", "", "Serve the HTTP API on this address instead of validating files")
		listSignals = flag.Bool("list", false, "List analyzers and the active weight table")
	)

	flag.Parse()

	logger := logging.New(*logLevel, logging.FormatText, os.Stderr)
	slog.SetDefault(logger)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			printError("Failed to load configuration: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	registry := analyzer.DefaultRegistry()

	if *listSignals {
		listAnalyzers(registry, cfg)
		return
	}

	if *serveAddr == "" && *filePath == "" && *dirPath == "" && *urlPath == "" && *urlFilePath == "" {
		fmt.Println("Usage:")
		fmt.Println("  stegguard -file <filepath>")
		fmt.Println("  stegguard -dir <directory>")
		fmt.Println("  stegguard -url <url>")
		fmt.Println("  stegguard -urlfile <file-with-urls>")
		fmt.Println("  stegguard -serve :8080")
		flag.PrintDefaults()
		os.Exit(1)
	}

	m, err := metrics.New()
	if err != nil {
		printError("Failed to initialize metrics: %v", err)
		os.Exit(1)
	}

	pool := filesecurity.NewAnalysisPool(registry, cfg, dispatcher.Options{
		MaxWorkers:     *workers,
		DefaultTimeout: *timeout,
		Logger:         logger,
		Observer:       m,
	})
	m.WatchPool(pool.Stats)
	policy := filesecurity.FailOpen
	if *failClosed {
		policy = filesecurity.FailClosed
	}
	svc, err := filesecurity.New(pool, filesecurity.Options{
		Config:        cfg,
		Logger:        logger,
		TimeoutPolicy: policy,
		Timeout:       *timeout,
		Verdicts:      m,
	})
	if err != nil {
		printError("Failed to initialize validator: %v", err)
		os.Exit(1)
	}
	defer svc.Shutdown()

	opts := filesecurity.DefaultValidateOptions()
	opts.MaxSize = *maxSize
	if *allow != "" {
		for _, t := range strings.Split(*allow, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.AllowedTypes = append(opts.AllowedTypes, t)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveAddr != "" {
		if err := serve(ctx, *serveAddr, svc, m, opts, logger); err != nil {
			printError("Server failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if !*jsonOut {
		fmt.Printf("StegGuard v%s\n", version)
		fmt.Println("Upload validation and steganography screening")
		fmt.Printf("Detection profile %s, %d workers\n", cfg.Version, *workers)
		fmt.Println("---------------------------------")
	}

	inputs, err := collectInputs(*filePath, *dirPath, *urlPath, *urlFilePath, *mimeType, *maxSize)
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
	if !*jsonOut {
		printInfo("Found %d files to validate", len(inputs))
	}

	outcomes := validateAll(ctx, svc, inputs, opts, *workers)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcomes); err != nil {
			printError("Failed to encode results: %v", err)
			os.Exit(1)
		}
	} else {
		for _, o := range outcomes {
			displayOutcome(o, *verbose)
		}
		printSummary(outcomes)
	}

	for _, o := range outcomes {
		if o.Result == nil || !o.Result.IsValid {
			svc.Shutdown()
			os.Exit(2)
		}
	}
}

func listAnalyzers(registry *analyzer.Registry, cfg *config.Config) {
	fmt.Println("Analyzers (in execution order):")
	for _, a := range registry.Analyzers() {
		scope := ""
		if !a.CanAnalyze("application/octet-stream") {
			scope = " (images only)"
		}
		fmt.Printf("- %s%s: %s\n", a.Name(), scope, a.Description())
	}
	fmt.Printf("\nWeights (profile %s):\n", cfg.Version)
	for _, s := range config.Signals() {
		fmt.Printf("- %-17s %.2f\n", s, cfg.Weights[s])
	}
}

// collectInputs lists what to validate. Files are read one byte past maxSize
// so that oversized ones are rejected by the size check instead of failing to load.
func collectInputs(filePath, dirPath, urlPath, urlFilePath, mimeType string, maxSize int64) ([]input, error) {
	var inputs []input

	readFile := func(path string) ([]byte, error) {
		if maxSize <= 0 || maxSize >= filehandler.MaxReadSize {
			return filehandler.ReadFileBytes(path, 0)
		}
		return filehandler.ReadFileHead(path, maxSize+1)
	}
	fromFile := func(path string) input {
		return input{
			name: path,
			load: func(context.Context) ([]byte, string, error) {
				buf, err := readFile(path)
				if err != nil {
					return nil, "", err
				}
				mt := mimeType
				if mt == "" {
					mt = filehandler.DetectMimeType(path, buf[:min(512, len(buf))])
				}
				return buf, mt, nil
			},
		}
	}
	fromURL := func(url string) input {
		return input{
			name: url,
			load: func(ctx context.Context) ([]byte, string, error) {
				d, err := filehandler.Download(ctx, url, 0)
				if err != nil {
					return nil, "", err
				}
				mt := mimeType
				if mt == "" {
					mt = filehandler.DetectMimeType(d.Name, d.Data[:min(512, len(d.Data))])
				}
				return d.Data, mt, nil
			},
		}
	}

	if filePath != "" {
		inputs = append(inputs, fromFile(filePath))
	}
	if dirPath != "" {
		files, err := filehandler.GatherFiles(dirPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		for _, f := range files {
			inputs = append(inputs, fromFile(f))
		}
	}
	if urlPath != "" {
		inputs = append(inputs, fromURL(urlPath))
	}
	if urlFilePath != "" {
		urls, err := filehandler.ReadLines(urlFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read URL file: %w", err)
		}
		for _, u := range urls {
			if filehandler.IsURL(u) {
				inputs = append(inputs, fromURL(u))
			}
		}
	}
	return inputs, nil
}

// validateAll loads and validates every input. The pool bounds the analyses;
// the group limit only bounds how many files sit in memory at once.
func validateAll(ctx context.Context, svc *filesecurity.Service, inputs []input, opts filesecurity.ValidateOptions, workers int) []outcome {
	outcomes := make([]outcome, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(2*workers, 1))
	for i, in := range inputs {
		g.Go(func() error {
			o := outcome{File: in.name}
			buf, mt, err := in.load(gctx)
			if err != nil {
				o.Error = err.Error()
				outcomes[i] = o
				return nil
			}
			o.MimeType = mt
			o.Result, err = svc.ValidateFile(gctx, buf, mt, filepath.Base(in.name), opts)
			if err != nil {
				o.Error = err.Error()
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func displayOutcome(o outcome, verbose bool) {
	fmt.Println("\n--- Validation Results ---")
	fmt.Printf("File: %s\n", o.File)
	if o.Error != "" {
		printError("Could not validate: %s", o.Error)
		fmt.Println("-------------------------")
		return
	}
	fmt.Printf("Media type: %s\n", o.MimeType)

	r := o.Result
	stego := r.Checks.Steganography
	switch {
	case !r.IsValid:
		printAlert("REJECTED")
	case stego != nil && stego.IsSuspicious:
		printWarning("Accepted with warnings")
	default:
		printSuccess("Accepted")
	}

	if stego != nil && stego.Success {
		fmt.Printf("Steganography confidence: %.2f (threshold %.2f)\n", stego.Confidence, stego.Threshold)
	}
	for _, e := range r.Errors {
		printError("%s", e)
	}
	for _, w := range r.Warnings {
		printWarning("%s", w)
	}
	if stego != nil && len(stego.Reasons) > 0 {
		fmt.Println("\nReasons:")
		for i, reason := range stego.Reasons {
			fmt.Printf("%d. %s\n", i+1, reason)
		}
	}

	if verbose {
		displayDetails(r)
	}
	fmt.Println("-------------------------")
}

func displayDetails(r *models.ValidationResult) {
	if ft := r.Checks.FileType; ft != nil {
		fmt.Printf("File type: %s (header %s)\n", ft.Reason, ft.DetectedHeader)
	}
	if in := r.Checks.Integrity; in != nil {
		fmt.Printf("SHA-256: %s\n", in.SHA256)
	}

	stego := r.Checks.Steganography
	if stego == nil || stego.Details == nil {
		return
	}
	d := stego.Details
	fmt.Println("\nAnalyzers:")
	if d.Entropy != nil {
		fmt.Printf("  entropy        %.3f bits/byte (threshold %.2f) suspicious=%t\n", d.Entropy.Value, d.Entropy.Threshold, d.Entropy.Suspicious)
	}
	if d.EntropyBlocks != nil {
		fmt.Printf("  entropyBlocks  %d/%d high blocks, max %.3f suspicious=%t\n", d.EntropyBlocks.HighEntropyBlocks, d.EntropyBlocks.TotalBlocks, d.EntropyBlocks.MaxEntropy, d.EntropyBlocks.Suspicious)
	}
	if d.LSB != nil {
		fmt.Printf("  lsb            entropy %.3f, ones %.3f, longest run %d suspicious=%t\n", d.LSB.LSBEntropy, d.LSB.OnesRatio, d.LSB.MaxConsecutiveSame, d.LSB.Suspicious)
	}
	if d.Signatures != nil {
		fmt.Printf("  signatures     %v suspicious=%t\n", d.Signatures.Detected, d.Signatures.Suspicious)
	}
	if d.Distribution != nil {
		fmt.Printf("  distribution   chi-square %.1f (critical %.2f) suspicious=%t\n", d.Distribution.ChiSquare, d.Distribution.CriticalValue, d.Distribution.Suspicious)
	}
	if img := d.Image; img != nil {
		if img.Error != "" {
			fmt.Printf("  image          decode failed: %s\n", img.Error)
			return
		}
		fmt.Printf("  image          %s %dx%d, %d channels, channel entropy %.3f suspicious=%t\n", img.Format, img.Width, img.Height, img.Channels, img.AvgEntropy, img.Suspicious)
		if pc := img.PixelCorrelation; pc != nil {
			fmt.Printf("    correlation  %.2f (%s)\n", pc.AvgPixelDifference, pc.Interpretation)
		}
		if md := img.Metadata; md != nil {
			fmt.Printf("    metadata     %d bytes %v\n", md.Size, md.Signals)
		}
		if a := img.AdvancedLSB; a != nil {
			fmt.Printf("    lsb plane    %d/%d indicators\n", a.IndicatorCount, a.RequiredIndicators)
		}
	}
}

func printSummary(outcomes []outcome) {
	var clean, suspicious, rejected, failed int

	for _, o := range outcomes {
		switch {
		case o.Result == nil:
			failed++
		case !o.Result.IsValid:
			rejected++
		case o.Result.Checks.Steganography != nil && o.Result.Checks.Steganography.IsSuspicious:
			suspicious++
		default:
			clean++
		}
	}

	fmt.Println("\n=== Validation Summary ===")
	fmt.Printf("Total files: %d\n", len(outcomes))
	fmt.Printf("%s Clean files: %d\n", successColor("[+]"), clean)

	if suspicious > 0 {
		fmt.Printf("%s Accepted with warnings: %d\n", warningColor("[!]"), suspicious)
	}
	if failed > 0 {
		fmt.Printf("%s Could not validate: %d\n", errorColor("[-]"), failed)
	}
	if rejected > 0 {
		fmt.Printf("%s Rejected: %d\n", alertColor("[!!!]"), rejected)

		fmt.Println("\nRejected files:")
		for _, o := range outcomes {
			if o.Result != nil && !o.Result.IsValid {
				fmt.Printf("- %s (%s)\n", o.File, strings.Join(o.Result.Errors, "; "))
			}
		}
	}
}

func serve(ctx context.Context, addr string, svc *filesecurity.Service, m *metrics.Metrics, opts filesecurity.ValidateOptions, logger *slog.Logger) error {
	api := httpapi.New(svc, m.Handler(), opts, logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	printInfo("Listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		printInfo("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
