// Command extract pulls images and text out of a PDF without running the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"

	config "github.com/drummonds/docextract/config"
	engine "github.com/drummonds/docextract/engine"
	"github.com/drummonds/docextract/engine/extractor"
)

type options struct {
	pdfPath string
	outDir  string
	verbose bool
	json    bool
	req     extractor.Request
	cfg     config.ServerConfig
}

func main() {
	_ = godotenv.Load(".env")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts, err := parseFlags(os.Args[1:], config.Load(logger))
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	config.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line on top of the environment configuration in cfg
func parseFlags(args []string, cfg config.ServerConfig) (options, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: extract [flags] <pdf>\n")
		fs.PrintDefaults()
	}

	opts := options{cfg: cfg}
	strategies := fs.String("strategies", "", "Comma separated strategies: embedded, full-page, segmented (default embedded,full-page unless only text or OCR is asked for)")
	fs.StringVar(&opts.outDir, "out", "extract_output", "Directory the images and text files are written to")
	dpi := fs.Float64("dpi", cfg.DPI, "Full page render resolution")
	zoom := fs.Float64("zoom", 0, "Full page render zoom, 1x = 72 dpi; overrides -dpi")
	fs.IntVar(&opts.req.MinWidth, "min-width", cfg.MinWidth, "Minimum embedded image width, 0 keeps everything")
	fs.IntVar(&opts.req.MinHeight, "min-height", cfg.MinHeight, "Minimum embedded image height, 0 keeps everything")
	fs.Float64Var(&opts.req.SegmentZoom, "segment-zoom", cfg.SegmentZoom, "Segmentation render zoom")
	threshold := fs.Int("threshold", cfg.SegmentThreshold, "Segmentation brightness threshold (1-255)")
	fs.IntVar(&opts.req.SegmentMinWidth, "segment-min-width", cfg.SegmentMinWidth, "Minimum segmented region width")
	fs.IntVar(&opts.req.SegmentMinHeight, "segment-min-height", cfg.SegmentMinHeight, "Minimum segmented region height")
	fs.BoolVar(&opts.req.Text, "text", false, "Extract the text layer to text.txt")
	fs.BoolVar(&opts.req.OCR, "ocr", false, "Run OCR on every page into ocr.txt")
	fs.BoolVar(&opts.req.Normalize, "normalize", false, "Deskew and OCR-prep the document with ocrmypdf first")
	fs.StringVar(&opts.cfg.PDFRenderer, "renderer", cfg.PDFRenderer, "PDF renderer: pdfium or fitz")
	fs.StringVar(&opts.cfg.OCREngine, "ocr-engine", cfg.OCREngine, "OCR engine: tesseract, gosseract, remote or none")
	fs.StringVar(&opts.cfg.TesseractPath, "tesseract", cfg.TesseractPath, "Path to the tesseract executable")
	fs.StringVar(&opts.cfg.OCRServiceURL, "ocr-url", cfg.OCRServiceURL, "URL of the remote OCR service")
	fs.StringVar(&opts.cfg.OCRmyPDFPath, "ocrmypdf", cfg.OCRmyPDFPath, "Path to the ocrmypdf executable")
	fs.StringVar(&opts.cfg.OCRLanguage, "lang", cfg.OCRLanguage, "OCR language")
	fs.BoolVar(&opts.json, "json", false, "Print a JSON summary instead of one line per file")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("expected exactly one PDF path")
	}
	opts.pdfPath = fs.Arg(0)

	var err error
	if opts.req.Strategies, err = extractor.ParseStrategies(*strategies); err != nil {
		return opts, err
	}
	if len(opts.req.Strategies) == 0 && !opts.req.Text && !opts.req.OCR {
		opts.req.Strategies = []extractor.Strategy{extractor.StrategyEmbedded, extractor.StrategyFullPage}
	}

	if *zoom < 0 || *zoom > extractor.MaxZoom {
		return opts, fmt.Errorf("zoom must be between 0 and %d, got %v", extractor.MaxZoom, *zoom)
	}
	opts.req.DPI = *dpi
	if *zoom > 0 {
		opts.req.DPI = extractor.ZoomToDPI(*zoom)
	}
	if opts.req.DPI <= 0 || opts.req.DPI > extractor.MaxDPI {
		return opts, fmt.Errorf("dpi must be between 0 and %d, got %v", extractor.MaxDPI, opts.req.DPI)
	}
	if opts.req.SegmentZoom <= 0 || opts.req.SegmentZoom > extractor.MaxZoom {
		return opts, fmt.Errorf("segment zoom must be between 0 and %d, got %v", extractor.MaxZoom, opts.req.SegmentZoom)
	}
	if *threshold < 1 || *threshold > 255 {
		return opts, fmt.Errorf("threshold must be between 1 and 255, got %d", *threshold)
	}
	opts.req.SegmentThreshold = uint8(*threshold)
	if opts.req.MinWidth < 0 || opts.req.MinHeight < 0 {
		return opts, errors.New("minimum sizes cannot be negative")
	}
	if !opts.req.OCR && opts.cfg.OCREngine != "" {
		opts.cfg.OCREngine = "none"
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger, stdout io.Writer) error {
	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	ex, renderer, err := engine.NewExtractor(opts.cfg, logger)
	if err != nil {
		return err
	}
	defer renderer.Close()

	result, err := ex.Run(ctx, data, opts.req)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		logger.Warn("Extraction warning", "kind", w.Kind, "detail", w.String())
	}

	written, err := writeResults(opts.outDir, result, opts.req)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"document": opts.pdfPath,
			"pages":    result.Pages,
			"files":    written,
			"warnings": result.Warnings,
		})
	}
	for _, name := range written {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

// writeResults saves every image under its label filename plus the requested text files
func writeResults(dir string, result *extractor.Result, req extractor.Request) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, img := range result.Images {
		encoded, err := img.PNG()
		if err != nil {
			return written, err
		}
		if err := write(img.Label.Filename(), encoded); err != nil {
			return written, err
		}
	}
	if req.Text {
		if err := write("text.txt", []byte(result.Text)); err != nil {
			return written, err
		}
	}
	if req.OCR {
		if err := write("ocr.txt", []byte(result.OCRText)); err != nil {
			return written, err
		}
	}
	return written, nil
}
