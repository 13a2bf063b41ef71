package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/drummonds/docextract/config"
	"github.com/drummonds/docextract/engine/extractor"
	"github.com/drummonds/docextract/engine/ocr"
	"github.com/drummonds/docextract/engine/pdfrenderer"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// NewExtractor wires the renderer, OCR engine and normalizer named in cfg into an Extractor.
// The caller closes the returned renderer when done.
func NewExtractor(cfg config.ServerConfig, logger *slog.Logger) (*extractor.Extractor, pdfrenderer.Renderer, error) {
	// pdfcpu would otherwise write a config directory under the user's home
	api.DisableConfigDir()

	renderer, err := pdfrenderer.NewRenderer(cfg.PDFRenderer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PDF renderer: %w", err)
	}

	opts := []extractor.Option{
		extractor.WithLogger(logger),
		extractor.WithTempDir(cfg.TempPath),
	}
	if cfg.OCRDPI > 0 {
		opts = append(opts, extractor.WithOCRDPI(cfg.OCRDPI))
	}

	ocrEngine, err := ocr.NewEngine(ocr.Config{
		Kind:          cfg.OCREngine,
		TesseractPath: cfg.TesseractPath,
		Language:      cfg.OCRLanguage,
		ServiceURL:    cfg.OCRServiceURL,
		TempDir:       cfg.TempPath,
		Timeout:       2 * time.Minute,
	})
	if err != nil {
		logger.Warn("OCR engine unavailable, OCR requests will be rejected", "engine", cfg.OCREngine, "error", err)
	} else if ocrEngine != nil {
		logger.Info("OCR engine ready", "engine", ocrEngine.Name())
		opts = append(opts, extractor.WithOCR(ocrEngine))
	}

	if cfg.OCRmyPDFPath != "" {
		logger.Info("Normalization enabled", "path", cfg.OCRmyPDFPath)
		opts = append(opts, extractor.WithNormalizer(extractor.NewOCRmyPDF(cfg.OCRmyPDFPath, cfg.OCRLanguage)))
	}

	logger.Info("PDF renderer ready", "renderer", renderer.Name())
	return extractor.New(extractor.NewPDFOpener(renderer), opts...), renderer, nil
}
