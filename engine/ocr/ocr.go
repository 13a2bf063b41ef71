// Package ocr wraps the optical character recognition backends used for the OCR pass.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"
)

// Engine recognizes text in a rendered page
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Config selects and configures an Engine
type Config struct {
	Kind          string // tesseract, gosseract, remote or none
	TesseractPath string
	Language      string
	ServiceURL    string
	TempDir       string
	Timeout       time.Duration
}

// NewEngine builds the engine named by cfg.Kind. "none" and "" return a nil engine.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "tesseract":
		if cfg.TesseractPath == "" {
			return nil, fmt.Errorf("tesseract engine selected but no tesseract path configured")
		}
		return NewTesseractCLI(cfg.TesseractPath, cfg.Language, cfg.TempDir), nil
	case "gosseract":
		return NewGosseract(cfg.Language), nil
	case "remote":
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("remote OCR engine selected but no service URL configured")
		}
		remote := NewRemote(cfg.ServiceURL, cfg.Timeout)
		remote.Language = cfg.Language
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Kind)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
