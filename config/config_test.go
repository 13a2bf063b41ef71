package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeExecutable(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	file.Close()
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("Failed to chmod file: %v", err)
	}
	return path
}

func TestCheckExecutables_ValidPath(t *testing.T) {
	validExe := fakeExecutable(t, "tesseract")

	err := checkExecutables(validExe, discardLogger())
	if err != nil {
		t.Errorf("Expected no error with valid path, got: %v", err)
	}
}

func TestCheckExecutables_InvalidPath(t *testing.T) {
	invalidPath := "/nonexistent/path/to/tesseract"
	err := checkExecutables(invalidPath, discardLogger())
	if err == nil {
		t.Error("Expected error with invalid path, got nil")
	}
	t.Logf("Correctly returned error for invalid path: %v", err)
}

func TestCheckExecutables_Directory(t *testing.T) {
	if err := checkExecutables(t.TempDir(), discardLogger()); err == nil {
		t.Error("Expected error for a directory")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TESSERACT_PATH", "/nonexistent/tesseract")
	t.Setenv("OCRMYPDF_PATH", "/nonexistent/ocrmypdf")

	cfg := Load(discardLogger())

	if cfg.ListenAddrPort != "8000" {
		t.Errorf("Expected port 8000, got %s", cfg.ListenAddrPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("Expected sqlite database by default, got %s", cfg.DatabaseType)
	}
	if !filepath.IsAbs(cfg.ResultsPath) {
		t.Errorf("Results path should be absolute, got %s", cfg.ResultsPath)
	}
	if cfg.DPI != 150 || cfg.SegmentZoom != 2 || cfg.SegmentThreshold != 240 {
		t.Errorf("Unexpected extraction defaults: %+v", cfg.ExtractConfig)
	}
	if cfg.MinWidth != 50 || cfg.MinHeight != 50 || cfg.SegmentMinWidth != 100 || cfg.SegmentMinHeight != 100 {
		t.Errorf("Unexpected size defaults: %+v", cfg.ExtractConfig)
	}
	if cfg.OCREngine != "none" || cfg.TesseractPath != "" {
		t.Errorf("Missing tesseract should disable OCR, got engine %q path %q", cfg.OCREngine, cfg.TesseractPath)
	}
	if cfg.OCRmyPDFPath != "" {
		t.Errorf("Missing ocrmypdf should disable normalization, got %q", cfg.OCRmyPDFPath)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	tesseract := fakeExecutable(t, "tesseract")
	ocrmypdf := fakeExecutable(t, "ocrmypdf")
	results := t.TempDir()

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("RESULTS_PATH", results)
	t.Setenv("EXTRACT_DPI", "300")
	t.Setenv("SEGMENT_ZOOM", "1.5")
	t.Setenv("SEGMENT_THRESHOLD", "999")
	t.Setenv("EXTRACT_MIN_WIDTH", "not a number")
	t.Setenv("TESSERACT_PATH", tesseract)
	t.Setenv("OCRMYPDF_PATH", ocrmypdf)
	t.Setenv("OCR_LANGUAGE", "eng+deu")

	cfg := Load(discardLogger())

	if cfg.ListenAddrPort != "9090" || cfg.DatabaseType != "postgres" {
		t.Errorf("Server settings not read: %+v", cfg)
	}
	if cfg.ResultsPath != results {
		t.Errorf("Expected results path %s, got %s", results, cfg.ResultsPath)
	}
	if cfg.DPI != 300 || cfg.SegmentZoom != 1.5 {
		t.Errorf("Unexpected extraction settings: %+v", cfg.ExtractConfig)
	}
	if cfg.SegmentThreshold != 240 {
		t.Errorf("Out of range threshold should fall back to 240, got %d", cfg.SegmentThreshold)
	}
	if cfg.MinWidth != 50 {
		t.Errorf("Invalid integer should fall back to the default, got %d", cfg.MinWidth)
	}
	if cfg.OCREngine != "tesseract" || cfg.TesseractPath != tesseract {
		t.Errorf("Expected tesseract OCR at %s, got %q %q", tesseract, cfg.OCREngine, cfg.TesseractPath)
	}
	if cfg.OCRmyPDFPath != ocrmypdf || cfg.OCRLanguage != "eng+deu" {
		t.Errorf("Unexpected OCR settings: %+v", cfg.OCRConfig)
	}
}

func TestNormalizeCanBeDisabled(t *testing.T) {
	t.Setenv("OCRMYPDF_PATH", fakeExecutable(t, "ocrmypdf"))
	t.Setenv("NORMALIZE_ENABLED", "false")

	if cfg := Load(discardLogger()); cfg.OCRmyPDFPath != "" {
		t.Errorf("Normalization should be off, got %q", cfg.OCRmyPDFPath)
	}
}
