package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
)

// TesseractCLI runs the tesseract executable once per image
type TesseractCLI struct {
	path     string
	language string
	tempDir  string
}

// NewTesseractCLI creates an engine around the tesseract binary at path.
// Temporary files go under tempDir, or the system default when empty.
func NewTesseractCLI(path, language, tempDir string) *TesseractCLI {
	return &TesseractCLI{path: path, language: language, tempDir: tempDir}
}

func (t *TesseractCLI) Name() string { return "tesseract" }

// Recognize writes the image to a private temp dir, runs tesseract and reads back the .txt output
func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) (string, error) {
	tempDir, err := os.MkdirTemp(t.tempDir, "ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	imageData, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	inputPath := filepath.Join(tempDir, "input.png")
	if err := os.WriteFile(inputPath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	// Tesseract appends .txt to the output base
	outputBase := filepath.Join(tempDir, "output")
	args := []string{inputPath, outputBase}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}

	cmd := exec.CommandContext(ctx, t.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract command failed: %w, stderr: %s", err, stderr.String())
	}

	textData, err := os.ReadFile(outputBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read OCR output: %w", err)
	}
	return string(textData), nil
}
