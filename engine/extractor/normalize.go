package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Normalizer produces a corrected copy of a document before extraction
type Normalizer interface {
	// Normalize may use workDir for scratch files; the caller removes it
	Normalize(ctx context.Context, workDir string, data []byte) ([]byte, error)
}

// OCRmyPDF deskews pages and replaces any existing text layer using the ocrmypdf tool
type OCRmyPDF struct {
	path     string
	language string
}

// NewOCRmyPDF creates a normalizer around the ocrmypdf executable at path
func NewOCRmyPDF(path, language string) *OCRmyPDF {
	return &OCRmyPDF{path: path, language: language}
}

// Args returns the command line used for an input and output file
func (o *OCRmyPDF) Args(input, output string) []string {
	args := []string{"--deskew", "--force-ocr", "--output-type", "pdf"}
	if o.language != "" {
		args = append(args, "-l", o.language)
	}
	return append(args, input, output)
}

// Normalize runs ocrmypdf on data and returns the rewritten document
func (o *OCRmyPDF) Normalize(ctx context.Context, workDir string, data []byte) ([]byte, error) {
	input := filepath.Join(workDir, "input.pdf")
	output := filepath.Join(workDir, "normalized.pdf")
	if err := os.WriteFile(input, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write document to temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.path, o.Args(input, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocrmypdf command failed: %w, stderr: %s", err, stderr.String())
	}

	normalized, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read normalized document: %w", err)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("ocrmypdf produced an empty document")
	}
	return normalized, nil
}
