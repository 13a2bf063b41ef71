package pdfrenderer

import (
	"fmt"
	"image"
)

// Renderer defines the interface for PDF page rasterization
type Renderer interface {
	// Open loads a PDF held in memory and returns a handle for rendering its pages
	Open(data []byte) (Document, error)

	// Name identifies the backend in logs and the about endpoint
	Name() string

	// Close cleans up any resources used by the renderer
	Close() error
}

// Document is an opened PDF that can rasterize individual pages
type Document interface {
	// NumPages returns the number of pages in the document
	NumPages() int

	// RenderPage renders the zero-based page index at the requested DPI
	RenderPage(index int, dpi float64) (image.Image, error)

	// Close releases the document
	Close() error
}

// NewRenderer creates the renderer named by kind ("pdfium" or "fitz").
// An empty kind selects PDFium, which is pure Go (no CGo).
func NewRenderer(kind string) (Renderer, error) {
	switch kind {
	case "", "pdfium":
		return NewPDFiumRenderer()
	case "fitz", "mupdf":
		return NewFitzRenderer()
	default:
		return nil, fmt.Errorf("unknown PDF renderer %q", kind)
	}
}
