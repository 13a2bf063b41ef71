package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentOpen means the input is not a parseable document. Fatal.
	ErrDocumentOpen = errors.New("document could not be opened")
	// ErrImageDecode means one embedded image could not be decoded. Recovered as a warning.
	ErrImageDecode = errors.New("embedded image could not be decoded")
	// ErrPageRender means a page could not be rasterized. Recovered per page.
	ErrPageRender = errors.New("page could not be rendered")
	// ErrNormalization means the deskew/OCR-prep pass failed. Fatal.
	ErrNormalization = errors.New("document normalization failed")
	// ErrOCREngine means the OCR engine failed. Fatal for the OCR pass.
	ErrOCREngine = errors.New("OCR engine failed")
	// ErrNoWork means the request selected no strategy and no text or OCR pass
	ErrNoWork = errors.New("nothing to extract")
)

// WarningKind classifies a recoverable problem
type WarningKind string

const (
	WarningImageDecode WarningKind = "image_decode"
	WarningPageRender  WarningKind = "page_render"
	WarningText        WarningKind = "text"
)

// Warning is a recoverable problem reported alongside a partial result
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Page    int         `json:"page"`
	Object  string      `json:"object,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Object != "" {
		return fmt.Sprintf("page %d, %s: %s", w.Page, w.Object, w.Message)
	}
	return fmt.Sprintf("page %d: %s", w.Page, w.Message)
}
