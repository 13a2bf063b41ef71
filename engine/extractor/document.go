package extractor

import "image"

// Opener parses raw document bytes
type Opener interface {
	Open(data []byte) (Document, error)
}

// Document is an opened, paginated document. Close is called exactly once per request.
type Document interface {
	NumPages() int
	// Page returns the zero-based page. The caller closes it.
	Page(index int) (Page, error)
	Close() error
}

// Page is a single page of a Document
type Page interface {
	// EmbeddedImages lists the raster objects referenced by the page in a stable order
	EmbeddedImages() ([]EmbeddedImage, error)
	// Render rasterizes the full page at the given resolution
	Render(dpi float64) (image.Image, error)
	// Text returns the page text in layout order
	Text() (string, error)
	Close() error
}

// EmbeddedImage is an opaque handle to a raster object stored in a page
type EmbeddedImage interface {
	// Name identifies the object in warnings
	Name() string
	// Decode turns the stored bytes into pixels
	Decode() (image.Image, error)
}
