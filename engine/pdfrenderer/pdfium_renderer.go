package pdfrenderer

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	// PDFium instances are single threaded, every call goes through mu
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumRenderer creates a new PDFium-based PDF renderer using WebAssembly
func NewPDFiumRenderer() (*PDFiumRenderer, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumRenderer{
		pool:     pool,
		instance: instance,
	}, nil
}

// Name returns the backend name
func (r *PDFiumRenderer) Name() string {
	return "pdfium"
}

// Open loads the PDF bytes into the PDFium instance
func (r *PDFiumRenderer) Open(data []byte) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance == nil {
		return nil, fmt.Errorf("PDFium renderer is closed")
	}

	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCountResp, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		renderer: r,
		ref:      doc.Document,
		pages:    pageCountResp.PageCount,
	}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	r.instance = nil
	return nil
}

type pdfiumDocument struct {
	renderer *PDFiumRenderer
	ref      references.FPDF_DOCUMENT
	pages    int
}

func (d *pdfiumDocument) NumPages() int {
	return d.pages
}

func (d *pdfiumDocument) RenderPage(index int, dpi float64) (image.Image, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()

	if d.renderer.instance == nil {
		return nil, fmt.Errorf("PDFium renderer is closed")
	}

	pageRender, err := d.renderer.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(math.Round(dpi)),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.ref,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	// The bitmap lives in WebAssembly memory until Cleanup, copy it out first
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	return img, nil
}

func (d *pdfiumDocument) Close() error {
	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()

	if d.renderer.instance == nil {
		return nil
	}
	_, err := d.renderer.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.ref,
	})
	return err
}
