package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"strings"

	"github.com/drummonds/docextract/engine/pdfrenderer"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/tiff"
)

// PDFOpener opens PDFs with pdfcpu for structure and embedded images,
// ledongthuc/pdf for the text layer and a pdfrenderer backend for rasterization.
type PDFOpener struct {
	renderer pdfrenderer.Renderer
}

// NewPDFOpener creates an opener. The renderer may be nil when no page is ever rendered.
func NewPDFOpener(renderer pdfrenderer.Renderer) *PDFOpener {
	return &PDFOpener{renderer: renderer}
}

// Open parses the document structure. Rendering and text handles are created on first use.
func (o *PDFOpener) Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("PDF parser panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTIMAGES

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to validate PDF: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, errors.New("PDF has no pages")
	}
	// builds the per page image tables ExtractPageImages reads
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to index PDF resources: %w", err)
	}

	return &pdfDocument{
		data:     data,
		ctx:      ctx,
		renderer: o.renderer,
	}, nil
}

type pdfDocument struct {
	data     []byte
	ctx      *model.Context
	renderer pdfrenderer.Renderer
	render   pdfrenderer.Document
	text     *pdf.Reader
}

func (d *pdfDocument) NumPages() int {
	return d.ctx.PageCount
}

func (d *pdfDocument) Page(index int) (Page, error) {
	if index < 0 || index >= d.ctx.PageCount {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", index, d.ctx.PageCount)
	}
	return &pdfPage{doc: d, index: index}, nil
}

func (d *pdfDocument) Close() error {
	d.text = nil
	d.ctx = nil
	if d.render != nil {
		err := d.render.Close()
		d.render = nil
		return err
	}
	return nil
}

func (d *pdfDocument) rendered() (pdfrenderer.Document, error) {
	if d.render != nil {
		return d.render, nil
	}
	if d.renderer == nil {
		return nil, errors.New("no PDF renderer configured")
	}
	rd, err := d.renderer.Open(d.data)
	if err != nil {
		return nil, err
	}
	d.render = rd
	return rd, nil
}

func (d *pdfDocument) textReader() (*pdf.Reader, error) {
	if d.text != nil {
		return d.text, nil
	}
	r, err := pdf.NewReader(bytes.NewReader(d.data), int64(len(d.data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF text reader: %w", err)
	}
	d.text = r
	return r, nil
}

type pdfPage struct {
	doc   *pdfDocument
	index int
}

func (p *pdfPage) EmbeddedImages() (result []EmbeddedImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("image extraction panic: %v", r)
		}
	}()

	images, err := pdfcpu.ExtractPageImages(p.doc.ctx, p.index+1, false)
	if err != nil {
		return nil, err
	}

	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	result = make([]EmbeddedImage, 0, len(objNrs))
	for _, objNr := range objNrs {
		result = append(result, &pdfEmbeddedImage{img: images[objNr]})
	}
	return result, nil
}

func (p *pdfPage) Render(dpi float64) (image.Image, error) {
	rd, err := p.doc.rendered()
	if err != nil {
		return nil, err
	}
	return rd.RenderPage(p.index, dpi)
}

func (p *pdfPage) Text() (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("text extraction panic: %v", r)
		}
	}()

	r, err := p.doc.textReader()
	if err != nil {
		return "", err
	}
	page := r.Page(p.index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (p *pdfPage) Close() error {
	return nil
}

type pdfEmbeddedImage struct {
	img model.Image
}

func (e *pdfEmbeddedImage) Name() string {
	if e.img.Name != "" {
		return fmt.Sprintf("%s (obj %d)", e.img.Name, e.img.ObjNr)
	}
	return fmt.Sprintf("obj %d", e.img.ObjNr)
}

func (e *pdfEmbeddedImage) Decode() (image.Image, error) {
	if e.img.Reader == nil {
		return nil, errors.New("image has no data")
	}
	data, err := io.ReadAll(e.img.Reader)
	if err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}
	r := bytes.NewReader(data)

	switch strings.ToLower(e.img.FileType) {
	case "png":
		return png.Decode(r)
	case "jpg", "jpeg":
		return jpeg.Decode(r)
	case "tif", "tiff":
		return tiff.Decode(r)
	default:
		img, _, err := image.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("unsupported image type %q: %w", e.img.FileType, err)
		}
		return img, nil
	}
}
