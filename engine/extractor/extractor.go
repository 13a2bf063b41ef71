// Package extractor pulls raster images, text and OCR transcripts out of paginated documents.
//
// A request runs sequentially: optional normalization, open, then for each page the
// selected image strategies and the text layer, then an optional OCR pass over
// freshly rendered pages. Recoverable problems are collected as warnings, fatal
// ones are returned wrapped in one of the package's sentinel errors.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/drummonds/docextract/engine/ocr"
)

const (
	DefaultDPI              = 150
	DefaultOCRDPI           = 300
	DefaultSegmentZoom      = 2
	DefaultSegmentThreshold = 240
	DefaultSegmentMinSize   = 100

	// MaxDPI and MaxZoom bound caller supplied render resolutions
	MaxDPI  = 2400
	MaxZoom = 10
)

// ProgressFunc is told how many of the total steps are finished
type ProgressFunc func(done, total int, step string)

// Request holds the caller's choices for one document
type Request struct {
	Strategies []Strategy

	// DPI is the full-page rasterization resolution
	DPI float64
	// MinWidth and MinHeight filter embedded images; 0 disables the filter
	MinWidth  int
	MinHeight int

	SegmentZoom      float64
	SegmentThreshold uint8
	SegmentMinWidth  int
	SegmentMinHeight int

	Text      bool
	OCR       bool
	Normalize bool

	Progress ProgressFunc
}

func (r Request) withDefaults() Request {
	if r.DPI <= 0 {
		r.DPI = DefaultDPI
	}
	if r.SegmentZoom <= 0 {
		r.SegmentZoom = DefaultSegmentZoom
	}
	if r.SegmentThreshold == 0 {
		r.SegmentThreshold = DefaultSegmentThreshold
	}
	if r.SegmentMinWidth <= 0 {
		r.SegmentMinWidth = DefaultSegmentMinSize
	}
	if r.SegmentMinHeight <= 0 {
		r.SegmentMinHeight = DefaultSegmentMinSize
	}
	return r
}

func (r Request) has(s Strategy) bool {
	for _, x := range r.Strategies {
		if x == s {
			return true
		}
	}
	return false
}

// Extractor runs extraction requests against documents produced by an Opener
type Extractor struct {
	opener     Opener
	ocr        ocr.Engine
	ocrDPI     float64
	normalizer Normalizer
	tempDir    string
	logger     *slog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithOCR sets the engine used by the OCR pass
func WithOCR(engine ocr.Engine) Option {
	return func(e *Extractor) { e.ocr = engine }
}

// WithOCRDPI sets the resolution pages are rendered at for OCR
func WithOCRDPI(dpi float64) Option {
	return func(e *Extractor) {
		if dpi > 0 {
			e.ocrDPI = dpi
		}
	}
}

// WithNormalizer sets the pre-extraction correction pass
func WithNormalizer(n Normalizer) Option {
	return func(e *Extractor) { e.normalizer = n }
}

// WithTempDir sets the parent directory for per-request workspaces
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithLogger sets the logger for warnings and progress
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor
func New(opener Opener, opts ...Option) *Extractor {
	e := &Extractor{
		opener: opener,
		ocrDPI: DefaultOCRDPI,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanOCR reports whether an OCR engine is configured
func (e *Extractor) CanOCR() bool {
	return e.ocr != nil
}

// CanNormalize reports whether a normalizer is configured
func (e *Extractor) CanNormalize() bool {
	return e.normalizer != nil
}

// Run extracts everything the request asks for from data
func (e *Extractor) Run(ctx context.Context, data []byte, req Request) (*Result, error) {
	req = req.withDefaults()
	if len(req.Strategies) == 0 && !req.Text && !req.OCR {
		return nil, ErrNoWork
	}
	if req.OCR && e.ocr == nil {
		return nil, fmt.Errorf("%w: no OCR engine configured", ErrOCREngine)
	}
	if req.Normalize && e.normalizer == nil {
		return nil, fmt.Errorf("%w: no normalizer configured", ErrNormalization)
	}

	var result *Result
	err := e.withWorkspace(func(dir string) error {
		if req.Normalize {
			e.logger.Info("Normalizing document before extraction", "bytes", len(data))
			normalized, err := e.normalizer.Normalize(ctx, dir, data)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNormalization, err)
			}
			data = normalized
		}

		doc, err := e.opener.Open(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDocumentOpen, err)
		}
		defer func() {
			if err := doc.Close(); err != nil {
				e.logger.Warn("Failed to close document", "error", err)
			}
		}()

		result, err = e.process(ctx, doc, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withWorkspace gives fn a private temp dir that is removed on every exit path
func (e *Extractor) withWorkspace(fn func(dir string) error) error {
	dir, err := os.MkdirTemp(e.tempDir, "docextract-*")
	if err != nil {
		return fmt.Errorf("failed to create request workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Error("Failed to remove request workspace", "dir", dir, "error", err)
		}
	}()
	return fn(dir)
}

func (e *Extractor) process(ctx context.Context, doc Document, req Request) (*Result, error) {
	numPages := doc.NumPages()
	result := &Result{
		Pages:     numPages,
		Discarded: make(map[Strategy]int),
	}

	totalSteps := numPages
	if req.OCR {
		totalSteps += numPages
	}
	step := 0
	report := func(msg string) {
		step++
		if req.Progress != nil {
			req.Progress(step, totalSteps, msg)
		}
	}

	var text textBuilder
	for i := 0; i < numPages; i++ {
		pageNum := i + 1
		page, err := doc.Page(i)
		if err != nil {
			e.warn(result, Warning{Kind: WarningPageRender, Page: pageNum, Message: err.Error()})
			if req.Text {
				text.addPage(pageNum, "")
			}
			report(fmt.Sprintf("Page %d/%d skipped", pageNum, numPages))
			continue
		}

		e.extractPage(page, pageNum, req, result, &text)
		if err := page.Close(); err != nil {
			e.logger.Warn("Failed to close page", "page", pageNum, "error", err)
		}
		report(fmt.Sprintf("Page %d/%d extracted", pageNum, numPages))
	}
	if req.Text {
		result.Text = text.String()
	}

	if req.OCR {
		ocrText, err := e.ocrPass(ctx, doc, result, report)
		if err != nil {
			return nil, err
		}
		result.OCRText = ocrText
	}

	e.logger.Info("Extraction finished",
		"pages", numPages,
		"images", len(result.Images),
		"warnings", len(result.Warnings))
	return result, nil
}

func (e *Extractor) extractPage(page Page, pageNum int, req Request, result *Result, text *textBuilder) {
	if req.has(StrategyEmbedded) {
		e.extractEmbedded(page, pageNum, req, result)
	}

	if req.has(StrategyFullPage) || req.has(StrategySegmented) {
		e.extractRendered(page, pageNum, req, result)
	}

	if req.Text {
		body, err := page.Text()
		if err != nil {
			e.warn(result, Warning{Kind: WarningText, Page: pageNum, Message: err.Error()})
			body = ""
		}
		text.addPage(pageNum, body)
	}
}

func (e *Extractor) extractEmbedded(page Page, pageNum int, req Request, result *Result) {
	objects, err := page.EmbeddedImages()
	if err != nil {
		e.warn(result, Warning{Kind: WarningImageDecode, Page: pageNum, Object: "page resources", Message: err.Error()})
		return
	}

	for i, obj := range objects {
		img, err := obj.Decode()
		if err != nil {
			e.warn(result, Warning{
				Kind:    WarningImageDecode,
				Page:    pageNum,
				Object:  obj.Name(),
				Message: fmt.Errorf("%w: %w", ErrImageDecode, err).Error(),
			})
			continue
		}
		b := img.Bounds()
		if b.Dx() < req.MinWidth || b.Dy() < req.MinHeight {
			result.Discarded[StrategyEmbedded]++
			e.logger.Debug("Discarding small embedded image",
				"page", pageNum, "object", obj.Name(), "width", b.Dx(), "height", b.Dy())
			continue
		}
		label := Label{Page: pageNum, Method: StrategyEmbedded, Seq: i + 1}
		result.Images = append(result.Images, newExtractedImage(label, img))
	}
}

func (e *Extractor) extractRendered(page Page, pageNum int, req Request, result *Result) {
	var full image.Image
	if req.has(StrategyFullPage) {
		img, err := page.Render(req.DPI)
		if err != nil {
			e.renderFailed(result, pageNum, err)
			return
		}
		full = img
		label := Label{Page: pageNum, Method: StrategyFullPage, Seq: 1}
		result.Images = append(result.Images, newExtractedImage(label, img))
	}

	if !req.has(StrategySegmented) {
		return
	}
	segmentDPI := ZoomToDPI(req.SegmentZoom)
	rendered := full
	if rendered == nil || segmentDPI != req.DPI {
		img, err := page.Render(segmentDPI)
		if err != nil {
			e.renderFailed(result, pageNum, err)
			return
		}
		rendered = img
	}

	regions := findRegions(rendered, req.SegmentThreshold, req.SegmentMinWidth, req.SegmentMinHeight)
	for i, r := range regions {
		label := Label{Page: pageNum, Method: StrategySegmented, Seq: i + 1}
		result.Images = append(result.Images, newExtractedImage(label, imaging.Crop(rendered, r)))
	}
	e.logger.Debug("Segmented page", "page", pageNum, "regions", len(regions))
}

func (e *Extractor) renderFailed(result *Result, pageNum int, err error) {
	e.warn(result, Warning{
		Kind:    WarningPageRender,
		Page:    pageNum,
		Message: fmt.Errorf("%w: %w", ErrPageRender, err).Error(),
	})
}

// ocrPass renders every page and recognizes it. An engine failure ends the pass.
func (e *Extractor) ocrPass(ctx context.Context, doc Document, result *Result, report func(string)) (string, error) {
	var text textBuilder
	numPages := doc.NumPages()
	for i := 0; i < numPages; i++ {
		pageNum := i + 1
		body, err := e.ocrPage(ctx, doc, i)
		if err != nil {
			if errors.Is(err, ErrOCREngine) {
				return "", err
			}
			e.renderFailed(result, pageNum, err)
		}
		text.addPage(pageNum, body)
		report(fmt.Sprintf("Page %d/%d recognized", pageNum, numPages))
	}
	return text.String(), nil
}

func (e *Extractor) ocrPage(ctx context.Context, doc Document, index int) (string, error) {
	page, err := doc.Page(index)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Warn("Failed to close page", "page", index+1, "error", err)
		}
	}()

	img, err := page.Render(e.ocrDPI)
	if err != nil {
		return "", err
	}
	body, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %w", ErrOCREngine, index+1, err)
	}
	return body, nil
}

func (e *Extractor) warn(result *Result, w Warning) {
	result.Warnings = append(result.Warnings, w)
	e.logger.Warn("Recoverable extraction problem",
		"kind", w.Kind, "page", w.Page, "object", w.Object, "message", w.Message)
}
