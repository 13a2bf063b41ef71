package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"testing"
)

type fakeObject struct {
	name string
	img  image.Image
	err  error
}

func (o *fakeObject) Name() string { return o.name }

func (o *fakeObject) Decode() (image.Image, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.img, nil
}

type fakePage struct {
	objects   []EmbeddedImage
	objectErr error
	renderErr error
	render    func(dpi float64) image.Image
	text      string
	textErr   error
	doc       *fakeDoc
}

func (p *fakePage) EmbeddedImages() ([]EmbeddedImage, error) {
	return p.objects, p.objectErr
}

func (p *fakePage) Render(dpi float64) (image.Image, error) {
	p.doc.renders = append(p.doc.renders, dpi)
	if p.renderErr != nil {
		return nil, p.renderErr
	}
	if p.render != nil {
		return p.render(dpi), nil
	}
	return blankPage(dpi), nil
}

func (p *fakePage) Text() (string, error) {
	return p.text, p.textErr
}

func (p *fakePage) Close() error {
	p.doc.pageCloses++
	return nil
}

type fakeDoc struct {
	pages      []*fakePage
	closes     int
	pageOpens  int
	pageCloses int
	renders    []float64
}

func (d *fakeDoc) NumPages() int { return len(d.pages) }

func (d *fakeDoc) Page(index int) (Page, error) {
	d.pageOpens++
	return d.pages[index], nil
}

func (d *fakeDoc) Close() error {
	d.closes++
	return nil
}

type fakeOpener struct {
	doc    *fakeDoc
	err    error
	opened [][]byte
}

func (o *fakeOpener) Open(data []byte) (Document, error) {
	o.opened = append(o.opened, data)
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func newFakeDoc(pages ...*fakePage) *fakeDoc {
	doc := &fakeDoc{pages: pages}
	for _, p := range pages {
		p.doc = doc
	}
	return doc
}

// blankPage is a white US letter page at the given resolution
func blankPage(dpi float64) image.Image {
	w, h := int(8.5*dpi), int(11*dpi)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// pageWithBlocks draws black rectangles on a white page
func pageWithBlocks(dpi float64, blocks ...image.Rectangle) image.Image {
	img := blankPage(dpi).(*image.RGBA)
	for _, b := range blocks {
		draw.Draw(img, b, image.Black, image.Point{}, draw.Src)
	}
	return img
}

type fakeOCR struct {
	fail  bool
	calls int
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("engine crashed")
	}
	return fmt.Sprintf("recognized %dx%d", img.Bounds().Dx(), img.Bounds().Dy()), nil
}

type fakeNormalizer struct {
	out    []byte
	err    error
	calls  int
	sawDir string
}

func (n *fakeNormalizer) Normalize(ctx context.Context, workDir string, data []byte) ([]byte, error) {
	n.calls++
	n.sawDir = workDir
	if n.err != nil {
		return nil, n.err
	}
	return n.out, nil
}

func TestZeroEmbeddedImagesYieldsOnlyFullPages(t *testing.T) {
	doc := newFakeDoc(&fakePage{}, &fakePage{}, &fakePage{}, &fakePage{})
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategyEmbedded, StrategyFullPage},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	embedded, fullPage := 0, 0
	for _, img := range result.Images {
		switch img.Method {
		case StrategyEmbedded:
			embedded++
		case StrategyFullPage:
			fullPage++
		}
	}
	if embedded != 0 {
		t.Errorf("Expected no embedded images, got %d", embedded)
	}
	if fullPage != 4 {
		t.Errorf("Expected 4 full-page images, got %d", fullPage)
	}
	for i, img := range result.Images {
		if img.Page != i+1 || img.Seq != 1 {
			t.Errorf("Unexpected label at %d: %s", i, img.Label)
		}
	}
}

func TestEmbeddedSizeFilter(t *testing.T) {
	page := &fakePage{objects: []EmbeddedImage{
		&fakeObject{name: "icon", img: solid(20, 20, color.Black)},
		&fakeObject{name: "banner", img: solid(600, 40, color.Black)},
		&fakeObject{name: "photo", img: solid(200, 300, color.Black)},
		&fakeObject{name: "tall", img: solid(49, 400, color.Black)},
	}}
	doc := newFakeDoc(page)
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategyEmbedded},
		MinWidth:   50,
		MinHeight:  50,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Images) != 1 {
		t.Fatalf("Expected 1 image to survive the filter, got %d", len(result.Images))
	}
	for _, img := range result.Images {
		if img.Width < 50 || img.Height < 50 {
			t.Errorf("Image %s is below the minimum: %dx%d", img.Label, img.Width, img.Height)
		}
	}
	if got := result.Images[0].Seq; got != 3 {
		t.Errorf("Expected the photo to keep its enumeration position 3, got %d", got)
	}
	if result.Discarded[StrategyEmbedded] != 3 {
		t.Errorf("Expected 3 discarded images, got %d", result.Discarded[StrategyEmbedded])
	}
}

func TestEmbeddedFilterDisabledByDefault(t *testing.T) {
	page := &fakePage{objects: []EmbeddedImage{
		&fakeObject{name: "dot", img: solid(1, 1, color.Black)},
	}}
	ex := New(&fakeOpener{doc: newFakeDoc(page)}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyEmbedded}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Images) != 1 {
		t.Errorf("Expected the 1x1 image to be kept with no filter, got %d images", len(result.Images))
	}
}

func TestDecodeFailureIsAWarning(t *testing.T) {
	page := &fakePage{objects: []EmbeddedImage{
		&fakeObject{name: "broken", err: errors.New("bad huffman table")},
		&fakeObject{name: "good", img: solid(80, 80, color.Black)},
	}}
	second := &fakePage{objects: []EmbeddedImage{
		&fakeObject{name: "other", img: solid(80, 80, color.Black)},
	}}
	ex := New(&fakeOpener{doc: newFakeDoc(page, second)}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyEmbedded}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(result.Images))
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	w := result.Warnings[0]
	if w.Kind != WarningImageDecode || w.Page != 1 || w.Object != "broken" {
		t.Errorf("Unexpected warning: %+v", w)
	}
}

func TestRenderFailureOnlyDropsThatPage(t *testing.T) {
	doc := newFakeDoc(&fakePage{}, &fakePage{renderErr: errors.New("corrupt content stream")}, &fakePage{})
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategyFullPage, StrategySegmented},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, img := range result.Images {
		if img.Page == 2 {
			t.Errorf("Page 2 should contribute no rasterized output, got %s", img.Label)
		}
	}
	if len(result.ImagesFor(1, StrategyFullPage)) != 1 || len(result.ImagesFor(3, StrategyFullPage)) != 1 {
		t.Errorf("Pages 1 and 3 should still be rendered")
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Kind != WarningPageRender || result.Warnings[0].Page != 2 {
		t.Errorf("Expected a single render warning for page 2, got %+v", result.Warnings)
	}
}

func TestFullPageUsesRequestedResolution(t *testing.T) {
	doc := newFakeDoc(&fakePage{})
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategyFullPage},
		DPI:        ZoomToDPI(2),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	img := result.Images[0]
	if img.Width != int(8.5*144) || img.Height != 11*144 {
		t.Errorf("Expected a 144 dpi letter page, got %dx%d", img.Width, img.Height)
	}
}

func TestSegmentedRegions(t *testing.T) {
	blocks := []image.Rectangle{
		image.Rect(100, 100, 400, 300),   // 300x200
		image.Rect(500, 800, 650, 920),   // 150x120
		image.Rect(900, 100, 910, 110),   // speck
		image.Rect(1000, 400, 1050, 900), // too narrow
	}
	page := &fakePage{render: func(dpi float64) image.Image { return pageWithBlocks(dpi, blocks...) }}
	doc := newFakeDoc(page)
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategySegmented},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Images) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(result.Images))
	}
	if result.Images[0].Width != 300 || result.Images[0].Height != 200 {
		t.Errorf("Unexpected first region %dx%d", result.Images[0].Width, result.Images[0].Height)
	}
	if result.Images[1].Width != 150 || result.Images[1].Height != 120 {
		t.Errorf("Unexpected second region %dx%d", result.Images[1].Width, result.Images[1].Height)
	}
	for _, img := range result.Images {
		if img.Width < DefaultSegmentMinSize || img.Height < DefaultSegmentMinSize {
			t.Errorf("Region %s below the minimum size", img.Label)
		}
	}
	if len(doc.renders) != 1 || doc.renders[0] != ZoomToDPI(DefaultSegmentZoom) {
		t.Errorf("Expected a single render at the segment zoom, got %v", doc.renders)
	}
}

func TestSegmentedIsIdempotent(t *testing.T) {
	blocks := []image.Rectangle{
		image.Rect(50, 60, 260, 400),
		image.Rect(700, 700, 1000, 1000),
	}
	newDoc := func() *fakeDoc {
		return newFakeDoc(&fakePage{render: func(dpi float64) image.Image { return pageWithBlocks(dpi, blocks...) }})
	}
	req := Request{Strategies: []Strategy{StrategySegmented}, SegmentZoom: 2, SegmentThreshold: 240}

	first, err := New(&fakeOpener{doc: newDoc()}, WithTempDir(t.TempDir())).Run(context.Background(), nil, req)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := New(&fakeOpener{doc: newDoc()}, WithTempDir(t.TempDir())).Run(context.Background(), nil, req)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if len(first.Images) != len(second.Images) {
		t.Fatalf("Region count changed between runs: %d vs %d", len(first.Images), len(second.Images))
	}
	for i := range first.Images {
		a, b := first.Images[i], second.Images[i]
		if a.Label != b.Label || a.Width != b.Width || a.Height != b.Height {
			t.Errorf("Region %d differs: %s %dx%d vs %s %dx%d", i, a.Label, a.Width, a.Height, b.Label, b.Width, b.Height)
		}
	}
}

func TestTextHasOneMarkerPerPage(t *testing.T) {
	doc := newFakeDoc(
		&fakePage{text: "first page"},
		&fakePage{textErr: errors.New("bad font")},
		&fakePage{text: "third page\n"},
	)
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{Text: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Count(result.Text, "--- Page "); got != 3 {
		t.Fatalf("Expected 3 page markers, got %d in %q", got, result.Text)
	}
	last := -1
	for page := 1; page <= 3; page++ {
		idx := strings.Index(result.Text, PageMarker(page))
		if idx <= last {
			t.Errorf("Marker for page %d out of order", page)
		}
		last = idx
	}
	if !strings.Contains(result.Text, "first page") || !strings.Contains(result.Text, "third page") {
		t.Errorf("Page text missing from %q", result.Text)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Kind != WarningText {
		t.Errorf("Expected a text warning for page 2, got %+v", result.Warnings)
	}
	if len(result.Images) != 0 {
		t.Errorf("Text-only request should produce no images")
	}
}

func TestTextDropsSurroundingBlankLines(t *testing.T) {
	doc := newFakeDoc(
		&fakePage{text: "\nHello\n"},
		&fakePage{text: "\n\nWorld"},
	)
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{Text: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := PageMarker(1) + "\nHello\n\n" + PageMarker(2) + "\nWorld\n"
	if result.Text != want {
		t.Errorf("Expected %q, got %q", want, result.Text)
	}
}

func TestPNGRoundTrip(t *testing.T) {
	page := &fakePage{objects: []EmbeddedImage{&fakeObject{name: "photo", img: solid(200, 300, color.RGBA{10, 20, 30, 255})}}}
	ex := New(&fakeOpener{doc: newFakeDoc(page)}, WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyEmbedded, StrategyFullPage}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, img := range result.Images {
		data, err := img.PNG()
		if err != nil {
			t.Fatalf("PNG encode failed for %s: %v", img.Label, err)
		}
		decoded, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("PNG decode failed for %s: %v", img.Label, err)
		}
		if decoded.Bounds().Dx() != img.Width || decoded.Bounds().Dy() != img.Height {
			t.Errorf("%s: decoded %v, label says %dx%d", img.Label, decoded.Bounds(), img.Width, img.Height)
		}
	}

	rgb := result.ImagesFor(1, StrategyEmbedded)[0].RGB()
	if len(rgb) != 200*300*3 {
		t.Fatalf("Expected %d RGB bytes, got %d", 200*300*3, len(rgb))
	}
	if rgb[0] != 10 || rgb[1] != 20 || rgb[2] != 30 {
		t.Errorf("Unexpected first pixel %v", rgb[:3])
	}
}

func TestThreePageScenario(t *testing.T) {
	doc := newFakeDoc(
		&fakePage{objects: []EmbeddedImage{&fakeObject{name: "Im1", img: solid(200, 300, color.Black)}}},
		&fakePage{},
		&fakePage{},
	)
	ex := New(&fakeOpener{doc: doc}, WithTempDir(t.TempDir()))

	embedded, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyEmbedded}})
	if err != nil {
		t.Fatalf("Embedded run failed: %v", err)
	}
	if len(embedded.Images) != 1 {
		t.Fatalf("Expected exactly 1 embedded image, got %d", len(embedded.Images))
	}
	if embedded.Images[0].Page != 1 || embedded.Images[0].Width != 200 || embedded.Images[0].Height != 300 {
		t.Errorf("Unexpected embedded image %s %dx%d", embedded.Images[0].Label, embedded.Images[0].Width, embedded.Images[0].Height)
	}

	full, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyFullPage}})
	if err != nil {
		t.Fatalf("Full-page run failed: %v", err)
	}
	if len(full.Images) != 3 {
		t.Errorf("Expected 3 full-page images, got %d", len(full.Images))
	}
}

func TestUnparseableInputLeavesNoTempFiles(t *testing.T) {
	tempRoot := t.TempDir()
	ex := New(NewPDFOpener(nil), WithTempDir(tempRoot))

	_, err := ex.Run(context.Background(), []byte("this is definitely not a PDF"), Request{
		Strategies: []Strategy{StrategyEmbedded, StrategyFullPage},
		Text:       true,
	})
	if !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("Expected ErrDocumentOpen, got %v", err)
	}

	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatalf("Failed to read temp root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no temporary files, found %d", len(entries))
	}
}

func TestNoPageProcessedWhenOpenFails(t *testing.T) {
	doc := newFakeDoc(&fakePage{})
	opener := &fakeOpener{doc: doc, err: errors.New("xref table missing")}
	ex := New(opener, WithTempDir(t.TempDir()))

	_, err := ex.Run(context.Background(), []byte("doc"), Request{Strategies: []Strategy{StrategyFullPage}})
	if !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("Expected ErrDocumentOpen, got %v", err)
	}
	if doc.pageOpens != 0 || len(doc.renders) != 0 {
		t.Errorf("No page should be touched, got %d opens and %d renders", doc.pageOpens, len(doc.renders))
	}
}

func TestHandlesReleasedExactlyOnce(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		doc := newFakeDoc(&fakePage{text: "a"}, &fakePage{text: "b"})
		engine := &fakeOCR{}
		ex := New(&fakeOpener{doc: doc}, WithOCR(engine), WithTempDir(t.TempDir()))

		if _, err := ex.Run(context.Background(), []byte("doc"), Request{
			Strategies: []Strategy{StrategyEmbedded, StrategyFullPage},
			Text:       true,
			OCR:        true,
		}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if doc.closes != 1 {
			t.Errorf("Document closed %d times", doc.closes)
		}
		if doc.pageOpens != doc.pageCloses {
			t.Errorf("Pages opened %d times but closed %d times", doc.pageOpens, doc.pageCloses)
		}
	})

	t.Run("ocr failure", func(t *testing.T) {
		doc := newFakeDoc(&fakePage{}, &fakePage{})
		ex := New(&fakeOpener{doc: doc}, WithOCR(&fakeOCR{fail: true}), WithTempDir(t.TempDir()))

		_, err := ex.Run(context.Background(), []byte("doc"), Request{OCR: true})
		if !errors.Is(err, ErrOCREngine) {
			t.Fatalf("Expected ErrOCREngine, got %v", err)
		}
		if doc.closes != 1 {
			t.Errorf("Document closed %d times", doc.closes)
		}
		if doc.pageOpens != doc.pageCloses {
			t.Errorf("Pages opened %d times but closed %d times", doc.pageOpens, doc.pageCloses)
		}
	})
}

func TestOCRPass(t *testing.T) {
	doc := newFakeDoc(&fakePage{}, &fakePage{renderErr: errors.New("broken page")}, &fakePage{})
	engine := &fakeOCR{}
	ex := New(&fakeOpener{doc: doc}, WithOCR(engine), WithOCRDPI(100), WithTempDir(t.TempDir()))

	result, err := ex.Run(context.Background(), []byte("doc"), Request{OCR: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if engine.calls != 2 {
		t.Errorf("Expected 2 OCR calls, got %d", engine.calls)
	}
	if strings.Count(result.OCRText, "--- Page ") != 3 {
		t.Errorf("Expected 3 markers in %q", result.OCRText)
	}
	if !strings.Contains(result.OCRText, "recognized 850x1100") {
		t.Errorf("Expected 100 dpi renders in %q", result.OCRText)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Page != 2 {
		t.Errorf("Expected a render warning for page 2, got %+v", result.Warnings)
	}
}

func TestOCRRequiresEngine(t *testing.T) {
	ex := New(&fakeOpener{doc: newFakeDoc(&fakePage{})}, WithTempDir(t.TempDir()))
	_, err := ex.Run(context.Background(), []byte("doc"), Request{OCR: true})
	if !errors.Is(err, ErrOCREngine) {
		t.Errorf("Expected ErrOCREngine, got %v", err)
	}
}

func TestNormalization(t *testing.T) {
	t.Run("normalized copy is extracted", func(t *testing.T) {
		opener := &fakeOpener{doc: newFakeDoc(&fakePage{text: "clean"})}
		normalizer := &fakeNormalizer{out: []byte("normalized")}
		tempRoot := t.TempDir()
		ex := New(opener, WithNormalizer(normalizer), WithTempDir(tempRoot))

		if _, err := ex.Run(context.Background(), []byte("original"), Request{Text: true, Normalize: true}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(opener.opened) != 1 || string(opener.opened[0]) != "normalized" {
			t.Errorf("Expected the normalized document to be opened, got %q", opener.opened)
		}
		if !strings.HasPrefix(normalizer.sawDir, tempRoot) {
			t.Errorf("Normalizer workspace %q is not under %q", normalizer.sawDir, tempRoot)
		}
		if _, err := os.Stat(normalizer.sawDir); !os.IsNotExist(err) {
			t.Errorf("Workspace %q should be removed, stat error: %v", normalizer.sawDir, err)
		}
	})

	t.Run("failure is fatal", func(t *testing.T) {
		opener := &fakeOpener{doc: newFakeDoc(&fakePage{})}
		ex := New(opener, WithNormalizer(&fakeNormalizer{err: errors.New("deskew failed")}), WithTempDir(t.TempDir()))

		_, err := ex.Run(context.Background(), []byte("original"), Request{Strategies: []Strategy{StrategyFullPage}, Normalize: true})
		if !errors.Is(err, ErrNormalization) {
			t.Fatalf("Expected ErrNormalization, got %v", err)
		}
		if len(opener.opened) != 0 {
			t.Errorf("Original document must not be used as a fallback")
		}
	})
}

func TestNothingRequested(t *testing.T) {
	ex := New(&fakeOpener{doc: newFakeDoc(&fakePage{})}, WithTempDir(t.TempDir()))
	if _, err := ex.Run(context.Background(), []byte("doc"), Request{}); !errors.Is(err, ErrNoWork) {
		t.Errorf("Expected ErrNoWork, got %v", err)
	}
}

func TestProgressReported(t *testing.T) {
	doc := newFakeDoc(&fakePage{}, &fakePage{})
	ex := New(&fakeOpener{doc: doc}, WithOCR(&fakeOCR{}), WithTempDir(t.TempDir()))

	var steps []int
	total := 0
	_, err := ex.Run(context.Background(), []byte("doc"), Request{
		Strategies: []Strategy{StrategyFullPage},
		OCR:        true,
		Progress: func(done, n int, step string) {
			steps = append(steps, done)
			total = n
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if total != 4 || len(steps) != 4 || steps[3] != 4 {
		t.Errorf("Unexpected progress: steps %v of %d", steps, total)
	}
}
