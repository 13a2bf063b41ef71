package extractor

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"image"
	"strings"
	"testing"
)

type testPDFPage struct {
	text  string
	image image.Rectangle // size only, filled with a flat colour
}

// buildTestPDF writes a minimal PDF with an optional text line and RGB image per page
func buildTestPDF(t *testing.T, pages ...testPDFPage) []byte {
	t.Helper()

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	add("<< /Type /Catalog /Pages 2 0 R >>")
	add("") // page tree, filled in once the kids are known
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var kids []string
	for _, p := range pages {
		var content strings.Builder
		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if p.image.Dx() > 0 {
			w, h := p.image.Dx(), p.image.Dy()
			raw := bytes.Repeat([]byte{200, 30, 30}, w*h)
			var zbuf bytes.Buffer
			zw := zlib.NewWriter(&zbuf)
			if _, err := zw.Write(raw); err != nil {
				t.Fatalf("Failed to compress image: %v", err)
			}
			zw.Close()
			img := add(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>\nstream\n%s\nendstream",
				w, h, zbuf.Len(), zbuf.String()))
			resources += fmt.Sprintf(" /XObject << /Im1 %d 0 R >>", img)
			fmt.Fprintf(&content, "q %d 0 0 %d 72 300 cm /Im1 Do Q\n", w, h)
		}
		if p.text != "" {
			fmt.Fprintf(&content, "BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", p.text)
		}
		stream := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
		page := add(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>", resources, stream))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFOpenerPageCount(t *testing.T) {
	data := buildTestPDF(t, testPDFPage{text: "one"}, testPDFPage{text: "two"}, testPDFPage{text: "three"})

	doc, err := NewPDFOpener(nil).Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer doc.Close()

	if doc.NumPages() != 3 {
		t.Errorf("Expected 3 pages, got %d", doc.NumPages())
	}
	if _, err := doc.Page(3); err == nil {
		t.Error("Expected an error for an out of range page")
	}
}

func TestPDFOpenerRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("hello")} {
		if _, err := NewPDFOpener(nil).Open(data); err == nil {
			t.Errorf("Expected an error opening %q", data)
		}
	}
}

func TestPDFTextLayer(t *testing.T) {
	data := buildTestPDF(t, testPDFPage{text: "Hello"}, testPDFPage{}, testPDFPage{text: "World"})

	ex := New(NewPDFOpener(nil), WithTempDir(t.TempDir()))
	result, err := ex.Run(context.Background(), data, Request{Text: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if strings.Count(result.Text, "--- Page ") != 3 {
		t.Errorf("Expected 3 page markers in %q", result.Text)
	}
	hello := strings.Index(result.Text, "Hello")
	world := strings.Index(result.Text, "World")
	if hello < 0 || world < 0 || hello > world {
		t.Errorf("Page text missing or out of order in %q", result.Text)
	}
	if hello < strings.Index(result.Text, PageMarker(1)) || world < strings.Index(result.Text, PageMarker(3)) {
		t.Errorf("Text placed under the wrong marker in %q", result.Text)
	}
}

func TestPDFEmbeddedImages(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDF image decoding in short mode")
	}
	data := buildTestPDF(t,
		testPDFPage{image: image.Rect(0, 0, 200, 300)},
		testPDFPage{text: "no images here"},
		testPDFPage{text: "or here"},
	)

	ex := New(NewPDFOpener(nil), WithTempDir(t.TempDir()))
	result, err := ex.Run(context.Background(), data, Request{Strategies: []Strategy{StrategyEmbedded}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Images) != 1 {
		t.Fatalf("Expected 1 embedded image, got %d (warnings %v)", len(result.Images), result.Warnings)
	}
	img := result.Images[0]
	if img.Page != 1 || img.Width != 200 || img.Height != 300 {
		t.Errorf("Unexpected image %s %dx%d", img.Label, img.Width, img.Height)
	}
}

func TestPDFRenderWithoutRenderer(t *testing.T) {
	data := buildTestPDF(t, testPDFPage{text: "one"}, testPDFPage{text: "two"})

	ex := New(NewPDFOpener(nil), WithTempDir(t.TempDir()))
	result, err := ex.Run(context.Background(), data, Request{Strategies: []Strategy{StrategyFullPage}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Images) != 0 {
		t.Errorf("Expected no rendered pages, got %d", len(result.Images))
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("Expected a render warning per page, got %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if w.Kind != WarningPageRender {
			t.Errorf("Unexpected warning kind %s", w.Kind)
		}
	}
	if !strings.Contains(result.Warnings[0].Message, ErrPageRender.Error()) {
		t.Errorf("Warning should mention the render failure: %s", result.Warnings[0].Message)
	}
}
