package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// Label identifies an extracted image within a document
type Label struct {
	Page   int      `json:"page"` // 1-based
	Method Strategy `json:"method"`
	Seq    int      `json:"seq"` // 1-based, per page and method
}

// String renders the label as shown to users, e.g. "Page 1, embedded 2"
func (l Label) String() string {
	return fmt.Sprintf("Page %d, %s %d", l.Page, l.Method, l.Seq)
}

// Filename derives a download name from the label with spaces and commas stripped
func (l Label) Filename() string {
	name := strings.NewReplacer(" ", "", ",", "").Replace(l.String())
	return name + ".png"
}

// ExtractedImage is a decoded image that passed the size filter
type ExtractedImage struct {
	Label
	Width  int
	Height int
	Image  *image.NRGBA
}

func newExtractedImage(label Label, img image.Image) ExtractedImage {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	return ExtractedImage{
		Label:  label,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Image:  nrgba,
	}
}

// RGB returns the pixels packed as 3 bytes per pixel, row major, alpha dropped
func (e ExtractedImage) RGB() []byte {
	out := make([]byte, 0, e.Width*e.Height*3)
	for y := 0; y < e.Height; y++ {
		row := e.Image.Pix[y*e.Image.Stride : y*e.Image.Stride+e.Width*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}

// PNG encodes the image for download
func (e ExtractedImage) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, e.Image); err != nil {
		return nil, fmt.Errorf("failed to encode PNG for %s: %w", e.Label, err)
	}
	return buf.Bytes(), nil
}

// Result is everything produced by one extraction request
type Result struct {
	Pages     int
	Images    []ExtractedImage
	Text      string
	OCRText   string
	Warnings  []Warning
	Discarded map[Strategy]int
}

// ImagesFor returns the images extracted from a 1-based page by the given method
func (r *Result) ImagesFor(page int, method Strategy) []ExtractedImage {
	var out []ExtractedImage
	for _, img := range r.Images {
		if img.Page == page && img.Method == method {
			out = append(out, img)
		}
	}
	return out
}

// PageMarker is the separator written before each page of extracted text
func PageMarker(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// textBuilder accumulates per-page text with page markers
type textBuilder struct {
	sb strings.Builder
}

func (b *textBuilder) addPage(page int, text string) {
	if b.sb.Len() > 0 {
		b.sb.WriteString("\n")
	}
	b.sb.WriteString(PageMarker(page))
	b.sb.WriteString("\n")
	text = strings.Trim(text, "\n")
	if text != "" {
		b.sb.WriteString(text)
		b.sb.WriteString("\n")
	}
}

func (b *textBuilder) String() string {
	return b.sb.String()
}
