package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs OCR in process through libtesseract
type Gosseract struct {
	language      string
	clientFactory func() *gosseract.Client
}

// NewGosseract creates an in-process engine
func NewGosseract(language string) *Gosseract {
	return &Gosseract{language: language, clientFactory: gosseract.NewClient}
}

func (g *Gosseract) Name() string { return "gosseract" }

// Recognize uses a fresh client per image; clients are not safe for concurrent use
func (g *Gosseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	imgData, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	c := g.clientFactory()
	defer c.Close()

	if g.language != "" {
		if err := c.SetLanguage(strings.Split(g.language, "+")...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(imgData); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
