package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Remote sends page images to a tesseract-service instance
type Remote struct {
	URL        string
	Language   string // sent as the lang field when set
	HTTPClient *http.Client
}

// OCRResponse represents the response from the Tesseract service
type OCRResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewRemote creates a client for the service at url
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Remote{
		URL: strings.TrimRight(url, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *Remote) Name() string { return "remote" }

// Recognize posts the image as multipart form data to /ocr
func (r *Remote) Recognize(ctx context.Context, img image.Image) (string, error) {
	imageData, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "page.png")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}
	if r.Language != "" {
		if err := writer.WriteField("lang", r.Language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL+"/ocr", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call OCR service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OCR service returned error status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ocrResp OCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if ocrResp.Error != "" {
		return "", fmt.Errorf("OCR service error: %s", ocrResp.Error)
	}
	return ocrResp.Text, nil
}
