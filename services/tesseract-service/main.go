// Command tesseract-service exposes the tesseract CLI over HTTP for the remote OCR engine.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

type OCRResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Tesseract string `json:"tesseract"`
	Timestamp string `json:"timestamp"`
}

// service holds what every request needs
type service struct {
	tesseractPath string
	language      string
	timeout       time.Duration
	maxBytes      int64
}

// languagePattern accepts tesseract language specs such as eng or deu+fra
var languagePattern = regexp.MustCompile(`^[A-Za-z_]+(\+[A-Za-z_]+)*$`)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	port := getEnv("PORT", "8001")
	timeout, err := time.ParseDuration(getEnv("OCR_TIMEOUT", "2m"))
	if err != nil {
		Logger.Error("Invalid OCR_TIMEOUT", "error", err)
		os.Exit(1)
	}
	svc := &service{
		tesseractPath: getEnv("TESSERACT_PATH", "/usr/bin/tesseract"),
		language:      getEnv("OCR_LANGUAGE", "eng"),
		timeout:       timeout,
		maxBytes:      32 << 20,
	}

	// Verify Tesseract is available
	if _, err := os.Stat(svc.tesseractPath); err != nil {
		Logger.Error("Tesseract not found", "path", svc.tesseractPath, "error", err)
		os.Exit(1)
	}

	Logger.Info("Starting Tesseract OCR service", "port", port, "tesseract", svc.tesseractPath, "language", svc.language)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           svc.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		Logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func (s *service) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /ocr", s.ocrHandler)
	return mux
}

func (s *service) healthHandler(w http.ResponseWriter, r *http.Request) {
	// Check Tesseract version
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, s.tesseractPath, "--version").CombinedOutput()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err != nil {
		response.Status = "unhealthy"
		response.Tesseract = fmt.Sprintf("error: %v", err)
		status = http.StatusServiceUnavailable
	} else {
		response.Tesseract = string(bytes.TrimSpace(bytes.SplitN(output, []byte("\n"), 2)[0]))
	}

	writeJSON(w, status, response)
}

func (s *service) ocrHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		sendErrorResponse(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	// Get the file from the form
	file, header, err := r.FormFile("image")
	if err != nil {
		sendErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	language := s.language
	if lang := r.FormValue("lang"); lang != "" {
		if !languagePattern.MatchString(lang) {
			sendErrorResponse(w, "Invalid language", http.StatusBadRequest)
			return
		}
		language = lang
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		sendErrorResponse(w, "Failed to read image file", http.StatusInternalServerError)
		return
	}
	Logger.Info("Processing OCR request", "request_id", requestID, "file", header.Filename, "bytes", len(imageData), "language", language)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	text, err := s.processOCR(ctx, imageData, header.Filename, language)
	if err != nil {
		Logger.Error("OCR processing failed", "request_id", requestID, "error", err)
		sendErrorResponse(w, fmt.Sprintf("OCR processing failed: %v", err), http.StatusInternalServerError)
		return
	}

	Logger.Info("OCR request completed", "request_id", requestID, "chars", len(text), "duration", time.Since(start))
	writeJSON(w, http.StatusOK, OCRResponse{Text: text})
}

// processOCR runs tesseract on the image in a private temp directory
func (s *service) processOCR(ctx context.Context, imageData []byte, filename, language string) (string, error) {
	tempDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Determine file extension
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".png"
	}

	inputPath := filepath.Join(tempDir, "input"+ext)
	if err := os.WriteFile(inputPath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	// Output path without extension, tesseract adds .txt
	outputBase := filepath.Join(tempDir, "output")

	cmd := exec.CommandContext(ctx, s.tesseractPath, inputPath, outputBase, "-l", language)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract command failed: %w, stderr: %s", err, stderr.String())
	}

	textData, err := os.ReadFile(outputBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read OCR output: %w", err)
	}
	return string(textData), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, OCRResponse{Error: message})
}
