package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/drummonds/docextract/database"
	"github.com/drummonds/docextract/engine/extractor"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

const (
	textFile = "text.txt"
	ocrFile  = "ocr.txt"
	imageDir = "images"
)

// requestError is a bad request parameter, reported to the caller as a 400
type requestError struct {
	field string
	err   error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.field, e.err)
}

// ExtractionSummary is stored as the job result and returned by synchronous extractions
type ExtractionSummary struct {
	JobID     string              `json:"jobId"`
	Document  string              `json:"document"`
	Pages     int                 `json:"pages"`
	Images    []ImageSummary      `json:"images"`
	Discarded map[string]int      `json:"discarded,omitempty"`
	TextURL   string              `json:"textURL,omitempty"`
	OCRURL    string              `json:"ocrURL,omitempty"`
	Warnings  []extractor.Warning `json:"warnings"`
	Duration  string              `json:"duration"`
}

// ImageSummary describes one stored image
type ImageSummary struct {
	Label    string `json:"label"`
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	Method   string `json:"method"`
	Seq      int    `json:"seq"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	URL      string `json:"url"`
}

// ExtractDocument runs an extraction request against an uploaded PDF
// @Summary Extract images and text from a PDF
// @Description Upload a PDF and extract embedded images, full page renders, segmented regions, the text layer or OCR text
// @Tags Extraction
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF document"
// @Param strategies formData string false "Comma separated strategies: embedded, full-page, segmented"
// @Param dpi formData number false "Full page render resolution"
// @Param zoom formData number false "Full page render zoom, 1x = 72 dpi"
// @Param minWidth formData int false "Minimum embedded image width"
// @Param minHeight formData int false "Minimum embedded image height"
// @Param segmentZoom formData number false "Segmentation render zoom"
// @Param threshold formData int false "Segmentation brightness threshold (1-255)"
// @Param segmentMinWidth formData int false "Minimum segmented region width"
// @Param segmentMinHeight formData int false "Minimum segmented region height"
// @Param text formData bool false "Extract the text layer"
// @Param ocr formData bool false "Run OCR on every page"
// @Param normalize formData bool false "Deskew and OCR-prep the document first"
// @Param async formData bool false "Return 202 immediately and run in the background"
// @Success 200 {object} ExtractionSummary "Extraction result"
// @Success 202 {object} map[string]interface{} "Job created with job ID"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 413 {object} map[string]interface{} "Upload too large"
// @Failure 422 {object} map[string]interface{} "Document could not be opened"
// @Failure 502 {object} map[string]interface{} "OCR or normalization tool failed"
// @Router /extract [post]
func (serverHandler *ServerHandler) ExtractDocument(c echo.Context) error {
	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Missing PDF upload in form field 'pdf'",
		})
	}
	maxBytes := int64(serverHandler.ServerConfig.MaxUploadMB) << 20
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
			"error": fmt.Sprintf("Upload exceeds %d MB", serverHandler.ServerConfig.MaxUploadMB),
		})
	}

	req, async, err := serverHandler.parseExtractRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		Logger.Error("Failed to open upload", "file", fileHeader.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read upload",
		})
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		Logger.Error("Failed to read upload", "file", fileHeader.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read upload",
		})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeExtraction, "Extracting "+fileHeader.Filename)
	if err != nil {
		Logger.Error("Failed to create extraction job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}
	Logger.Info("Extraction requested", "jobID", job.ID.String(), "file", fileHeader.Filename,
		"size", len(data), "strategies", req.Strategies, "text", req.Text, "ocr", req.OCR, "async", async)

	if async {
		serverHandler.running.Add(1)
		go func() {
			defer serverHandler.running.Done()
			defer func() {
				if r := recover(); r != nil {
					Logger.Error("Extraction job panicked", "jobID", job.ID.String(), "panic", r)
					serverHandler.DB.UpdateJobError(job.ID, fmt.Sprintf("Panic: %v", r))
				}
			}()
			serverHandler.runExtraction(context.Background(), job.ID, fileHeader.Filename, data, req)
		}()

		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"message":   "Extraction started",
			"jobId":     job.ID.String(),
			"statusURL": "/api/jobs/" + job.ID.String(),
		})
	}

	summary, err := serverHandler.runExtraction(c.Request().Context(), job.ID, fileHeader.Filename, data, req)
	if err != nil {
		return c.JSON(extractionStatus(err), map[string]interface{}{
			"error": err.Error(),
			"jobId": job.ID.String(),
		})
	}
	return c.JSON(http.StatusOK, summary)
}

// extractionStatus maps an extraction failure onto an HTTP status
func extractionStatus(err error) int {
	switch {
	case errors.Is(err, extractor.ErrDocumentOpen):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extractor.ErrNormalization), errors.Is(err, extractor.ErrOCREngine):
		return http.StatusBadGateway
	case errors.Is(err, extractor.ErrNoWork):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseExtractRequest reads the form fields, falling back to the server defaults
func (serverHandler *ServerHandler) parseExtractRequest(c echo.Context) (extractor.Request, bool, error) {
	cfg := serverHandler.ServerConfig
	req := extractor.Request{
		DPI:              cfg.DPI,
		MinWidth:         cfg.MinWidth,
		MinHeight:        cfg.MinHeight,
		SegmentZoom:      cfg.SegmentZoom,
		SegmentThreshold: uint8(cfg.SegmentThreshold),
		SegmentMinWidth:  cfg.SegmentMinWidth,
		SegmentMinHeight: cfg.SegmentMinHeight,
	}

	var err error
	if req.Strategies, err = extractor.ParseStrategies(c.FormValue("strategies")); err != nil {
		return req, false, &requestError{"strategies", err}
	}
	if req.Text, err = formBool(c, "text"); err != nil {
		return req, false, err
	}
	if req.OCR, err = formBool(c, "ocr"); err != nil {
		return req, false, err
	}
	if req.Normalize, err = formBool(c, "normalize"); err != nil {
		return req, false, err
	}
	async, err := formBool(c, "async")
	if err != nil {
		return req, false, err
	}
	if len(req.Strategies) == 0 && !req.Text && !req.OCR {
		req.Strategies = []extractor.Strategy{extractor.StrategyEmbedded, extractor.StrategyFullPage}
	}

	dpi, err := formFloat(c, "dpi", 0, extractor.MaxDPI)
	if err != nil {
		return req, false, err
	}
	zoom, err := formFloat(c, "zoom", 0, extractor.MaxZoom)
	if err != nil {
		return req, false, err
	}
	switch {
	case dpi > 0 && zoom > 0:
		return req, false, &requestError{"dpi", errors.New("give either dpi or zoom, not both")}
	case dpi > 0:
		req.DPI = dpi
	case zoom > 0:
		req.DPI = extractor.ZoomToDPI(zoom)
	}

	if req.MinWidth, err = formInt(c, "minWidth", req.MinWidth, 0, 1<<16); err != nil {
		return req, false, err
	}
	if req.MinHeight, err = formInt(c, "minHeight", req.MinHeight, 0, 1<<16); err != nil {
		return req, false, err
	}
	if req.SegmentZoom, err = formFloat(c, "segmentZoom", req.SegmentZoom, extractor.MaxZoom); err != nil {
		return req, false, err
	}
	threshold, err := formInt(c, "threshold", int(req.SegmentThreshold), 1, 255)
	if err != nil {
		return req, false, err
	}
	req.SegmentThreshold = uint8(threshold)
	if req.SegmentMinWidth, err = formInt(c, "segmentMinWidth", req.SegmentMinWidth, 1, 1<<16); err != nil {
		return req, false, err
	}
	if req.SegmentMinHeight, err = formInt(c, "segmentMinHeight", req.SegmentMinHeight, 1, 1<<16); err != nil {
		return req, false, err
	}

	if req.OCR && !serverHandler.Extractor.CanOCR() {
		return req, false, errors.New("OCR is not available on this server")
	}
	if req.Normalize && !serverHandler.Extractor.CanNormalize() {
		return req, false, errors.New("normalization is not available on this server")
	}
	return req, async, nil
}

func formBool(c echo.Context, field string) (bool, error) {
	value := c.FormValue(field)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &requestError{field, err}
	}
	return b, nil
}

// formFloat parses a number in (0, hi], returning def when the field is absent
func formFloat(c echo.Context, field string, def, hi float64) (float64, error) {
	value := c.FormValue(field)
	if value == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def, &requestError{field, err}
	}
	if f <= 0 || f > hi {
		return def, &requestError{field, fmt.Errorf("%v is outside (0, %v]", f, hi)}
	}
	return f, nil
}

func formInt(c echo.Context, field string, def, lo, hi int) (int, error) {
	value := c.FormValue(field)
	if value == "" {
		return def, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return def, &requestError{field, err}
	}
	if i < lo || i > hi {
		return def, &requestError{field, fmt.Errorf("%d is outside %d-%d", i, lo, hi)}
	}
	return i, nil
}

// runExtraction drives one tracked extraction job from start to stored results
func (serverHandler *ServerHandler) runExtraction(ctx context.Context, jobID ulid.ULID, name string, data []byte, req extractor.Request) (*ExtractionSummary, error) {
	db := serverHandler.DB
	start := time.Now()
	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Extracting "+name)

	req.Progress = func(done, total int, step string) {
		progress := 0
		if total > 0 {
			progress = done * 100 / total
		}
		if progress > 99 {
			progress = 99 // 100 is reserved for the completed job
		}
		if err := db.UpdateJobProgress(jobID, progress, step); err != nil {
			Logger.Warn("Failed to update job progress", "jobID", jobID.String(), "error", err)
		}
	}

	doc := &database.Document{
		JobID:       jobID,
		Name:        name,
		Hash:        database.CalculateHash(data),
		Size:        int64(len(data)),
		IngressTime: start,
	}

	result, err := serverHandler.Extractor.Run(ctx, data, req)
	if result != nil {
		doc.Pages = result.Pages
	}
	if saveErr := db.SaveDocument(doc); saveErr != nil {
		Logger.Error("Failed to save document record", "jobID", jobID.String(), "error", saveErr)
	}
	if err != nil {
		Logger.Error("Extraction failed", "jobID", jobID.String(), "file", name, "error", err)
		db.UpdateJobError(jobID, err.Error())
		return nil, err
	}

	db.UpdateJobProgress(jobID, 99, "Storing results")
	summary, err := serverHandler.storeResults(jobID, name, result, req)
	if err != nil {
		Logger.Error("Failed to store extraction results", "jobID", jobID.String(), "error", err)
		db.UpdateJobError(jobID, err.Error())
		return nil, err
	}
	summary.Duration = time.Since(start).Round(time.Millisecond).String()

	resultJSON, err := json.Marshal(summary)
	if err != nil {
		db.UpdateJobError(jobID, err.Error())
		return nil, err
	}
	if err := db.CompleteJob(jobID, string(resultJSON)); err != nil {
		Logger.Error("Failed to complete job", "jobID", jobID.String(), "error", err)
	}

	Logger.Info("Extraction completed", "jobID", jobID.String(), "pages", result.Pages,
		"images", len(result.Images), "warnings", len(result.Warnings), "duration", summary.Duration)
	return summary, nil
}

// storeResults writes the images and text files under the job folder and records the images
func (serverHandler *ServerHandler) storeResults(jobID ulid.ULID, name string, result *extractor.Result, req extractor.Request) (*ExtractionSummary, error) {
	dir := serverHandler.jobDir(jobID)
	if err := os.MkdirAll(filepath.Join(dir, imageDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create results folder: %w", err)
	}
	baseURL := "/api/jobs/" + jobID.String()

	summary := &ExtractionSummary{
		JobID:    jobID.String(),
		Document: name,
		Pages:    result.Pages,
		Images:   []ImageSummary{},
		Warnings: result.Warnings,
	}
	if summary.Warnings == nil {
		summary.Warnings = []extractor.Warning{}
	}
	if len(result.Discarded) > 0 {
		summary.Discarded = make(map[string]int)
		for strategy, n := range result.Discarded {
			summary.Discarded[strategy.String()] = n
		}
	}

	records := make([]database.ImageRecord, 0, len(result.Images))
	for _, img := range result.Images {
		encoded, err := img.PNG()
		if err != nil {
			return nil, err
		}
		filename := img.Label.Filename()
		if err := os.WriteFile(filepath.Join(dir, imageDir, filename), encoded, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filename, err)
		}
		records = append(records, database.ImageRecord{
			JobID:    jobID,
			Page:     img.Page,
			Method:   img.Method.String(),
			Seq:      img.Seq,
			Label:    img.Label.String(),
			Filename: filename,
			Width:    img.Width,
			Height:   img.Height,
			Size:     int64(len(encoded)),
		})
		summary.Images = append(summary.Images, ImageSummary{
			Label:    img.Label.String(),
			Filename: filename,
			Page:     img.Page,
			Method:   img.Method.String(),
			Seq:      img.Seq,
			Width:    img.Width,
			Height:   img.Height,
			URL:      baseURL + "/images/" + filename,
		})
	}
	if len(records) > 0 {
		if err := serverHandler.DB.SaveImages(jobID, records); err != nil {
			return nil, fmt.Errorf("failed to record images: %w", err)
		}
	}

	if req.Text {
		if err := os.WriteFile(filepath.Join(dir, textFile), []byte(result.Text), 0644); err != nil {
			return nil, fmt.Errorf("failed to write text: %w", err)
		}
		summary.TextURL = baseURL + "/text?kind=text"
	}
	if req.OCR {
		if err := os.WriteFile(filepath.Join(dir, ocrFile), []byte(result.OCRText), 0644); err != nil {
			return nil, fmt.Errorf("failed to write OCR text: %w", err)
		}
		summary.OCRURL = baseURL + "/text?kind=ocr"
	}
	return summary, nil
}
