package engine

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/drummonds/docextract/database"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// jobFromPath parses the :id parameter and loads the job, writing the error response itself
func (serverHandler *ServerHandler) jobFromPath(c echo.Context) (*database.Job, error) {
	jobIDStr := c.Param("id")

	jobID, err := ulid.Parse(jobIDStr)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			Logger.Error("Failed to get job", "jobID", jobIDStr, "error", err)
		}
		return nil, c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	}
	return job, nil
}

// GetJob retrieves a job by ID
// @Summary Get job by ID
// @Description Retrieve details of a specific job by its ID
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} database.Job "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// GetRecentJobs retrieves recent jobs with pagination
// @Summary Get recent jobs
// @Description Retrieve a list of recent jobs with pagination
// @Tags Jobs
// @Accept json
// @Produce json
// @Param limit query int false "Number of jobs to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} database.Job "List of jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	jobs, err := serverHandler.DB.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetActiveJobs retrieves all active (running or pending) jobs
// @Summary Get active jobs
// @Description Retrieve all jobs that are currently running or pending
// @Tags Jobs
// @Accept json
// @Produce json
// @Success 200 {array} database.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs()
	if err != nil {
		Logger.Error("Failed to get active jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve active jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetJobDocument returns the record of the document a job was run on
// @Summary Get the source document of a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} database.Document "Document details"
// @Failure 404 {object} map[string]interface{} "Job or document not found"
// @Router /jobs/{id}/document [get]
func (serverHandler *ServerHandler) GetJobDocument(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}
	doc, err := serverHandler.DB.GetDocumentForJob(job.ID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Document not found",
		})
	}
	return c.JSON(http.StatusOK, doc)
}

// GetJobImages lists the images a job produced
// @Summary List extracted images
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {array} database.ImageRecord "Images in extraction order"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id}/images [get]
func (serverHandler *ServerHandler) GetJobImages(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}
	images, err := serverHandler.DB.GetImagesForJob(job.ID)
	if err != nil {
		Logger.Error("Failed to get images", "jobID", job.ID.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve images",
		})
	}
	if images == nil {
		images = []database.ImageRecord{}
	}
	return c.JSON(http.StatusOK, images)
}

// GetJobImage downloads one extracted image as PNG
// @Summary Download an extracted image
// @Tags Jobs
// @Produce png
// @Param id path string true "Job ID (ULID)"
// @Param filename path string true "Image filename, e.g. Page1embedded1.png"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} map[string]interface{} "Image not found"
// @Router /jobs/{id}/images/{filename} [get]
func (serverHandler *ServerHandler) GetJobImage(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}
	// only names recorded for the job are served, so the path cannot escape the job folder
	record, err := serverHandler.DB.GetImage(job.ID, c.Param("filename"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Image not found",
		})
	}
	path := filepath.Join(serverHandler.jobDir(job.ID), imageDir, record.Filename)
	if _, err := os.Stat(path); err != nil {
		Logger.Warn("Image recorded but missing on disk", "path", path, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Image not found",
		})
	}
	return c.File(path)
}

// GetJobText returns the text layer or the OCR text of a job
// @Summary Download extracted text
// @Tags Jobs
// @Produce plain
// @Param id path string true "Job ID (ULID)"
// @Param kind query string false "text (default) or ocr"
// @Success 200 {string} string "Text with a marker before each page"
// @Failure 400 {object} map[string]interface{} "Unknown kind"
// @Failure 404 {object} map[string]interface{} "Text was not extracted"
// @Router /jobs/{id}/text [get]
func (serverHandler *ServerHandler) GetJobText(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}

	var name string
	switch c.QueryParam("kind") {
	case "", "text":
		name = textFile
	case "ocr":
		name = ocrFile
	default:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "kind must be text or ocr",
		})
	}

	data, err := os.ReadFile(filepath.Join(serverHandler.jobDir(job.ID), name))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Text was not extracted for this job",
		})
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", data)
}

// DeleteJob removes a finished job, its records and its stored results
// @Summary Delete a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} map[string]interface{} "Job deleted"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Failure 409 {object} map[string]interface{} "Job is still running"
// @Router /jobs/{id} [delete]
func (serverHandler *ServerHandler) DeleteJob(c echo.Context) error {
	job, err := serverHandler.jobFromPath(c)
	if job == nil {
		return err
	}
	if !job.Finished() {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "Job is still " + string(job.Status),
		})
	}

	if err := serverHandler.DB.DeleteJob(job.ID); err != nil {
		Logger.Error("Failed to delete job", "jobID", job.ID.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to delete job",
		})
	}
	if err := os.RemoveAll(serverHandler.jobDir(job.ID)); err != nil {
		Logger.Error("Failed to remove job results", "jobID", job.ID.String(), "error", err)
	}

	Logger.Info("Job deleted", "jobID", job.ID.String())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Job deleted",
		"jobId":   job.ID.String(),
	})
}
