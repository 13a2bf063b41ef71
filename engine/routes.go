package engine

import (
	"net/http"
	"path/filepath"
	"sync"

	"github.com/drummonds/docextract/config"
	"github.com/drummonds/docextract/database"
	"github.com/drummonds/docextract/engine/extractor"
	"github.com/drummonds/docextract/internal/build"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Extractor    *extractor.Extractor
	RendererName string // reported by /about

	running sync.WaitGroup // asynchronous extraction jobs
}

// AddRoutes registers every API endpoint on the handler's echo instance
func (serverHandler *ServerHandler) AddRoutes() {
	api := serverHandler.Echo.Group("/api")
	api.GET("/health", serverHandler.Health)
	api.GET("/about", serverHandler.GetAboutInfo)
	api.POST("/extract", serverHandler.ExtractDocument)

	api.GET("/jobs", serverHandler.GetRecentJobs)
	api.GET("/jobs/active", serverHandler.GetActiveJobs)
	api.GET("/jobs/:id", serverHandler.GetJob)
	api.DELETE("/jobs/:id", serverHandler.DeleteJob)
	api.GET("/jobs/:id/document", serverHandler.GetJobDocument)
	api.GET("/jobs/:id/images", serverHandler.GetJobImages)
	api.GET("/jobs/:id/images/:filename", serverHandler.GetJobImage)
	api.GET("/jobs/:id/text", serverHandler.GetJobText)

	api.POST("/clean", serverHandler.CleanResults)
}

// Wait blocks until every asynchronous extraction started by this handler has finished
func (serverHandler *ServerHandler) Wait() {
	serverHandler.running.Wait()
}

// jobDir is where the outputs of one job live
func (serverHandler *ServerHandler) jobDir(jobID ulid.ULID) string {
	return filepath.Join(serverHandler.ServerConfig.ResultsPath, jobID.String())
}

// Health reports that the server is up
// @Summary Health check
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Server is healthy"
// @Router /health [get]
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// GetAboutInfo returns information about the application configuration
// @Summary Get application information
// @Description Retrieve information about the application configuration, version, and database
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Application information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	cfg := serverHandler.ServerConfig

	strategies := []string{}
	for _, s := range extractor.Strategies {
		strategies = append(strategies, s.String())
	}

	aboutInfo := map[string]interface{}{
		"version":             build.Version,
		"renderer":            serverHandler.RendererName,
		"strategies":          strategies,
		"ocrEngine":           cfg.OCREngine,
		"ocrConfigured":       serverHandler.Extractor.CanOCR(),
		"normalizeConfigured": serverHandler.Extractor.CanNormalize(),
		"databaseType":        cfg.DatabaseType,
		"databaseHost":        cfg.DatabaseHost,
		"databasePort":        cfg.DatabasePort,
		"databaseName":        cfg.DatabaseDbname,
		"resultsPath":         cfg.ResultsPath,
		"retentionHours":      cfg.ResultRetentionHours,
		"maxUploadMB":         cfg.MaxUploadMB,
		"defaults": map[string]interface{}{
			"dpi":              cfg.DPI,
			"minWidth":         cfg.MinWidth,
			"minHeight":        cfg.MinHeight,
			"segmentZoom":      cfg.SegmentZoom,
			"threshold":        cfg.SegmentThreshold,
			"segmentMinWidth":  cfg.SegmentMinWidth,
			"segmentMinHeight": cfg.SegmentMinHeight,
		},
	}

	return c.JSON(http.StatusOK, aboutInfo)
}
