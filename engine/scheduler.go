package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/drummonds/docextract/database"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// CleanupResult is stored as the result of a cleanup job
type CleanupResult struct {
	ExpiredJobs    int `json:"expiredJobs"`
	OrphanedDirs   int `json:"orphanedDirs"`
	RetentionHours int `json:"retentionHours"`
}

// InitializeSchedules starts the result retention job and returns the running scheduler
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.CleanupIntervalMinutes
	if interval <= 0 {
		interval = 60
	}

	// Run cleanup immediately at startup in a goroutine
	Logger.Info("Running result cleanup at startup")
	go serverHandler.cleanupJobFuncWithTracking()

	c := cron.New()
	var cleanupJob cron.Job
	cleanupJob = cron.FuncJob(func() { serverHandler.cleanupJobFuncWithTracking() })
	cleanupJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cleanupJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), cleanupJob); err != nil {
		Logger.Error("Failed to schedule result cleanup", "error", err)
	}
	Logger.Info("Adding cleanup job scheduler", "interval_minutes", interval, "retention_hours", serverHandler.ServerConfig.ResultRetentionHours)
	c.Start()
	return c
}

// CleanResults triggers the retention cleanup now
// @Summary Purge expired results
// @Description Delete finished jobs older than the retention period and any result folders with no job
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job created with job ID"
// @Router /clean [post]
func (serverHandler *ServerHandler) CleanResults(c echo.Context) error {
	Logger.Info("Manual cleanup triggered via API")
	jobID, err := serverHandler.cleanupJobFuncWithTracking()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"jobId": jobID.String(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Cleanup completed",
		"jobId":   jobID.String(),
	})
}

// cleanupJobFuncWithTracking runs one retention pass recorded as a cleanup job
func (serverHandler *ServerHandler) cleanupJobFuncWithTracking() (jobID ulid.ULID, err error) {
	db := serverHandler.DB
	job, err := db.CreateJob(database.JobTypeCleanup, "Purging expired results")
	if err != nil {
		Logger.Error("Failed to create cleanup job", "error", err)
		return jobID, err
	}
	jobID = job.ID

	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Cleanup job panicked", "jobID", jobID.String(), "panic", r)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()

	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Purging expired results")
	result, err := serverHandler.purgeResults(jobID)
	if err != nil {
		Logger.Error("Cleanup failed", "jobID", jobID.String(), "error", err)
		db.UpdateJobError(jobID, err.Error())
		return jobID, err
	}

	resultJSON, _ := json.Marshal(result)
	if err := db.CompleteJob(jobID, string(resultJSON)); err != nil {
		Logger.Error("Failed to complete cleanup job", "jobID", jobID.String(), "error", err)
	}
	Logger.Info("Cleanup completed", "jobID", jobID.String(), "expired", result.ExpiredJobs, "orphaned", result.OrphanedDirs)
	return jobID, nil
}

// purgeResults deletes expired jobs with their folders, then folders that belong to no job.
// Progress is reported against the running cleanup job self.
func (serverHandler *ServerHandler) purgeResults(self ulid.ULID) (*CleanupResult, error) {
	retention := serverHandler.ServerConfig.ResultRetentionHours
	result := &CleanupResult{RetentionHours: retention}

	if retention > 0 {
		expired, err := serverHandler.DB.DeleteOldJobs(time.Duration(retention) * time.Hour)
		if err != nil {
			return nil, fmt.Errorf("failed to delete expired jobs: %w", err)
		}
		for _, id := range expired {
			if err := os.RemoveAll(serverHandler.jobDir(id)); err != nil {
				Logger.Warn("Failed to remove expired results", "jobID", id.String(), "error", err)
			}
		}
		result.ExpiredJobs = len(expired)
		serverHandler.DB.UpdateJobProgress(self, 50, fmt.Sprintf("Deleted %d expired jobs", len(expired)))
	}

	orphans, err := serverHandler.findOrphanedResults()
	if err != nil {
		return nil, err
	}
	for _, dir := range orphans {
		Logger.Info("Removing orphaned result folder", "path", dir)
		if err := os.RemoveAll(dir); err != nil {
			Logger.Warn("Failed to remove orphaned result folder", "path", dir, "error", err)
			continue
		}
		result.OrphanedDirs++
	}
	return result, nil
}

// findOrphanedResults lists job folders under the results path whose job record is gone
func (serverHandler *ServerHandler) findOrphanedResults() ([]string, error) {
	root := serverHandler.ServerConfig.ResultsPath
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read results folder: %w", err)
	}

	var orphans []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := ulid.Parse(entry.Name())
		if err != nil {
			continue // not ours
		}
		if _, err := serverHandler.DB.GetJob(id); errors.Is(err, database.ErrNotFound) {
			orphans = append(orphans, filepath.Join(root, entry.Name()))
		}
	}
	return orphans, nil
}
