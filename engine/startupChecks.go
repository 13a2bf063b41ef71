package engine

import (
	"fmt"
	"os"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	cfg := serverHandler.ServerConfig
	toolCheck("Tesseract", cfg.TesseractPath, cfg.OCREngine == "tesseract")
	toolCheck("OCRmyPDF", cfg.OCRmyPDFPath, cfg.OCRmyPDFPath != "")
	if err := directoryCheck("results", cfg.ResultsPath); err != nil {
		return err
	}
	if cfg.TempPath != "" {
		if err := directoryCheck("temp", cfg.TempPath); err != nil {
			return err
		}
	}
	if serverHandler.DB != nil {
		if err := serverHandler.failInterruptedJobs(); err != nil {
			return err
		}
	}
	return nil
}

// failInterruptedJobs closes out jobs left active by a previous process so retention and DELETE can reach them
func (serverHandler *ServerHandler) failInterruptedJobs() error {
	ids, err := serverHandler.DB.FailInterruptedJobs("Interrupted by server restart")
	if err != nil {
		Logger.Error("Failed to close out interrupted jobs", "error", err)
		return err
	}
	for _, id := range ids {
		Logger.Warn("Job was interrupted by a restart, marked failed", "jobID", id.String())
	}
	return nil
}

// toolCheck logs whether an external tool the server may call is usable; a missing tool only disables its feature
func toolCheck(name, path string, wanted bool) {
	if !wanted || path == "" {
		Logger.Info(name+" not configured, the feature it backs will be unavailable")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		Logger.Warn(name+" executable not found", "path", path, "error", err)
		return
	}
	if info.IsDir() {
		Logger.Warn(name+" path is a directory, not an executable", "path", path)
		return
	}
	if info.Mode()&0111 == 0 {
		Logger.Warn(name+" is not executable", "path", path, "mode", info.Mode())
		return
	}
	Logger.Info(name+" executable found and validated", "path", path)
}

// directoryCheck ensures a working directory exists, creating it when missing
func directoryCheck(kind, path string) error {
	if path == "" {
		return fmt.Errorf("%s path not configured", kind)
	}

	// Check if directory exists
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating "+kind+" directory", "path", path)
			if err := os.MkdirAll(path, 0755); err != nil {
				Logger.Error("Failed to create "+kind+" directory", "path", path, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking "+kind+" directory", "path", path, "error", err)
		return err
	}

	// Check if it's actually a directory
	if !info.IsDir() {
		Logger.Error(kind+" path exists but is not a directory", "path", path)
		return fmt.Errorf("%s path is not a directory: %s", kind, path)
	}

	Logger.Info(kind+" directory exists", "path", path)
	return nil
}
