package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string

	ResultsPath            string // absolute path, one subfolder per job
	TempPath               string // parent of per request workspaces, empty for the OS default
	ResultRetentionHours   int
	CleanupIntervalMinutes int
	MaxUploadMB            int

	PDFRenderer string
	ExtractConfig
	OCRConfig
}

// ExtractConfig holds the defaults applied when a request leaves a parameter unset
type ExtractConfig struct {
	DPI              float64
	MinWidth         int
	MinHeight        int
	SegmentZoom      float64
	SegmentThreshold int
	SegmentMinWidth  int
	SegmentMinHeight int
}

// OCRConfig selects the OCR engine and the normalization tool
type OCRConfig struct {
	OCREngine     string // tesseract, gosseract, remote or none
	OCRDPI        float64
	OCRLanguage   string
	TesseractPath string
	OCRServiceURL string
	OCRmyPDFPath  string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	cfg := Load(logger)

	fmt.Println("\n========================================")
	fmt.Println("   docextract - Document Image Extractor")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", cfg.ListenAddrIP, cfg.ListenAddrPort)
	if cfg.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Results stored in: %s\n", cfg.ResultsPath)
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "docextract.log"))
	fmt.Println("Initializing...")

	return cfg, logger
}

// Load reads the configuration from the environment. External tools that cannot
// be found are switched off with a warning instead of failing startup.
func Load(logger *slog.Logger) ServerConfig {
	cfg := ServerConfig{}

	// Server configuration
	cfg.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	cfg.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	cfg.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	cfg.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	cfg.DatabasePort = getEnv("DATABASE_PORT", "5432")
	cfg.DatabaseUser = getEnv("DATABASE_USER", "docextract")
	cfg.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	cfg.DatabaseDbname = getEnv("DATABASE_NAME", "docextract")
	cfg.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")
	logger.Info("Database configuration loaded", "type", cfg.DatabaseType)

	// Storage configuration
	resultsPath, err := filepath.Abs(filepath.ToSlash(getEnv("RESULTS_PATH", "results")))
	if err != nil {
		logger.Error("Failed creating absolute path for results directory", "error", err)
	}
	cfg.ResultsPath = resultsPath
	cfg.TempPath = getEnv("TEMP_PATH", "")
	cfg.ResultRetentionHours = getEnvInt("RESULT_RETENTION_HOURS", 72)
	cfg.CleanupIntervalMinutes = getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 100)

	// Extraction defaults
	cfg.PDFRenderer = getEnv("PDF_RENDERER", "pdfium")
	cfg.ExtractConfig = ExtractConfig{
		DPI:              getEnvFloat("EXTRACT_DPI", 150),
		MinWidth:         getEnvInt("EXTRACT_MIN_WIDTH", 50),
		MinHeight:        getEnvInt("EXTRACT_MIN_HEIGHT", 50),
		SegmentZoom:      getEnvFloat("SEGMENT_ZOOM", 2),
		SegmentThreshold: getEnvInt("SEGMENT_THRESHOLD", 240),
		SegmentMinWidth:  getEnvInt("SEGMENT_MIN_WIDTH", 100),
		SegmentMinHeight: getEnvInt("SEGMENT_MIN_HEIGHT", 100),
	}
	if cfg.SegmentThreshold < 1 || cfg.SegmentThreshold > 255 {
		logger.Warn("SEGMENT_THRESHOLD out of range, using 240", "value", cfg.SegmentThreshold)
		cfg.SegmentThreshold = 240
	}

	// OCR configuration
	cfg.OCRConfig = OCRConfig{
		OCREngine:     getEnv("OCR_ENGINE", "tesseract"),
		OCRDPI:        getEnvFloat("OCR_DPI", 300),
		OCRLanguage:   getEnv("OCR_LANGUAGE", "eng"),
		TesseractPath: getEnv("TESSERACT_PATH", "/usr/bin/tesseract"),
		OCRServiceURL: getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRmyPDFPath:  getEnv("OCRMYPDF_PATH", "/usr/bin/ocrmypdf"),
	}

	logger.Info("Checking tesseract executable path...")
	if err := checkExecutables(cfg.TesseractPath, logger); err != nil {
		if cfg.OCREngine == "tesseract" {
			logger.Warn("Tesseract executable not found, OCR will be disabled", "path", cfg.TesseractPath)
			cfg.OCREngine = "none"
		}
		cfg.TesseractPath = ""
	} else if cfg.OCREngine == "tesseract" {
		logger.Info("Tesseract found and validated, OCR enabled", "path", cfg.TesseractPath)
	}

	if !getEnvBool("NORMALIZE_ENABLED", true) {
		cfg.OCRmyPDFPath = ""
	} else if err := checkExecutables(cfg.OCRmyPDFPath, logger); err != nil {
		logger.Warn("ocrmypdf executable not found, normalization will be disabled", "path", cfg.OCRmyPDFPath)
		cfg.OCRmyPDFPath = ""
	}

	return cfg
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "docextract.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// checkExecutables verifies that an executable exists at the given path
func checkExecutables(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("Cannot find executable at location specified", "path", path)
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	logger.Debug("Executable found", "path", path)
	return nil
}
