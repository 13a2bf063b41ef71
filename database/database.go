package database

import (
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ErrNotFound is returned when a job, document or image record does not exist
var ErrNotFound = errors.New("record not found")

// Document is the uploaded source of an extraction job
type Document struct {
	ID          int64     `json:"-"`
	JobID       ulid.ULID `json:"jobId"`
	Name        string    `json:"name"`
	Hash        string    `json:"hash"` // md5 of the uploaded bytes
	Size        int64     `json:"size"`
	Pages       int       `json:"pages"`
	IngressTime time.Time `json:"ingressTime"`
}

// ImageRecord describes one extracted image stored on disk under the job's results folder
type ImageRecord struct {
	ID        int64     `json:"-"`
	JobID     ulid.ULID `json:"jobId"`
	Page      int       `json:"page"`
	Method    string    `json:"method"`
	Seq       int       `json:"seq"`
	Label     string    `json:"label"`
	Filename  string    `json:"filename"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository defines database operations
type Repository interface {
	Close() error
	// Source documents
	SaveDocument(doc *Document) error
	GetDocumentForJob(jobID ulid.ULID) (*Document, error)
	// Extracted images
	SaveImages(jobID ulid.ULID, images []ImageRecord) error
	GetImagesForJob(jobID ulid.ULID) ([]ImageRecord, error)
	GetImage(jobID ulid.ULID, filename string) (*ImageRecord, error)
	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteJob(jobID ulid.ULID) error
	DeleteOldJobs(olderThan time.Duration) ([]ulid.ULID, error)
	FailInterruptedJobs(reason string) ([]ulid.ULID, error)
}

// CalculateHash returns the md5 of an uploaded document
func CalculateHash(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// CalculateUUID for a new job
func CalculateUUID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(time), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}

// notFound maps the driver's no rows error onto ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
