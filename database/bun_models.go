package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunDocument represents the documents table for Bun ORM
type BunDocument struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID          int64     `bun:"id,pk,autoincrement"`
	JobID       string    `bun:"job_id,notnull,unique"` // ULID as string
	Name        string    `bun:"name,notnull"`
	Hash        string    `bun:"hash,notnull"`
	Size        int64     `bun:"size,notnull,default:0"`
	Pages       int       `bun:"pages,notnull,default:0"`
	IngressTime time.Time `bun:"ingress_time,notnull,default:current_timestamp"`
}

// ToDocument converts BunDocument to Document
func (bd *BunDocument) ToDocument() (*Document, error) {
	jobID, err := ulid.Parse(bd.JobID)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:          bd.ID,
		JobID:       jobID,
		Name:        bd.Name,
		Hash:        bd.Hash,
		Size:        bd.Size,
		Pages:       bd.Pages,
		IngressTime: bd.IngressTime,
	}, nil
}

// FromDocument converts Document to BunDocument
func FromDocument(doc *Document) *BunDocument {
	return &BunDocument{
		ID:          doc.ID,
		JobID:       doc.JobID.String(),
		Name:        doc.Name,
		Hash:        doc.Hash,
		Size:        doc.Size,
		Pages:       doc.Pages,
		IngressTime: doc.IngressTime,
	}
}

// BunImage represents the images table for Bun ORM
type BunImage struct {
	bun.BaseModel `bun:"table:images,alias:i"`

	ID        int64     `bun:"id,pk,autoincrement"`
	JobID     string    `bun:"job_id,notnull"`
	Page      int       `bun:"page,notnull"`
	Method    string    `bun:"method,notnull"`
	Seq       int       `bun:"seq,notnull"`
	Label     string    `bun:"label,notnull"`
	Filename  string    `bun:"filename,notnull"`
	Width     int       `bun:"width,notnull"`
	Height    int       `bun:"height,notnull"`
	Size      int64     `bun:"size,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToImageRecord converts BunImage to ImageRecord
func (bi *BunImage) ToImageRecord() (*ImageRecord, error) {
	jobID, err := ulid.Parse(bi.JobID)
	if err != nil {
		return nil, err
	}

	return &ImageRecord{
		ID:        bi.ID,
		JobID:     jobID,
		Page:      bi.Page,
		Method:    bi.Method,
		Seq:       bi.Seq,
		Label:     bi.Label,
		Filename:  bi.Filename,
		Width:     bi.Width,
		Height:    bi.Height,
		Size:      bi.Size,
		CreatedAt: bi.CreatedAt,
	}, nil
}

// FromImageRecord converts ImageRecord to BunImage
func FromImageRecord(rec *ImageRecord) *BunImage {
	return &BunImage{
		ID:        rec.ID,
		JobID:     rec.JobID.String(),
		Page:      rec.Page,
		Method:    rec.Method,
		Seq:       rec.Seq,
		Label:     rec.Label,
		Filename:  rec.Filename,
		Width:     rec.Width,
		Height:    rec.Height,
		Size:      rec.Size,
		CreatedAt: rec.CreatedAt,
	}
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// bunSchemaMigration records an applied migration
type bunSchemaMigration struct {
	bun.BaseModel `bun:"table:bun_schema_migrations"`

	Version   string    `bun:"version,pk"`
	Name      string    `bun:"name,notnull"`
	AppliedAt time.Time `bun:"applied_at,notnull,default:current_timestamp"`
}
