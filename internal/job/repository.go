package job

import (
	"context"
	"errors"
)

// Static errors for job persistence.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when creating a job whose ID is already taken.
	ErrJobExists = errors.New("job already exists")
	// ErrStatusChanged is returned by SaveIfStatus when the stored job has
	// moved to another status.
	ErrStatusChanged = errors.New("job status changed")
)

// Repository defines the interface for job persistence.
type Repository interface {
	// Save persists a job, replacing any previous version with the same ID.
	Save(ctx context.Context, job *Job) error

	// SaveIfStatus persists job only if the stored version still has status
	// expected. Returns ErrJobNotFound if the job was deleted and
	// ErrStatusChanged if its status moved on.
	SaveIfStatus(ctx context.Context, job *Job, expected Status) error

	// Create persists a new job.
	// Returns ErrJobExists if the ID is already taken.
	Create(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job from storage.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
