package research

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/convictionhq/conviction/internal/domain"
)

// ValidationError rejects bad input before any state is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that the engagement's single active-job slot
// is taken. ExistingJobID points the caller at the job holding it.
type ConflictError struct {
	ExistingJobID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("engagement already has an active job %s", e.ExistingJobID)
}

// SourceError marks a failure confined to one retrieval channel.
// The gatherer logs and skips these; they never fail a run.
type SourceError struct {
	Class domain.SourceClass
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Class, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// PersistError marks a failed write to the primary content store,
// which is fatal for the item being written.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// WorkflowError pins a failure to the phase that raised it. The
// conductor aborts the remaining phases when one of these surfaces.
type WorkflowError struct {
	Phase string
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }
