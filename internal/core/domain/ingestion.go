package domain

import (
	"errors"
	"fmt"
	"time"
)

// JobState is the lifecycle state of one ingestion job.
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateParsing   JobState = "PARSING"
	JobStateSplitting JobState = "SPLITTING"
	JobStateEmbedding JobState = "EMBEDDING"
	JobStateStoring   JobState = "STORING"
	JobStateStored    JobState = "STORED"
	JobStateFailed    JobState = "FAILED"
)

// nextState lists the single forward transition out of each working state.
var nextState = map[JobState]JobState{
	JobStatePending:   JobStateParsing,
	JobStateParsing:   JobStateSplitting,
	JobStateSplitting: JobStateEmbedding,
	JobStateEmbedding: JobStateStoring,
	JobStateStoring:   JobStateStored,
}

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	return s == JobStateStored || s == JobStateFailed
}

// ErrInvalidTransition is returned when a job is moved out of order.
var ErrInvalidTransition = errors.New("invalid job state transition")

// IngestionJob tracks the processing of one uploaded document.
// A job is never retried; a new upload creates a new job.
type IngestionJob struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id"`
	DocumentKey string    `json:"document_key"`
	State       JobState  `json:"state"`
	Error       string    `json:"error,omitempty"`
	Segments    int       `json:"segments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// CompletedAt is set once the job reaches STORED or FAILED
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewIngestionJob creates a pending job for a document handle.
func NewIngestionJob(id, parentID, documentKey string) *IngestionJob {
	if id == "" {
		id = GenerateID()
	}
	now := time.Now()
	return &IngestionJob{
		ID:          id,
		ParentID:    parentID,
		DocumentKey: documentKey,
		State:       JobStatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Advance moves the job to the given state. Only the next forward state is accepted.
// Jumping from SPLITTING straight to STORED is allowed for documents with no text.
func (j *IngestionJob) Advance(to JobState) error {
	if j.State.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, j.State)
	}
	allowed := nextState[j.State] == to || (j.State == JobStateSplitting && to == JobStateStored)
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
	}
	j.State = to
	j.UpdatedAt = time.Now()
	if to.IsTerminal() {
		j.complete()
	}
	return nil
}

// Fail moves a non-terminal job to FAILED and records the reason.
func (j *IngestionJob) Fail(err error) {
	if j.State.IsTerminal() {
		return
	}
	j.State = JobStateFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.UpdatedAt = time.Now()
	j.complete()
}

// complete stamps CompletedAt with its own copy of UpdatedAt so value copies
// of the job never share it.
func (j *IngestionJob) complete() {
	t := j.UpdatedAt
	j.CompletedAt = &t
}
