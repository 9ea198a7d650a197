package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIngestDocument runs the ingestion pipeline for one uploaded document
	TaskTypeIngestDocument TaskType = "ingest_document"
)

// TaskStatus represents the queue-level state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys for ingest_document tasks.
const (
	PayloadParentID    = "parent_id"
	PayloadDocumentKey = "document_key"
)

// Task is a unit of background work handed from the upload boundary to a worker.
// Tasks are delivered at most once: a failed task is never put back on the queue.
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// ParentID is the deal the task belongs to, kept outside Payload for filtering
	ParentID string `json:"parent_id"`

	// Payload contains task-specific data
	// For ingest_document: {"parent_id": "...", "document_key": "..."}
	Payload map[string]string `json:"payload"`

	Status   TaskStatus `json:"status"`
	Attempts int        `json:"attempts"`

	// Error contains the failure reason if the task failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending task
func NewTask(taskType TaskType, parentID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:        GenerateID(),
		Type:      taskType,
		ParentID:  parentID,
		Payload:   payload,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewIngestTask creates a task that ingests one document of a deal
func NewIngestTask(parentID, documentKey string) *Task {
	return NewTask(TaskTypeIngestDocument, parentID, map[string]string{
		PayloadParentID:    parentID,
		PayloadDocumentKey: documentKey,
	})
}

// DocumentKey extracts the storage key from the payload
func (t *Task) DocumentKey() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload[PayloadDocumentKey]
}

// IsFinished returns true once the task completed or failed
func (t *Task) IsFinished() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(reason string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = reason
}
