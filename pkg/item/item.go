// Package item defines the work item entity and its status lifecycle.
package item

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ValidStatuses returns all valid work item statuses.
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status Status) bool {
	for _, valid := range ValidStatuses() {
		if status == valid {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Category constants for common work item types. The category field is
// free-form; these cover the types the tracker produces.
const (
	CategoryFeature       = "feature"
	CategoryBug           = "bug"
	CategorySecurity      = "security"
	CategoryTesting       = "testing"
	CategoryDocumentation = "documentation"
	CategoryTask          = "task"
)

// WorkItem is a unit of work flowing through the dispatcher.
//
//nolint:govet // struct alignment optimization not critical for this type
type WorkItem struct {
	CreatedAt   time.Time `json:"created_at"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	ExternalRef string    `json:"external_ref,omitempty"` // Tracker identifier, used for dedup
	Project     string    `json:"project,omitempty"`
	AssignedTo  string    `json:"assigned_to,omitempty"` // Persona instance id, set while processing
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`

	requeued bool // Processing -> Pending is allowed exactly once
}

// New creates a pending work item with a generated id.
func New(title, description, category string) *WorkItem {
	return &WorkItem{
		ID:          GenerateItemID(),
		Title:       title,
		Description: description,
		Category:    category,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// GenerateItemID generates a new UUID for a work item.
func GenerateItemID() string {
	return uuid.New().String()
}

// TransitionError reports an attempted invalid status transition.
type TransitionError struct {
	ItemID string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("work item %s: invalid status transition %s -> %s", e.ItemID, e.From, e.To)
}

// Transition moves the item to the given status, enforcing the lifecycle:
// Pending -> Processing -> {Completed, Failed}, with Processing -> Pending
// permitted exactly once (the single allowed requeue).
func (w *WorkItem) Transition(to Status) error {
	if w.canTransition(to) {
		if w.Status == StatusProcessing && to == StatusPending {
			w.requeued = true
			w.AssignedTo = ""
		}
		w.Status = to
		return nil
	}
	return &TransitionError{ItemID: w.ID, From: w.Status, To: to}
}

func (w *WorkItem) canTransition(to Status) bool {
	switch w.Status {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		if to == StatusPending {
			return !w.requeued
		}
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted, StatusFailed:
		return false
	}
	return false
}
