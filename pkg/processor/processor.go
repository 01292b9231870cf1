// Package processor defines the execution delegate boundary: "the persona
// does the work". The dispatcher does not know or care what happens inside.
package processor

import (
	"context"
	"fmt"
	"time"

	"aifactory/pkg/item"
	"aifactory/pkg/persona"
)

// Result is the outcome of executing one work item.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Executor performs the work for an assigned item.
type Executor interface {
	Execute(ctx context.Context, wi *item.WorkItem, inst *persona.Instance) (*Result, error)
}

// Simulated is the default executor: it idles for a fixed work duration and
// reports success with a canned summary.
type Simulated struct {
	WorkDuration time.Duration
}

// NewSimulated creates a simulated executor with the given work duration.
func NewSimulated(workDuration time.Duration) *Simulated {
	return &Simulated{WorkDuration: workDuration}
}

// Execute simulates the persona processing the item.
func (s *Simulated) Execute(ctx context.Context, wi *item.WorkItem, inst *persona.Instance) (*Result, error) {
	if s.WorkDuration > 0 {
		select {
		case <-time.After(s.WorkDuration):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s processed %q", inst.DisplayName, wi.Title),
	}, nil
}
