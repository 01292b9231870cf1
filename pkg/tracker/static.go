package tracker

import (
	"context"
	"fmt"
	"sync"
)

// Static is an in-memory tracker client. It backs the binary when no real
// tracker is configured and the dispatcher tests.
type Static struct {
	mu       sync.Mutex
	items    map[string][]*ItemDetail // project -> items
	failures map[string]error         // project -> injected query error
}

// NewStatic creates an empty in-memory tracker.
func NewStatic() *Static {
	return &Static{
		items:    make(map[string][]*ItemDetail),
		failures: make(map[string]error),
	}
}

// FailProject makes queries against the project return the given error. A nil
// error clears the failure.
func (s *Static) FailProject(project string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, project)
		return
	}
	s.failures[project] = err
}

// Put adds or replaces an item under its project.
func (s *Static) Put(detail *ItemDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.items[detail.Project]
	for i, existing := range list {
		if existing.ID == detail.ID {
			list[i] = detail
			return
		}
	}
	s.items[detail.Project] = append(list, detail)
}

// QueryWorkItems returns refs for all items in the project, in insertion order.
func (s *Static) QueryWorkItems(_ context.Context, project string) ([]ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[project]; err != nil {
		return nil, err
	}

	refs := make([]ItemRef, 0, len(s.items[project]))
	for _, detail := range s.items[project] {
		refs = append(refs, ItemRef{ID: detail.ID, Project: project})
	}
	return refs, nil
}

// GetWorkItem returns the full record for an item ref.
func (s *Static) GetWorkItem(_ context.Context, project, id string) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, detail := range s.items[project] {
		if detail.ID == id {
			copied := *detail
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("work item %s not found in project %s", id, project)
}
