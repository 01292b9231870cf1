// Package tracker defines the external issue tracker boundary the dispatcher
// polls for new work items. Real tracker transports live outside this repo;
// the dispatcher only ever sees this interface.
package tracker

import "context"

// ItemRef is a lightweight reference returned by a tracker query.
type ItemRef struct {
	ID      string `json:"id"`
	Project string `json:"project"`
}

// ItemDetail is the full work item record fetched from the tracker.
type ItemDetail struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	State       string `json:"state"`
	Project     string `json:"project"`
	URL         string `json:"url,omitempty"`
}

// Client is the tracker boundary. Implementations raise errors on
// network/auth failures; the dispatcher treats any error as "no items this
// round" for that project.
type Client interface {
	QueryWorkItems(ctx context.Context, project string) ([]ItemRef, error)
	GetWorkItem(ctx context.Context, project, id string) (*ItemDetail, error)
}
