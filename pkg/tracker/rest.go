package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const restRequestTimeout = 30 * time.Second

// REST talks to a work tracker over its JSON API. Requests authenticate with
// a personal-access token sent as basic auth with an empty username, the
// convention PAT-based trackers use.
type REST struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewREST creates a tracker client for the given base URL and PAT.
func NewREST(baseURL, token string) *REST {
	return &REST{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: restRequestTimeout},
	}
}

// QueryWorkItems returns the refs of open items in the project.
func (r *REST) QueryWorkItems(ctx context.Context, project string) ([]ItemRef, error) {
	var refs []ItemRef
	path := fmt.Sprintf("/projects/%s/workitems", url.PathEscape(project))
	if err := r.getJSON(ctx, path, &refs); err != nil {
		return nil, fmt.Errorf("failed to query work items for project %s: %w", project, err)
	}
	return refs, nil
}

// GetWorkItem returns the full record for an item ref.
func (r *REST) GetWorkItem(ctx context.Context, project, id string) (*ItemDetail, error) {
	var detail ItemDetail
	path := fmt.Sprintf("/projects/%s/workitems/%s", url.PathEscape(project), url.PathEscape(id))
	if err := r.getJSON(ctx, path, &detail); err != nil {
		return nil, fmt.Errorf("failed to get work item %s in project %s: %w", id, project, err)
	}
	return &detail, nil
}

func (r *REST) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+r.token)))

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("tracker rejected the access token (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode tracker response: %w", err)
	}
	return nil
}
