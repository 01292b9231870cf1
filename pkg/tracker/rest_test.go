package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackerStub(t *testing.T, token string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/projects/Platform/workitems", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+token)) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]ItemRef{
			{ID: "AZ-1", Project: "Platform"},
			{ID: "AZ-2", Project: "Platform"},
		})
	})
	mux.HandleFunc("/projects/Platform/workitems/AZ-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ItemDetail{
			ID:      "AZ-1",
			Title:   "Add login",
			Type:    "User Story",
			State:   "New",
			Project: "Platform",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRESTQueryWorkItems(t *testing.T) {
	srv := newTrackerStub(t, "pat-123")
	trk := NewREST(srv.URL, "pat-123")

	refs, err := trk.QueryWorkItems(context.Background(), "Platform")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "AZ-1", refs[0].ID)
}

func TestRESTGetWorkItem(t *testing.T) {
	srv := newTrackerStub(t, "pat-123")
	trk := NewREST(srv.URL, "pat-123")

	detail, err := trk.GetWorkItem(context.Background(), "Platform", "AZ-1")
	require.NoError(t, err)
	assert.Equal(t, "Add login", detail.Title)
	assert.Equal(t, "User Story", detail.Type)
}

func TestRESTRejectedToken(t *testing.T) {
	srv := newTrackerStub(t, "pat-123")
	trk := NewREST(srv.URL, "wrong-pat")

	_, err := trk.QueryWorkItems(context.Background(), "Platform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token")
}

func TestRESTServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	trk := NewREST(srv.URL, "pat-123")
	_, err := trk.QueryWorkItems(context.Background(), "Platform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
