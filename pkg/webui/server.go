// Package webui provides the JSON API for monitoring and controlling the
// factory. Handlers are thin wrappers over the dispatcher, queue, and pool.
package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aifactory/pkg/dispatch"
	"aifactory/pkg/item"
	"aifactory/pkg/logx"
	"aifactory/pkg/metrics"
	"aifactory/pkg/persistence"
)

// Server represents the factory HTTP API server.
type Server struct {
	dispatcher   *dispatch.Dispatcher
	metricsQuery *metrics.QueryService
	logger       *logx.Logger
}

// PersonaListItem represents a persona instance in the list response.
type PersonaListItem struct {
	InstanceID     string    `json:"instance_id"`
	PersonaType    string    `json:"persona_type"`
	DisplayName    string    `json:"display_name"`
	Skills         []string  `json:"skills"`
	Available      bool      `json:"available"`
	CurrentItemID  string    `json:"current_item_id,omitempty"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	LastActivity   time.Time `json:"last_activity"`
}

// SubmitItemRequest is the POST /api/work-queue payload.
type SubmitItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Project     string `json:"project,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// NewServer creates a new API server over the dispatcher.
func NewServer(dispatcher *dispatch.Dispatcher) *Server {
	return &Server{
		dispatcher: dispatcher,
		logger:     logx.NewLogger("webui"),
	}
}

// SetMetricsQuery attaches the Prometheus query service backing
// /api/metrics/personas. Without one the endpoint reports unavailable.
func (s *Server) SetMetricsQuery(qs *metrics.QueryService) {
	s.metricsQuery = qs
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/personas", s.handlePersonas)
	mux.HandleFunc("/api/work-queue", s.handleWorkQueue)
	mux.HandleFunc("/api/factory/start", s.handleStart)
	mux.HandleFunc("/api/factory/stop", s.handleStop)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/metrics/personas", s.handlePersonaThroughput)
	mux.HandleFunc("/api/queues", s.handleQueues)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// handleStatus implements GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.dispatcher.GetStats())
}

// handlePersonas implements GET /api/personas.
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	instances := s.dispatcher.Pool().All()
	personas := make([]PersonaListItem, 0, len(instances))
	for _, inst := range instances {
		personas = append(personas, PersonaListItem{
			InstanceID:     inst.InstanceID,
			PersonaType:    inst.PersonaType,
			DisplayName:    inst.DisplayName,
			Skills:         inst.SkillList(),
			Available:      inst.Available,
			CurrentItemID:  inst.CurrentItemID,
			CompletedCount: inst.CompletedCount,
			FailedCount:    inst.FailedCount,
			LastActivity:   inst.LastActivity,
		})
	}
	s.writeJSON(w, personas)
}

// handleWorkQueue implements GET and POST /api/work-queue.
func (s *Server) handleWorkQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.dispatcher.Queue().AllItems())
	case http.MethodPost:
		s.handleSubmitItem(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmitItem(w http.ResponseWriter, r *http.Request) {
	var req SubmitItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if req.Category == "" {
		req.Category = item.CategoryTask
	}

	wi := item.New(req.Title, req.Description, req.Category)
	wi.Project = req.Project
	wi.ExternalRef = req.ExternalRef

	id, err := s.dispatcher.Submit(wi)
	if err != nil {
		s.logger.Warn("Rejected submitted item %q: %v", req.Title, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]string{"id": id})
}

// handleStart implements POST /api/factory/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.dispatcher.Start(context.Background()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"running": true})
}

// handleStop implements POST /api/factory/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.dispatcher.Stop(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"running": false})
}

// handleLogs implements GET /api/logs. Serves the persisted log table when
// the database is available, falling back to the in-memory buffer.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	if persistence.IsInitialized() {
		records, err := persistence.Ops().GetLogs(&persistence.LogFilter{
			PersonaName: r.URL.Query().Get("persona"),
			Level:       r.URL.Query().Get("level"),
			Limit:       limit,
		})
		if err != nil {
			s.logger.Error("Failed to query logs: %v", err)
			http.Error(w, "Failed to query logs", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, records)
		return
	}

	entries := logx.RecentEntries(r.URL.Query().Get("source"), time.Time{})
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	s.writeJSON(w, entries)
}

// handlePersonaThroughput implements GET /api/metrics/personas: completion
// throughput per persona type, aggregated from Prometheus.
func (s *Server) handlePersonaThroughput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.metricsQuery == nil {
		http.Error(w, "Prometheus is not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if personaType := r.URL.Query().Get("type"); personaType != "" {
		throughput, err := s.metricsQuery.GetPersonaThroughput(ctx, personaType)
		if err != nil {
			s.logger.Error("Failed to query persona throughput: %v", err)
			http.Error(w, "Failed to query persona throughput", http.StatusBadGateway)
			return
		}
		s.writeJSON(w, throughput)
		return
	}

	all, err := s.metricsQuery.GetAllPersonaThroughput(ctx)
	if err != nil {
		s.logger.Error("Failed to query persona throughput: %v", err)
		http.Error(w, "Failed to query persona throughput", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, all)
}

// handleQueues implements GET /api/queues: queue heads and counters for the
// dashboard.
func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items := s.dispatcher.Queue().AllItems()
	heads := items
	if len(heads) > 10 {
		heads = heads[:10]
	}

	_, available := s.dispatcher.Pool().Counts()
	s.writeJSON(w, map[string]any{
		"work_queue": map[string]any{
			"length": len(items),
			"heads":  heads,
		},
		"completed_count":    s.dispatcher.Queue().CompletedCount(),
		"personas_available": available,
	})
}

// handleHistory implements GET /api/history: terminal work item records,
// newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !persistence.IsInitialized() {
		http.Error(w, "Persistence is not initialized", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := persistence.Ops().CompletedItems(limit)
	if err != nil {
		s.logger.Error("Failed to query item history: %v", err)
		http.Error(w, "Failed to query item history", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*persistence.CompletedItem{}
	}
	s.writeJSON(w, items)
}

// SettingUpdateRequest is the PUT /api/settings payload.
type SettingUpdateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// handleSettings implements GET and PUT /api/settings over the settings
// table. Writes take effect on the next restart or cleanup cycle.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !persistence.IsInitialized() {
		http.Error(w, "Persistence is not initialized", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := persistence.Ops().AllSettings()
		if err != nil {
			s.logger.Error("Failed to query settings: %v", err)
			http.Error(w, "Failed to query settings", http.StatusInternalServerError)
			return
		}
		if settings == nil {
			settings = []*persistence.Setting{}
		}
		s.writeJSON(w, settings)
	case http.MethodPut:
		var req SettingUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		if err := persistence.Ops().SetSetting(req.Key, req.Value); err != nil {
			s.logger.Error("Failed to store setting %s: %v", req.Key, err)
			http.Error(w, "Failed to store setting", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, map[string]string{"key": req.Key, "value": req.Value})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]any{
		"status":  "ok",
		"running": s.dispatcher.IsRunning(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
