package persistence

import (
	"time"

	"github.com/google/uuid"
)

// LogRecord is one row of the factory activity log. System events have no
// persona; persona activity carries the persona name and usually a work item.
//
//nolint:govet // struct alignment optimization not critical for this type
type LogRecord struct {
	CreatedAt   time.Time `json:"created_at"`
	ID          string    `json:"id"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	PersonaName string    `json:"persona_name,omitempty"`
	WorkItemID  string    `json:"work_item_id,omitempty"`
	Project     string    `json:"project,omitempty"`
}

// LogFilter represents criteria for querying log records.
type LogFilter struct {
	PersonaName string
	Level       string
	Limit       int
}

// CompletedItem is the terminal record of a work item, kept for dedup
// seeding and the dashboard's history view.
//
//nolint:govet // struct alignment optimization not critical for this type
type CompletedItem struct {
	CompletedAt time.Time `json:"completed_at"`
	ID          string    `json:"id"`
	ExternalRef string    `json:"external_ref,omitempty"`
	Title       string    `json:"title"`
	Project     string    `json:"project,omitempty"`
	CompletedBy string    `json:"completed_by,omitempty"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
}

// Setting is one key/value configuration row.
type Setting struct {
	UpdatedAt time.Time `json:"updated_at"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
}

// Setting keys used by the factory.
const (
	SettingEnabledProjects         = "enabled_projects"
	SettingLogRetentionDays        = "log_retention_days"
	SettingPersonaLogRetentionDays = "persona_log_retention_days"
)

// GenerateLogID generates a new UUID for a log record.
func GenerateLogID() string {
	return uuid.New().String()
}
