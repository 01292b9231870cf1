package persistence

import (
	"database/sql"
	"fmt"
	"time"
)

// Operations provides methods for database operations.
type Operations struct {
	db *sql.DB
}

// NewOperations creates an Operations instance over the given connection.
func NewOperations(db *sql.DB) *Operations {
	return &Operations{db: db}
}

// InsertLog writes one log record, generating id and timestamp if unset.
func (ops *Operations) InsertLog(rec *LogRecord) error {
	if rec.ID == "" {
		rec.ID = GenerateLogID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := ops.db.Exec(`
		INSERT INTO factory_logs (id, created_at, level, message, persona_name, work_item_id, project)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt, rec.Level, rec.Message,
		nullable(rec.PersonaName), nullable(rec.WorkItemID), nullable(rec.Project))
	if err != nil {
		return fmt.Errorf("failed to insert log record: %w", err)
	}
	return nil
}

// GetLogs returns log records matching the filter, newest first.
func (ops *Operations) GetLogs(filter *LogFilter) ([]*LogRecord, error) {
	query := `
		SELECT id, created_at, level, message,
		       COALESCE(persona_name, ''), COALESCE(work_item_id, ''), COALESCE(project, '')
		FROM factory_logs
	`
	var args []any
	var conditions []string

	if filter.PersonaName != "" {
		conditions = append(conditions, "persona_name = ?")
		args = append(args, filter.PersonaName)
	}
	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, filter.Level)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := ops.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*LogRecord
	for rows.Next() {
		rec := &LogRecord{}
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Level, &rec.Message,
			&rec.PersonaName, &rec.WorkItemID, &rec.Project); err != nil {
			return nil, fmt.Errorf("failed to scan log record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log records: %w", err)
	}
	return records, nil
}

// DeleteOldLogs removes system logs older than systemDays and persona logs
// older than personaDays, returning how many of each were deleted.
func (ops *Operations) DeleteOldLogs(systemDays, personaDays int) (systemDeleted, personaDeleted int64, err error) {
	now := time.Now().UTC()

	systemCutoff := now.AddDate(0, 0, -systemDays)
	res, err := ops.db.Exec(
		`DELETE FROM factory_logs WHERE persona_name IS NULL AND created_at < ?`, systemCutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete old system logs: %w", err)
	}
	systemDeleted, _ = res.RowsAffected()

	personaCutoff := now.AddDate(0, 0, -personaDays)
	res, err = ops.db.Exec(
		`DELETE FROM factory_logs WHERE persona_name IS NOT NULL AND created_at < ?`, personaCutoff)
	if err != nil {
		return systemDeleted, 0, fmt.Errorf("failed to delete old persona logs: %w", err)
	}
	personaDeleted, _ = res.RowsAffected()

	return systemDeleted, personaDeleted, nil
}

// SetSetting upserts a settings key.
func (ops *Operations) SetSetting(key, value string) error {
	_, err := ops.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns a settings value, or the fallback if the key is absent.
func (ops *Operations) GetSetting(key, fallback string) (string, error) {
	var value string
	err := ops.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// AllSettings returns every settings row.
func (ops *Operations) AllSettings() ([]*Setting, error) {
	rows, err := ops.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var settings []*Setting
	for rows.Next() {
		s := &Setting{}
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}
	return settings, nil
}

// RecordCompletedItem upserts the terminal record of a work item.
func (ops *Operations) RecordCompletedItem(rec *CompletedItem) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}

	_, err := ops.db.Exec(`
		INSERT INTO completed_items (id, external_ref, title, project, completed_by, status, detail, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_ref = excluded.external_ref,
			title = excluded.title,
			project = excluded.project,
			completed_by = excluded.completed_by,
			status = excluded.status,
			detail = excluded.detail,
			completed_at = excluded.completed_at
	`, rec.ID, nullable(rec.ExternalRef), rec.Title, nullable(rec.Project),
		nullable(rec.CompletedBy), rec.Status, nullable(rec.Detail), rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record completed item %s: %w", rec.ID, err)
	}
	return nil
}

// CompletedRefs returns the external refs of all completed items, used to
// seed the work queue's dedup set at startup.
func (ops *Operations) CompletedRefs() ([]string, error) {
	rows, err := ops.db.Query(
		`SELECT external_ref FROM completed_items WHERE external_ref IS NOT NULL AND status = 'completed'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan completed ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed refs: %w", err)
	}
	return refs, nil
}

// CompletedItems returns terminal item records, newest first.
func (ops *Operations) CompletedItems(limit int) ([]*CompletedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := ops.db.Query(`
		SELECT id, COALESCE(external_ref, ''), title, COALESCE(project, ''),
		       COALESCE(completed_by, ''), status, COALESCE(detail, ''), completed_at
		FROM completed_items
		ORDER BY completed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*CompletedItem
	for rows.Next() {
		rec := &CompletedItem{}
		if err := rows.Scan(&rec.ID, &rec.ExternalRef, &rec.Title, &rec.Project,
			&rec.CompletedBy, &rec.Status, &rec.Detail, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completed item: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed items: %w", err)
	}
	return items, nil
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
