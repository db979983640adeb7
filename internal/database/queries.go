package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

// ErrNotFound is returned when no analysis matches the lookup
var ErrNotFound = errors.New("analysis not found")

// SaveAnalysis inserts a completed analysis
func (db *DB) SaveAnalysis(ctx context.Context, record models.AnalysisRecord) error {
	paramsJSON, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO analyses (id, fingerprint, analysis_type, params, result, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Fingerprint, record.Params.AnalysisType,
		paramsJSON, resultJSON, metadataJSON, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by ID
func (db *DB) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, fingerprint, params, result, metadata, created_at, updated_at
		FROM analyses
		WHERE id = ?
	`, id)
	return scanRecord(row)
}

// GetByFingerprint retrieves the most recent analysis for a request
// fingerprint.
func (db *DB) GetByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, fingerprint, params, result, metadata, created_at, updated_at
		FROM analyses
		WHERE fingerprint = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, fingerprint)
	return scanRecord(row)
}

// ListAnalyses returns analyses newest first, optionally filtered by
// analysis type.
func (db *DB) ListAnalyses(ctx context.Context, analysisType string, limit, offset int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, fingerprint, params, result, metadata, created_at, updated_at
		FROM analyses
	`
	args := []any{}
	if analysisType != "" {
		query += " WHERE analysis_type = ?"
		args = append(args, analysisType)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteAnalysis removes an analysis by ID
func (db *DB) DeleteAnalysis(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AnalysisRecord, error) {
	var (
		record       models.AnalysisRecord
		paramsJSON   string
		resultJSON   string
		metadataJSON string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&record.ID, &record.Fingerprint, &paramsJSON, &resultJSON, &metadataJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &record.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &record.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	return &record, nil
}
