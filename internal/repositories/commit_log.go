package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// CommitLogRepository records every commit attempt so partial writes can be inspected later.
type CommitLogRepository struct {
	db *sql.DB
}

// NewCommitLogRepository creates a new CommitLogRepository with the given database connection
func NewCommitLogRepository(db *sql.DB) *CommitLogRepository {
	return &CommitLogRepository{db: db}
}

// Create inserts record, assigning an ID and timestamp when missing.
func (r *CommitLogRepository) Create(ctx context.Context, record *models.CommitRecord) error {
	if record.PlaylistID == "" && record.Status == models.CommitSucceeded {
		return fmt.Errorf("%w: successful commit without playlist id", shared.ErrValidation)
	}
	if record.ID == "" {
		record.ID = shared.GenerateID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO commit_log (
			id, playlist_id, playlist_name, mode, status, stage,
			total_items, items_applied, chunks_applied, total_chunks,
			error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.PlaylistID,
		record.PlaylistName,
		record.Mode,
		record.Status,
		record.Stage,
		record.TotalItems,
		record.ItemsApplied,
		record.ChunksApplied,
		record.TotalChunks,
		record.Error,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert commit record: %v", shared.ErrStore, err)
	}
	return nil
}

const commitLogColumns = `
	id, playlist_id, playlist_name, mode, status, stage,
	total_items, items_applied, chunks_applied, total_chunks,
	error, created_at
`

// Get retrieves a commit record by ID.
func (r *CommitLogRepository) Get(ctx context.Context, id string) (*models.CommitRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+commitLogColumns+` FROM commit_log WHERE id = ?`, id)

	record, err := scanCommitRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commit record not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan commit record: %w", err)
	}
	return record, nil
}

// List returns the newest records first. An empty playlistID lists every playlist; limit <= 0 means no limit.
func (r *CommitLogRepository) List(ctx context.Context, playlistID string, limit int) ([]*models.CommitRecord, error) {
	query := `SELECT ` + commitLogColumns + ` FROM commit_log WHERE 1 = 1`
	args := []any{}

	if playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit log: %w", err)
	}
	defer rows.Close()

	var records []*models.CommitRecord
	for rows.Next() {
		record, err := scanCommitRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommitRecord(s scanner) (*models.CommitRecord, error) {
	var record models.CommitRecord
	err := s.Scan(
		&record.ID, &record.PlaylistID, &record.PlaylistName, &record.Mode, &record.Status, &record.Stage,
		&record.TotalItems, &record.ItemsApplied, &record.ChunksApplied, &record.TotalChunks,
		&record.Error, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
