//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed checkpoint saver.
//
// The caller owns the *sql.DB and is responsible for registering a SQLite
// driver; this package only issues standard SQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inboxflow/inboxflow/graph"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	lineage_id    TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	parent_id     TEXT,
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	checkpoint    TEXT NOT NULL,
	metadata      TEXT,
	UNIQUE (lineage_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_lineage ON checkpoints (lineage_id, seq);
`

// Saver persists checkpoints in a SQLite database.
type Saver struct {
	db *sql.DB
}

// NewSaver creates a saver on the given database, creating the checkpoint
// table if needed.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("sqlite: db is nil")
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("sqlite: failed to create checkpoint table: %w", err)
	}
	return &Saver{db: db}, nil
}

// Get fetches a checkpoint by config. Without a checkpoint ID it resolves to
// the latest checkpoint of the lineage. Returns nil when nothing matches.
func (s *Saver) Get(ctx context.Context, config map[string]any) (*graph.Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, config)
	if err != nil || tuple == nil {
		return nil, err
	}
	return tuple.Checkpoint, nil
}

// GetTuple fetches a checkpoint tuple by config.
func (s *Saver) GetTuple(ctx context.Context, config map[string]any) (*graph.CheckpointTuple, error) {
	lineageID := graph.GetLineageID(config)
	checkpointID := graph.GetCheckpointID(config)

	var row *sql.Row
	if checkpointID == "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT checkpoint, metadata FROM checkpoints
			 WHERE lineage_id = ? ORDER BY seq DESC LIMIT 1`, lineageID)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT checkpoint, metadata FROM checkpoints
			 WHERE lineage_id = ? AND checkpoint_id = ?`, lineageID, checkpointID)
	}

	tuple, err := scanTuple(row, lineageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tuple, err
}

// List returns the lineage's checkpoints, newest first.
func (s *Saver) List(
	ctx context.Context,
	config map[string]any,
	filter *graph.CheckpointFilter,
) ([]*graph.CheckpointTuple, error) {
	lineageID := graph.GetLineageID(config)

	query := `SELECT checkpoint, metadata FROM checkpoints WHERE lineage_id = ?`
	args := []any{lineageID}
	if filter != nil {
		if beforeID := graph.GetCheckpointID(filter.Before); beforeID != "" {
			query += ` AND seq < (SELECT seq FROM checkpoints WHERE lineage_id = ? AND checkpoint_id = ?)`
			args = append(args, lineageID, beforeID)
		}
	}
	query += ` ORDER BY seq DESC`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*graph.CheckpointTuple
	for rows.Next() {
		tuple, err := scanTuple(rows, lineageID)
		if err != nil {
			return nil, err
		}
		out = append(out, tuple)
	}
	return out, rows.Err()
}

// Put stores a checkpoint and returns the config identifying it.
func (s *Saver) Put(ctx context.Context, req graph.PutRequest) (map[string]any, error) {
	lineageID := graph.GetLineageID(req.Config)

	ckptJSON, err := json.Marshal(req.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal checkpoint: %w", err)
	}
	var metaJSON []byte
	if req.Metadata != nil {
		if metaJSON, err = json.Marshal(req.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: marshal metadata: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (lineage_id, checkpoint_id, parent_id, checkpoint, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
		lineageID, req.Checkpoint.ID, req.Checkpoint.ParentCheckpointID,
		string(ckptJSON), string(metaJSON))
	if err != nil {
		return nil, fmt.Errorf("sqlite: store checkpoint: %w", err)
	}
	return graph.CreateCheckpointConfig(lineageID, req.Checkpoint.ID, ""), nil
}

// DeleteLineage removes all checkpoints of a lineage.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE lineage_id = ?`, lineageID)
	if err != nil {
		return fmt.Errorf("sqlite: delete lineage: %w", err)
	}
	return nil
}

// Close is a no-op: the caller owns the database handle.
func (s *Saver) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTuple(row scanner, lineageID string) (*graph.CheckpointTuple, error) {
	var ckptJSON string
	var metaJSON sql.NullString
	if err := row.Scan(&ckptJSON, &metaJSON); err != nil {
		return nil, err
	}

	var ckpt graph.Checkpoint
	if err := json.Unmarshal([]byte(ckptJSON), &ckpt); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal checkpoint: %w", err)
	}
	tuple := &graph.CheckpointTuple{
		Config:     graph.CreateCheckpointConfig(lineageID, ckpt.ID, ""),
		Checkpoint: &ckpt,
	}
	if metaJSON.Valid && metaJSON.String != "" {
		var meta graph.CheckpointMetadata
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
		}
		tuple.Metadata = &meta
	}
	if ckpt.ParentCheckpointID != "" {
		tuple.ParentConfig = graph.CreateCheckpointConfig(lineageID, ckpt.ParentCheckpointID, "")
	}
	return tuple, nil
}
