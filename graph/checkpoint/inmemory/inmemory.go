//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory checkpoint saver, suitable for
// tests and single-process deployments.
package inmemory

import (
	"context"
	"sync"

	"github.com/inboxflow/inboxflow/graph"
)

type record struct {
	checkpoint *graph.Checkpoint
	metadata   *graph.CheckpointMetadata
}

// Saver stores checkpoints in process memory, grouped by lineage.
type Saver struct {
	mu sync.RWMutex
	// lineages maps lineage ID to its checkpoints in insertion order.
	lineages map[string][]*record
}

// NewSaver creates an empty in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{
		lineages: make(map[string][]*record),
	}
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
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineageID := graph.GetLineageID(config)
	records := s.lineages[lineageID]
	if len(records) == 0 {
		return nil, nil
	}

	checkpointID := graph.GetCheckpointID(config)
	var found *record
	if checkpointID == "" {
		found = records[len(records)-1]
	} else {
		for _, r := range records {
			if r.checkpoint.ID == checkpointID {
				found = r
				break
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return s.tuple(lineageID, found), nil
}

// List returns the lineage's checkpoints, newest first.
func (s *Saver) List(
	ctx context.Context,
	config map[string]any,
	filter *graph.CheckpointFilter,
) ([]*graph.CheckpointTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineageID := graph.GetLineageID(config)
	records := s.lineages[lineageID]

	beforeID := ""
	limit := 0
	if filter != nil {
		beforeID = graph.GetCheckpointID(filter.Before)
		limit = filter.Limit
	}

	// Records are stored oldest first; walk backwards.
	var out []*graph.CheckpointTuple
	skipping := beforeID != ""
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if skipping {
			if r.checkpoint.ID == beforeID {
				skipping = false
			}
			continue
		}
		out = append(out, s.tuple(lineageID, r))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Put stores a checkpoint and returns the config identifying it.
func (s *Saver) Put(ctx context.Context, req graph.PutRequest) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lineageID := graph.GetLineageID(req.Config)
	s.lineages[lineageID] = append(s.lineages[lineageID], &record{
		checkpoint: req.Checkpoint.Copy(),
		metadata:   req.Metadata,
	})
	return graph.CreateCheckpointConfig(lineageID, req.Checkpoint.ID, ""), nil
}

// DeleteLineage removes all checkpoints of a lineage.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lineages, lineageID)
	return nil
}

// Close releases resources. It is a no-op for the in-memory saver.
func (s *Saver) Close() error {
	return nil
}

func (s *Saver) tuple(lineageID string, r *record) *graph.CheckpointTuple {
	t := &graph.CheckpointTuple{
		Config:     graph.CreateCheckpointConfig(lineageID, r.checkpoint.ID, ""),
		Checkpoint: r.checkpoint.Copy(),
		Metadata:   r.metadata,
	}
	if r.checkpoint.ParentCheckpointID != "" {
		t.ParentConfig = graph.CreateCheckpointConfig(lineageID, r.checkpoint.ParentCheckpointID, "")
	}
	return t
}
