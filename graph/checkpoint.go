//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CheckpointVersion is the current checkpoint format version.
const CheckpointVersion = 1

// Checkpoint is a snapshot of graph state at a point in time.
//
// A checkpoint taken at an interrupt additionally records the execution path
// of the suspended node (NextNodes, outermost first for embedded graphs) and
// the interrupt details, which is everything a later resume needs.
type Checkpoint struct {
	// Version is the checkpoint format version.
	Version int `json:"version"`
	// ID is the unique checkpoint identifier.
	ID string `json:"id"`
	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"timestamp"`
	// StateValues is the full state snapshot keyed by state field name.
	StateValues map[string]any `json:"state_values"`
	// NextNodes is the node chain execution restarts at, outermost first.
	// Empty for terminal checkpoints.
	NextNodes []string `json:"next_nodes,omitempty"`
	// InterruptState is set when the checkpoint was taken at an interrupt.
	InterruptState *InterruptState `json:"interrupt_state,omitempty"`
	// ParentCheckpointID links to the previous checkpoint in the lineage.
	ParentCheckpointID string `json:"parent_checkpoint_id,omitempty"`
}

// InterruptState records where and why execution suspended.
type InterruptState struct {
	// NodeID is the node that interrupted.
	NodeID string `json:"node_id"`
	// Key is the interrupt key within the node.
	Key string `json:"key"`
	// InterruptValue is the prompt payload handed to the caller.
	InterruptValue any `json:"interrupt_value"`
	// Step is the executor step count at suspension.
	Step int `json:"step"`
	// Path is the execution path to the interrupted node, outermost first.
	Path []string `json:"path,omitempty"`
}

// CheckpointMetadata describes how a checkpoint came to be.
type CheckpointMetadata struct {
	// Source is one of SourceInput, SourceLoop, SourceInterrupt.
	Source string `json:"source"`
	// Step is the executor step count. -1 for the input checkpoint.
	Step int `json:"step"`
	// Extra holds optional backend- or application-specific data.
	Extra map[string]any `json:"extra,omitempty"`
}

// CheckpointTuple bundles a checkpoint with its metadata and config.
type CheckpointTuple struct {
	Config       map[string]any      `json:"config"`
	Checkpoint   *Checkpoint         `json:"checkpoint"`
	Metadata     *CheckpointMetadata `json:"metadata"`
	ParentConfig map[string]any      `json:"parent_config,omitempty"`
}

// CheckpointFilter filters checkpoint listings.
type CheckpointFilter struct {
	// Before restricts results to checkpoints created before the one the
	// config identifies.
	Before map[string]any
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// PutRequest carries a checkpoint to a saver.
type PutRequest struct {
	Config     map[string]any
	Checkpoint *Checkpoint
	Metadata   *CheckpointMetadata
}

// CheckpointSaver persists checkpoints.
//
// Implementations must treat stored checkpoints as immutable: Get and
// GetTuple return copies that the caller may mutate freely.
type CheckpointSaver interface {
	// Get fetches a checkpoint by config. A config without a checkpoint ID
	// resolves to the latest checkpoint of the lineage.
	Get(ctx context.Context, config map[string]any) (*Checkpoint, error)
	// GetTuple fetches a checkpoint tuple by config.
	GetTuple(ctx context.Context, config map[string]any) (*CheckpointTuple, error)
	// List returns checkpoints of a lineage, newest first.
	List(ctx context.Context, config map[string]any, filter *CheckpointFilter) ([]*CheckpointTuple, error)
	// Put stores a checkpoint and returns the config identifying it.
	Put(ctx context.Context, req PutRequest) (map[string]any, error)
	// DeleteLineage removes all checkpoints of a lineage.
	DeleteLineage(ctx context.Context, lineageID string) error
	// Close releases backend resources.
	Close() error
}

// NewCheckpoint creates a checkpoint from a state snapshot.
func NewCheckpoint(state State) *Checkpoint {
	return &Checkpoint{
		Version:     CheckpointVersion,
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		StateValues: deepCopyMap(state),
	}
}

// NewCheckpointMetadata creates checkpoint metadata.
func NewCheckpointMetadata(source string, step int) *CheckpointMetadata {
	return &CheckpointMetadata{
		Source: source,
		Step:   step,
	}
}

// Copy creates a deep copy of the checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := &Checkpoint{
		Version:            c.Version,
		ID:                 c.ID,
		Timestamp:          c.Timestamp,
		StateValues:        deepCopyMap(c.StateValues),
		NextNodes:          append([]string{}, c.NextNodes...),
		ParentCheckpointID: c.ParentCheckpointID,
	}
	if c.InterruptState != nil {
		is := *c.InterruptState
		is.Path = append([]string{}, c.InterruptState.Path...)
		cp.InterruptState = &is
	}
	return cp
}

// IsInterrupted reports whether the checkpoint was taken at an interrupt.
func (c *Checkpoint) IsInterrupted() bool {
	return c != nil && c.InterruptState != nil
}

// SetInterruptState records interrupt details on the checkpoint.
func (c *Checkpoint) SetInterruptState(nodeID, key string, value any, step int, path []string) {
	c.InterruptState = &InterruptState{
		NodeID:         nodeID,
		Key:            key,
		InterruptValue: value,
		Step:           step,
		Path:           append([]string{}, path...),
	}
}

// ClearInterruptState removes interrupt details from the checkpoint.
func (c *Checkpoint) ClearInterruptState() {
	c.InterruptState = nil
	c.NextNodes = nil
}

// CreateCheckpointConfig builds a config map identifying a checkpoint.
func CreateCheckpointConfig(lineageID, checkpointID, namespace string) map[string]any {
	configurable := map[string]any{
		CfgKeyLineageID: lineageID,
	}
	if checkpointID != "" {
		configurable[CfgKeyCheckpointID] = checkpointID
	}
	if namespace != "" {
		configurable[CfgKeyCheckpointNS] = namespace
	}
	return map[string]any{CfgKeyConfigurable: configurable}
}

// GetLineageID extracts the lineage ID from a config map.
func GetLineageID(config map[string]any) string {
	return getConfigString(config, CfgKeyLineageID)
}

// GetCheckpointID extracts the checkpoint ID from a config map.
func GetCheckpointID(config map[string]any) string {
	return getConfigString(config, CfgKeyCheckpointID)
}

// GetNamespace extracts the checkpoint namespace from a config map.
func GetNamespace(config map[string]any) string {
	return getConfigString(config, CfgKeyCheckpointNS)
}

func getConfigString(config map[string]any, key string) string {
	configurable, ok := config[CfgKeyConfigurable].(map[string]any)
	if !ok {
		return ""
	}
	value, _ := configurable[key].(string)
	return value
}

// DeepCopier lets struct-typed state values control how checkpoints snapshot
// them. A value whose interior maps or slices are mutated in place after the
// snapshot must implement it, otherwise the stored checkpoint would share
// that memory with live state.
type DeepCopier interface {
	DeepCopy() any
}

// deepCopyMap deep-copies a map, descending into nested maps, slices and
// DeepCopier values. Scalars and remaining struct values are copied by
// assignment.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case DeepCopier:
		return typed.DeepCopy()
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string{}, typed...)
	default:
		return v
	}
}

// CheckpointManager provides a convenience layer over a CheckpointSaver.
type CheckpointManager struct {
	saver CheckpointSaver
}

// NewCheckpointManager creates a checkpoint manager backed by the saver.
func NewCheckpointManager(saver CheckpointSaver) *CheckpointManager {
	return &CheckpointManager{saver: saver}
}

// Saver returns the underlying checkpoint saver.
func (m *CheckpointManager) Saver() CheckpointSaver {
	return m.saver
}

// Create snapshots state into a fresh checkpoint, chains it to the lineage's
// latest checkpoint and stores it.
func (m *CheckpointManager) Create(
	ctx context.Context,
	lineageID string,
	state State,
	meta *CheckpointMetadata,
) (*Checkpoint, error) {
	ckpt := NewCheckpoint(state)
	if _, err := m.Put(ctx, lineageID, ckpt, meta); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// Put stores a prepared checkpoint under the lineage.
func (m *CheckpointManager) Put(
	ctx context.Context,
	lineageID string,
	ckpt *Checkpoint,
	meta *CheckpointMetadata,
) (map[string]any, error) {
	if latest, err := m.saver.Get(ctx, CreateCheckpointConfig(lineageID, "", "")); err == nil && latest != nil {
		ckpt.ParentCheckpointID = latest.ID
	}
	return m.saver.Put(ctx, PutRequest{
		Config:     CreateCheckpointConfig(lineageID, ckpt.ID, ""),
		Checkpoint: ckpt,
		Metadata:   meta,
	})
}

// Latest returns the most recent checkpoint tuple of a lineage, or nil when
// the lineage has none.
func (m *CheckpointManager) Latest(ctx context.Context, lineageID string) (*CheckpointTuple, error) {
	return m.saver.GetTuple(ctx, CreateCheckpointConfig(lineageID, "", ""))
}

// History lists the lineage's checkpoints, newest first.
func (m *CheckpointManager) History(
	ctx context.Context,
	lineageID string,
	limit int,
) ([]*CheckpointTuple, error) {
	return m.saver.List(ctx, CreateCheckpointConfig(lineageID, "", ""), &CheckpointFilter{Limit: limit})
}

// DeleteLineage removes all checkpoints of a lineage.
func (m *CheckpointManager) DeleteLineage(ctx context.Context, lineageID string) error {
	return m.saver.DeleteLineage(ctx, lineageID)
}
