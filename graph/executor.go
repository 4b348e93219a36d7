//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/telemetry/trace"
)

const defaultMaxSteps = 100

// Invocation identifies a single run of a graph.
type Invocation struct {
	// InvocationID identifies this run.
	InvocationID string
	// LineageID identifies the conversation the run belongs to. Checkpoints
	// are stored and resumed per lineage.
	LineageID string
}

// NewInvocation creates an invocation for the given lineage with a fresh ID.
func NewInvocation(lineageID string) *Invocation {
	return &Invocation{
		InvocationID: uuid.NewString(),
		LineageID:    lineageID,
	}
}

// Executor executes a graph with the given initial state.
//
// Execution is strictly sequential: exactly one node runs at a time and the
// executor advances along edges until it reaches End, the step limit, or an
// interrupt. When a checkpoint saver is configured, the full state snapshot
// is persisted at the entry, at every interrupt, and at completion, so a
// process restart can resume from the exact suspension point.
type Executor struct {
	graph     *Graph
	maxSteps  int
	manager   *CheckpointManager
	normalize func(State) (State, error)
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// MaxSteps is the maximum number of steps for graph execution.
	MaxSteps int
	// Saver persists checkpoints. Optional; without it execution is
	// in-memory only and Resume is unavailable.
	Saver CheckpointSaver
	// Normalize rehydrates a restored state snapshot. Durable savers
	// round-trip state through JSON; the normalizer restores typed values
	// before execution continues.
	Normalize func(State) (State, error)
}

// WithMaxSteps sets the maximum number of steps for graph execution.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = maxSteps
	}
}

// WithCheckpointSaver sets the checkpoint storage backend.
func WithCheckpointSaver(saver CheckpointSaver) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Saver = saver
	}
}

// WithStateNormalizer sets the rehydration function applied to restored
// checkpoints before resuming.
func WithStateNormalizer(fn func(State) (State, error)) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Normalize = fn
	}
}

// NewExecutor creates a new graph executor.
func NewExecutor(graph *Graph, opts ...ExecutorOption) (*Executor, error) {
	if err := graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	var options ExecutorOptions
	options.MaxSteps = defaultMaxSteps
	for _, opt := range opts {
		opt(&options)
	}
	e := &Executor{
		graph:     graph,
		maxSteps:  options.MaxSteps,
		normalize: options.Normalize,
	}
	if options.Saver != nil {
		e.manager = NewCheckpointManager(options.Saver)
	}
	return e, nil
}

// Execute executes the graph with the given initial state. It returns the
// final state, or the state at the point of suspension together with an
// *InterruptError when a node interrupted.
func (e *Executor) Execute(ctx context.Context, initialState State, inv *Invocation) (State, error) {
	if inv == nil {
		return nil, errors.New("invocation is nil")
	}

	ctx, span := trace.Tracer.Start(ctx, "execute_graph")
	defer span.End()
	span.SetAttributes(
		attribute.String("inboxflow.invocation_id", inv.InvocationID),
		attribute.String("inboxflow.lineage_id", inv.LineageID),
	)

	state := initialState.Clone()
	if e.manager != nil {
		if _, err := e.manager.Create(ctx, inv.LineageID, state, NewCheckpointMetadata(SourceInput, -1)); err != nil {
			return nil, fmt.Errorf("failed to persist input checkpoint: %w", err)
		}
	}

	steps := 0
	final, err := e.runGraph(ctx, e.graph, state, e.graph.EntryPoint(), nil, &steps)
	return e.finish(ctx, inv, final, err)
}

// Resume restores the latest checkpoint for the invocation's lineage,
// injects the resume values from cmd, and continues execution from the
// interrupted node. Work that completed before the suspension is not
// re-executed.
func (e *Executor) Resume(ctx context.Context, inv *Invocation, cmd *ResumeCommand) (State, error) {
	if inv == nil {
		return nil, errors.New("invocation is nil")
	}
	if e.manager == nil {
		return nil, ErrNoCheckpointSaver
	}

	ctx, span := trace.Tracer.Start(ctx, "resume_graph")
	defer span.End()
	span.SetAttributes(
		attribute.String("inboxflow.invocation_id", inv.InvocationID),
		attribute.String("inboxflow.lineage_id", inv.LineageID),
	)

	tuple, err := e.manager.Latest(ctx, inv.LineageID)
	if err != nil {
		return nil, err
	}
	if tuple == nil || tuple.Checkpoint == nil {
		return nil, ErrCheckpointNotFound
	}
	ckpt := tuple.Checkpoint

	state := State(deepCopyMap(ckpt.StateValues))
	if e.normalize != nil {
		if state, err = e.normalize(state); err != nil {
			return nil, fmt.Errorf("failed to normalize restored state: %w", err)
		}
	}
	if cmd != nil {
		if cmd.Resume != nil {
			state[ResumeChannel] = cmd.Resume
		}
		if len(cmd.ResumeMap) > 0 {
			state[StateKeyResumeMap] = cmd.ResumeMap
		}
	}

	start := e.graph.EntryPoint()
	var resumePath []string
	if len(ckpt.NextNodes) > 0 {
		start = ckpt.NextNodes[0]
		resumePath = ckpt.NextNodes
	}

	steps := 0
	final, rerr := e.runGraph(ctx, e.graph, state, start, resumePath, &steps)
	return e.finish(ctx, inv, final, rerr)
}

// finish persists the terminal or interrupt checkpoint and normalizes the
// returned error.
func (e *Executor) finish(ctx context.Context, inv *Invocation, state State, err error) (State, error) {
	if err == nil {
		cleaned := state.Clone()
		ClearAllResumeValues(cleaned)
		if e.manager != nil {
			if _, cerr := e.manager.Create(ctx, inv.LineageID, cleaned, NewCheckpointMetadata(SourceLoop, 0)); cerr != nil {
				return cleaned, fmt.Errorf("failed to persist final checkpoint: %w", cerr)
			}
		}
		return cleaned, nil
	}
	if ie, ok := AsInterruptError(err); ok {
		if e.manager != nil {
			snapshot := state.Clone()
			ckpt := NewCheckpoint(snapshot)
			ckpt.NextNodes = append([]string{}, ie.Path...)
			ckpt.SetInterruptState(ie.NodeID, ie.Key, ie.Value, ie.Step, ie.Path)
			meta := NewCheckpointMetadata(SourceInterrupt, ie.Step)
			if _, cerr := e.manager.Put(ctx, inv.LineageID, ckpt, meta); cerr != nil {
				return state, fmt.Errorf("failed to persist interrupt checkpoint: %w", cerr)
			}
		}
		return state, ie
	}
	return state, err
}

// runGraph drives one graph (outer or embedded) from the start node until
// End. resumePath, when non-empty, names the node chain to restart at after
// a suspension, outermost first.
func (e *Executor) runGraph(
	ctx context.Context,
	g *Graph,
	state State,
	start string,
	resumePath []string,
	steps *int,
) (State, error) {
	current := start
	if current == "" {
		return state, ErrNoEntryPoint
	}
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}
		*steps++
		if *steps > e.maxSteps {
			return state, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, e.maxSteps)
		}
		if current == End {
			return state, nil
		}
		next, newState, err := e.executeNode(ctx, g, state, current, resumePath, steps)
		state = newState
		if err != nil {
			return state, err
		}
		// The resume path only applies to the first node re-entered.
		resumePath = nil
		current = next
	}
}

// executeNode executes a single node and returns the next node ID.
func (e *Executor) executeNode(
	ctx context.Context,
	g *Graph,
	state State,
	nodeID string,
	resumePath []string,
	steps *int,
) (string, State, error) {
	node, exists := g.Node(nodeID)
	if !exists {
		return "", state, fmt.Errorf("node %s not found", nodeID)
	}

	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("execute_node %s", nodeID))
	defer span.End()
	span.SetAttributes(
		attribute.String("inboxflow.node_id", nodeID),
		attribute.String("inboxflow.node_name", node.Name),
	)

	log.Debugf("executing node %s", nodeID)

	switch {
	case node.Subgraph != nil:
		subStart := node.Subgraph.EntryPoint()
		var subResume []string
		if len(resumePath) > 1 && resumePath[0] == nodeID {
			subStart = resumePath[1]
			subResume = resumePath[1:]
		}
		newState, err := e.runGraph(ctx, node.Subgraph, state, subStart, subResume, steps)
		state = newState
		if err != nil {
			if ie, ok := AsInterruptError(err); ok {
				ie.Path = append([]string{nodeID}, ie.Path...)
			}
			return "", state, err
		}
	case node.Function != nil:
		result, err := node.Function(ctx, state)
		if err != nil {
			if ie, ok := AsInterruptError(err); ok {
				ie.NodeID = nodeID
				ie.Step = *steps
				ie.Path = []string{nodeID}
				return "", state, ie
			}
			span.SetAttributes(attribute.String("inboxflow.error", err.Error()))
			return "", state, fmt.Errorf("node %s execution failed: %w", nodeID, err)
		}
		switch typed := result.(type) {
		case *Command:
			if typed.Update != nil {
				state = g.Schema().ApplyUpdate(state, typed.Update)
			}
			if typed.GoTo != "" {
				span.SetAttributes(attribute.String("inboxflow.next_node", typed.GoTo))
				return typed.GoTo, state, nil
			}
		case State:
			state = g.Schema().ApplyUpdate(state, typed)
		case nil:
			// No update.
		default:
			return "", state, fmt.Errorf("node %s returned invalid result type: %T", nodeID, result)
		}
	}

	next, err := e.selectNextNode(ctx, g, state, nodeID)
	if err != nil {
		return "", state, err
	}
	span.SetAttributes(attribute.String("inboxflow.next_node", next))
	return next, state, nil
}

// selectNextNode selects the next node based on edges and conditional logic.
func (e *Executor) selectNextNode(
	ctx context.Context,
	g *Graph,
	state State,
	currentNodeID string,
) (string, error) {
	// Check for conditional edges first.
	if condEdge, exists := g.ConditionalEdge(currentNodeID); exists {
		conditionResult, err := condEdge.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("conditional edge evaluation failed: %w", err)
		}
		if nextNode, exists := condEdge.PathMap[conditionResult]; exists {
			return nextNode, nil
		}
		return "", fmt.Errorf("condition result %s not found in path map", conditionResult)
	}
	// Check for regular edges.
	edges := g.Edges(currentNodeID)
	if len(edges) == 0 {
		// No outgoing edges, assume we should go to End.
		return End, nil
	}
	return edges[0].To, nil
}
