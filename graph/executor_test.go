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
	"reflect"
	"sync"
	"testing"
)

// memorySaver is a minimal in-process CheckpointSaver for executor tests.
// The real savers live in graph/checkpoint; duplicating the storage here
// keeps the package free of import cycles.
type memorySaver struct {
	mu      sync.Mutex
	records map[string][]*Checkpoint
}

func newMemorySaver() *memorySaver {
	return &memorySaver{records: make(map[string][]*Checkpoint)}
}

func (s *memorySaver) Get(ctx context.Context, config map[string]any) (*Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, config)
	if err != nil || tuple == nil {
		return nil, err
	}
	return tuple.Checkpoint, nil
}

func (s *memorySaver) GetTuple(ctx context.Context, config map[string]any) (*CheckpointTuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineage := GetLineageID(config)
	ckpts := s.records[lineage]
	if len(ckpts) == 0 {
		return nil, nil
	}
	id := GetCheckpointID(config)
	if id == "" {
		return &CheckpointTuple{Checkpoint: ckpts[len(ckpts)-1].Copy()}, nil
	}
	for _, c := range ckpts {
		if c.ID == id {
			return &CheckpointTuple{Checkpoint: c.Copy()}, nil
		}
	}
	return nil, nil
}

func (s *memorySaver) List(ctx context.Context, config map[string]any, filter *CheckpointFilter) ([]*CheckpointTuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CheckpointTuple
	for i := len(s.records[GetLineageID(config)]) - 1; i >= 0; i-- {
		out = append(out, &CheckpointTuple{Checkpoint: s.records[GetLineageID(config)][i].Copy()})
	}
	return out, nil
}

func (s *memorySaver) Put(ctx context.Context, req PutRequest) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineage := GetLineageID(req.Config)
	s.records[lineage] = append(s.records[lineage], req.Checkpoint.Copy())
	return req.Config, nil
}

func (s *memorySaver) DeleteLineage(ctx context.Context, lineageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, lineageID)
	return nil
}

func (s *memorySaver) Close() error { return nil }

func TestExecutorLinearExecution(t *testing.T) {
	schema := NewStateSchema().
		AddField("trace", StateField{Reducer: StringSliceReducer})

	step := func(name string) NodeFunc {
		return func(ctx context.Context, state State) (any, error) {
			return State{"trace": []string{name}}, nil
		}
	}

	g, err := NewStateGraph(schema).
		AddNode("a", step("a")).
		AddNode("b", step("b")).
		AddEdge("a", "b").
		SetEntryPoint("a").
		SetFinishPoint("b").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	exec, err := NewExecutor(g)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	final, err := exec.Execute(context.Background(), State{}, NewInvocation("lin"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !reflect.DeepEqual(final["trace"], []string{"a", "b"}) {
		t.Errorf("Expected trace [a b], got %v", final["trace"])
	}
}

func TestExecutorConditionalRouting(t *testing.T) {
	schema := NewStateSchema()
	g, err := NewStateGraph(schema).
		AddNode("decide", func(ctx context.Context, state State) (any, error) {
			return State{"choice": "right"}, nil
		}).
		AddNode("left", func(ctx context.Context, state State) (any, error) {
			return State{"taken": "left"}, nil
		}).
		AddNode("right", func(ctx context.Context, state State) (any, error) {
			return State{"taken": "right"}, nil
		}).
		AddConditionalEdges("decide", func(ctx context.Context, state State) (string, error) {
			choice, _ := state["choice"].(string)
			return choice, nil
		}, map[string]string{"left": "left", "right": "right"}).
		SetEntryPoint("decide").
		SetFinishPoint("left").
		SetFinishPoint("right").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	exec, _ := NewExecutor(g)
	final, err := exec.Execute(context.Background(), State{}, NewInvocation("cond"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if final["taken"] != "right" {
		t.Errorf("Expected right branch, got %v", final["taken"])
	}
}

func TestExecutorCommandRouting(t *testing.T) {
	g, err := NewStateGraph(NewStateSchema()).
		AddNode("start", func(ctx context.Context, state State) (any, error) {
			return &Command{Update: State{"jumped": true}, GoTo: "target"}, nil
		}).
		AddNode("skipped", func(ctx context.Context, state State) (any, error) {
			return State{"skipped": true}, nil
		}).
		AddNode("target", func(ctx context.Context, state State) (any, error) {
			return nil, nil
		}).
		AddEdge("start", "skipped").
		SetEntryPoint("start").
		SetFinishPoint("target").
		SetFinishPoint("skipped").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	exec, _ := NewExecutor(g)
	final, err := exec.Execute(context.Background(), State{}, NewInvocation("cmd"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if final["jumped"] != true {
		t.Error("Expected command update applied")
	}
	if _, ok := final["skipped"]; ok {
		t.Error("Expected skipped node not to run")
	}
}

func TestExecutorMaxSteps(t *testing.T) {
	g, err := NewStateGraph(NewStateSchema()).
		AddNode("loop", func(ctx context.Context, state State) (any, error) {
			return &Command{GoTo: "loop"}, nil
		}).
		SetEntryPoint("loop").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	exec, _ := NewExecutor(g, WithMaxSteps(5))
	_, err = exec.Execute(context.Background(), State{}, NewInvocation("loopy"))
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Errorf("Expected ErrMaxStepsExceeded, got %v", err)
	}
}

func TestExecutorInterruptAndResume(t *testing.T) {
	var producerRuns int
	g, err := NewStateGraph(NewStateSchema()).
		AddNode("produce", func(ctx context.Context, state State) (any, error) {
			producerRuns++
			return State{"draft": "v1"}, nil
		}).
		AddNode("approve", func(ctx context.Context, state State) (any, error) {
			value, err := Interrupt(ctx, state, "approve", "please review")
			if err != nil {
				return nil, err
			}
			return State{"verdict": value}, nil
		}).
		AddEdge("produce", "approve").
		SetEntryPoint("produce").
		SetFinishPoint("approve").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	saver := newMemorySaver()
	exec, err := NewExecutor(g, WithCheckpointSaver(saver))
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	state, err := exec.Execute(context.Background(), State{}, NewInvocation("hitl"))
	ie, ok := AsInterruptError(err)
	if !ok {
		t.Fatalf("Expected interrupt error, got %v", err)
	}
	if ie.Value != "please review" {
		t.Errorf("Expected interrupt prompt, got %v", ie.Value)
	}
	if ie.NodeID != "approve" {
		t.Errorf("Expected interrupt at approve, got %s", ie.NodeID)
	}
	if state["draft"] != "v1" {
		t.Errorf("Expected partial state at suspension, got %v", state["draft"])
	}

	final, err := exec.Resume(context.Background(), NewInvocation("hitl"),
		NewResumeCommand().WithResume("accept"))
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if final["verdict"] != "accept" {
		t.Errorf("Expected resume value consumed, got %v", final["verdict"])
	}
	// The producing node must not re-execute on resume.
	if producerRuns != 1 {
		t.Errorf("Expected producer to run once, ran %d times", producerRuns)
	}
}

func TestExecutorSubgraphInterruptResume(t *testing.T) {
	schema := NewStateSchema().
		AddField("trace", StateField{Reducer: StringSliceReducer})

	sub, err := NewStateGraph(schema).
		AddNode("inner_work", func(ctx context.Context, state State) (any, error) {
			return State{"trace": []string{"inner_work"}}, nil
		}).
		AddNode("inner_gate", func(ctx context.Context, state State) (any, error) {
			value, err := Interrupt(ctx, state, "gate", "confirm?")
			if err != nil {
				return nil, err
			}
			return State{"trace": []string{"gate:" + value.(string)}}, nil
		}).
		AddEdge("inner_work", "inner_gate").
		SetEntryPoint("inner_work").
		SetFinishPoint("inner_gate").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile subgraph: %v", err)
	}

	g, err := NewStateGraph(schema).
		AddNode("before", func(ctx context.Context, state State) (any, error) {
			return State{"trace": []string{"before"}}, nil
		}).
		AddSubgraph("nested", sub).
		AddNode("after", func(ctx context.Context, state State) (any, error) {
			return State{"trace": []string{"after"}}, nil
		}).
		AddEdge("before", "nested").
		AddEdge("nested", "after").
		SetEntryPoint("before").
		SetFinishPoint("after").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	saver := newMemorySaver()
	exec, _ := NewExecutor(g, WithCheckpointSaver(saver))

	_, err = exec.Execute(context.Background(), State{}, NewInvocation("nested"))
	ie, ok := AsInterruptError(err)
	if !ok {
		t.Fatalf("Expected interrupt error, got %v", err)
	}
	if !reflect.DeepEqual(ie.Path, []string{"nested", "inner_gate"}) {
		t.Errorf("Expected path [nested inner_gate], got %v", ie.Path)
	}

	final, err := exec.Resume(context.Background(), NewInvocation("nested"),
		NewResumeCommand().WithResume("yes"))
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	want := []string{"before", "inner_work", "gate:yes", "after"}
	if !reflect.DeepEqual(final["trace"], want) {
		t.Errorf("Expected trace %v, got %v", want, final["trace"])
	}
}

func TestResumeWithoutSaver(t *testing.T) {
	g, err := NewStateGraph(NewStateSchema()).
		AddNode("noop", func(ctx context.Context, state State) (any, error) {
			return nil, nil
		}).
		SetEntryPoint("noop").
		SetFinishPoint("noop").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	exec, _ := NewExecutor(g)
	if _, err := exec.Resume(context.Background(), NewInvocation("x"), nil); !errors.Is(err, ErrNoCheckpointSaver) {
		t.Errorf("Expected ErrNoCheckpointSaver, got %v", err)
	}
}
