//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package mail

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxflow/inboxflow/graph"
)

func TestRequestIsSetOnce(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1", Subject: "first"})

	updated := schema.ApplyUpdate(state, graph.State{
		KeyRequest: Email{ID: "c1", Subject: "second"},
	})

	email, ok := Request(updated)
	require.True(t, ok)
	assert.Equal(t, "first", email.Subject)
}

func TestErrorsAppend(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1"})

	state = schema.ApplyUpdate(state, graph.State{
		KeyErrors: []StageError{{Stage: StageParse, Message: "boom"}},
	})
	state = schema.ApplyUpdate(state, graph.State{
		KeyErrors: []StageError{{Stage: StageSend, Message: "bang"}},
	})

	errs := Errors(state)
	require.Len(t, errs, 2)
	assert.Equal(t, StageParse, errs[0].Stage)
	assert.Equal(t, StageSend, errs[1].Stage)
}

func TestEpochNeverMovesBackwards(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1"})

	state = schema.ApplyUpdate(state, graph.State{KeyEpoch: 2})
	state = schema.ApplyUpdate(state, graph.State{KeyEpoch: 1})

	assert.Equal(t, 2, Epoch(state))
}

func TestTaskDataMergesPerStage(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1"})

	state = schema.ApplyUpdate(state, graph.State{
		KeyTaskData: map[string]any{StageKnowledge: KnowledgeData{Completed: true}},
	})
	state = schema.ApplyUpdate(state, graph.State{
		KeyTaskData: map[string]any{StageContact: ContactData{Completed: true}},
	})

	assert.True(t, StageCompleted(state, StageKnowledge))
	assert.True(t, StageCompleted(state, StageContact))
	assert.False(t, StageCompleted(state, StageSchedule))
}

func TestClearCompletionTargetsOneStage(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1"})
	state = schema.ApplyUpdate(state, graph.State{
		KeyTaskData: map[string]any{
			StageSchedule:  SchedulingData{Completed: true, Booked: true},
			StageKnowledge: KnowledgeData{Completed: true},
		},
	})

	state = schema.ApplyUpdate(state, graph.State{
		KeyTaskData: ClearCompletion(StageSchedule),
	})

	assert.False(t, StageCompleted(state, StageSchedule))
	assert.True(t, StageCompleted(state, StageKnowledge))
}

// TestPlanSnapshotSurvivesLiveMutation pins checkpoint isolation: routing
// bookkeeping recorded after a snapshot must not bleed into the snapshot.
func TestPlanSnapshotSurvivesLiveMutation(t *testing.T) {
	state := NewState("c1", Email{ID: "c1"})
	state[KeyRoutingPlan] = RoutingPlan{
		Epoch:     0,
		Stages:    []string{StageKnowledge, StageCompose},
		Completed: map[string]bool{},
	}

	ckpt := graph.NewCheckpoint(state)

	livePlan := state[KeyRoutingPlan].(RoutingPlan)
	livePlan.MarkCompleted(StageKnowledge)
	state[KeyRoutingPlan] = livePlan

	snapPlan, ok := ckpt.StateValues[KeyRoutingPlan].(RoutingPlan)
	require.True(t, ok)
	assert.Empty(t, snapPlan.Completed, "snapshot must not see bookkeeping recorded after it was taken")
	assert.True(t, livePlan.Completed[StageKnowledge])
}

func TestSchedulingSnapshotHasOwnWindows(t *testing.T) {
	now := time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC)
	data := SchedulingData{
		Completed:       true,
		Requested:       &TimeWindow{Start: now, End: now.Add(time.Hour)},
		ConflictWindows: []TimeWindow{{Start: now, End: now.Add(time.Hour)}},
	}
	state := NewState("c1", Email{ID: "c1"})
	state[KeyTaskData] = map[string]any{StageSchedule: data}

	ckpt := graph.NewCheckpoint(state)

	data.Requested.Start = now.Add(24 * time.Hour)
	data.ConflictWindows[0].End = now.Add(48 * time.Hour)

	snap, ok := ckpt.StateValues[KeyTaskData].(map[string]any)[StageSchedule].(SchedulingData)
	require.True(t, ok)
	assert.True(t, snap.Requested.Start.Equal(now))
	assert.True(t, snap.ConflictWindows[0].End.Equal(now.Add(time.Hour)))
}

func TestInsightsDeduplicate(t *testing.T) {
	schema := StateSchema()
	state := NewState("c1", Email{ID: "c1"})

	state = schema.ApplyUpdate(state, graph.State{KeyInsights: []string{"a", "b"}})
	state = schema.ApplyUpdate(state, graph.State{KeyInsights: []string{"b", "c"}})

	assert.Equal(t, []string{"a", "b", "c"}, state[KeyInsights])
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Hello", Email{Subject: "Hello"}.ReplySubject())
	assert.Equal(t, "Re: Hello", Email{Subject: "Re: Hello"}.ReplySubject())
	assert.Equal(t, "RE: Hello", Email{Subject: "RE: Hello"}.ReplySubject())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusAwaitingReview.Terminal())
}

// TestNormalizeRoundTrip simulates a durable checkpoint: the state is
// marshalled to JSON and back into generic maps, then Normalize must restore
// every typed value exactly.
func TestNormalizeRoundTrip(t *testing.T) {
	now := time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC)
	original := graph.State{
		KeyConversationID: "c1",
		KeyRequest:        Email{ID: "c1", From: "a@example.com", Subject: "Hi", ReceivedAt: now},
		KeyExtractedContext: ExtractedContext{
			Entities: []string{"Dana Miller"},
			Dates:    []string{"2026-09-14T13:00"},
		},
		KeyTaskData: map[string]any{
			StageSchedule: SchedulingData{
				Completed: true,
				Requested: &TimeWindow{Start: now, End: now.Add(time.Hour)},
			},
			StageKnowledge: KnowledgeData{Completed: true, Findings: []string{"doc"}},
			StageContact:   ContactData{Completed: true, Unknown: []string{"Bob"}},
		},
		KeyRoutingPlan: RoutingPlan{
			Epoch:     1,
			Stages:    []string{StageSchedule, StageCompose},
			Completed: map[string]bool{StageSchedule: true},
		},
		KeyStatus:   StatusAwaitingReview,
		KeyErrors:   []StageError{{Stage: StageParse, Message: "oops"}},
		KeyEpoch:    1,
		KeyInsights: []string{"doc"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	var restored graph.State
	require.NoError(t, json.Unmarshal(data, &restored))

	normalized, err := Normalize(restored)
	require.NoError(t, err)

	email, ok := Request(normalized)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", email.From)

	ectx, ok := Context(normalized)
	require.True(t, ok)
	assert.Equal(t, []string{"Dana Miller"}, ectx.Entities)

	sched, ok := Scheduling(normalized)
	require.True(t, ok)
	assert.True(t, sched.Completed)
	require.NotNil(t, sched.Requested)
	assert.True(t, sched.Requested.Start.Equal(now))

	plan, ok := Plan(normalized)
	require.True(t, ok)
	assert.Equal(t, 1, plan.Epoch)
	assert.True(t, plan.Completed[StageSchedule])

	assert.Equal(t, StatusAwaitingReview, CurrentStatus(normalized))
	assert.Equal(t, 1, Epoch(normalized))
	require.Len(t, Errors(normalized), 1)
	assert.Equal(t, []string{"doc"}, normalized[KeyInsights])
}

func TestParseHumanResponse(t *testing.T) {
	resp, err := ParseHumanResponse(HumanResponse{Type: ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, ResponseAccept, resp.Type)

	resp, err = ParseHumanResponse(map[string]any{"type": "response", "args": "later please"})
	require.NoError(t, err)
	assert.Equal(t, ResponseRespond, resp.Type)
	assert.Equal(t, "later please", resp.FeedbackText())

	_, err = ParseHumanResponse(map[string]any{"args": "no type"})
	assert.Error(t, err)

	_, err = ParseHumanResponse(42)
	assert.Error(t, err)
}

func TestActionRequestAllows(t *testing.T) {
	req := ActionRequest{AllowAccept: true, AllowRespond: true}
	assert.True(t, req.Allows(ResponseAccept))
	assert.True(t, req.Allows(ResponseRespond))
	assert.False(t, req.Allows(ResponseIgnore))
	assert.False(t, req.Allows(ResponseEdit))
}
