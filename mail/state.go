//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package mail

import (
	"github.com/inboxflow/inboxflow/graph"
)

// Conversation state keys.
const (
	KeyConversationID   = "conversation_id"
	KeyRequest          = "request"
	KeyExtractedContext = "extracted_context"
	KeyTaskData         = "task_data"
	KeyDraftOutput      = "draft_output"
	KeyRoutingPlan      = "routing_plan"
	KeyPendingFeedback  = "pending_feedback"
	KeyStatus           = "status"
	KeyErrors           = "errors"
	KeyEpoch            = "epoch"
	KeyInsights         = "insights"
	// KeyNextStage carries the supervisor's decision to the conditional edge.
	KeyNextStage = "next_stage"
)

// setOnceReducer keeps the existing value once set. Used for the request and
// the extracted context, which are immutable after first write.
func setOnceReducer(existing, update any) any {
	if existing != nil {
		return existing
	}
	return update
}

// stageErrorsReducer concatenates []StageError values.
func stageErrorsReducer(existing, update any) any {
	if existing == nil {
		existing = []StageError{}
	}
	existingSlice, ok1 := existing.([]StageError)
	updateSlice, ok2 := update.([]StageError)
	if !ok1 || !ok2 {
		return update
	}
	merged := make([]StageError, 0, len(existingSlice)+len(updateSlice))
	merged = append(merged, existingSlice...)
	return append(merged, updateSlice...)
}

// StateSchema declares the conversation state fields and their merge
// behavior. Every reducer is associative per field, so two independent
// partial updates combine to the same state regardless of application order.
func StateSchema() *graph.StateSchema {
	return graph.NewStateSchema().
		AddField(KeyConversationID, graph.StateField{Reducer: setOnceReducer}).
		AddField(KeyRequest, graph.StateField{Reducer: setOnceReducer}).
		AddField(KeyExtractedContext, graph.StateField{Reducer: setOnceReducer}).
		AddField(KeyTaskData, graph.StateField{
			Reducer: graph.MergeReducer,
			Default: func() any { return map[string]any{} },
		}).
		AddField(KeyDraftOutput, graph.StateField{Reducer: graph.DefaultReducer}).
		AddField(KeyRoutingPlan, graph.StateField{Reducer: graph.DefaultReducer}).
		AddField(KeyPendingFeedback, graph.StateField{Reducer: graph.DefaultReducer}).
		AddField(KeyStatus, graph.StateField{Reducer: graph.DefaultReducer}).
		AddField(KeyErrors, graph.StateField{
			Reducer: stageErrorsReducer,
			Default: func() any { return []StageError{} },
		}).
		AddField(KeyEpoch, graph.StateField{
			Reducer: graph.MaxIntReducer,
			Default: func() any { return 0 },
		}).
		AddField(KeyInsights, graph.StateField{Reducer: graph.DedupAppendReducer}).
		AddField(KeyNextStage, graph.StateField{Reducer: graph.DefaultReducer})
}

// NewState creates the initial conversation state for a request.
func NewState(conversationID string, email Email) graph.State {
	return graph.State{
		KeyConversationID: conversationID,
		KeyRequest:        email,
		KeyTaskData:       map[string]any{},
		KeyStatus:         StatusProcessing,
		KeyErrors:         []StageError{},
		KeyEpoch:          0,
	}
}

// Typed accessors. Each returns the zero value when the key is absent or of
// an unexpected type; stages treat that as "not yet produced".

// ConversationID returns the conversation identifier.
func ConversationID(state graph.State) string {
	id, _ := state[KeyConversationID].(string)
	return id
}

// Request returns the inbound email.
func Request(state graph.State) (Email, bool) {
	e, ok := state[KeyRequest].(Email)
	return e, ok
}

// Context returns the extracted context.
func Context(state graph.State) (ExtractedContext, bool) {
	c, ok := state[KeyExtractedContext].(ExtractedContext)
	return c, ok
}

// TaskData returns the stage-kind → bundle map.
func TaskData(state graph.State) map[string]any {
	td, _ := state[KeyTaskData].(map[string]any)
	return td
}

// Scheduling returns the scheduling bundle.
func Scheduling(state graph.State) (SchedulingData, bool) {
	d, ok := TaskData(state)[StageSchedule].(SchedulingData)
	return d, ok
}

// Knowledge returns the knowledge bundle.
func Knowledge(state graph.State) (KnowledgeData, bool) {
	d, ok := TaskData(state)[StageKnowledge].(KnowledgeData)
	return d, ok
}

// Contacts returns the contact bundle.
func Contacts(state graph.State) (ContactData, bool) {
	d, ok := TaskData(state)[StageContact].(ContactData)
	return d, ok
}

// StageCompleted reports the authoritative completion marker for a stage.
func StageCompleted(state graph.State, stage string) bool {
	switch stage {
	case StageSchedule:
		d, ok := Scheduling(state)
		return ok && d.Completed
	case StageKnowledge:
		d, ok := Knowledge(state)
		return ok && d.Completed
	case StageContact:
		d, ok := Contacts(state)
		return ok && d.Completed
	}
	return false
}

// ClearCompletion builds a task_data update that resets a stage's
// authoritative marker. Only classified feedback targeting the stage's
// domain may call this.
func ClearCompletion(stage string) map[string]any {
	switch stage {
	case StageSchedule:
		return map[string]any{StageSchedule: SchedulingData{}}
	case StageKnowledge:
		return map[string]any{StageKnowledge: KnowledgeData{}}
	case StageContact:
		return map[string]any{StageContact: ContactData{}}
	}
	return map[string]any{}
}

// Draft returns the composed response text.
func Draft(state graph.State) string {
	d, _ := state[KeyDraftOutput].(string)
	return d
}

// Plan returns the routing plan.
func Plan(state graph.State) (RoutingPlan, bool) {
	p, ok := state[KeyRoutingPlan].(RoutingPlan)
	return p, ok
}

// PendingFeedback returns the unprocessed human feedback text.
func PendingFeedback(state graph.State) string {
	f, _ := state[KeyPendingFeedback].(string)
	return f
}

// CurrentStatus returns the conversation status.
func CurrentStatus(state graph.State) Status {
	s, ok := state[KeyStatus].(Status)
	if !ok {
		if raw, isString := state[KeyStatus].(string); isString {
			return Status(raw)
		}
	}
	return s
}

// Epoch returns the routing epoch counter.
func Epoch(state graph.State) int {
	e, _ := state[KeyEpoch].(int)
	return e
}

// Errors returns the recorded stage errors.
func Errors(state graph.State) []StageError {
	errs, _ := state[KeyErrors].([]StageError)
	return errs
}
