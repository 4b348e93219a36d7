//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package mail defines the conversation data model: the inbound email, the
// facts extracted from it, the per-stage task bundles and the state schema
// that governs how stage updates merge.
package mail

import (
	"strings"
	"time"
)

// Email is the inbound request. Immutable once placed into state.
type Email struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// ReplySubject returns the subject for a reply, prefixing "Re:" unless the
// thread already carries one.
func (e Email) ReplySubject() string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(e.Subject)), "re:") {
		return e.Subject
	}
	return "Re: " + e.Subject
}

// ExtractedContext holds structured facts derived from the request. Set once
// by the parser stage, read-only afterward.
type ExtractedContext struct {
	Entities         []string `json:"entities,omitempty"`
	Dates            []string `json:"dates,omitempty"`
	RequestedActions []string `json:"requested_actions,omitempty"`
	Urgency          string   `json:"urgency,omitempty"`
	Summary          string   `json:"summary,omitempty"`
}

// Contact is a resolved directory entry.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title,omitempty"`
}

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SchedulingData is the scheduling stage's task bundle. Completed is the
// authoritative success marker; routing bookkeeping never clears it, only a
// classified feedback instruction targeting the scheduling domain does.
type SchedulingData struct {
	Completed bool `json:"completed"`
	// Booked is true once a calendar event was created.
	Booked      bool   `json:"booked,omitempty"`
	Rejected    bool   `json:"rejected,omitempty"`
	EventID     string `json:"event_id,omitempty"`
	MeetingLink string `json:"meeting_link,omitempty"`
	// Requested is the interval the sender asked for.
	Requested *TimeWindow `json:"requested,omitempty"`
	// ConflictWindows lists the occupied intervals that overlap the request.
	// Only the windows are recorded; the conflicting events' subjects are
	// never surfaced to the requester.
	ConflictWindows []TimeWindow `json:"conflict_windows,omitempty"`
	// Alternatives are suggested replacement start times, business hours only.
	Alternatives []time.Time `json:"alternatives,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

// DeepCopy returns a copy with an independent Requested window and
// independent ConflictWindows and Alternatives slices.
func (d SchedulingData) DeepCopy() any {
	cp := d
	if d.Requested != nil {
		w := *d.Requested
		cp.Requested = &w
	}
	cp.ConflictWindows = append([]TimeWindow(nil), d.ConflictWindows...)
	cp.Alternatives = append([]time.Time(nil), d.Alternatives...)
	return cp
}

// KnowledgeData is the knowledge-lookup stage's task bundle.
type KnowledgeData struct {
	Completed bool     `json:"completed"`
	Findings  []string `json:"findings,omitempty"`
}

// ContactData is the contact-lookup stage's task bundle.
type ContactData struct {
	Completed bool      `json:"completed"`
	Found     []Contact `json:"found,omitempty"`
	Unknown   []string  `json:"unknown,omitempty"`
}

// RoutingPlan is the supervisor's per-epoch plan. Its Completed set is
// routing bookkeeping, rebuilt each epoch, distinct from the authoritative
// markers in the task bundles.
type RoutingPlan struct {
	Epoch      int               `json:"epoch"`
	Stages     []string          `json:"stages"`
	Tasks      map[string]string `json:"tasks,omitempty"`
	Completed  map[string]bool   `json:"completed,omitempty"`
	Rationale  string            `json:"rationale,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// DeepCopy returns a copy with independent Stages, Tasks and Completed.
// Checkpoint snapshots rely on it: MarkCompleted keeps mutating the live
// plan's Completed map after the snapshot is taken.
func (p RoutingPlan) DeepCopy() any {
	cp := p
	cp.Stages = append([]string(nil), p.Stages...)
	if p.Tasks != nil {
		cp.Tasks = make(map[string]string, len(p.Tasks))
		for k, v := range p.Tasks {
			cp.Tasks[k] = v
		}
	}
	if p.Completed != nil {
		cp.Completed = make(map[string]bool, len(p.Completed))
		for k, v := range p.Completed {
			cp.Completed[k] = v
		}
	}
	return cp
}

// MarkCompleted records routing bookkeeping for a stage.
func (p *RoutingPlan) MarkCompleted(stage string) {
	if p.Completed == nil {
		p.Completed = make(map[string]bool)
	}
	p.Completed[stage] = true
}

// AllDone reports whether every planned stage completed.
func (p *RoutingPlan) AllDone() bool {
	for _, s := range p.Stages {
		if !p.Completed[s] {
			return false
		}
	}
	return true
}

// Status is the conversation lifecycle state.
type Status string

// Status values. Transitions are monotone within an epoch; feedback resets
// to StatusProcessing within a new epoch.
const (
	StatusProcessing     Status = "processing"
	StatusAwaitingReview Status = "awaiting_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCompleted      Status = "completed"
	StatusError          Status = "error"
)

// Terminal reports whether the status ends the conversation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// StageError is one recorded (stage, message) failure.
type StageError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Stage kind identifiers. Stage identity is a tagged name, not a type check.
const (
	StageParse     = "parse"
	StageSchedule  = "schedule"
	StageKnowledge = "knowledge"
	StageContact   = "contact"
	StageCompose   = "compose"
	StageSend      = "send"
)

// KnownStage reports whether name is a routable stage.
func KnownStage(name string) bool {
	switch name {
	case StageSchedule, StageKnowledge, StageContact, StageCompose:
		return true
	}
	return false
}
