//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package classify defines the classification boundary the engine calls for
// stage routing, feedback routing and booking routing, plus the schema
// validation and deterministic fallbacks applied to every response.
//
// Classification is advisory. Malformed output never stalls the workflow:
// each caller falls back to its documented safe default.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/inboxflow/inboxflow/mail"
)

// ErrMalformed marks a classification response that failed schema validation.
var ErrMalformed = errors.New("malformed classification response")

// Plan is the stage classifier's proposed ordered stage list.
type Plan struct {
	Stages     []string          `json:"stages"`
	Tasks      map[string]string `json:"tasks,omitempty"`
	Rationale  string            `json:"rationale,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// FeedbackDomain names the stage domain a piece of human feedback targets.
type FeedbackDomain string

// Feedback domains.
const (
	FeedbackScheduling   FeedbackDomain = "scheduling"
	FeedbackContact      FeedbackDomain = "contact"
	FeedbackInformation  FeedbackDomain = "information"
	FeedbackResponseOnly FeedbackDomain = "response-only"
)

// Stage maps the feedback domain to the stage whose authoritative marker it
// may clear. Response-only feedback clears nothing.
func (d FeedbackDomain) Stage() string {
	switch d {
	case FeedbackScheduling:
		return mail.StageSchedule
	case FeedbackContact:
		return mail.StageContact
	case FeedbackInformation:
		return mail.StageKnowledge
	}
	return ""
}

// FeedbackDecision is the classified intent of free-form human feedback.
type FeedbackDecision struct {
	Domain     FeedbackDomain `json:"domain"`
	Rationale  string         `json:"rationale,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// BookingRoute decides the next booking sub-workflow state from the raw
// availability-check transcript.
type BookingRoute struct {
	// Route is "review" or "exit".
	Route             string   `json:"route"`
	Confidence        float64  `json:"confidence,omitempty"`
	DetectedConflicts []string `json:"detected_conflicts,omitempty"`
}

// Booking route values.
const (
	BookingRouteReview = "review"
	BookingRouteExit   = "exit"
)

// Classifier is the external classification service.
type Classifier interface {
	// PlanStages proposes an ordered stage list for the request.
	PlanStages(ctx context.Context, email mail.Email, ectx mail.ExtractedContext) (*Plan, error)
	// ClassifyFeedback maps free-form feedback to a stage domain.
	ClassifyFeedback(ctx context.Context, feedback string, draft string) (*FeedbackDecision, error)
	// RouteBooking routes between booking review and exit from the
	// availability transcript and the meeting requirements.
	RouteBooking(ctx context.Context, transcript, requirements string) (*BookingRoute, error)
}

// ValidatePlan checks a proposed plan against the known stage set.
func ValidatePlan(p *Plan) error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrMalformed)
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: empty stage list", ErrMalformed)
	}
	seen := make(map[string]bool, len(p.Stages))
	for _, s := range p.Stages {
		if !mail.KnownStage(s) {
			return fmt.Errorf("%w: unknown stage %q", ErrMalformed, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate stage %q", ErrMalformed, s)
		}
		seen[s] = true
	}
	return nil
}

// ValidateFeedback checks a feedback decision against the known domains.
func ValidateFeedback(d *FeedbackDecision) error {
	if d == nil {
		return fmt.Errorf("%w: nil decision", ErrMalformed)
	}
	switch d.Domain {
	case FeedbackScheduling, FeedbackContact, FeedbackInformation, FeedbackResponseOnly:
		return nil
	}
	return fmt.Errorf("%w: unknown feedback domain %q", ErrMalformed, d.Domain)
}

// ValidateBookingRoute checks a booking route decision.
func ValidateBookingRoute(r *BookingRoute) error {
	if r == nil {
		return fmt.Errorf("%w: nil route", ErrMalformed)
	}
	if r.Route != BookingRouteReview && r.Route != BookingRouteExit {
		return fmt.Errorf("%w: unknown booking route %q", ErrMalformed, r.Route)
	}
	return nil
}

// FallbackPlan is the deterministic plan used when stage classification
// fails: compose a response directly, never stall.
func FallbackPlan() *Plan {
	return &Plan{
		Stages:    []string{mail.StageCompose},
		Rationale: "classification unavailable, composing directly",
	}
}

// FallbackFeedback is the deterministic feedback decision used when
// classification fails: treat the feedback as response-only so no
// authoritative marker is cleared.
func FallbackFeedback() *FeedbackDecision {
	return &FeedbackDecision{
		Domain:    FeedbackResponseOnly,
		Rationale: "classification unavailable, rewording response only",
	}
}

// FallbackBookingRoute is the deterministic booking route used when
// classification fails: exit without booking.
func FallbackBookingRoute() *BookingRoute {
	return &BookingRoute{
		Route: BookingRouteExit,
	}
}
