//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package classify

import (
	"context"
	"strings"

	"github.com/inboxflow/inboxflow/mail"
)

// RuleClassifier is a deterministic keyword-based Classifier. It backs tests
// and the runnable example, and serves as the offline fallback when no LLM
// endpoint is configured.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// PlanStages derives the stage list from the extracted context: scheduling
// when dates or meeting language are present, contact lookup when entities
// are named, knowledge lookup for questions. Compose always closes the plan.
func (c *RuleClassifier) PlanStages(ctx context.Context, email mail.Email, ectx mail.ExtractedContext) (*Plan, error) {
	body := strings.ToLower(email.Subject + " " + email.Body)
	plan := &Plan{
		Tasks:      map[string]string{},
		Confidence: 0.6,
	}
	if len(ectx.Dates) > 0 || containsAny(body, "meeting", "schedule", "call", "appointment") {
		plan.Stages = append(plan.Stages, mail.StageSchedule)
		plan.Tasks[mail.StageSchedule] = "check availability and book the requested meeting"
	}
	if len(ectx.Entities) > 0 {
		plan.Stages = append(plan.Stages, mail.StageContact)
		plan.Tasks[mail.StageContact] = "resolve the people mentioned in the request"
	}
	if containsAny(body, "?", "how ", "what ", "where ", "when ", "details", "information") {
		plan.Stages = append(plan.Stages, mail.StageKnowledge)
		plan.Tasks[mail.StageKnowledge] = "look up documents answering the request"
	}
	plan.Stages = append(plan.Stages, mail.StageCompose)
	plan.Tasks[mail.StageCompose] = "draft the reply"
	plan.Rationale = "keyword plan over subject and body"
	return plan, nil
}

// ClassifyFeedback maps feedback text to a domain by keyword.
func (c *RuleClassifier) ClassifyFeedback(ctx context.Context, feedback, draft string) (*FeedbackDecision, error) {
	text := strings.ToLower(feedback)
	decision := &FeedbackDecision{Confidence: 0.6, Rationale: "keyword match"}
	switch {
	case containsAny(text, "time", "reschedule", "meeting", "earlier", "later", "slot", "calendar"):
		decision.Domain = FeedbackScheduling
	case containsAny(text, "contact", "person", "email address", "phone", "who "):
		decision.Domain = FeedbackContact
	case containsAny(text, "detail", "information", "document", "source", "wrong about"):
		decision.Domain = FeedbackInformation
	default:
		decision.Domain = FeedbackResponseOnly
	}
	return decision, nil
}

// RouteBooking routes to review when the transcript reports a clear slot,
// to exit otherwise. Busy entries elsewhere in the day do not block review;
// only the verdict on the requested slot counts.
func (c *RuleClassifier) RouteBooking(ctx context.Context, transcript, requirements string) (*BookingRoute, error) {
	text := strings.ToLower(transcript)
	if containsAny(text, "no conflicts detected", "calendar is free") {
		return &BookingRoute{Route: BookingRouteReview, Confidence: 0.8}, nil
	}
	return &BookingRoute{Route: BookingRouteExit, Confidence: 0.8}, nil
}

func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
