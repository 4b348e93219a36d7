//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package openai provides a Classifier backed by an OpenAI-compatible chat
// completion API, using native structured outputs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/inboxflow/inboxflow/classify"
	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/mail"
)

const defaultModel = "gpt-4o-mini"

// Classifier calls a chat completion endpoint for stage, feedback and
// booking routing. Responses are schema-constrained and validated; callers
// apply their deterministic fallbacks when an error is returned.
type Classifier struct {
	client openai.Client
	model  string
}

// Option configures the Classifier.
type Option func(*options)

type options struct {
	apiKey  string
	baseURL string
	model   string
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// New creates an LLM-backed classifier.
func New(opts ...Option) *Classifier {
	o := &options{model: defaultModel}
	for _, opt := range opts {
		opt(o)
	}
	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	return &Classifier{
		client: openai.NewClient(clientOpts...),
		model:  o.model,
	}
}

// PlanStages implements classify.Classifier.
func (c *Classifier) PlanStages(ctx context.Context, email mail.Email, ectx mail.ExtractedContext) (*classify.Plan, error) {
	ectxJSON, _ := json.Marshal(ectx)
	user := fmt.Sprintf(
		"Subject: %s\nFrom: %s\nBody:\n%s\n\nExtracted context: %s",
		email.Subject, email.From, email.Body, ectxJSON)

	var plan classify.Plan
	if err := c.complete(ctx, planSystemPrompt, user, "stage_plan", planSchema, &plan); err != nil {
		return nil, err
	}
	if err := classify.ValidatePlan(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ClassifyFeedback implements classify.Classifier.
func (c *Classifier) ClassifyFeedback(ctx context.Context, feedback, draft string) (*classify.FeedbackDecision, error) {
	user := fmt.Sprintf("Reviewer feedback:\n%s\n\nDraft under review:\n%s", feedback, draft)

	var decision classify.FeedbackDecision
	if err := c.complete(ctx, feedbackSystemPrompt, user, "feedback_decision", feedbackSchema, &decision); err != nil {
		return nil, err
	}
	if err := classify.ValidateFeedback(&decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// RouteBooking implements classify.Classifier.
func (c *Classifier) RouteBooking(ctx context.Context, transcript, requirements string) (*classify.BookingRoute, error) {
	user := fmt.Sprintf("Availability check transcript:\n%s\n\nMeeting requirements:\n%s", transcript, requirements)

	var route classify.BookingRoute
	if err := c.complete(ctx, bookingSystemPrompt, user, "booking_route", bookingSchema, &route); err != nil {
		return nil, err
	}
	if err := classify.ValidateBookingRoute(&route); err != nil {
		return nil, err
	}
	return &route, nil
}

func (c *Classifier) complete(
	ctx context.Context,
	system, user, schemaName string,
	schema map[string]any,
	out any,
) error {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("classification returned no choices")
	}
	content := resp.Choices[0].Message.Content
	log.Debugf("classification %s response: %s", schemaName, content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", classify.ErrMalformed, err)
	}
	return nil
}

const planSystemPrompt = `You plan which processing stages an inbound email needs.
Available stages: schedule (calendar work), contact (directory lookup),
knowledge (document lookup), compose (draft the reply). The plan must end
with compose and contain no duplicates. Return JSON only.`

const feedbackSystemPrompt = `You classify reviewer feedback on a drafted email reply into the single
domain it targets: scheduling, contact, information, or response-only when
only the wording should change. Return JSON only.`

const bookingSystemPrompt = `You read an availability-check transcript and decide whether the meeting can
go to human review for booking ("review") or must exit without booking
("exit", e.g. because of conflicts). Return JSON only.`

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"stages": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "enum": []string{"schedule", "contact", "knowledge", "compose"}},
		},
		"tasks":      map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		"rationale":  map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
	},
	"required":             []string{"stages"},
	"additionalProperties": false,
}

var feedbackSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"domain": map[string]any{
			"type": "string",
			"enum": []string{"scheduling", "contact", "information", "response-only"},
		},
		"rationale":  map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
	},
	"required":             []string{"domain"},
	"additionalProperties": false,
}

var bookingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"route":              map[string]any{"type": "string", "enum": []string{"review", "exit"}},
		"confidence":         map[string]any{"type": "number"},
		"detected_conflicts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"route"},
	"additionalProperties": false,
}
