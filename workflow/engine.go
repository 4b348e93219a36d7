//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inboxflow/inboxflow/classify"
	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/graph/checkpoint/inmemory"
	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
	"github.com/inboxflow/inboxflow/stage"
)

type dependencies struct {
	calendar             service.Calendar
	sender               service.MailSender
	directory            service.Directory
	documents            service.DocumentStore
	classifier           classify.Classifier
	saver                graph.CheckpointSaver
	registry             *stage.SendRegistry
	maxSteps             int
	reviewTimeoutSeconds int
	now                  func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*dependencies)

// WithCalendar sets the calendar service.
func WithCalendar(c service.Calendar) EngineOption {
	return func(d *dependencies) { d.calendar = c }
}

// WithMailSender sets the mail transmission service.
func WithMailSender(s service.MailSender) EngineOption {
	return func(d *dependencies) { d.sender = s }
}

// WithDirectory sets the contact directory.
func WithDirectory(dir service.Directory) EngineOption {
	return func(d *dependencies) { d.directory = dir }
}

// WithDocumentStore sets the document repository.
func WithDocumentStore(s service.DocumentStore) EngineOption {
	return func(d *dependencies) { d.documents = s }
}

// WithClassifier sets the classification service.
func WithClassifier(c classify.Classifier) EngineOption {
	return func(d *dependencies) { d.classifier = c }
}

// WithCheckpointSaver sets the checkpoint backend. Defaults to in-memory.
func WithCheckpointSaver(s graph.CheckpointSaver) EngineOption {
	return func(d *dependencies) { d.saver = s }
}

// WithMaxSteps bounds graph execution.
func WithMaxSteps(n int) EngineOption {
	return func(d *dependencies) { d.maxSteps = n }
}

// WithReviewTimeout sets the review timeout advertised in action requests.
func WithReviewTimeout(timeout time.Duration) EngineOption {
	return func(d *dependencies) { d.reviewTimeoutSeconds = int(timeout / time.Second) }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(d *dependencies) { d.now = now }
}

// Engine drives conversations through the orchestration graph. All
// collaborators are injected at construction; a missing required dependency
// is a fatal bootstrap error and no conversation state is ever created.
type Engine struct {
	executor *graph.Executor
	manager  *graph.CheckpointManager
	registry *stage.SendRegistry
}

// New creates an Engine.
func New(opts ...EngineOption) (*Engine, error) {
	deps := dependencies{
		registry: stage.NewSendRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	switch {
	case deps.calendar == nil:
		return nil, errors.New("workflow: calendar service is required")
	case deps.sender == nil:
		return nil, errors.New("workflow: mail sender is required")
	case deps.directory == nil:
		return nil, errors.New("workflow: contact directory is required")
	case deps.documents == nil:
		return nil, errors.New("workflow: document store is required")
	case deps.classifier == nil:
		return nil, errors.New("workflow: classifier is required")
	}
	if deps.saver == nil {
		deps.saver = inmemory.NewSaver()
	}

	g, err := buildGraph(deps)
	if err != nil {
		return nil, fmt.Errorf("workflow: failed to build graph: %w", err)
	}

	execOpts := []graph.ExecutorOption{
		graph.WithCheckpointSaver(deps.saver),
		graph.WithStateNormalizer(mail.Normalize),
	}
	if deps.maxSteps > 0 {
		execOpts = append(execOpts, graph.WithMaxSteps(deps.maxSteps))
	}
	executor, err := graph.NewExecutor(g, execOpts...)
	if err != nil {
		return nil, fmt.Errorf("workflow: failed to create executor: %w", err)
	}

	return &Engine{
		executor: executor,
		manager:  graph.NewCheckpointManager(deps.saver),
		registry: deps.registry,
	}, nil
}

// Result reports the outcome of a Process or Resume call.
type Result struct {
	ConversationID string
	Status         mail.Status
	Draft          string
	// Pending is the externalized action request while the conversation
	// awaits human review; nil otherwise.
	Pending *mail.ActionRequest
	// InterruptKey identifies which interrupt raised Pending.
	InterruptKey string
	// State is the conversation state at return.
	State graph.State
}

// AwaitingReview reports whether the conversation is suspended on a human.
func (r *Result) AwaitingReview() bool {
	return r.Pending != nil
}

// Process runs a new conversation for the inbound email. It returns either
// a terminal result or a suspended one carrying the action request for the
// reviewer.
func (e *Engine) Process(ctx context.Context, email mail.Email) (*Result, error) {
	conversationID := email.ID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	log.Infof("processing conversation %s from %s", conversationID, email.From)

	state := mail.NewState(conversationID, email)
	final, err := e.executor.Execute(ctx, state, graph.NewInvocation(conversationID))
	return e.result(conversationID, final, err)
}

// Resume continues a suspended conversation with the reviewer's response.
// Work completed before the suspension is not re-executed, and the send
// path runs at most once per (conversation, epoch, stage) key even when the
// same response is delivered twice.
func (e *Engine) Resume(ctx context.Context, conversationID string, resp mail.HumanResponse) (*Result, error) {
	tuple, err := e.manager.Latest(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if tuple == nil || tuple.Checkpoint == nil {
		return nil, graph.ErrCheckpointNotFound
	}

	// A conversation that already reached a terminal state is not re-run.
	restored := graph.State(tuple.Checkpoint.StateValues)
	if status := mail.CurrentStatus(restored); status.Terminal() {
		log.Infof("conversation %s already %s, ignoring resume", conversationID, status)
		return e.result(conversationID, restored, nil)
	}

	cmd := graph.NewResumeCommand().WithResume(resp)
	final, rerr := e.executor.Resume(ctx, graph.NewInvocation(conversationID), cmd)
	return e.result(conversationID, final, rerr)
}

// ResolveTimeout resolves an expired review with the safe default: the
// request is treated as ignored and the conversation terminates rejected.
func (e *Engine) ResolveTimeout(ctx context.Context, conversationID string) (*Result, error) {
	log.Infof("review timeout for conversation %s, defaulting to ignore", conversationID)
	return e.Resume(ctx, conversationID, mail.HumanResponse{Type: mail.ResponseIgnore})
}

// Archive removes a finished conversation's checkpoints.
func (e *Engine) Archive(ctx context.Context, conversationID string) error {
	return e.manager.DeleteLineage(ctx, conversationID)
}

func (e *Engine) result(conversationID string, state graph.State, err error) (*Result, error) {
	if err != nil {
		ie, ok := graph.AsInterruptError(err)
		if !ok {
			return nil, err
		}
		res := &Result{
			ConversationID: conversationID,
			Status:         mail.CurrentStatus(state),
			Draft:          mail.Draft(state),
			InterruptKey:   ie.Key,
			State:          state,
		}
		if req := actionRequestOf(ie.Value); req != nil {
			res.Pending = req
		}
		return res, nil
	}
	return &Result{
		ConversationID: conversationID,
		Status:         mail.CurrentStatus(state),
		Draft:          mail.Draft(state),
		State:          state,
	}, nil
}

func actionRequestOf(value any) *mail.ActionRequest {
	switch typed := value.(type) {
	case mail.ActionRequest:
		return &typed
	case *mail.ActionRequest:
		return typed
	}
	return nil
}
