//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxflow/inboxflow/booking"
	"github.com/inboxflow/inboxflow/classify"
	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
)

// stubClassifier returns canned decisions for every classification call.
type stubClassifier struct {
	plan     *classify.Plan
	feedback *classify.FeedbackDecision
	route    *classify.BookingRoute
}

func (s *stubClassifier) PlanStages(ctx context.Context, email mail.Email, ectx mail.ExtractedContext) (*classify.Plan, error) {
	return s.plan, nil
}

func (s *stubClassifier) ClassifyFeedback(ctx context.Context, feedback, draft string) (*classify.FeedbackDecision, error) {
	return s.feedback, nil
}

func (s *stubClassifier) RouteBooking(ctx context.Context, transcript, requirements string) (*classify.BookingRoute, error) {
	return s.route, nil
}

// countingCalendar counts availability lookups.
type countingCalendar struct {
	*service.InMemoryCalendar
	listCalls int
}

func (c *countingCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]service.Event, error) {
	c.listCalls++
	return c.InMemoryCalendar.ListEvents(ctx, from, to)
}

// countingDocumentStore counts document searches.
type countingDocumentStore struct {
	*service.InMemoryDocumentStore
	searchCalls int
}

func (s *countingDocumentStore) Search(ctx context.Context, query string) ([]service.Document, error) {
	s.searchCalls++
	return s.InMemoryDocumentStore.Search(ctx, query)
}

type fixture struct {
	engine    *Engine
	calendar  *countingCalendar
	sender    *service.InMemoryMailSender
	documents *countingDocumentStore
}

func testNow() time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T, classifier classify.Classifier, events ...service.Event) *fixture {
	t.Helper()
	f := &fixture{
		calendar:  &countingCalendar{InMemoryCalendar: service.NewInMemoryCalendar(events...)},
		sender:    service.NewInMemoryMailSender(),
		documents: &countingDocumentStore{InMemoryDocumentStore: service.NewInMemoryDocumentStore()},
	}
	engine, err := New(
		WithCalendar(f.calendar),
		WithMailSender(f.sender),
		WithDirectory(service.NewInMemoryDirectory()),
		WithDocumentStore(f.documents),
		WithClassifier(classifier),
		WithClock(testNow),
	)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestEngineRequiresAllDependencies(t *testing.T) {
	classifier := &stubClassifier{}
	complete := []EngineOption{
		WithCalendar(service.NewInMemoryCalendar()),
		WithMailSender(service.NewInMemoryMailSender()),
		WithDirectory(service.NewInMemoryDirectory()),
		WithDocumentStore(service.NewInMemoryDocumentStore()),
		WithClassifier(classifier),
	}

	// Dropping any one dependency is a bootstrap error.
	for drop := range complete {
		var opts []EngineOption
		for i, opt := range complete {
			if i != drop {
				opts = append(opts, opt)
			}
		}
		_, err := New(opts...)
		assert.Error(t, err, "missing dependency %d must fail construction", drop)
	}

	_, err := New(complete...)
	assert.NoError(t, err)
}

func TestEngineDirectResponseFlow(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{mail.StageCompose}},
	}
	f := newFixture(t, classifier)

	res, err := f.engine.Process(context.Background(), mail.Email{
		ID:      "conv-a",
		From:    "dana@example.com",
		Subject: "Quick question",
		Body:    "What is the status of the rollout?",
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.Equal(t, mail.StatusAwaitingReview, res.Status)
	assert.Equal(t, "review_draft", res.Pending.Action)
	assert.True(t, res.Pending.AllowAccept)
	assert.True(t, res.Pending.AllowRespond)
	assert.NotEmpty(t, res.Draft)
	assert.Empty(t, f.sender.Sends(), "nothing is sent before approval")

	res, err = f.engine.Resume(context.Background(), "conv-a", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusCompleted, res.Status)
	assert.False(t, res.AwaitingReview())
	require.Len(t, f.sender.Sends(), 1)
	assert.Equal(t, "Re: Quick question", f.sender.Sends()[0].Subject)
}

func TestEngineConflictReportsAlternativesOnly(t *testing.T) {
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	classifier := &stubClassifier{
		plan:  &classify.Plan{Stages: []string{mail.StageSchedule, mail.StageCompose}},
		route: &classify.BookingRoute{Route: classify.BookingRouteReview},
	}
	f := newFixture(t, classifier, service.Event{
		ID:      "busy",
		Subject: "Confidential briefing",
		Start:   day.Add(13 * time.Hour),
		End:     day.Add(14 * time.Hour),
	})

	res, err := f.engine.Process(context.Background(), mail.Email{
		ID:      "conv-b",
		From:    "dana@example.com",
		Subject: "Meeting request",
		Body:    "Can we meet on 2026-09-14T13:00?",
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())

	// The draft reports unavailability and offers business-hour
	// alternatives without revealing what blocks the slot.
	assert.Contains(t, res.Draft, "not available")
	assert.Contains(t, res.Draft, "Monday, September 14 at 14:00")
	assert.Contains(t, res.Draft, "Monday, September 14 at 15:00")
	assert.NotContains(t, res.Draft, "Confidential")
	assert.Len(t, f.calendar.Events(), 1, "no event is booked on conflict")
}

func TestEngineBookingApprovalFlow(t *testing.T) {
	classifier := &stubClassifier{
		plan:  &classify.Plan{Stages: []string{mail.StageSchedule, mail.StageCompose}},
		route: &classify.BookingRoute{Route: classify.BookingRouteReview},
	}
	f := newFixture(t, classifier)

	res, err := f.engine.Process(context.Background(), mail.Email{
		ID:      "conv-book",
		From:    "dana@example.com",
		Subject: "Quarterly sync",
		Body:    "Can we meet on 2026-09-14T13:00?",
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.Equal(t, booking.InterruptKeyBookReview, res.InterruptKey)
	assert.Equal(t, "book_meeting", res.Pending.Action)
	assert.True(t, res.Pending.AllowAccept)
	assert.False(t, res.Pending.AllowEdit)

	// Approve the booking; the flow continues to the draft review.
	res, err = f.engine.Resume(context.Background(), "conv-book", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.Equal(t, InterruptKeyHumanReview, res.InterruptKey)
	require.Len(t, f.calendar.Events(), 1)
	assert.Contains(t, res.Draft, "booked")
	assert.Contains(t, res.Draft, f.calendar.Events()[0].Link)

	// Approve the draft; exactly one reply goes out.
	res, err = f.engine.Resume(context.Background(), "conv-book", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusCompleted, res.Status)
	assert.Len(t, f.sender.Sends(), 1)
	assert.Len(t, f.calendar.Events(), 1, "approval books exactly one event")
}

func TestEngineFeedbackReinvokesOnlyTargetedStage(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{
			mail.StageSchedule, mail.StageKnowledge, mail.StageCompose,
		}},
		feedback: &classify.FeedbackDecision{Domain: classify.FeedbackScheduling},
		route:    &classify.BookingRoute{Route: classify.BookingRouteExit},
	}
	f := newFixture(t, classifier)

	res, err := f.engine.Process(context.Background(), mail.Email{
		ID:      "conv-c",
		From:    "dana@example.com",
		Subject: "Meeting request",
		Body:    "Can we meet on 2026-09-14T13:00?",
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.Equal(t, 1, f.calendar.listCalls)
	assert.Equal(t, 1, f.documents.searchCalls)

	// Scheduling feedback opens a new epoch and re-runs the scheduling
	// stage only; the knowledge result is carried over.
	res, err = f.engine.Resume(context.Background(), "conv-c", mail.HumanResponse{
		Type: mail.ResponseRespond,
		Args: "please find a different time",
	})
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.Equal(t, InterruptKeyHumanReview, res.InterruptKey)
	assert.Equal(t, 2, f.calendar.listCalls, "scheduling re-runs once")
	assert.Equal(t, 1, f.documents.searchCalls, "knowledge result is reused")
	assert.Equal(t, 1, mail.Epoch(res.State))

	res, err = f.engine.Resume(context.Background(), "conv-c", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusCompleted, res.Status)
	assert.Len(t, f.sender.Sends(), 1)
}

func TestEngineDoubleResumeSendsOnce(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{mail.StageCompose}},
	}
	f := newFixture(t, classifier)

	_, err := f.engine.Process(context.Background(), mail.Email{
		ID: "conv-d", From: "a@b.c", Subject: "x", Body: "hello",
	})
	require.NoError(t, err)

	res, err := f.engine.Resume(context.Background(), "conv-d", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusCompleted, res.Status)

	// A duplicate delivery of the same approval is a no-op.
	res, err = f.engine.Resume(context.Background(), "conv-d", mail.HumanResponse{Type: mail.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusCompleted, res.Status)
	assert.Len(t, f.sender.Sends(), 1)
}

func TestEngineRejectionTerminatesWithoutSend(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{mail.StageCompose}},
	}
	f := newFixture(t, classifier)

	_, err := f.engine.Process(context.Background(), mail.Email{
		ID: "conv-e", From: "a@b.c", Subject: "x", Body: "hello",
	})
	require.NoError(t, err)

	res, err := f.engine.Resume(context.Background(), "conv-e", mail.HumanResponse{Type: mail.ResponseIgnore})
	require.NoError(t, err)
	assert.Equal(t, mail.StatusRejected, res.Status)
	assert.Empty(t, f.sender.Sends())
}

func TestEngineResolveTimeoutRejects(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{mail.StageCompose}},
	}
	f := newFixture(t, classifier)

	_, err := f.engine.Process(context.Background(), mail.Email{
		ID: "conv-f", From: "a@b.c", Subject: "x", Body: "hello",
	})
	require.NoError(t, err)

	res, err := f.engine.ResolveTimeout(context.Background(), "conv-f")
	require.NoError(t, err)
	assert.Equal(t, mail.StatusRejected, res.Status)
	assert.Empty(t, f.sender.Sends())
}

func TestEngineResumeUnknownConversation(t *testing.T) {
	f := newFixture(t, &stubClassifier{plan: &classify.Plan{Stages: []string{mail.StageCompose}}})

	_, err := f.engine.Resume(context.Background(), "never-seen", mail.HumanResponse{Type: mail.ResponseAccept})
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)
}

func TestEngineArchiveDropsHistory(t *testing.T) {
	classifier := &stubClassifier{
		plan: &classify.Plan{Stages: []string{mail.StageCompose}},
	}
	f := newFixture(t, classifier)

	_, err := f.engine.Process(context.Background(), mail.Email{
		ID: "conv-g", From: "a@b.c", Subject: "x", Body: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Archive(context.Background(), "conv-g"))
	_, err = f.engine.Resume(context.Background(), "conv-g", mail.HumanResponse{Type: mail.ResponseAccept})
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)
}
