//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/inboxflow/inboxflow/classify"
	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
)

// Node IDs of the sub-workflow.
const (
	NodeAnalyze = "analyze_availability"
	NodeReview  = "book_review"
	NodeBook    = "book"
	NodeExit    = "exit"
)

// InterruptKeyBookReview identifies the nested booking approval interrupt.
const InterruptKeyBookReview = "book_review"

// State keys private to the sub-workflow.
const (
	keyRoute        = "booking_route"
	keyRequirements = "booking_requirements"
)

// Deps are the collaborators the sub-workflow calls.
type Deps struct {
	Calendar   service.Calendar
	Classifier classify.Classifier
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// BuildGraph compiles the nested 4-state booking machine:
// analyze_availability routes to book_review or exit; book_review routes to
// book or exit through a nested human interrupt; book always exits.
func BuildGraph(deps Deps) (*graph.Graph, error) {
	if deps.Calendar == nil {
		return nil, fmt.Errorf("booking: calendar is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("booking: classifier is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return graph.NewStateGraph(mail.StateSchema()).
		AddNode(NodeAnalyze, analyzeAvailability(deps)).
		AddNode(NodeReview, reviewBooking()).
		AddNode(NodeBook, bookEvent(deps)).
		AddNode(NodeExit, exit()).
		AddConditionalEdges(NodeAnalyze, routeAfterAnalysis, map[string]string{
			classify.BookingRouteReview: NodeReview,
			classify.BookingRouteExit:   NodeExit,
		}).
		AddEdge(NodeBook, NodeExit).
		SetEntryPoint(NodeAnalyze).
		SetFinishPoint(NodeExit).
		Compile()
}

// analyzeAvailability extracts the meeting requirements, checks the day's
// calendar for conflicts and decides the route. Conflicts always exit with
// alternatives attached; a clear slot goes to review unless the transcript
// classifier objects.
func analyzeAvailability(deps Deps) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		email, _ := mail.Request(state)
		ectx, _ := mail.Context(state)

		req, ok := ExtractRequirements(email, ectx, deps.Now())
		if !ok {
			return graph.State{
				mail.KeyTaskData: map[string]any{mail.StageSchedule: mail.SchedulingData{
					Completed: true,
					Notes:     "no concrete meeting time found in the request",
				}},
				keyRoute: classify.BookingRouteExit,
			}, nil
		}

		dayStart := time.Date(req.Start.Year(), req.Start.Month(), req.Start.Day(), 0, 0, 0, 0, req.Start.Location())
		events, err := deps.Calendar.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return graph.State{
				mail.KeyErrors: []mail.StageError{{Stage: mail.StageSchedule, Message: err.Error()}},
				mail.KeyTaskData: map[string]any{
					mail.StageSchedule: mail.SchedulingData{Completed: false},
				},
				keyRoute: classify.BookingRouteExit,
			}, nil
		}

		conflicts := FindConflicts(req.Start, req.Duration, events)
		transcript := buildTranscript(req, events, conflicts)

		route, rerr := deps.Classifier.RouteBooking(ctx, transcript, req.Summary())
		if rerr != nil || classify.ValidateBookingRoute(route) != nil {
			log.Warnf("booking route classification failed, defaulting to exit: %v", rerr)
			route = classify.FallbackBookingRoute()
		}

		requested := &mail.TimeWindow{Start: req.Start, End: req.Start.Add(req.Duration)}

		if len(conflicts) > 0 {
			windows := make([]mail.TimeWindow, 0, len(conflicts))
			for _, e := range conflicts {
				windows = append(windows, mail.TimeWindow{Start: e.Start, End: e.End})
			}
			return graph.State{
				mail.KeyTaskData: map[string]any{mail.StageSchedule: mail.SchedulingData{
					Completed:       true,
					Requested:       requested,
					ConflictWindows: windows,
					Alternatives:    Alternatives(req.Start, req.Duration, conflicts[0]),
				}},
				keyRoute: classify.BookingRouteExit,
			}, nil
		}

		if route.Route == classify.BookingRouteExit {
			return graph.State{
				mail.KeyTaskData: map[string]any{mail.StageSchedule: mail.SchedulingData{
					Completed: true,
					Requested: requested,
					Notes:     "availability check chose not to book",
				}},
				keyRoute: classify.BookingRouteExit,
			}, nil
		}

		return graph.State{
			mail.KeyTaskData: map[string]any{mail.StageSchedule: mail.SchedulingData{
				Requested: requested,
			}},
			keyRequirements: req,
			keyRoute:        classify.BookingRouteReview,
		}, nil
	}
}

func routeAfterAnalysis(ctx context.Context, state graph.State) (string, error) {
	if route, ok := state[keyRoute].(string); ok && route == classify.BookingRouteReview {
		return classify.BookingRouteReview, nil
	}
	return classify.BookingRouteExit, nil
}

// reviewBooking suspends for human approval of the booking. Accept proceeds
// to event creation; anything else exits with the rejection recorded.
func reviewBooking() graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		req, _ := requirementsFromState(state)
		prompt := mail.ActionRequest{
			Action: "book_meeting",
			Args: map[string]any{
				"title":            req.Title,
				"start":            req.Start.Format(time.RFC3339),
				"duration_minutes": int(req.Duration / time.Minute),
				"attendees":        req.Attendees,
			},
			AllowAccept: true,
			AllowIgnore: true,
		}

		value, err := graph.Interrupt(ctx, state, InterruptKeyBookReview, prompt)
		if err != nil {
			return nil, err
		}
		resp, perr := mail.ParseHumanResponse(value)
		// A feedback epoch may re-enter the sub-workflow; the consumed
		// answer must not be replayed then.
		graph.ClearResumeValue(state, InterruptKeyBookReview)
		if perr != nil || resp.Type != mail.ResponseAccept {
			sched, _ := mail.Scheduling(state)
			sched.Completed = true
			sched.Rejected = true
			return &graph.Command{
				Update: graph.State{
					mail.KeyTaskData: map[string]any{mail.StageSchedule: sched},
				},
				GoTo: NodeExit,
			}, nil
		}
		return &graph.Command{GoTo: NodeBook}, nil
	}
}

// bookEvent creates the calendar event.
func bookEvent(deps Deps) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		req, ok := requirementsFromState(state)
		if !ok {
			return graph.State{
				mail.KeyErrors: []mail.StageError{{Stage: mail.StageSchedule, Message: "booking requirements lost"}},
				mail.KeyTaskData: map[string]any{
					mail.StageSchedule: mail.SchedulingData{Completed: false},
				},
			}, nil
		}

		created, err := deps.Calendar.CreateEvent(ctx, service.EventSpec{
			Subject:   req.Title,
			Start:     req.Start,
			Duration:  req.Duration,
			Attendees: req.Attendees,
		})
		if err != nil {
			return graph.State{
				mail.KeyErrors: []mail.StageError{{Stage: mail.StageSchedule, Message: err.Error()}},
				mail.KeyTaskData: map[string]any{
					mail.StageSchedule: mail.SchedulingData{Completed: false},
				},
			}, nil
		}
		log.Infof("booked event %s at %s", created.ID, req.Start.Format(time.RFC3339))

		sched, _ := mail.Scheduling(state)
		sched.Completed = true
		sched.Booked = true
		sched.EventID = created.ID
		sched.MeetingLink = created.Link
		if sched.Requested == nil {
			sched.Requested = &mail.TimeWindow{Start: req.Start, End: req.Start.Add(req.Duration)}
		}
		return graph.State{
			mail.KeyTaskData: map[string]any{mail.StageSchedule: sched},
		}, nil
	}
}

// exit finalizes the bundle and drops the sub-workflow's private keys.
func exit() graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		update := graph.State{
			keyRoute:        nil,
			keyRequirements: nil,
		}
		if _, ok := mail.Scheduling(state); !ok {
			update[mail.KeyTaskData] = map[string]any{
				mail.StageSchedule: mail.SchedulingData{Completed: true},
			}
		}
		return update, nil
	}
}

func buildTranscript(req Requirements, events []service.Event, conflicts []service.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "requested slot: %s for %s\n", req.Start.Format(time.RFC3339), req.Duration)
	if len(events) == 0 {
		b.WriteString("calendar is free for the whole day\n")
	}
	for _, e := range events {
		fmt.Fprintf(&b, "busy from %s to %s\n", e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	}
	if len(conflicts) > 0 {
		fmt.Fprintf(&b, "conflict: %d existing event(s) overlap the requested slot\n", len(conflicts))
	} else {
		b.WriteString("no conflicts detected for the requested slot\n")
	}
	return b.String()
}

// requirementsFromState reads the stored requirements, decoding the generic
// map shape a durable checkpoint round-trip produces.
func requirementsFromState(state graph.State) (Requirements, bool) {
	switch typed := state[keyRequirements].(type) {
	case Requirements:
		return typed, true
	case map[string]any:
		data, err := json.Marshal(typed)
		if err != nil {
			return Requirements{}, false
		}
		var req Requirements
		if err := json.Unmarshal(data, &req); err != nil {
			return Requirements{}, false
		}
		return req, true
	}
	return Requirements{}, false
}
