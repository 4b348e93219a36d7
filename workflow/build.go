//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package workflow assembles the full orchestration graph and exposes the
// Engine that drives it: process a request, suspend for human review, and
// resume with the reviewer's answer.
package workflow

import (
	"context"

	"github.com/inboxflow/inboxflow/booking"
	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/stage"
	"github.com/inboxflow/inboxflow/supervisor"
)

// Outer graph node IDs.
const (
	NodeParse      = "parse"
	NodeSupervisor = "supervisor"
	NodeSchedule   = "schedule"
	NodeKnowledge  = "knowledge"
	NodeContact    = "contact"
	NodeCompose    = "compose"
	NodeReview     = "human_review"
	NodeSend       = "send"
)

// InterruptKeyHumanReview identifies the draft review interrupt.
const InterruptKeyHumanReview = "human_review"

// buildGraph wires the outer orchestration graph. Every stage worker
// reports back to the supervisor; the composer hands its draft straight to
// human review, and review routes by command to send, termination or back
// to the supervisor with feedback.
func buildGraph(deps dependencies) (*graph.Graph, error) {
	bookingGraph, err := booking.BuildGraph(booking.Deps{
		Calendar:   deps.calendar,
		Classifier: deps.classifier,
		Now:        deps.now,
	})
	if err != nil {
		return nil, err
	}

	return graph.NewStateGraph(mail.StateSchema()).
		AddNode(NodeParse, stage.Parser()).
		AddNode(NodeSupervisor, supervisor.Node(deps.classifier)).
		AddSubgraph(NodeSchedule, bookingGraph).
		AddNode(NodeKnowledge, stage.Knowledge(deps.documents)).
		AddNode(NodeContact, stage.Contact(deps.directory)).
		AddNode(NodeCompose, stage.Composer()).
		AddNode(NodeReview, reviewDraft(deps.reviewTimeoutSeconds)).
		AddNode(NodeSend, stage.Sender(deps.sender, deps.registry)).
		AddEdge(NodeParse, NodeSupervisor).
		AddConditionalEdges(NodeSupervisor, supervisor.Route, map[string]string{
			mail.StageSchedule:  NodeSchedule,
			mail.StageKnowledge: NodeKnowledge,
			mail.StageContact:   NodeContact,
			mail.StageCompose:   NodeCompose,
		}).
		AddEdge(NodeSchedule, NodeSupervisor).
		AddEdge(NodeKnowledge, NodeSupervisor).
		AddEdge(NodeContact, NodeSupervisor).
		AddEdge(NodeCompose, NodeReview).
		AddEdge(NodeSend, graph.End).
		SetEntryPoint(NodeParse).
		Compile()
}

// reviewDraft suspends for the reviewer's verdict on the composed draft.
//
// accept approves and proceeds to the send path; ignore rejects and
// terminates with no side effect; respond and edit capture the feedback,
// open a new routing epoch and return control to the supervisor. A response
// that cannot be parsed is treated as ignore. Modification always wins over
// approval: any respond or edit goes back through the supervisor and never
// straight to send.
func reviewDraft(timeoutSeconds int) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		prompt := mail.ActionRequest{
			Action: "review_draft",
			Args: map[string]any{
				"draft": mail.Draft(state),
			},
			AllowAccept:    true,
			AllowIgnore:    true,
			AllowRespond:   true,
			AllowEdit:      true,
			TimeoutSeconds: timeoutSeconds,
		}
		if email, ok := mail.Request(state); ok {
			prompt.Args["subject"] = email.Subject
			prompt.Args["from"] = email.From
		}

		// Interrupt mutates the shared state, so the awaiting status is part
		// of the persisted snapshot.
		state[mail.KeyStatus] = mail.StatusAwaitingReview

		value, err := graph.Interrupt(ctx, state, InterruptKeyHumanReview, prompt)
		if err != nil {
			return nil, err
		}

		resp, perr := mail.ParseHumanResponse(value)
		if perr != nil {
			resp = mail.HumanResponse{Type: mail.ResponseIgnore}
		}

		switch resp.Type {
		case mail.ResponseAccept:
			return &graph.Command{
				Update: graph.State{mail.KeyStatus: mail.StatusApproved},
				GoTo:   NodeSend,
			}, nil
		case mail.ResponseRespond, mail.ResponseEdit:
			// The feedback loop comes back through this node; make sure the
			// next pass suspends again instead of replaying this answer.
			graph.ClearResumeValue(state, InterruptKeyHumanReview)
			return &graph.Command{
				Update: graph.State{
					mail.KeyPendingFeedback: resp.FeedbackText(),
					mail.KeyStatus:          mail.StatusProcessing,
					mail.KeyEpoch:           mail.Epoch(state) + 1,
				},
				GoTo: NodeSupervisor,
			}, nil
		default:
			// ignore, unknown kinds and timeouts all land here: reject,
			// terminate, no side effect.
			return &graph.Command{
				Update: graph.State{mail.KeyStatus: mail.StatusRejected},
				GoTo:   graph.End,
			}, nil
		}
	}
}
