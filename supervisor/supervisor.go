//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package supervisor implements the routing node: it turns classifier
// proposals into a per-epoch routing plan and enforces the deterministic
// override rules that keep routing loop-free.
package supervisor

import (
	"context"

	"github.com/inboxflow/inboxflow/classify"
	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/mail"
)

// Node returns the supervisor routing node.
//
// Decision order:
//  1. Pending feedback is classified first; only the targeted domain's
//     authoritative marker is cleared.
//  2. A missing or stale plan is rebuilt from the stage classifier, falling
//     back to a compose-only plan on malformed output.
//  3. A candidate stage whose authoritative marker is already set is never
//     re-invoked; the decision is forced to compose instead.
//  4. An exhausted plan composes.
//
// The chosen stage is written to state for the conditional edge; Route
// translates it into the next node.
func Node(classifier classify.Classifier) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		update := graph.State{}
		epoch := mail.Epoch(state)

		cleared := processFeedback(ctx, classifier, state, update)

		plan := currentPlan(ctx, classifier, state, epoch, cleared)

		// Sync routing bookkeeping with the authoritative markers. The
		// markers are the source of truth; the plan's completed set is
		// rebuilt freely.
		for _, s := range plan.Stages {
			if s != mail.StageCompose && mail.StageCompleted(state, s) && !cleared[s] {
				plan.MarkCompleted(s)
			}
		}
		if cleared != nil {
			for s := range cleared {
				if plan.Completed != nil {
					delete(plan.Completed, s)
				}
			}
		}

		next := nextStage(&plan)

		// Loop prevention. Regardless of what the classifier proposed, a
		// stage with its authoritative success marker set is not re-entered.
		if next != mail.StageCompose && mail.StageCompleted(state, next) && !cleared[next] {
			log.Infof("override: stage %s already completed authoritatively, forcing compose", next)
			plan.MarkCompleted(next)
			next = nextStage(&plan)
		}

		update[mail.KeyRoutingPlan] = plan
		update[mail.KeyNextStage] = next
		update[mail.KeyStatus] = mail.StatusProcessing
		return update, nil
	}
}

// Route is the conditional edge reading the supervisor's decision. Wire it
// with a path map covering every routable stage plus compose.
func Route(ctx context.Context, state graph.State) (string, error) {
	next, _ := state[mail.KeyNextStage].(string)
	if next == "" || !mail.KnownStage(next) {
		return mail.StageCompose, nil
	}
	return next, nil
}

// processFeedback classifies pending feedback and clears exactly the
// targeted domain's marker. Returns the set of cleared stages.
func processFeedback(
	ctx context.Context,
	classifier classify.Classifier,
	state graph.State,
	update graph.State,
) map[string]bool {
	feedback := mail.PendingFeedback(state)
	if feedback == "" {
		return nil
	}

	decision, err := classifier.ClassifyFeedback(ctx, feedback, mail.Draft(state))
	if err != nil || classify.ValidateFeedback(decision) != nil {
		log.Warnf("feedback classification failed, treating as response-only: %v", err)
		decision = classify.FallbackFeedback()
	}
	log.Infof("feedback classified as %s", decision.Domain)

	cleared := map[string]bool{}
	if stage := decision.Domain.Stage(); stage != "" {
		update[mail.KeyTaskData] = mail.ClearCompletion(stage)
		cleared[stage] = true
	}
	update[mail.KeyPendingFeedback] = nil
	return cleared
}

// currentPlan returns the plan for the epoch, rebuilding it when missing or
// stale. The plan is built at most once per epoch.
func currentPlan(
	ctx context.Context,
	classifier classify.Classifier,
	state graph.State,
	epoch int,
	cleared map[string]bool,
) mail.RoutingPlan {
	if plan, ok := mail.Plan(state); ok && plan.Epoch == epoch && len(cleared) == 0 {
		return plan
	}

	email, _ := mail.Request(state)
	ectx, _ := mail.Context(state)

	proposal, err := classifier.PlanStages(ctx, email, ectx)
	if err != nil || classify.ValidatePlan(proposal) != nil {
		log.Warnf("stage classification failed, composing directly: %v", err)
		proposal = classify.FallbackPlan()
	}
	if !contains(proposal.Stages, mail.StageCompose) {
		proposal.Stages = append(proposal.Stages, mail.StageCompose)
	}

	return mail.RoutingPlan{
		Epoch:      epoch,
		Stages:     proposal.Stages,
		Tasks:      proposal.Tasks,
		Completed:  map[string]bool{},
		Rationale:  proposal.Rationale,
		Confidence: proposal.Confidence,
	}
}

// nextStage picks the first planned stage not yet done; an exhausted plan
// composes.
func nextStage(plan *mail.RoutingPlan) string {
	for _, s := range plan.Stages {
		if s == mail.StageCompose {
			continue
		}
		if !plan.Completed[s] {
			return s
		}
	}
	return mail.StageCompose
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
