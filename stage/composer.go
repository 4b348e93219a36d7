//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
)

const timeFormat = "Monday, January 2 at 15:04"

// Composer returns the response-composition stage. It assembles the draft
// from every task bundle and acknowledges recorded gaps explicitly; the
// reviewer always sees either a complete draft or an explicit gap note,
// never a silent omission.
//
// Calendar conflicts are reported as unavailability plus alternatives only.
// The conflicting events' subjects are never written into the draft.
func Composer() graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		var b strings.Builder
		b.WriteString("Hello,\n\n")
		b.WriteString("Thank you for your message.\n")

		if sched, ok := mail.Scheduling(state); ok {
			writeScheduling(&b, sched)
		}
		if contacts, ok := mail.Contacts(state); ok && contacts.Completed {
			writeContacts(&b, contacts)
		}
		if knowledge, ok := mail.Knowledge(state); ok && knowledge.Completed {
			writeKnowledge(&b, knowledge)
		}
		writeGaps(&b, mail.Errors(state))

		b.WriteString("\nBest regards\n")

		update := graph.State{
			mail.KeyDraftOutput: b.String(),
		}
		if plan, ok := mail.Plan(state); ok {
			plan.MarkCompleted(mail.StageCompose)
			update[mail.KeyRoutingPlan] = plan
		}
		return update, nil
	}
}

func writeScheduling(b *strings.Builder, sched mail.SchedulingData) {
	switch {
	case sched.Booked:
		b.WriteString("\nThe meeting is booked")
		if sched.Requested != nil {
			fmt.Fprintf(b, " for %s", sched.Requested.Start.Format(timeFormat))
		}
		b.WriteString(".")
		if sched.MeetingLink != "" {
			fmt.Fprintf(b, " You can join here: %s", sched.MeetingLink)
		}
		b.WriteString("\n")
	case len(sched.ConflictWindows) > 0:
		b.WriteString("\nUnfortunately the requested time is not available.")
		if len(sched.Alternatives) > 0 {
			b.WriteString(" Would one of these times work instead?\n")
			for _, alt := range sched.Alternatives {
				fmt.Fprintf(b, "  - %s\n", alt.Format(timeFormat))
			}
		} else {
			b.WriteString("\n")
		}
	case sched.Rejected:
		b.WriteString("\nI have not booked the meeting for now; happy to look at other times.\n")
	}
}

func writeContacts(b *strings.Builder, contacts mail.ContactData) {
	if len(contacts.Found) > 0 {
		b.WriteString("\nContact details you asked about:\n")
		for _, c := range contacts.Found {
			if c.Title != "" {
				fmt.Fprintf(b, "  - %s (%s): %s\n", c.Name, c.Title, c.Email)
				continue
			}
			fmt.Fprintf(b, "  - %s: %s\n", c.Name, c.Email)
		}
	}
	for _, name := range contacts.Unknown {
		fmt.Fprintf(b, "\nI could not find contact details for %s.\n", name)
	}
}

func writeKnowledge(b *strings.Builder, knowledge mail.KnowledgeData) {
	if len(knowledge.Findings) == 0 {
		return
	}
	b.WriteString("\nHere is what I found:\n")
	for _, f := range knowledge.Findings {
		fmt.Fprintf(b, "  - %s\n", f)
	}
}

func writeGaps(b *strings.Builder, errs []mail.StageError) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\nA note on what I could not complete:\n")
	for _, e := range errs {
		fmt.Fprintf(b, "  - %s: %s\n", gapLabel(e.Stage), e.Message)
	}
}

func gapLabel(stage string) string {
	switch stage {
	case mail.StageParse:
		return "understanding the request"
	case mail.StageSchedule:
		return "scheduling"
	case mail.StageKnowledge:
		return "document lookup"
	case mail.StageContact:
		return "contact lookup"
	}
	return stage
}
