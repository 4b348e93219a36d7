//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
)

var (
	isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2})?\b`)
	clockRe   = regexp.MustCompile(`\b\d{1,2}(?::\d{2})?\s?(?:am|pm|AM|PM)\b|\b\d{1,2}:\d{2}\b`)
	// Two consecutive capitalized words, the usual shape of a person's name.
	nameRe = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
)

var actionKeywords = map[string]string{
	"schedule": "schedule a meeting",
	"meeting":  "schedule a meeting",
	"book":     "schedule a meeting",
	"call":     "schedule a call",
	"review":   "review material",
	"confirm":  "confirm details",
	"send":     "send information",
	"share":    "send information",
}

// Parser returns the parsing stage. It derives the extracted context from
// the request exactly once; a missing request is a validation error recorded
// in state, after which routing falls through to the composer with a gap
// acknowledgment.
func Parser() graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		if _, ok := mail.Context(state); ok {
			return nil, nil
		}
		email, ok := mail.Request(state)
		if !ok {
			return failure(mail.StageParse, errors.New("missing request"), nil), nil
		}

		text := email.Subject + "\n" + email.Body
		ectx := mail.ExtractedContext{
			Dates:   dedupe(append(isoDateRe.FindAllString(text, -1), clockRe.FindAllString(text, -1)...)),
			Urgency: "normal",
			Summary: summarize(email),
		}
		for _, name := range dedupe(nameRe.FindAllString(email.Body, -1)) {
			ectx.Entities = append(ectx.Entities, name)
		}
		lower := strings.ToLower(text)
		seen := map[string]bool{}
		for keyword, action := range actionKeywords {
			if strings.Contains(lower, keyword) && !seen[action] {
				seen[action] = true
				ectx.RequestedActions = append(ectx.RequestedActions, action)
			}
		}
		if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") ||
			strings.Contains(lower, "immediately") {
			ectx.Urgency = "high"
		}

		return graph.State{
			mail.KeyExtractedContext: ectx,
			mail.KeyStatus:           mail.StatusProcessing,
		}, nil
	}
}

func summarize(email mail.Email) string {
	subject := strings.TrimSpace(email.Subject)
	if subject != "" {
		return subject
	}
	body := strings.TrimSpace(email.Body)
	if len(body) > 120 {
		return body[:120]
	}
	return body
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
