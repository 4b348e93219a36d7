//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/inboxflow/inboxflow/mail"
)

// DefaultDuration is assumed when the request names no meeting length.
const DefaultDuration = time.Hour

// Requirements describes the meeting to book.
type Requirements struct {
	Title     string        `json:"title"`
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`
	Attendees []string      `json:"attendees"`
}

// Summary renders the requirements for the routing classifier.
func (r Requirements) Summary() string {
	return fmt.Sprintf("title=%q start=%s duration=%s attendees=%s",
		r.Title, r.Start.Format(time.RFC3339), r.Duration, strings.Join(r.Attendees, ","))
}

var dateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ExtractRequirements derives meeting requirements from the request. The
// sender is always added as an attendee. Returns false when the request
// carries no parseable date. Dates that parse into the past get the year
// bumped forward, correcting year-less or stale date mentions.
func ExtractRequirements(email mail.Email, ectx mail.ExtractedContext, now time.Time) (Requirements, bool) {
	var start time.Time
	found := false
	for _, candidate := range ectx.Dates {
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			if layout == "2006-01-02" {
				t = time.Date(t.Year(), t.Month(), t.Day(), BusinessOpenHour, 0, 0, 0, time.UTC)
			}
			start = t
			found = true
			break
		}
		if found {
			break
		}
	}
	if !found {
		return Requirements{}, false
	}
	for start.Before(now) {
		start = start.AddDate(1, 0, 0)
	}

	title := strings.TrimSpace(email.Subject)
	if title == "" {
		title = "Meeting"
	}
	attendees := []string{email.From}

	return Requirements{
		Title:     title,
		Start:     start,
		Duration:  DefaultDuration,
		Attendees: attendees,
	}, true
}
