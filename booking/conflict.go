//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package booking implements the nested booking sub-workflow: availability
// analysis with conflict detection, alternative-slot generation, a nested
// human approval interrupt and event creation.
package booking

import (
	"time"

	"github.com/inboxflow/inboxflow/service"
)

// Business hours bounds. Alternative slots are always suggested within
// [BusinessOpenHour, BusinessCloseHour) on weekdays.
const (
	BusinessOpenHour  = 9
	BusinessCloseHour = 17
)

// Overlaps reports whether the half-open interval [start, start+dur)
// overlaps the event's [Start, End). Intervals that merely touch do not
// overlap.
func Overlaps(start time.Time, dur time.Duration, e service.Event) bool {
	end := start.Add(dur)
	return start.Before(e.End) && end.After(e.Start)
}

// FindConflicts returns the events overlapping the requested interval.
func FindConflicts(start time.Time, dur time.Duration, events []service.Event) []service.Event {
	var out []service.Event
	for _, e := range events {
		if Overlaps(start, dur, e) {
			out = append(out, e)
		}
	}
	return out
}

// ClampBusinessHours moves a time forward until it lies within business
// hours on a weekday. A start at or past closing rolls to 09:00 the next
// business day; weekends are skipped.
func ClampBusinessHours(t time.Time) time.Time {
	for {
		switch {
		case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
			t = morningOf(t.AddDate(0, 0, 1))
		case t.Hour() >= BusinessCloseHour:
			t = morningOf(t.AddDate(0, 0, 1))
		case t.Hour() < BusinessOpenHour:
			t = morningOf(t)
		default:
			return t
		}
	}
}

func morningOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), BusinessOpenHour, 0, 0, 0, t.Location())
}

// Alternatives generates exactly two replacement start times for a
// conflicting request: the end of the blocking event, and the requested
// start shifted by two hours. Both are clamped into business hours and kept
// distinct from each other and from the requested start.
func Alternatives(start time.Time, dur time.Duration, conflict service.Event) []time.Time {
	alt1 := ClampBusinessHours(conflict.End)

	alt2 := start.Add(2 * time.Hour)
	if insideEvent(alt2, conflict) {
		alt2 = conflict.End
	}
	alt2 = ClampBusinessHours(alt2)
	if alt2.Equal(alt1) {
		alt2 = ClampBusinessHours(alt1.Add(time.Hour))
	}

	return []time.Time{alt1, alt2}
}

func insideEvent(t time.Time, e service.Event) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}
