//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxflow/inboxflow/mail"
)

func TestExtractRequirements(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	email := mail.Email{
		From:    "dana@example.com",
		Subject: "Quarterly sync",
	}
	ectx := mail.ExtractedContext{Dates: []string{"2026-09-14T13:00"}}

	req, ok := ExtractRequirements(email, ectx, now)
	require.True(t, ok)
	assert.Equal(t, "Quarterly sync", req.Title)
	assert.True(t, req.Start.Equal(time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, DefaultDuration, req.Duration)
	assert.Contains(t, req.Attendees, "dana@example.com")
}

func TestExtractRequirementsDateOnly(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	req, ok := ExtractRequirements(mail.Email{From: "a@b.c"}, mail.ExtractedContext{
		Dates: []string{"2026-09-14"},
	}, now)
	require.True(t, ok)
	// Date-only mentions default to the start of business hours.
	assert.Equal(t, BusinessOpenHour, req.Start.Hour())
}

func TestExtractRequirementsPastDateBumpsYear(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	req, ok := ExtractRequirements(mail.Email{From: "a@b.c"}, mail.ExtractedContext{
		Dates: []string{"2025-03-10T10:00"},
	}, now)
	require.True(t, ok)
	assert.Equal(t, 2027, req.Start.Year())
}

func TestExtractRequirementsNoDate(t *testing.T) {
	_, ok := ExtractRequirements(mail.Email{From: "a@b.c"}, mail.ExtractedContext{
		Dates: []string{"3pm", "next week"},
	}, time.Now())
	assert.False(t, ok)
}

func TestExtractRequirementsDefaultTitle(t *testing.T) {
	req, ok := ExtractRequirements(mail.Email{From: "a@b.c"}, mail.ExtractedContext{
		Dates: []string{"2099-01-04T10:00"},
	}, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Meeting", req.Title)
}
