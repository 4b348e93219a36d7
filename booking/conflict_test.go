//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package booking

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxflow/inboxflow/service"
)

func TestOverlapsHalfOpen(t *testing.T) {
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC) // a Monday
	event := service.Event{
		Start: day.Add(10 * time.Hour),
		End:   day.Add(11 * time.Hour),
	}

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  bool
	}{
		{"fully inside", day.Add(10*time.Hour + 15*time.Minute), 30 * time.Minute, true},
		{"covers event", day.Add(9 * time.Hour), 3 * time.Hour, true},
		{"overlaps start", day.Add(9*time.Hour + 30*time.Minute), time.Hour, true},
		{"overlaps end", day.Add(10*time.Hour + 30*time.Minute), time.Hour, true},
		{"touches end", day.Add(11 * time.Hour), time.Hour, false},
		{"touches start", day.Add(9 * time.Hour), time.Hour, false},
		{"well before", day.Add(7 * time.Hour), time.Hour, false},
		{"well after", day.Add(13 * time.Hour), time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.start, tt.dur, event))
		})
	}
}

// TestOverlapsProperty cross-checks the detector against the overlap
// definition on randomized interval pairs, including boundary-touching ones.
func TestOverlapsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1000; i++ {
		// Minute-granular intervals so exact boundary touches occur often.
		s1 := base.Add(time.Duration(rng.Intn(24*60)) * time.Minute)
		d1 := time.Duration(1+rng.Intn(180)) * time.Minute
		e := service.Event{
			Start: base.Add(time.Duration(rng.Intn(24*60)) * time.Minute),
		}
		e.End = e.Start.Add(time.Duration(1+rng.Intn(180)) * time.Minute)

		want := s1.Before(e.End) && s1.Add(d1).After(e.Start)
		got := Overlaps(s1, d1, e)
		require.Equal(t, want, got,
			"request [%v,%v) vs event [%v,%v)", s1, s1.Add(d1), e.Start, e.End)
	}
}

func TestFindConflicts(t *testing.T) {
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	events := []service.Event{
		{ID: "a", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{ID: "b", Start: day.Add(13 * time.Hour), End: day.Add(14 * time.Hour)},
	}

	conflicts := FindConflicts(day.Add(13*time.Hour+30*time.Minute), time.Hour, events)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b", conflicts[0].ID)

	assert.Empty(t, FindConflicts(day.Add(11*time.Hour), time.Hour, events))
}

func TestClampBusinessHours(t *testing.T) {
	monday := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)

	// Within hours is untouched.
	in := monday.Add(14 * time.Hour)
	assert.True(t, ClampBusinessHours(in).Equal(in))

	// At or past closing rolls to next morning.
	got := ClampBusinessHours(monday.Add(17 * time.Hour))
	assert.True(t, got.Equal(monday.AddDate(0, 0, 1).Add(9*time.Hour)))

	// Friday evening skips the weekend.
	got = ClampBusinessHours(friday.Add(18 * time.Hour))
	assert.True(t, got.Equal(monday.AddDate(0, 0, 7).Add(9*time.Hour)))

	// Weekend rolls to Monday morning.
	got = ClampBusinessHours(saturday.Add(11 * time.Hour))
	assert.True(t, got.Equal(monday.AddDate(0, 0, 7).Add(9*time.Hour)))

	// Early morning clamps up to opening.
	got = ClampBusinessHours(monday.Add(7 * time.Hour))
	assert.True(t, got.Equal(monday.Add(9*time.Hour)))
}

// TestAlternativesProperty checks the guarantees on generated alternatives:
// both inside business hours on weekdays, distinct from each other, from the
// requested start and from the conflicting interval.
func TestAlternativesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		day := base.AddDate(0, 0, rng.Intn(5))
		// Events within business hours, the realistic calendar shape.
		evStart := day.Add(time.Duration(9*60+rng.Intn(7*60)) * time.Minute)
		event := service.Event{
			Start: evStart,
			End:   evStart.Add(time.Duration(15+rng.Intn(105)) * time.Minute),
		}
		// A requested slot that overlaps the event.
		reqStart := event.Start.Add(-time.Duration(rng.Intn(30)) * time.Minute)
		dur := event.Start.Sub(reqStart) + time.Duration(1+rng.Intn(60))*time.Minute
		require.True(t, Overlaps(reqStart, dur, event), "test setup must conflict")

		alts := Alternatives(reqStart, dur, event)
		require.Len(t, alts, 2)

		for _, alt := range alts {
			assert.GreaterOrEqual(t, alt.Hour(), BusinessOpenHour)
			assert.Less(t, alt.Hour(), BusinessCloseHour)
			assert.NotEqual(t, time.Saturday, alt.Weekday())
			assert.NotEqual(t, time.Sunday, alt.Weekday())
			assert.False(t, alt.Equal(reqStart), "alternative equals requested start")
			assert.False(t, alt.After(event.Start) && alt.Before(event.End),
				"alternative inside conflicting interval")
		}
		assert.False(t, alts[0].Equal(alts[1]), "alternatives must be distinct")
	}
}

func TestAlternativesFollowConflict(t *testing.T) {
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	event := service.Event{
		Start: day.Add(13 * time.Hour),
		End:   day.Add(14 * time.Hour),
	}
	alts := Alternatives(day.Add(13*time.Hour), time.Hour, event)

	// First alternative immediately follows the blocking event.
	assert.True(t, alts[0].Equal(event.End))
	// Second is the requested start shifted two hours.
	assert.True(t, alts[1].Equal(day.Add(15*time.Hour)))
}
