//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryCalendar is a Calendar backed by a slice of events.
type InMemoryCalendar struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryCalendar creates a calendar pre-seeded with events.
func NewInMemoryCalendar(events ...Event) *InMemoryCalendar {
	return &InMemoryCalendar{events: events}
}

// ListEvents returns events overlapping [from, to).
func (c *InMemoryCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if e.Start.Before(to) && e.End.After(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateEvent stores a new event and returns its identity.
func (c *InMemoryCalendar) CreateEvent(ctx context.Context, spec EventSpec) (*CreatedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	link := fmt.Sprintf("https://calendar.local/events/%s", id)
	c.events = append(c.events, Event{
		ID:        id,
		Subject:   spec.Subject,
		Start:     spec.Start,
		End:       spec.Start.Add(spec.Duration),
		Attendees: spec.Attendees,
		Link:      link,
	})
	return &CreatedEvent{ID: id, Link: link}, nil
}

// Events returns a copy of the stored events.
func (c *InMemoryCalendar) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Event{}, c.events...)
}

// RecordedSend is one message captured by InMemoryMailSender.
type RecordedSend struct {
	To       []string
	Subject  string
	Body     string
	ThreadID string
}

// InMemoryMailSender records sent messages instead of transmitting them.
type InMemoryMailSender struct {
	mu    sync.Mutex
	sends []RecordedSend
	// Err, when set, is returned by every Send call.
	Err error
}

// NewInMemoryMailSender creates an empty recording sender.
func NewInMemoryMailSender() *InMemoryMailSender {
	return &InMemoryMailSender{}
}

// Send records the message and returns a fresh message ID.
func (s *InMemoryMailSender) Send(ctx context.Context, to []string, subject, body, threadID string) (*SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.sends = append(s.sends, RecordedSend{To: to, Subject: subject, Body: body, ThreadID: threadID})
	return &SentMessage{MessageID: uuid.NewString()}, nil
}

// Sends returns a copy of the recorded messages.
func (s *InMemoryMailSender) Sends() []RecordedSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedSend{}, s.sends...)
}

// InMemoryDirectory is a Directory backed by a fixed record set.
type InMemoryDirectory struct {
	records []ContactRecord
}

// NewInMemoryDirectory creates a directory with the given records.
func NewInMemoryDirectory(records ...ContactRecord) *InMemoryDirectory {
	return &InMemoryDirectory{records: records}
}

// Search matches records whose name or email contains the query,
// case-insensitively.
func (d *InMemoryDirectory) Search(ctx context.Context, query string) ([]ContactRecord, error) {
	q := strings.ToLower(query)
	var out []ContactRecord
	for _, r := range d.records {
		if strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.Email), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// InMemoryDocumentStore is a DocumentStore backed by a fixed document set.
type InMemoryDocumentStore struct {
	docs []Document
}

// NewInMemoryDocumentStore creates a store with the given documents.
func NewInMemoryDocumentStore(docs ...Document) *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: docs}
}

// Search matches documents whose title or snippet contains the query,
// case-insensitively.
func (s *InMemoryDocumentStore) Search(ctx context.Context, query string) ([]Document, error) {
	q := strings.ToLower(query)
	var out []Document
	for _, doc := range s.docs {
		if strings.Contains(strings.ToLower(doc.Title), q) ||
			strings.Contains(strings.ToLower(doc.Snippet), q) {
			out = append(out, doc)
		}
	}
	return out, nil
}
