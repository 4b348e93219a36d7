//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package service declares the narrow interfaces the engine consumes for
// calendar, mail transmission, contact and document lookup. Implementations
// live outside the core; in-memory versions are provided for tests and
// examples.
package service

import (
	"context"
	"time"
)

// Event is one existing calendar entry. Start/End form a half-open interval.
type Event struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees,omitempty"`
	Link      string    `json:"link,omitempty"`
}

// EventSpec describes an event to create.
type EventSpec struct {
	Subject     string        `json:"subject"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration"`
	Attendees   []string      `json:"attendees,omitempty"`
	Description string        `json:"description,omitempty"`
}

// CreatedEvent is the result of a successful booking.
type CreatedEvent struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// Calendar lists and creates events.
type Calendar interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, spec EventSpec) (*CreatedEvent, error)
}

// SentMessage identifies a transmitted mail.
type SentMessage struct {
	MessageID string `json:"message_id"`
}

// MailSender transmits a message, threading it when threadID is set.
type MailSender interface {
	Send(ctx context.Context, to []string, subject, body, threadID string) (*SentMessage, error)
}

// ContactRecord is one directory entry.
type ContactRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title,omitempty"`
}

// Directory searches the contact directory.
type Directory interface {
	Search(ctx context.Context, query string) ([]ContactRecord, error)
}

// Document is one repository search hit.
type Document struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

// DocumentStore searches the document repository.
type DocumentStore interface {
	Search(ctx context.Context, query string) ([]Document, error)
}
