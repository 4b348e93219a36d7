//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

// Package stage implements the stage workers: parser, knowledge lookup,
// contact lookup, composer and sender. Each worker reads only the state
// fields of its domain and returns a partial update; failures become state
// (an errors entry plus an uncompleted task bundle), never an error to the
// scheduler.
package stage

import (
	"fmt"
	"sync"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
)

// failure builds the standard failure update for a stage.
func failure(stage string, err error, bundle any) graph.State {
	update := graph.State{
		mail.KeyErrors: []mail.StageError{{Stage: stage, Message: err.Error()}},
	}
	if bundle != nil {
		update[mail.KeyTaskData] = map[string]any{stage: bundle}
	}
	return update
}

// SendRegistry tracks executed send-path keys so a resumed or replayed
// conversation never transmits the same message twice.
//
// The registry lives in process memory. With a durable checkpoint saver, a
// crash between a successful send and the final checkpoint leaves a window
// where a re-delivered resume in a new process resends; deployments that
// need crash-exactly-once must back the registry with the same store as the
// checkpoints.
type SendRegistry struct {
	mu   sync.Mutex
	sent map[string]bool
}

// NewSendRegistry creates an empty registry.
func NewSendRegistry() *SendRegistry {
	return &SendRegistry{sent: make(map[string]bool)}
}

// SendKey builds the idempotency key for one send-path execution.
func SendKey(conversationID string, epoch int, stage string) string {
	return fmt.Sprintf("%s:%d:%s", conversationID, epoch, stage)
}

// MarkOnce records the key and reports whether this call was the first.
func (r *SendRegistry) MarkOnce(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent[key] {
		return false
	}
	r.sent[key] = true
	return true
}

// Seen reports whether the key was already executed.
func (r *SendRegistry) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[key]
}
