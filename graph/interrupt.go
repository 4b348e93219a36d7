//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InterruptError represents an interrupt in graph execution that can be
// resumed. It carries the prompt value handed to Interrupt and the position
// of the interrupted node so a later resume can restart exactly there.
type InterruptError struct {
	// Value is the value that was passed to Interrupt().
	Value any
	// NodeID is the ID of the node where the interrupt occurred.
	NodeID string
	// Key is the interrupt key within the node.
	Key string
	// Step is the step number when the interrupt occurred.
	Step int
	// Timestamp is when the interrupt occurred.
	Timestamp time.Time
	// Path is the execution path to the interrupted node, outermost first.
	Path []string
}

// Error returns the error message for the interrupt.
func (g *InterruptError) Error() string {
	return fmt.Sprintf("graph interrupted at node %s (step %d): %v", g.NodeID, g.Step, g.Value)
}

// NewInterruptError creates a new InterruptError with the given value.
func NewInterruptError(key string, value any) *InterruptError {
	return &InterruptError{
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

// IsInterruptError checks if an error is an InterruptError.
func IsInterruptError(err error) bool {
	var ie *InterruptError
	return errors.As(err, &ie)
}

// AsInterruptError extracts an InterruptError from an error.
func AsInterruptError(err error) (*InterruptError, bool) {
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// ResumeCommand represents a command to resume graph execution.
type ResumeCommand struct {
	// Resume contains the value to resume execution with.
	Resume any
	// ResumeMap maps interrupt keys to resume values.
	ResumeMap map[string]any
}

// NewResumeCommand creates a new resume command.
func NewResumeCommand() *ResumeCommand {
	return &ResumeCommand{
		ResumeMap: make(map[string]any),
	}
}

// WithResume sets the resume value.
func (c *ResumeCommand) WithResume(value any) *ResumeCommand {
	c.Resume = value
	return c
}

// AddResumeValue adds a resume value for a specific interrupt key.
func (c *ResumeCommand) AddResumeValue(key string, value any) *ResumeCommand {
	if c.ResumeMap == nil {
		c.ResumeMap = make(map[string]any)
	}
	c.ResumeMap[key] = value
	return c
}

// Interrupt interrupts execution at the current node and returns the provided
// prompt value to the caller as an *InterruptError. On resume, it returns the
// resume value that was provided instead of interrupting again.
func Interrupt(ctx context.Context, state State, key string, prompt any) (any, error) {
	// Track which interrupts have been used in this invocation.
	// This allows the same resume value to be returned if the node re-executes.
	usedMap, _ := state[StateKeyUsedInterrupts].(map[string]any)
	if usedMap == nil {
		usedMap = make(map[string]any)
		state[StateKeyUsedInterrupts] = usedMap
	}

	// Check if we've already used a resume value for this key.
	if usedValue, exists := usedMap[key]; exists {
		return usedValue, nil
	}

	// Check if we're resuming.
	if resumeValue, exists := state[ResumeChannel]; exists {
		usedMap[key] = resumeValue
		// Clear the resume value to avoid reusing it for other keys.
		delete(state, ResumeChannel)
		return resumeValue, nil
	}

	// Check if we have a resume map with the specific key.
	if resumeMap, exists := state[StateKeyResumeMap]; exists {
		if resumeMapTyped, ok := resumeMap.(map[string]any); ok {
			if resumeValue, exists := resumeMapTyped[key]; exists {
				usedMap[key] = resumeValue
				delete(resumeMapTyped, key)
				return resumeValue, nil
			}
		}
	}

	// Not resuming, so interrupt with the prompt.
	return nil, NewInterruptError(key, prompt)
}

// ResumeValue extracts a resume value from the state with type safety.
func ResumeValue[T any](ctx context.Context, state State, key string) (T, bool) {
	var zero T

	// Check direct resume channel first.
	if resumeValue, exists := state[ResumeChannel]; exists {
		if typedValue, ok := resumeValue.(T); ok {
			delete(state, ResumeChannel)
			return typedValue, true
		}
	}

	// Check resume map.
	if resumeMap, exists := state[StateKeyResumeMap]; exists {
		if resumeMapTyped, ok := resumeMap.(map[string]any); ok {
			if resumeValue, exists := resumeMapTyped[key]; exists {
				if typedValue, ok := resumeValue.(T); ok {
					delete(resumeMapTyped, key)
					return typedValue, true
				}
			}
		}
	}

	return zero, false
}

// HasResumeValue checks if there's a resume value available for the given key.
func HasResumeValue(state State, key string) bool {
	if _, exists := state[ResumeChannel]; exists {
		return true
	}
	if resumeMap, exists := state[StateKeyResumeMap]; exists {
		if resumeMapTyped, ok := resumeMap.(map[string]any); ok {
			if _, exists := resumeMapTyped[key]; exists {
				return true
			}
		}
	}
	return false
}

// ClearResumeValue drops the consumed resume value for a key so that a
// later re-entry of the node interrupts fresh instead of replaying the old
// answer. Nodes that loop back for another round of input call this after
// consuming their value.
func ClearResumeValue(state State, key string) {
	if used, ok := state[StateKeyUsedInterrupts].(map[string]any); ok {
		delete(used, key)
	}
	if resumeMap, ok := state[StateKeyResumeMap].(map[string]any); ok {
		delete(resumeMap, key)
	}
}

// ClearAllResumeValues clears all resume values from the state.
func ClearAllResumeValues(state State) {
	delete(state, ResumeChannel)
	delete(state, StateKeyResumeMap)
	delete(state, StateKeyUsedInterrupts)
}
