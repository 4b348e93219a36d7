//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package mail

import (
	"fmt"
)

// ActionRequest is the structured request externalized at an interrupt
// boundary. The JSON shape is consumed by external reviewer UIs and must not
// change.
type ActionRequest struct {
	Action         string         `json:"action"`
	Args           map[string]any `json:"args"`
	AllowAccept    bool           `json:"allow_accept"`
	AllowIgnore    bool           `json:"allow_ignore"`
	AllowRespond   bool           `json:"allow_respond"`
	AllowEdit      bool           `json:"allow_edit"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
}

// Allows reports whether the response kind is permitted for this request.
func (r ActionRequest) Allows(kind string) bool {
	switch kind {
	case ResponseAccept:
		return r.AllowAccept
	case ResponseIgnore:
		return r.AllowIgnore
	case ResponseRespond:
		return r.AllowRespond
	case ResponseEdit:
		return r.AllowEdit
	}
	return false
}

// HumanResponse is the reviewer's answer supplied on resume.
type HumanResponse struct {
	Type string `json:"type"`
	Args any    `json:"args,omitempty"`
}

// Human response kinds.
const (
	ResponseAccept  = "accept"
	ResponseIgnore  = "ignore"
	ResponseRespond = "response"
	ResponseEdit    = "edit"
)

// FeedbackText extracts the free-form feedback carried by a respond or edit
// response. Args may be a plain string or a map with a "feedback" or
// "content" entry.
func (r HumanResponse) FeedbackText() string {
	switch args := r.Args.(type) {
	case string:
		return args
	case map[string]any:
		if s, ok := args["feedback"].(string); ok {
			return s
		}
		if s, ok := args["content"].(string); ok {
			return s
		}
	}
	return ""
}

// ParseHumanResponse converts a resume value into a HumanResponse. The value
// arrives typed within one process, or as a generic map after a durable
// checkpoint round-trip.
func ParseHumanResponse(value any) (HumanResponse, error) {
	switch typed := value.(type) {
	case HumanResponse:
		return typed, nil
	case *HumanResponse:
		return *typed, nil
	case map[string]any:
		resp := HumanResponse{Args: typed["args"]}
		resp.Type, _ = typed["type"].(string)
		if resp.Type == "" {
			return HumanResponse{}, fmt.Errorf("human response missing type: %v", value)
		}
		return resp, nil
	case string:
		// A bare kind string is accepted for convenience.
		return HumanResponse{Type: typed}, nil
	}
	return HumanResponse{}, fmt.Errorf("unsupported human response value: %T", value)
}
