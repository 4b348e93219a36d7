//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package mail

import (
	"encoding/json"
	"fmt"

	"github.com/inboxflow/inboxflow/graph"
)

// Normalize rehydrates a state restored from a JSON-serialized checkpoint.
//
// Durable savers round-trip the snapshot through JSON, which turns typed
// values into generic maps and numbers into float64. Resume must restore the
// snapshot exactly, so every known key is decoded back to its declared type
// before execution continues. Unknown keys pass through untouched.
func Normalize(state graph.State) (graph.State, error) {
	out := state.Clone()

	if err := decodeKey(out, KeyRequest, &Email{}); err != nil {
		return nil, err
	}
	if err := decodeKey(out, KeyExtractedContext, &ExtractedContext{}); err != nil {
		return nil, err
	}
	if err := decodeKey(out, KeyRoutingPlan, &RoutingPlan{}); err != nil {
		return nil, err
	}

	if raw, ok := out[KeyStatus].(string); ok {
		out[KeyStatus] = Status(raw)
	}
	if raw, ok := out[KeyEpoch].(float64); ok {
		out[KeyEpoch] = int(raw)
	}
	if raw, ok := out[KeyErrors].([]any); ok {
		errs := make([]StageError, 0, len(raw))
		for _, item := range raw {
			var se StageError
			if err := reencode(item, &se); err != nil {
				return nil, fmt.Errorf("normalize %s: %w", KeyErrors, err)
			}
			errs = append(errs, se)
		}
		out[KeyErrors] = errs
	}
	if raw, ok := out[KeyInsights].([]any); ok {
		insights := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, isString := item.(string); isString {
				insights = append(insights, s)
			}
		}
		out[KeyInsights] = insights
	}

	if td, ok := out[KeyTaskData].(map[string]any); ok {
		normalized := make(map[string]any, len(td))
		for stage, bundle := range td {
			decoded, err := decodeBundle(stage, bundle)
			if err != nil {
				return nil, err
			}
			normalized[stage] = decoded
		}
		out[KeyTaskData] = normalized
	}
	return out, nil
}

func decodeBundle(stage string, bundle any) (any, error) {
	if _, isMap := bundle.(map[string]any); !isMap {
		return bundle, nil
	}
	var target any
	switch stage {
	case StageSchedule:
		target = &SchedulingData{}
	case StageKnowledge:
		target = &KnowledgeData{}
	case StageContact:
		target = &ContactData{}
	default:
		return bundle, nil
	}
	if err := reencode(bundle, target); err != nil {
		return nil, fmt.Errorf("normalize task_data[%s]: %w", stage, err)
	}
	return deref(target), nil
}

func decodeKey(state graph.State, key string, target any) error {
	raw, ok := state[key]
	if !ok {
		return nil
	}
	if _, isMap := raw.(map[string]any); !isMap {
		return nil
	}
	if err := reencode(raw, target); err != nil {
		return fmt.Errorf("normalize %s: %w", key, err)
	}
	state[key] = deref(target)
	return nil
}

func reencode(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func deref(v any) any {
	switch typed := v.(type) {
	case *Email:
		return *typed
	case *ExtractedContext:
		return *typed
	case *RoutingPlan:
		return *typed
	case *SchedulingData:
		return *typed
	case *KnowledgeData:
		return *typed
	case *ContactData:
		return *typed
	}
	return v
}
