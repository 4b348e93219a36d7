//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

var (
	// ErrNoEntryPoint is returned when a graph has no entry point configured.
	ErrNoEntryPoint = errors.New("graph must have an entry point")
	// ErrMaxStepsExceeded is returned when execution exceeds the step limit.
	ErrMaxStepsExceeded = errors.New("maximum execution steps exceeded")
	// ErrNoCheckpointSaver is returned when a resume is requested on an
	// executor that was built without checkpoint storage.
	ErrNoCheckpointSaver = errors.New("no checkpoint saver configured")
	// ErrCheckpointNotFound is returned when no checkpoint exists for the
	// requested lineage.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)
