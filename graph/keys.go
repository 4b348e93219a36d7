//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package graph

// Config map keys (used under config["configurable"]).
const (
	CfgKeyConfigurable = "configurable"
	CfgKeyLineageID    = "lineage_id"
	CfgKeyCheckpointID = "checkpoint_id"
	CfgKeyCheckpointNS = "checkpoint_ns"
	CfgKeyResumeMap    = "resume_map"
)

// State map keys used internally by the executor.
const (
	// ResumeChannel carries a single pending resume value into the
	// interrupted node.
	ResumeChannel          = "__resume__"
	StateKeyResumeMap      = "__resume_map__"
	StateKeyUsedInterrupts = "__used_interrupts__"
)

// Checkpoint Metadata.Source enumeration values.
const (
	SourceInput     = "input"
	SourceLoop      = "loop"
	SourceInterrupt = "interrupt"
)
