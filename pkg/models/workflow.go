package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Workflow Types
// ============================================================================

// WorkflowType is the discriminator for concrete workflow subtypes, mirrored
// in the workflow_types table.
type WorkflowType string

const (
	WorkflowTypeCallConsensus         WorkflowType = "call_consensus"
	WorkflowTypeProcessRepositoryDump WorkflowType = "process_repository_dump"
	WorkflowTypeAlignRepositoryDump   WorkflowType = "align_repository_dump"
	WorkflowTypePhyloRun              WorkflowType = "phylo_run"
)

// ValidWorkflowTypes contains all valid workflow type values.
var ValidWorkflowTypes = []WorkflowType{
	WorkflowTypeCallConsensus,
	WorkflowTypeProcessRepositoryDump,
	WorkflowTypeAlignRepositoryDump,
	WorkflowTypePhyloRun,
}

// IsValidWorkflowType checks if the given type is valid.
func IsValidWorkflowType(t WorkflowType) bool {
	for _, v := range ValidWorkflowTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Workflow Status
// ============================================================================

// WorkflowStatus represents the lifecycle state of a workflow.
// State machine:
//
//	started → completed
//	started → failed
//
// completed and failed are terminal.
type WorkflowStatus string

const (
	WorkflowStatusStarted   WorkflowStatus = "started"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// ValidWorkflowStatuses contains all valid status values.
var ValidWorkflowStatuses = []WorkflowStatus{
	WorkflowStatusStarted,
	WorkflowStatusCompleted,
	WorkflowStatusFailed,
}

// IsValidWorkflowStatus checks if the given status is valid.
func IsValidWorkflowStatus(s WorkflowStatus) bool {
	for _, v := range ValidWorkflowStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status accepts no further transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// CanTransitionTo returns true if transitioning from this status to the
// target is valid.
func (s WorkflowStatus) CanTransitionTo(target WorkflowStatus) bool {
	if s != WorkflowStatusStarted {
		return false
	}
	return target == WorkflowStatusCompleted || target == WorkflowStatusFailed
}

// ============================================================================
// Workflow Payloads
// ============================================================================

// WorkflowPayload holds the subtype-specific fields of a workflow. Workflows
// without extra fields carry a nil payload.
type WorkflowPayload interface {
	isWorkflowPayload()
}

// TreeType categorizes the kind of tree a phylo run builds.
type TreeType string

const (
	TreeTypeOverview          TreeType = "overview"
	TreeTypeTargeted          TreeType = "targeted"
	TreeTypeNonContextualized TreeType = "non_contextualized"
)

// IsValidTreeType checks if the given tree type is valid.
func IsValidTreeType(t TreeType) bool {
	switch t {
	case TreeTypeOverview, TreeTypeTargeted, TreeTypeNonContextualized:
		return true
	default:
		return false
	}
}

// PhyloRunPayload carries the fields specific to phylo run workflows.
type PhyloRunPayload struct {
	GroupID      int64          `json:"group_id"`
	PathogenID   int64          `json:"pathogen_id"`
	TreeType     TreeType       `json:"tree_type"`
	Name         string         `json:"name,omitempty"`
	TemplateArgs map[string]any `json:"template_args,omitempty"`
}

func (PhyloRunPayload) isWorkflowPayload() {}

// UnmarshalWorkflowPayload decodes the payload JSON for the given
// discriminator. Workflow types without subtype fields return nil.
func UnmarshalWorkflowPayload(t WorkflowType, data []byte) (WorkflowPayload, error) {
	switch t {
	case WorkflowTypePhyloRun:
		var p PhyloRunPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
		}
		return p, nil
	case WorkflowTypeCallConsensus, WorkflowTypeProcessRepositoryDump, WorkflowTypeAlignRepositoryDump:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown workflow type %q", t)
	}
}

// MarshalWorkflowPayload encodes a payload for storage. A nil payload
// encodes as an empty JSON object.
func MarshalWorkflowPayload(p WorkflowPayload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	return data, nil
}

// ============================================================================
// Workflow Model
// ============================================================================

// Workflow is a provenance-graph node representing a computational process
// consuming input entities and producing output entities. Outputs are the
// entities whose ProducingWorkflowID equals this workflow's ID.
type Workflow struct {
	ID               int64             `json:"id"`
	Type             WorkflowType      `json:"workflow_type"`
	Status           WorkflowStatus    `json:"workflow_status"`
	StartDatetime    time.Time         `json:"start_datetime"`
	EndDatetime      *time.Time        `json:"end_datetime,omitempty"`
	SoftwareVersions map[string]string `json:"software_versions,omitempty"`
	InputIDs         []int64           `json:"input_entity_ids,omitempty"`
	Payload          WorkflowPayload   `json:"payload,omitempty"`
}

// PhyloRun returns the phylo run payload and true if this workflow is a
// phylo run.
func (w *Workflow) PhyloRun() (PhyloRunPayload, bool) {
	p, ok := w.Payload.(PhyloRunPayload)
	return p, ok
}
