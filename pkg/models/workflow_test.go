package models

import (
	"testing"
)

func TestWorkflowStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   WorkflowStatus
		to     WorkflowStatus
		expect bool
	}{
		{"started to completed", WorkflowStatusStarted, WorkflowStatusCompleted, true},
		{"started to failed", WorkflowStatusStarted, WorkflowStatusFailed, true},
		{"started to started", WorkflowStatusStarted, WorkflowStatusStarted, false},
		{"completed to failed", WorkflowStatusCompleted, WorkflowStatusFailed, false},
		{"completed to started", WorkflowStatusCompleted, WorkflowStatusStarted, false},
		{"failed to completed", WorkflowStatusFailed, WorkflowStatusCompleted, false},
		{"failed to failed", WorkflowStatusFailed, WorkflowStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expect {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expect)
			}
		})
	}
}

func TestWorkflowStatus_IsTerminal(t *testing.T) {
	if WorkflowStatusStarted.IsTerminal() {
		t.Error("started should not be terminal")
	}
	if !WorkflowStatusCompleted.IsTerminal() {
		t.Error("completed should be terminal")
	}
	if !WorkflowStatusFailed.IsTerminal() {
		t.Error("failed should be terminal")
	}
}

func TestIsValidWorkflowStatus(t *testing.T) {
	for _, s := range ValidWorkflowStatuses {
		if !IsValidWorkflowStatus(s) {
			t.Errorf("IsValidWorkflowStatus(%s) = false, want true", s)
		}
	}
	if IsValidWorkflowStatus("running") {
		t.Error("IsValidWorkflowStatus(running) = true, want false")
	}
}

func TestUnmarshalWorkflowPayload_PhyloRun(t *testing.T) {
	data := []byte(`{"group_id": 7, "pathogen_id": 1, "tree_type": "overview", "name": "Weekly build"}`)

	payload, err := UnmarshalWorkflowPayload(WorkflowTypePhyloRun, data)
	if err != nil {
		t.Fatalf("UnmarshalWorkflowPayload failed: %v", err)
	}

	run, ok := payload.(PhyloRunPayload)
	if !ok {
		t.Fatalf("payload = %T, want PhyloRunPayload", payload)
	}
	if run.GroupID != 7 {
		t.Errorf("GroupID = %d, want 7", run.GroupID)
	}
	if run.TreeType != TreeTypeOverview {
		t.Errorf("TreeType = %s, want overview", run.TreeType)
	}
	if run.Name != "Weekly build" {
		t.Errorf("Name = %q, want %q", run.Name, "Weekly build")
	}
}

func TestUnmarshalWorkflowPayload_NoSubtypeFields(t *testing.T) {
	payload, err := UnmarshalWorkflowPayload(WorkflowTypeProcessRepositoryDump, []byte(`{}`))
	if err != nil {
		t.Fatalf("UnmarshalWorkflowPayload failed: %v", err)
	}
	if payload != nil {
		t.Errorf("payload = %v, want nil", payload)
	}
}

func TestUnmarshalWorkflowPayload_UnknownType(t *testing.T) {
	if _, err := UnmarshalWorkflowPayload("fold_proteins", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown workflow type")
	}
}

func TestWorkflow_PhyloRun(t *testing.T) {
	w := &Workflow{
		Type:    WorkflowTypePhyloRun,
		Payload: PhyloRunPayload{GroupID: 3, TreeType: TreeTypeTargeted},
	}
	run, ok := w.PhyloRun()
	if !ok {
		t.Fatal("PhyloRun() ok = false, want true")
	}
	if run.GroupID != 3 {
		t.Errorf("GroupID = %d, want 3", run.GroupID)
	}

	other := &Workflow{Type: WorkflowTypeCallConsensus}
	if _, ok := other.PhyloRun(); ok {
		t.Error("PhyloRun() ok = true for non-phylo workflow, want false")
	}
}
