// Package models contains domain types for aspen-engine.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Entity Types
// ============================================================================

// EntityType is the discriminator for concrete entity subtypes.
// The valid values are mirrored in the entity_types table so the database
// rejects rows carrying an unknown discriminator.
type EntityType string

const (
	EntityTypeSequencingReads         EntityType = "sequencing_reads"
	EntityTypeUploadedPathogenGenome  EntityType = "uploaded_pathogen_genome"
	EntityTypeCalledPathogenGenome    EntityType = "called_pathogen_genome"
	EntityTypeRawRepositoryDump       EntityType = "raw_repository_dump"
	EntityTypeProcessedRepositoryDump EntityType = "processed_repository_dump"
	EntityTypeAlignedRepositoryDump   EntityType = "aligned_repository_dump"
	EntityTypePhyloTree               EntityType = "phylo_tree"
)

// ValidEntityTypes contains all valid entity type values.
var ValidEntityTypes = []EntityType{
	EntityTypeSequencingReads,
	EntityTypeUploadedPathogenGenome,
	EntityTypeCalledPathogenGenome,
	EntityTypeRawRepositoryDump,
	EntityTypeProcessedRepositoryDump,
	EntityTypeAlignedRepositoryDump,
	EntityTypePhyloTree,
}

// IsValidEntityType checks if the given type is valid.
func IsValidEntityType(t EntityType) bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Entity Payloads
// ============================================================================

// EntityPayload holds the subtype-specific fields of an entity. Exactly one
// concrete payload type exists per EntityType; the pairing is checked by
// UnmarshalEntityPayload when rows are scanned.
type EntityPayload interface {
	isEntityPayload()
}

// SequencingReadsPayload describes a raw read collection uploaded for a sample.
type SequencingReadsPayload struct {
	S3Bucket string `json:"s3_bucket"`
	S3Key    string `json:"s3_key"`
}

// PathogenGenomePayload describes a consensus genome, either uploaded
// directly or called from sequencing reads.
type PathogenGenomePayload struct {
	SequenceLength    int    `json:"sequence_length"`
	UnknownBasesCount int    `json:"unknown_bases_count"`
	PangoLineage      string `json:"pango_lineage,omitempty"`
}

// RepositoryDumpPayload describes a bulk export from an external public
// repository (GISAID, GenBank) in raw, processed, or aligned form.
type RepositoryDumpPayload struct {
	RepositoryID  int64  `json:"repository_id"`
	S3Bucket      string `json:"s3_bucket"`
	S3Key         string `json:"s3_key"`
	SequenceCount int64  `json:"sequence_count,omitempty"`
}

// PhyloTreePayload describes a phylogenetic tree artifact produced by a
// phylo run.
type PhyloTreePayload struct {
	S3Bucket string   `json:"s3_bucket"`
	S3Key    string   `json:"s3_key"`
	Name     string   `json:"name,omitempty"`
	TreeType TreeType `json:"tree_type"`
}

func (SequencingReadsPayload) isEntityPayload() {}
func (PathogenGenomePayload) isEntityPayload()  {}
func (RepositoryDumpPayload) isEntityPayload()  {}
func (PhyloTreePayload) isEntityPayload()       {}

// UnmarshalEntityPayload decodes the payload JSON for the given discriminator
// into its concrete payload type.
func UnmarshalEntityPayload(t EntityType, data []byte) (EntityPayload, error) {
	var payload EntityPayload
	var err error
	switch t {
	case EntityTypeSequencingReads:
		var p SequencingReadsPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case EntityTypeUploadedPathogenGenome, EntityTypeCalledPathogenGenome:
		var p PathogenGenomePayload
		err = json.Unmarshal(data, &p)
		payload = p
	case EntityTypeRawRepositoryDump, EntityTypeProcessedRepositoryDump, EntityTypeAlignedRepositoryDump:
		var p RepositoryDumpPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case EntityTypePhyloTree:
		var p PhyloTreePayload
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
	}
	return payload, nil
}

// MarshalEntityPayload encodes a payload for storage. A nil payload encodes
// as an empty JSON object.
func MarshalEntityPayload(p EntityPayload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity payload: %w", err)
	}
	return data, nil
}

// ============================================================================
// Entity Model
// ============================================================================

// Entity is a provenance-graph node representing a unit of stored data.
// An entity is produced by at most one workflow (ProducingWorkflowID nil for
// externally-ingested data) and may be consumed by any number of workflows.
// SampleID links sample-derived entities (reads, genomes) to their sample;
// deleting the sample cascades to them.
type Entity struct {
	ID                  int64         `json:"id"`
	Type                EntityType    `json:"entity_type"`
	OwningGroupID       *int64        `json:"owning_group_id,omitempty"`
	ProducingWorkflowID *int64        `json:"producing_workflow_id,omitempty"`
	SampleID            *int64        `json:"sample_id,omitempty"`
	Payload             EntityPayload `json:"payload"`
	CreatedAt           time.Time     `json:"created_at"`
}

// IsExternallyIngested returns true if no workflow produced this entity.
func (e *Entity) IsExternallyIngested() bool {
	return e.ProducingWorkflowID == nil
}
