package models

import (
	"fmt"
	"time"
)

// Pathogen identifies a tracked pathogen (e.g. SC2 / SARS-CoV-2).
type Pathogen struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// PublicRepository is an external sequence repository (GISAID, GenBank).
// StrainPrefix is the repository's strain-name prefix stripped during
// identifier matching, e.g. "hCoV-19/".
type PublicRepository struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	StrainPrefix string `json:"strain_prefix,omitempty"`
}

// Sample is a physical specimen submitted by exactly one group. Public and
// private identifiers are each unique within the submitting group. The
// Private flag restricts all visibility to the submitting group regardless
// of cross-group grants.
type Sample struct {
	ID                int64      `json:"id"`
	SubmittingGroupID int64      `json:"submitting_group_id"`
	PathogenID        int64      `json:"pathogen_id"`
	PublicIdentifier  string     `json:"public_identifier"`
	PrivateIdentifier string     `json:"private_identifier"`
	Private           bool       `json:"private"`
	CollectionDate    *time.Time `json:"collection_date,omitempty"`
	Location          string     `json:"location,omitempty"`
	UploadedAt        time.Time  `json:"uploaded_at"`
}

// GeneratePublicIdentifier builds the namespaced public identifier assigned
// to uploads that arrive without one:
// "<repo prefix>/<pathogen slug>/<group prefix>-<serial>/<year>".
func GeneratePublicIdentifier(repoPrefix, pathogenSlug, groupPrefix string, serial int64, year int) string {
	return fmt.Sprintf("%s/%s/%s-%d/%d", repoPrefix, pathogenSlug, groupPrefix, serial, year)
}
