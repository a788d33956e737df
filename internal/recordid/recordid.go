// Package recordid persists the mapping between a local project and the
// remote repository's record identifiers, stored through the host's
// per-project attribute value store.
package recordid

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AttributeKey is the fixed attribute under which the remote record
// identifier is stored on a project.
const AttributeKey = "project/metadata/publication/zenodo_id"

// ValueStore is the host per-project attribute value collaborator.
type ValueStore interface {
	Get(projectRef, attribute string) (string, bool, error)
	Set(projectRef, attribute, text string) error
}

// RecordRef identifies a project's remote record. ConceptID names the
// lineage of all versions and is stable for the project's archival
// history; RecordID names one specific version or draft and changes on
// every new version.
type RecordRef struct {
	RecordID  string `json:"record_id"`
	ConceptID string `json:"concept_id"`
}

// FetchID returns the identifier to validate remotely: the concrete
// record when known, otherwise the concept identifier (legacy values
// stored only that, and the repository resolves it to the latest version).
func (r RecordRef) FetchID() string {
	if r.RecordID != "" {
		return r.RecordID
	}

	return r.ConceptID
}

// Identity reads and writes the per-project record reference.
type Identity struct {
	values ValueStore
}

// New wraps the given host value store.
func New(values ValueStore) *Identity {
	return &Identity{values: values}
}

// Lookup returns the stored reference for the project, or nil when none
// is stored. An empty value is the cleared marker and also reads as nil.
// A bare non-JSON value is read as a concept-only reference, matching
// installations that stored just the concept identifier text.
func (i *Identity) Lookup(projectRef string) (*RecordRef, error) {
	raw, ok, err := i.values.Get(projectRef, AttributeKey)
	if err != nil {
		return nil, fmt.Errorf("recordid: looking up record for project %s: %w", projectRef, err)
	}

	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, nil //nolint:nilnil // sentinel for "no prior record"
	}

	if !strings.HasPrefix(raw, "{") {
		return &RecordRef{ConceptID: raw}, nil
	}

	var ref RecordRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return nil, fmt.Errorf("recordid: decoding record ref for project %s: %w", projectRef, err)
	}

	if ref.RecordID == "" && ref.ConceptID == "" {
		return nil, nil //nolint:nilnil // empty object, treat as cleared
	}

	return &ref, nil
}

// Store writes the reference for the project.
func (i *Identity) Store(projectRef string, ref RecordRef) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("recordid: encoding record ref: %w", err)
	}

	if err := i.values.Set(projectRef, AttributeKey, string(raw)); err != nil {
		return fmt.Errorf("recordid: storing record ref for project %s: %w", projectRef, err)
	}

	return nil
}

// Clear writes an empty marker rather than deleting the attribute: the
// host distinguishes an absent value from a cleared one.
func (i *Identity) Clear(projectRef string) error {
	if err := i.values.Set(projectRef, AttributeKey, ""); err != nil {
		return fmt.Errorf("recordid: clearing record ref for project %s: %w", projectRef, err)
	}

	return nil
}
