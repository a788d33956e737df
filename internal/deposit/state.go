package deposit

import (
	"encoding/json"
	"fmt"
)

// State is the position of a deposition run in its lifecycle. Serialized
// by name into the session so a run suspended for authorization can be
// resumed by a different execution context.
type State int

const (
	StateNew State = iota
	StateValidatingPriorRecord
	StateCreatingDraft
	StateCreatingVersion
	StateUploadingMetadata
	StateUploadingFile
	StatePublishing
	StateAuthorizing
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateNew:                   "new",
	StateValidatingPriorRecord: "validating_prior_record",
	StateCreatingDraft:         "creating_draft",
	StateCreatingVersion:       "creating_version",
	StateUploadingMetadata:     "uploading_metadata",
	StateUploadingFile:         "uploading_file",
	StatePublishing:            "publishing",
	StateAuthorizing:           "authorizing",
	StateDone:                  "done",
	StateFailed:                "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("deposit: unknown state %d", int(s))
	}

	return []byte(name), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}

	return fmt.Errorf("deposit: unknown state %q", string(text))
}

// DescribeProgress reports the state recorded in a serialized progress
// blob, for display purposes. ok is false when raw is empty or does not
// decode.
func DescribeProgress(raw []byte) (state State, recordID string, ok bool) {
	if len(raw) == 0 {
		return 0, "", false
	}

	var p progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, "", false
	}

	return p.State, p.RecordID, true
}

// Sub-steps of StateUploadingFile. The three calls are strictly ordered:
// content cannot be stored before the entry exists, and cannot be
// committed before it is stored.
const (
	stepInitEntry = iota
	stepUploadContent
	stepCommitFile
	stepUploadDone
)

// progress is the serializable position of one run: everything a resuming
// request needs besides the pending action itself and the project and
// snapshot references, which live in their own session slots.
type progress struct {
	RunID       string `json:"run_id"`
	State       State  `json:"state"`
	Step        int    `json:"step,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
	ConceptID   string `json:"concept_id,omitempty"`
	VersionsURL string `json:"versions_url,omitempty"`
	ContentURL  string `json:"content_url,omitempty"`
	CommitURL   string `json:"commit_url,omitempty"`
	SelfHTML    string `json:"self_html,omitempty"`
	Filename    string `json:"filename,omitempty"`
}
