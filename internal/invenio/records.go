package invenio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RecordLinks are the navigation URLs the API attaches to a record.
// Subsequent workflow steps follow these instead of rebuilding paths.
type RecordLinks struct {
	Self     string `json:"self"`
	SelfHTML string `json:"self_html"`
	Versions string `json:"versions"`
	Files    string `json:"files"`
	Publish  string `json:"publish"`
}

// Record is one record version or draft. ConceptID identifies the lineage
// of all versions of the logical record and is stable across versions;
// ID changes on every new version.
type Record struct {
	ID        string         `json:"id"`
	ConceptID string         `json:"conceptrecid"`
	Links     RecordLinks    `json:"links"`
	Metadata  map[string]any `json:"metadata"`
}

// DecodeRecord parses a record JSON body, e.g. one returned by Replay.
func DecodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("invenio: decoding record: %w", err)
	}

	return &rec, nil
}

// CreateRecord creates a new draft record with the given metadata
// document. Expects 201.
func (c *Client) CreateRecord(ctx context.Context, token string, metadata map[string]any) (*Record, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("invenio: encoding metadata: %w", err)
	}

	raw, err := c.do(ctx, token, http.MethodPost, c.recordsURL(), contentTypeJSON, body, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	return DecodeRecord(raw)
}

// FetchRecord retrieves a record by ID. Expects 200; a 404 is reported as
// an APIError wrapping ErrNotFound, which the workflow treats as "the
// repository forgot this record".
func (c *Client) FetchRecord(ctx context.Context, token, recordID string) (*Record, error) {
	raw, err := c.do(ctx, token, http.MethodGet, c.recordURL(recordID), "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return DecodeRecord(raw)
}

// CreateNewVersion creates a draft for the next version of a record
// lineage. versionsURL comes from a fetched record's links. Expects 201.
// The new draft is seeded with the previous version's metadata, including
// its stale publication date — the caller must re-send full metadata.
func (c *Client) CreateNewVersion(ctx context.Context, token, versionsURL string) (*Record, error) {
	raw, err := c.do(ctx, token, http.MethodPost, versionsURL, "", nil, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	return DecodeRecord(raw)
}

// UpdateDraftMetadata replaces a draft's metadata document. Expects 200.
func (c *Client) UpdateDraftMetadata(
	ctx context.Context, token, recordID string, metadata map[string]any,
) (*Record, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("invenio: encoding metadata: %w", err)
	}

	raw, err := c.do(ctx, token, http.MethodPut, c.recordDraftURL(recordID), contentTypeJSON, body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return DecodeRecord(raw)
}

// Publish publishes a draft record. Expects 202.
func (c *Client) Publish(ctx context.Context, token, recordID string) (*Record, error) {
	raw, err := c.do(ctx, token, http.MethodPost, c.recordPublishURL(recordID), "", nil, http.StatusAccepted)
	if err != nil {
		return nil, err
	}

	return DecodeRecord(raw)
}
