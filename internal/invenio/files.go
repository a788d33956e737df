package invenio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// FileLinks are the per-entry URLs for the two remaining upload steps.
type FileLinks struct {
	Self    string `json:"self"`
	Content string `json:"content"`
	Commit  string `json:"commit"`
}

// FileEntry is one registered file of a draft record.
type FileEntry struct {
	Key   string    `json:"key"`
	Links FileLinks `json:"links"`
}

// fileEntriesResponse is the draft-files registration response shape.
type fileEntriesResponse struct {
	Entries []FileEntry `json:"entries"`
}

// DecodeFileEntry extracts the entry with the given key from a draft-files
// response body. The response lists all entries of the draft; the caller
// matches by filename key.
func DecodeFileEntry(raw []byte, key string) (*FileEntry, error) {
	var parsed fileEntriesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invenio: decoding file entries: %w", err)
	}

	for i := range parsed.Entries {
		if parsed.Entries[i].Key == key {
			return &parsed.Entries[i], nil
		}
	}

	return nil, fmt.Errorf("invenio: file entry %q missing from response", key)
}

// InitFileEntry registers a file key on a draft record, the first of the
// three upload steps. The request body is a JSON list of key objects.
// Expects 201; returns the entry matching filename, whose links drive the
// content and commit steps.
func (c *Client) InitFileEntry(ctx context.Context, token, recordID, filename string) (*FileEntry, error) {
	body, err := json.Marshal([]map[string]string{{"key": filename}})
	if err != nil {
		return nil, fmt.Errorf("invenio: encoding file entry request: %w", err)
	}

	raw, err := c.do(ctx, token, http.MethodPost, c.recordFilesURL(recordID), contentTypeJSON, body,
		http.StatusCreated)
	if err != nil {
		return nil, err
	}

	return DecodeFileEntry(raw, filename)
}

// UploadFileContent stores the file bytes at the entry's content URL.
// Expects 200 or 201.
func (c *Client) UploadFileContent(ctx context.Context, token, contentURL string, content []byte) error {
	_, err := c.do(ctx, token, http.MethodPut, contentURL, contentTypeBytes, content,
		http.StatusOK, http.StatusCreated)

	return err
}

// CommitFile finalizes the uploaded content. Expects 200. The content must
// have been stored first; the API rejects commits for empty entries.
func (c *Client) CommitFile(ctx context.Context, token, commitURL string) error {
	_, err := c.do(ctx, token, http.MethodPost, commitURL, "", nil, http.StatusOK)

	return err
}
