package invenio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFileEntry_MatchesByKey(t *testing.T) {
	var gotBody []map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/records/abc12-xyz34/draft/files", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		// The API returns every entry of the draft, not just the new one.
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"entries": [
				{"key": "other.pdf", "links": {"content": "https://x/other/content", "commit": "https://x/other/commit"}},
				{"key": "rdmo_dmp.md", "links": {"content": "https://x/dmp/content", "commit": "https://x/dmp/commit"}}
			]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	entry, err := client.InitFileEntry(context.Background(), "tok", "abc12-xyz34", "rdmo_dmp.md")
	require.NoError(t, err)

	require.Len(t, gotBody, 1)
	assert.Equal(t, "rdmo_dmp.md", gotBody[0]["key"])
	assert.Equal(t, "rdmo_dmp.md", entry.Key)
	assert.Equal(t, "https://x/dmp/content", entry.Links.Content)
	assert.Equal(t, "https://x/dmp/commit", entry.Links.Commit)
}

func TestInitFileEntry_KeyMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"entries": [{"key": "unrelated.txt"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.InitFileEntry(context.Background(), "tok", "abc12-xyz34", "rdmo_dmp.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rdmo_dmp.md")
}

func TestUploadFileContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "# Data Management Plan\n", string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.UploadFileContent(context.Background(), "tok", srv.URL+"/content",
		[]byte("# Data Management Plan\n"))
	require.NoError(t, err)
}

func TestCommitFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/commit", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"key": "rdmo_dmp.md"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.CommitFile(context.Background(), "tok", srv.URL+"/commit")
	require.NoError(t, err)
}

func TestDecodeFileEntry_BadJSON(t *testing.T) {
	_, err := DecodeFileEntry([]byte("not json"), "a.txt")
	require.Error(t, err)
}
