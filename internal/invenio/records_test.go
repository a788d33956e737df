package invenio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNewVersion_UsesVersionsLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/records/old12-34567/versions", r.URL.Path)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "new12-34567",
			"conceptrecid": "abc11-xyz33",
			"metadata": {"title": "old title", "publication_date": "2024-01-01"}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	rec, err := client.CreateNewVersion(context.Background(), "tok", srv.URL+"/api/records/old12-34567/versions")
	require.NoError(t, err)
	assert.Equal(t, "new12-34567", rec.ID)

	// The draft inherits the previous version's metadata, date included.
	assert.Equal(t, "2024-01-01", rec.Metadata["publication_date"])
}

func TestUpdateDraftMetadata(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/records/new12-34567/draft", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": "new12-34567"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	rec, err := client.UpdateDraftMetadata(context.Background(), "tok", "new12-34567", map[string]any{
		"metadata": map[string]any{"publication_date": "2026-09-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new12-34567", rec.ID)
	assert.Equal(t, map[string]any{"publication_date": "2026-09-01"}, gotBody["metadata"])
}

func TestPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/records/abc12-xyz34/draft/actions/publish", r.URL.Path)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{
			"id": "abc12-xyz34",
			"links": {"self_html": "https://example.org/records/abc12-xyz34"}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	rec, err := client.Publish(context.Background(), "tok", "abc12-xyz34")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/records/abc12-xyz34", rec.Links.SelfHTML)
}

func TestDecodeRecord_BadJSON(t *testing.T) {
	_, err := DecodeRecord([]byte("<html>"))
	require.Error(t, err)
}
