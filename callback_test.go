package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmotools/zenodo-go/internal/authflow"
	"github.com/rdmotools/zenodo-go/internal/session"
)

func newTestAuthorizer(t *testing.T, providerURL string) *browserAuthorizer {
	t.Helper()

	tokens := session.NewTokenStore(session.NewMemStore())
	flow := authflow.New("cid", "secret", providerURL, tokens, http.DefaultClient, slog.Default())
	auth := newBrowserAuthorizer(flow, slog.Default())
	t.Cleanup(auth.Close)

	return auth
}

func TestBegin_ReturnsAuthorizationURL(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	authURL, err := auth.Begin(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", parsed.Path)

	redirect, err := url.Parse(parsed.Query().Get("redirect_uri"))
	require.NoError(t, err)
	assert.Equal(t, "/callback", redirect.Path)
	assert.Equal(t, "127.0.0.1", redirect.Hostname())
	assert.NotEmpty(t, redirect.Port(), "redirect URI carries the bound port")
	assert.Equal(t, auth.state, parsed.Query().Get("state"))
}

func TestCallback_DeliversCode(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	authURL, err := auth.Begin(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	redirectURI := parsed.Query().Get("redirect_uri")

	resp, err := http.Get(redirectURI + "?state=" + auth.state + "&code=the-code")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := auth.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the-code", code)
}

func TestCallback_StateMismatch(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=x", nil)
	rec := httptest.NewRecorder()

	_, err := auth.Begin(context.Background())
	require.NoError(t, err)

	auth.handleCallback(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err = auth.Await(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "state mismatch")
}

func TestCallback_ProviderError(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	_, err := auth.Begin(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/callback?state="+auth.state+"&error=access_denied&error_description=User+denied", nil)
	rec := httptest.NewRecorder()

	auth.handleCallback(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err = auth.Await(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "access_denied")
}

func TestCallback_MissingCode(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	_, err := auth.Begin(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/callback?state="+auth.state, nil)
	rec := httptest.NewRecorder()

	auth.handleCallback(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err = auth.Await(context.Background())
	require.Error(t, err)
}

func TestAwait_ContextCanceled(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")

	_, err := auth.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = auth.Await(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_WithoutBegin(t *testing.T) {
	auth := newTestAuthorizer(t, "https://sandbox.zenodo.org")
	auth.Close() // must not panic
}

func TestExportSuffix(t *testing.T) {
	assert.Equal(t, "md", exportSuffix("md"))
	assert.Equal(t, "txt", exportSuffix("txt"))
	assert.Equal(t, "md", exportSuffix("pdf"), "binary formats fall back to markdown")
	assert.Equal(t, "md", exportSuffix(""))
}
