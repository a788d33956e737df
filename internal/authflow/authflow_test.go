package authflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmotools/zenodo-go/internal/session"
)

func newTestFlow(t *testing.T, providerURL string) (*Flow, *session.TokenStore) {
	t.Helper()

	tokens := session.NewTokenStore(session.NewMemStore())
	flow := New("client-id", "client-secret", providerURL, tokens, http.DefaultClient, nil)

	return flow, tokens
}

func TestBegin_AuthorizationURL(t *testing.T) {
	flow, _ := newTestFlow(t, "https://sandbox.zenodo.org/")

	authURL := flow.Begin("http://127.0.0.1:8137/callback", "state-abc")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "deposit:write", q.Get("scope"))
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "http://127.0.0.1:8137/callback", q.Get("redirect_uri"))
}

func TestComplete_StoresToken(t *testing.T) {
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-xyz", "token_type": "Bearer", "scope": "deposit:write"}`))
	}))
	defer srv.Close()

	flow, tokens := newTestFlow(t, srv.URL)

	tok, err := flow.Complete(context.Background(), "the-code", "http://127.0.0.1:8137/callback")
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", tok.Value)

	// Confidential client: credentials travel in the POST body.
	assert.Equal(t, "the-code", gotForm.Get("code"))
	assert.Equal(t, "client-id", gotForm.Get("client_id"))
	assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))

	stored, err := tokens.Token()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "tok-xyz", stored.Value)
}

func TestComplete_ReplacesExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "fresh", "token_type": "Bearer"}`))
	}))
	defer srv.Close()

	flow, tokens := newTestFlow(t, srv.URL)
	require.NoError(t, tokens.SetToken(session.Token{Value: "stale"}))

	_, err := flow.Complete(context.Background(), "code", "http://127.0.0.1:1/callback")
	require.NoError(t, err)

	stored, err := tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.Value)
}

func TestComplete_ProviderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer srv.Close()

	flow, tokens := newTestFlow(t, srv.URL)

	_, err := flow.Complete(context.Background(), "bad-code", "http://127.0.0.1:1/callback")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ProviderRejected, authErr.Kind)

	// A rejected exchange leaves no token behind.
	stored, err := tokens.Token()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestComplete_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	flow, _ := newTestFlow(t, srv.URL)

	_, err := flow.Complete(context.Background(), "code", "http://127.0.0.1:1/callback")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, NetworkError, authErr.Kind)
}

func TestComplete_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer srv.Close()

	flow, _ := newTestFlow(t, srv.URL)

	_, err := flow.Complete(context.Background(), "code", "http://127.0.0.1:1/callback")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, MalformedResponse, authErr.Kind)
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	require.NoError(t, err)
	assert.Len(t, a, stateTokenBytes*2)

	b, err := GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "provider rejected", ProviderRejected.String())
	assert.Equal(t, "network error", NetworkError.String())
	assert.Equal(t, "malformed response", MalformedResponse.String())
}
