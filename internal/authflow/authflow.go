// Package authflow drives the OAuth2 authorization-code exchange against
// the repository's provider endpoints. Zenodo uses a confidential client
// (client secret in the token request, no PKCE) and grants no refresh
// token for this flow, so the obtained bearer token is stored as-is and
// expiry is handled reactively by the workflow.
package authflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/rdmotools/zenodo-go/internal/session"
)

// Scope required for creating and publishing depositions.
const Scope = "deposit:write"

// stateTokenBytes is the number of random bytes for the anti-forgery
// state parameter.
const stateTokenBytes = 16

// Kind classifies authorization failures.
type Kind int

const (
	// ProviderRejected means the provider refused the code exchange
	// (invalid code, bad client credentials, expired grant).
	ProviderRejected Kind = iota
	// NetworkError means the token endpoint could not be reached.
	NetworkError
	// MalformedResponse means the provider answered with something that
	// is not a usable token response.
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case ProviderRejected:
		return "provider rejected"
	case NetworkError:
		return "network error"
	case MalformedResponse:
		return "malformed response"
	default:
		return "unknown"
	}
}

// AuthError is a failed code exchange.
type AuthError struct {
	Kind Kind
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authflow: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Flow performs the authorization-code exchange and stores the resulting
// token in the session.
type Flow struct {
	clientID     string
	clientSecret string
	providerURL  string
	tokens       *session.TokenStore
	httpClient   *http.Client
	logger       *slog.Logger
}

// New builds a Flow for the given provider. providerURL is the repository
// host, e.g. "https://sandbox.zenodo.org".
func New(
	clientID, clientSecret, providerURL string,
	tokens *session.TokenStore,
	httpClient *http.Client,
	logger *slog.Logger,
) *Flow {
	if logger == nil {
		logger = slog.Default()
	}

	return &Flow{
		clientID:     clientID,
		clientSecret: clientSecret,
		providerURL:  strings.TrimRight(providerURL, "/"),
		tokens:       tokens,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// oauthConfig builds the oauth2 configuration for one redirect URI.
// Zenodo's token endpoint expects client credentials in the POST body.
func (f *Flow) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.providerURL + "/oauth/authorize",
			TokenURL:  f.providerURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Begin returns the provider's authorization URL for the given redirect
// URI and anti-forgery state. The caller must persist the state and verify
// it on the callback.
func (f *Flow) Begin(redirectURI, state string) string {
	f.logger.Info("starting authorization flow",
		slog.String("provider", f.providerURL),
		slog.String("redirect_uri", redirectURI),
	)

	return f.oauthConfig(redirectURI).AuthCodeURL(state)
}

// Complete exchanges the authorization code for a bearer token and stores
// it in the session, replacing any expired one. Whether a pending action
// exists — and whether the workflow therefore resumes — is the caller's
// concern; completing without one is a valid no-op for the flow itself.
func (f *Flow) Complete(ctx context.Context, code, redirectURI string) (session.Token, error) {
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}

	tok, err := f.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return session.Token{}, classifyExchangeError(err)
	}

	if tok.AccessToken == "" {
		return session.Token{}, &AuthError{
			Kind: MalformedResponse,
			Err:  errors.New("token response missing access_token"),
		}
	}

	stok := session.Token{Value: tok.AccessToken}
	if err := f.tokens.SetToken(stok); err != nil {
		return session.Token{}, fmt.Errorf("authflow: storing token: %w", err)
	}

	f.logger.Info("authorization complete, token stored")

	return stok, nil
}

// classifyExchangeError maps oauth2 exchange failures onto the AuthError
// taxonomy.
func classifyExchangeError(err error) *AuthError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &AuthError{Kind: ProviderRejected, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &AuthError{Kind: NetworkError, Err: err}
	}

	return &AuthError{Kind: MalformedResponse, Err: err}
}

// GenerateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func GenerateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("authflow: generating state: %w", err)
	}

	return hex.EncodeToString(b), nil
}
