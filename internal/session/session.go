// Package session holds the per-user interactive state that must survive
// the OAuth redirect: the access token, at most one pending replayable
// request, the project/snapshot references of the current export run, and
// serialized workflow progress. Everything is read and written through the
// host's key/value Store interface — this package never assumes a storage
// technology, so the same code works against an in-memory map in tests and
// a SQLite-backed store in the CLI.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Store is the host session key/value collaborator. Values are opaque
// strings; absence is reported via the bool, not an error.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session keys. Fixed so a resuming request handled by a different
// execution context finds the same state.
const (
	keyAccessToken = "access_token"
	keyPending     = "pending_action"
	keyProjectRef  = "project_ref"
	keySnapshotRef = "snapshot_ref"
	keyProgress    = "deposit_progress"
)

// Token is an opaque bearer credential. No refresh token is modeled:
// expiry is detected reactively through HTTP 401, never proactively.
type Token struct {
	Value string `json:"value"`
}

// PendingAction fully describes an HTTP call that was interrupted by a
// missing or expired token, so it can be replayed verbatim once
// authorization is obtained. At most one exists per session; setting a new
// one overwrites the old. Last-write-wins is acceptable because the OAuth
// redirect round-trip is single-threaded per user.
type PendingAction struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	Body        []byte `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// TokenStore manages the session slots used by the deposition workflow.
// It performs no network or file I/O of its own.
type TokenStore struct {
	store Store
}

// NewTokenStore wraps the given host session store.
func NewTokenStore(store Store) *TokenStore {
	return &TokenStore{store: store}
}

// Token returns the stored access token, or nil if none is set.
func (s *TokenStore) Token() (*Token, error) {
	raw, ok, err := s.store.Get(keyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("session: reading token: %w", err)
	}

	if !ok || raw == "" {
		return nil, nil //nolint:nilnil // sentinel for "not set"
	}

	var tok Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("session: decoding token: %w", err)
	}

	return &tok, nil
}

// SetToken stores the access token, replacing any previous one.
func (s *TokenStore) SetToken(tok Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("session: encoding token: %w", err)
	}

	if err := s.store.Set(keyAccessToken, string(raw)); err != nil {
		return fmt.Errorf("session: storing token: %w", err)
	}

	return nil
}

// ClearToken removes the stored access token.
func (s *TokenStore) ClearToken() error {
	if err := s.store.Delete(keyAccessToken); err != nil {
		return fmt.Errorf("session: clearing token: %w", err)
	}

	return nil
}

// SetPending stores the pending action, overwriting any previous one.
func (s *TokenStore) SetPending(pa *PendingAction) error {
	raw, err := json.Marshal(pa)
	if err != nil {
		return fmt.Errorf("session: encoding pending action: %w", err)
	}

	if err := s.store.Set(keyPending, string(raw)); err != nil {
		return fmt.Errorf("session: storing pending action: %w", err)
	}

	return nil
}

// HasPending reports whether a pending action is stored, without
// consuming it.
func (s *TokenStore) HasPending() (bool, error) {
	raw, ok, err := s.store.Get(keyPending)
	if err != nil {
		return false, fmt.Errorf("session: reading pending action: %w", err)
	}

	return ok && raw != "", nil
}

// TakePending returns and consumes the pending action. Returns nil if no
// action is pending.
func (s *TokenStore) TakePending() (*PendingAction, error) {
	raw, ok, err := s.store.Get(keyPending)
	if err != nil {
		return nil, fmt.Errorf("session: reading pending action: %w", err)
	}

	if !ok || raw == "" {
		return nil, nil //nolint:nilnil // sentinel for "nothing pending"
	}

	if err := s.store.Delete(keyPending); err != nil {
		return nil, fmt.Errorf("session: consuming pending action: %w", err)
	}

	var pa PendingAction
	if err := json.Unmarshal([]byte(raw), &pa); err != nil {
		return nil, fmt.Errorf("session: decoding pending action: %w", err)
	}

	return &pa, nil
}

// SetRun stores the project and snapshot references of the current export
// run. They must be in the session before any redirect because the
// resuming request rebuilds metadata and the attachment from them.
func (s *TokenStore) SetRun(projectRef, snapshotRef string) error {
	if err := s.store.Set(keyProjectRef, projectRef); err != nil {
		return fmt.Errorf("session: storing project ref: %w", err)
	}

	if err := s.store.Set(keySnapshotRef, snapshotRef); err != nil {
		return fmt.Errorf("session: storing snapshot ref: %w", err)
	}

	return nil
}

// Run returns the stored project and snapshot references.
func (s *TokenStore) Run() (projectRef, snapshotRef string, err error) {
	projectRef, _, err = s.store.Get(keyProjectRef)
	if err != nil {
		return "", "", fmt.Errorf("session: reading project ref: %w", err)
	}

	snapshotRef, _, err = s.store.Get(keySnapshotRef)
	if err != nil {
		return "", "", fmt.Errorf("session: reading snapshot ref: %w", err)
	}

	return projectRef, snapshotRef, nil
}

// SetProgress stores the serialized workflow progress blob.
func (s *TokenStore) SetProgress(raw []byte) error {
	if err := s.store.Set(keyProgress, string(raw)); err != nil {
		return fmt.Errorf("session: storing progress: %w", err)
	}

	return nil
}

// Progress returns the serialized workflow progress, or nil if none.
func (s *TokenStore) Progress() ([]byte, error) {
	raw, ok, err := s.store.Get(keyProgress)
	if err != nil {
		return nil, fmt.Errorf("session: reading progress: %w", err)
	}

	if !ok || raw == "" {
		return nil, nil
	}

	return []byte(raw), nil
}

// ClearRun removes the run references and progress after a terminal state.
func (s *TokenStore) ClearRun() error {
	var errs []error
	for _, key := range []string{keyProjectRef, keySnapshotRef, keyProgress} {
		if err := s.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("session: clearing run state: %w", errors.Join(errs...))
	}

	return nil
}
