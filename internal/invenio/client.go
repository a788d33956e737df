package invenio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeBytes = "application/octet-stream"
	userAgent        = "zenodo-go/0.1"
)

// defaultTimeout bounds each API call. A timeout is classified as a
// network failure, not retried.
const defaultTimeout = 30 * time.Second

// Client is a stateless HTTP wrapper for the records API. Every operation
// takes the bearer token explicitly; the client holds no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a records API client. baseURL is the repository host,
// e.g. "https://sandbox.zenodo.org"; a trailing slash is stripped.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// URL builders for the records API surface.

func (c *Client) recordsURL() string {
	return c.baseURL + "/api/records"
}

func (c *Client) recordURL(recordID string) string {
	return c.recordsURL() + "/" + url.PathEscape(recordID)
}

func (c *Client) recordDraftURL(recordID string) string {
	return c.recordURL(recordID) + "/draft"
}

func (c *Client) recordFilesURL(recordID string) string {
	return c.recordDraftURL(recordID) + "/files"
}

func (c *Client) recordPublishURL(recordID string) string {
	return c.recordDraftURL(recordID) + "/actions/publish"
}

// UploadsURL returns the human-facing page for a record's uploads view.
// Used as a fallback when a response carries no self_html link.
func (c *Client) UploadsURL(recordID string) string {
	return c.baseURL + "/uploads/" + url.PathEscape(recordID)
}

// do issues one authenticated request and returns the response body when
// the status is one of wantStatus. There is no retry loop: a transport
// error or timeout is reported as ErrNetwork and left for the user to
// re-submit. 401 yields an UnauthorizedError carrying the request for
// replay; any other status yields an APIError.
func (c *Client) do(
	ctx context.Context, token, method, u, contentType string, body []byte, wantStatus ...int,
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("invenio: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("invenio: request canceled: %w", ctx.Err())
		}

		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("url", u),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, u, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: reading response: %v", ErrNetwork, method, u, err)
	}

	for _, want := range wantStatus {
		if resp.StatusCode == want {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("url", u),
				slog.Int("status", resp.StatusCode),
			)

			return respBody, nil
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Info("request unauthorized, re-authorization required",
			slog.String("method", method),
			slog.String("url", u),
		)

		return nil, &UnauthorizedError{
			Method:      method,
			URL:         u,
			Body:        body,
			ContentType: contentType,
		}
	}

	c.logger.Warn("request rejected",
		slog.String("method", method),
		slog.String("url", u),
		slog.Int("status", resp.StatusCode),
	)

	return nil, newAPIError(resp.StatusCode, respBody)
}

// Replay re-issues a previously captured request verbatim with a fresh
// token. Any 2xx status is accepted: the captured call already encodes an
// operation whose success statuses all fall in that range, and the caller
// interprets the body according to the step it suspended in.
func (c *Client) Replay(
	ctx context.Context, token, method, u, contentType string, body []byte,
) ([]byte, error) {
	c.logger.Info("replaying pending request",
		slog.String("method", method),
		slog.String("url", u),
	)

	return c.do(ctx, token, method, u, contentType, body,
		http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent)
}
