package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rdmotools/zenodo-go/internal/authflow"
)

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the
// callback handler.
type callbackResult struct {
	code string
	err  error
}

// browserAuthorizer runs the interactive leg of the authorization flow:
// it binds a localhost callback server, derives the redirect URI from the
// bound port, and hands the provider's authorization URL to the browser.
// It implements the workflow's Authorizer.
type browserAuthorizer struct {
	flow   *authflow.Flow
	logger *slog.Logger

	state       string
	redirectURI string
	srv         *http.Server
	resultCh    chan callbackResult
}

func newBrowserAuthorizer(flow *authflow.Flow, logger *slog.Logger) *browserAuthorizer {
	return &browserAuthorizer{flow: flow, logger: logger}
}

// Begin binds the callback server and returns the authorization URL.
func (a *browserAuthorizer) Begin(ctx context.Context) (string, error) {
	state, err := authflow.GenerateState()
	if err != nil {
		return "", err
	}

	a.state = state
	a.resultCh = make(chan callbackResult, 1)

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return "", errors.New("listener address is not TCP")
	}

	a.redirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", tcpAddr.Port)
	a.logger.Info("callback server listening", slog.Int("port", tcpAddr.Port))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", a.handleCallback)

	a.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	srv := a.srv

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.resultCh <- callbackResult{err: fmt.Errorf("callback server error: %w", serveErr)}
		}
	}()

	return a.flow.Begin(a.redirectURI, a.state), nil
}

// handleCallback validates the anti-forgery state, extracts the code or
// provider error, and forwards the result.
func (a *browserAuthorizer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") != a.state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		a.resultCh <- callbackResult{err: errors.New("authorization state mismatch (possible CSRF)")}

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		a.resultCh <- callbackResult{err: fmt.Errorf("authorization failed: %s: %s", errParam, desc)}

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		a.resultCh <- callbackResult{err: errors.New("callback missing authorization code")}

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	a.resultCh <- callbackResult{code: code}
}

// Await blocks until the callback fires or the context is canceled.
func (a *browserAuthorizer) Await(ctx context.Context) (string, error) {
	select {
	case result := <-a.resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("authorization canceled: %w", ctx.Err())
	}
}

// Finish waits for the user to come back from the browser, exchanges the
// authorization code for a token, and shuts the callback server down.
func (a *browserAuthorizer) Finish(ctx context.Context) error {
	defer a.Close()

	code, err := a.Await(ctx)
	if err != nil {
		return err
	}

	if _, err := a.flow.Complete(ctx, code, a.redirectURI); err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	return nil
}

// Close shuts down the callback server. Safe to call when Begin was never
// called or already closed.
func (a *browserAuthorizer) Close() {
	if a.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}

	a.srv = nil
}

// launchBrowser attempts to open the authorization URL. If it fails, the
// URL is printed so the user can copy-paste it.
func launchBrowser(authURL string, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}

	if err := exec.Command(name, authURL).Start(); err != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}
