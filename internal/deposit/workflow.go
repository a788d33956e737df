// Package deposit implements the deposition workflow: the orchestrator
// that decides between a fresh draft and a new version, sequences metadata
// submission, file upload and publication, and suspends to an external
// authorization redirect from any point that requires a token, resuming
// exactly where it left off.
package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rdmotools/zenodo-go/internal/invenio"
	"github.com/rdmotools/zenodo-go/internal/recordid"
	"github.com/rdmotools/zenodo-go/internal/render"
	"github.com/rdmotools/zenodo-go/internal/session"
)

// Repository is the set of records API operations the workflow drives.
// Implemented by invenio.Client; tests substitute a scripted fake.
type Repository interface {
	CreateRecord(ctx context.Context, token string, metadata map[string]any) (*invenio.Record, error)
	FetchRecord(ctx context.Context, token, recordID string) (*invenio.Record, error)
	CreateNewVersion(ctx context.Context, token, versionsURL string) (*invenio.Record, error)
	UpdateDraftMetadata(ctx context.Context, token, recordID string, metadata map[string]any) (*invenio.Record, error)
	InitFileEntry(ctx context.Context, token, recordID, filename string) (*invenio.FileEntry, error)
	UploadFileContent(ctx context.Context, token, contentURL string, content []byte) error
	CommitFile(ctx context.Context, token, commitURL string) error
	Publish(ctx context.Context, token, recordID string) (*invenio.Record, error)
	Replay(ctx context.Context, token, method, url, contentType string, body []byte) ([]byte, error)
	UploadsURL(recordID string) string
}

// RecordIdentity is the persisted project-to-record mapping.
type RecordIdentity interface {
	Lookup(projectRef string) (*recordid.RecordRef, error)
	Store(projectRef string, ref recordid.RecordRef) error
	Clear(projectRef string) error
}

// MetadataBuilder produces the metadata document for a run. The workflow
// never interprets the document.
type MetadataBuilder interface {
	Build(ctx context.Context, projectRef, snapshotRef string) (map[string]any, error)
}

// Authorizer starts the external authorization leg when a call fails for
// a missing or expired token. Begin is called after the pending action and
// progress are already in the session, so the returned URL can be followed
// by a different execution context.
type Authorizer interface {
	Begin(ctx context.Context) (authorizeURL string, err error)
}

// Outcome is the terminal result of one Start or Resume entry.
type Outcome struct {
	State        State
	AuthorizeURL string              // set when State is StateAuthorizing
	RecordURL    string              // set when State is StateDone
	Ref          *recordid.RecordRef // set when State is StateDone
	Err          error               // set when State is StateFailed
}

// Workflow orchestrates one deposition run. A run is created per submit
// action and consumed to completion or failure; only the record reference
// outlives it.
type Workflow struct {
	repo     Repository
	tokens   *session.TokenStore
	records  RecordIdentity
	metadata MetadataBuilder
	renderer render.Renderer
	auth     Authorizer
	logger   *slog.Logger
}

// New wires the workflow's collaborators.
func New(
	repo Repository,
	tokens *session.TokenStore,
	records RecordIdentity,
	metadata MetadataBuilder,
	renderer render.Renderer,
	auth Authorizer,
	logger *slog.Logger,
) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}

	return &Workflow{
		repo:     repo,
		tokens:   tokens,
		records:  records,
		metadata: metadata,
		renderer: renderer,
		auth:     auth,
		logger:   logger,
	}
}

// Start begins a deposition run for the given project and optional
// snapshot. The metadata document and the attachment are built before any
// remote mutation: a rendering failure aborts the run with nothing
// created on the repository.
func (w *Workflow) Start(ctx context.Context, projectRef, snapshotRef string) Outcome {
	runID := uuid.NewString()
	log := w.logger.With(
		slog.String("run_id", runID),
		slog.String("project", projectRef),
	)

	log.Info("starting deposition", slog.String("snapshot", snapshotRef))

	// The resuming request may be handled by a different execution
	// context, so the run references go into the session first.
	if err := w.tokens.SetRun(projectRef, snapshotRef); err != nil {
		return Outcome{State: StateFailed, Err: err}
	}

	rs, err := w.newRun(ctx, log, projectRef, snapshotRef)
	if err != nil {
		log.Error("preparing deposition failed", slog.String("error", err.Error()))
		return Outcome{State: StateFailed, Err: err}
	}

	rs.prog.RunID = runID
	rs.prog.State = StateValidatingPriorRecord

	return w.run(ctx, rs)
}

// Resume continues a run suspended for authorization. It replays exactly
// the one pending action captured at the point of failure and re-enters
// the state that failed; the rest of the workflow is not repeated, so a
// record created before the redirect is never created twice. The second
// return value is false when no action was pending — the user authorized
// without an interrupted run, which is a valid no-op.
func (w *Workflow) Resume(ctx context.Context) (Outcome, bool) {
	pending, err := w.tokens.TakePending()
	if err != nil {
		return Outcome{State: StateFailed, Err: err}, true
	}

	if pending == nil {
		w.logger.Debug("no pending action, nothing to resume")
		return Outcome{}, false
	}

	projectRef, snapshotRef, err := w.tokens.Run()
	if err == nil && projectRef == "" {
		err = errors.New("deposit: resuming without a project reference in the session")
	}

	if err != nil {
		return Outcome{State: StateFailed, Err: err}, true
	}

	rawProg, err := w.tokens.Progress()
	if err == nil && rawProg == nil {
		err = errors.New("deposit: resuming without saved progress")
	}

	if err != nil {
		return Outcome{State: StateFailed, Err: err}, true
	}

	var prog progress
	if err := json.Unmarshal(rawProg, &prog); err != nil {
		return Outcome{State: StateFailed, Err: fmt.Errorf("deposit: decoding saved progress: %w", err)}, true
	}

	log := w.logger.With(
		slog.String("run_id", prog.RunID),
		slog.String("project", projectRef),
	)

	rs, err := w.newRun(ctx, log, projectRef, snapshotRef)
	if err != nil {
		log.Error("rebuilding deposition state failed", slog.String("error", err.Error()))
		return Outcome{State: StateFailed, Err: err}, true
	}

	rs.prog = prog
	rs.pending = pending

	log.Info("resuming deposition after authorization",
		slog.String("state", rs.prog.State.String()),
		slog.Int("step", rs.prog.Step),
	)

	return w.run(ctx, rs), true
}

// newRun builds the in-memory aggregate for one entry into the state
// machine: metadata document, rendered attachment, and the current token.
func (w *Workflow) newRun(ctx context.Context, log *slog.Logger, projectRef, snapshotRef string) (*run, error) {
	doc, err := w.metadata.Build(ctx, projectRef, snapshotRef)
	if err != nil {
		return nil, fmt.Errorf("deposit: building metadata: %w", err)
	}

	attachment, err := w.renderer.Render(ctx, projectRef, snapshotRef)
	if err != nil {
		return nil, fmt.Errorf("deposit: rendering attachment: %w", err)
	}

	tok, err := w.tokens.Token()
	if err != nil {
		return nil, err
	}

	rs := &run{
		w:           w,
		log:         log,
		projectRef:  projectRef,
		snapshotRef: snapshotRef,
		metadata:    doc,
		attachment:  attachment,
	}
	rs.prog.Filename = attachment.Filename

	// A missing token is not an error here: the first remote call will
	// come back 401 and suspend into authorization.
	if tok != nil {
		rs.token = tok.Value
	}

	return rs, nil
}

// run drives the state machine until a terminal or suspending outcome.
func (w *Workflow) run(ctx context.Context, rs *run) Outcome {
	for {
		var (
			next State
			err  error
		)

		switch rs.prog.State {
		case StateValidatingPriorRecord:
			next, err = w.validatePriorRecord(ctx, rs)
		case StateCreatingDraft:
			next, err = w.createDraft(ctx, rs)
		case StateCreatingVersion:
			next, err = w.createVersion(ctx, rs)
		case StateUploadingMetadata:
			next, err = w.uploadMetadata(ctx, rs)
		case StateUploadingFile:
			next, err = w.uploadFile(ctx, rs)
		case StatePublishing:
			next, err = w.publish(ctx, rs)
		case StateDone:
			return w.finish(rs)
		default:
			return w.fail(rs, fmt.Errorf("deposit: cannot run from state %s", rs.prog.State))
		}

		if err != nil {
			var unauth *invenio.UnauthorizedError
			if errors.As(err, &unauth) {
				return w.suspend(ctx, rs, unauth)
			}

			return w.fail(rs, err)
		}

		rs.prog.State = next
	}
}

// validatePriorRecord checks whether the project's stored record still
// exists remotely. Any failure other than 401 degrades to a fresh draft:
// a broken or forgotten prior record must never block an export.
func (w *Workflow) validatePriorRecord(ctx context.Context, rs *run) (State, error) {
	ref, err := w.records.Lookup(rs.projectRef)
	if err != nil {
		rs.log.Warn("record lookup failed, proceeding as fresh draft", slog.String("error", err.Error()))
		return StateCreatingDraft, nil
	}

	if ref == nil {
		rs.log.Debug("no prior record stored")
		return StateCreatingDraft, nil
	}

	rec, err := rs.fetchRecord(ctx, ref.FetchID())

	switch {
	case err == nil:
	case isUnauthorized(err):
		return 0, err
	case errors.Is(err, invenio.ErrNotFound):
		rs.log.Warn("stored record no longer exists, clearing it",
			slog.String("record_id", ref.FetchID()),
		)

		if clearErr := w.records.Clear(rs.projectRef); clearErr != nil {
			rs.log.Warn("clearing stale record failed", slog.String("error", clearErr.Error()))
		}

		return StateCreatingDraft, nil
	default:
		rs.log.Error("validating prior record failed, proceeding as fresh draft",
			slog.String("record_id", ref.FetchID()),
			slog.String("error", err.Error()),
		)

		return StateCreatingDraft, nil
	}

	rs.prog.ConceptID = rec.ConceptID
	rs.prog.VersionsURL = rec.Links.Versions

	// The validated identifiers are written back right away so the
	// stored ref is current even if this run later fails.
	updated := recordid.RecordRef{RecordID: rec.ID, ConceptID: rec.ConceptID}
	if storeErr := w.records.Store(rs.projectRef, updated); storeErr != nil {
		rs.log.Warn("updating stored record ref failed", slog.String("error", storeErr.Error()))
	}

	rs.log.Info("prior record confirmed, creating new version",
		slog.String("record_id", rec.ID),
		slog.String("concept_id", rec.ConceptID),
	)

	return StateCreatingVersion, nil
}

func (w *Workflow) createDraft(ctx context.Context, rs *run) (State, error) {
	rec, err := rs.createRecord(ctx)
	if err != nil {
		return 0, err
	}

	rs.applyRecord(rec)
	rs.log.Info("draft record created", slog.String("record_id", rs.prog.RecordID))

	return StateUploadingFile, nil
}

func (w *Workflow) createVersion(ctx context.Context, rs *run) (State, error) {
	rec, err := rs.createNewVersion(ctx)
	if err != nil {
		return 0, err
	}

	rs.applyRecord(rec)
	rs.log.Info("new version draft created", slog.String("record_id", rs.prog.RecordID))

	return StateUploadingMetadata, nil
}

// uploadMetadata re-sends the full metadata document to a version draft.
// The repository seeds a new version from the previous version's metadata,
// including its stale publication date, which must be overwritten.
func (w *Workflow) uploadMetadata(ctx context.Context, rs *run) (State, error) {
	rec, err := rs.updateDraftMetadata(ctx)
	if err != nil {
		return 0, err
	}

	rs.applyRecord(rec)

	return StateUploadingFile, nil
}

// uploadFile performs the three-step upload protocol. The steps are
// attempted at most once per run; a failure leaves the record as an
// unpublished draft on the repository, not rolled back.
func (w *Workflow) uploadFile(ctx context.Context, rs *run) (State, error) {
	for rs.prog.Step < stepUploadDone {
		switch rs.prog.Step {
		case stepInitEntry:
			entry, err := rs.initFileEntry(ctx)
			if err != nil {
				return 0, err
			}

			rs.prog.ContentURL = entry.Links.Content
			rs.prog.CommitURL = entry.Links.Commit

		case stepUploadContent:
			if err := rs.uploadContent(ctx); err != nil {
				return 0, err
			}

		case stepCommitFile:
			if err := rs.commitFile(ctx); err != nil {
				return 0, err
			}
		}

		rs.prog.Step++
	}

	rs.log.Info("attachment uploaded",
		slog.String("record_id", rs.prog.RecordID),
		slog.String("filename", rs.filename()),
		slog.Int("size", len(rs.attachment.Content)),
	)

	return StatePublishing, nil
}

func (w *Workflow) publish(ctx context.Context, rs *run) (State, error) {
	rec, err := rs.publish(ctx)
	if err != nil {
		return 0, err
	}

	rs.applyRecord(rec)
	rs.log.Info("record published", slog.String("record_id", rs.prog.RecordID))

	return StateDone, nil
}

// finish persists the record reference and clears the run from the
// session. The publication already happened, so a persistence failure is
// logged rather than turned into a failed outcome.
func (w *Workflow) finish(rs *run) Outcome {
	ref := recordid.RecordRef{RecordID: rs.prog.RecordID, ConceptID: rs.prog.ConceptID}

	if err := w.records.Store(rs.projectRef, ref); err != nil {
		rs.log.Error("persisting record ref after publish failed", slog.String("error", err.Error()))
	}

	if err := w.tokens.ClearRun(); err != nil {
		rs.log.Warn("clearing run state failed", slog.String("error", err.Error()))
	}

	url := rs.prog.SelfHTML
	if url == "" {
		url = w.repo.UploadsURL(rs.prog.RecordID)
	}

	rs.log.Info("deposition done",
		slog.String("record_id", ref.RecordID),
		slog.String("concept_id", ref.ConceptID),
		slog.String("url", url),
	)

	return Outcome{State: StateDone, RecordURL: url, Ref: &ref}
}

// suspend captures the failing call as the pending action, serializes the
// run position into the session, and starts the authorization leg. The
// expired token is cleared; Complete stores the fresh one.
func (w *Workflow) suspend(ctx context.Context, rs *run, unauth *invenio.UnauthorizedError) Outcome {
	pending := &session.PendingAction{
		Method:      unauth.Method,
		URL:         unauth.URL,
		Body:        unauth.Body,
		ContentType: unauth.ContentType,
	}

	if err := w.tokens.SetPending(pending); err != nil {
		return w.fail(rs, err)
	}

	rawProg, err := json.Marshal(rs.prog)
	if err != nil {
		return w.fail(rs, fmt.Errorf("deposit: encoding progress: %w", err))
	}

	if err := w.tokens.SetProgress(rawProg); err != nil {
		return w.fail(rs, err)
	}

	if err := w.tokens.ClearToken(); err != nil {
		rs.log.Warn("clearing expired token failed", slog.String("error", err.Error()))
	}

	authURL, err := w.auth.Begin(ctx)
	if err != nil {
		return w.fail(rs, fmt.Errorf("deposit: starting authorization: %w", err))
	}

	rs.log.Info("authorization required, suspending run",
		slog.String("state", rs.prog.State.String()),
		slog.Int("step", rs.prog.Step),
		slog.String("method", pending.Method),
		slog.String("url", pending.URL),
	)

	return Outcome{State: StateAuthorizing, AuthorizeURL: authURL}
}

// fail terminates the run. A record already created stays behind as an
// unpublished draft the user can revisit; the stored record ref is left
// untouched.
func (w *Workflow) fail(rs *run, err error) Outcome {
	if rs.prog.RecordID != "" {
		rs.log.Warn("failed run leaves an unpublished draft on the repository",
			slog.String("record_id", rs.prog.RecordID),
			slog.String("uploads_url", w.repo.UploadsURL(rs.prog.RecordID)),
		)
	}

	rs.log.Error("deposition failed",
		slog.String("state", rs.prog.State.String()),
		slog.String("error", err.Error()),
	)

	if clearErr := w.tokens.ClearRun(); clearErr != nil {
		rs.log.Warn("clearing run state failed", slog.String("error", clearErr.Error()))
	}

	return Outcome{
		State: StateFailed,
		Err:   fmt.Errorf("deposit: %s: %w", rs.prog.State, err),
	}
}

func isUnauthorized(err error) bool {
	var unauth *invenio.UnauthorizedError
	return errors.As(err, &unauth)
}
