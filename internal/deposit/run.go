package deposit

import (
	"context"
	"log/slog"

	"github.com/rdmotools/zenodo-go/internal/invenio"
	"github.com/rdmotools/zenodo-go/internal/render"
	"github.com/rdmotools/zenodo-go/internal/session"
)

// run is the transient in-memory aggregate of one entry into the state
// machine: the metadata document, the rendered attachment, the current
// token, the serializable progress, and — on resume — the one pending
// action to replay in place of the first repository call.
type run struct {
	w   *Workflow
	log *slog.Logger

	projectRef  string
	snapshotRef string
	token       string
	metadata    map[string]any
	attachment  render.Attachment

	prog    progress
	pending *session.PendingAction
}

// takePending consumes the pending action, if any. The first repository
// call after a resume replays it instead of issuing a fresh request; all
// later calls run normally.
func (rs *run) takePending() *session.PendingAction {
	pending := rs.pending
	rs.pending = nil

	return pending
}

// filename returns the upload file key. The key registered before a
// suspension wins over a re-rendered attachment's name so content and
// commit always address the entry that was created.
func (rs *run) filename() string {
	if rs.prog.Filename != "" {
		return rs.prog.Filename
	}

	return rs.attachment.Filename
}

// replay re-issues the captured request verbatim with the fresh token.
func (rs *run) replay(ctx context.Context, pending *session.PendingAction) ([]byte, error) {
	return rs.w.repo.Replay(ctx, rs.token, pending.Method, pending.URL, pending.ContentType, pending.Body)
}

// applyRecord folds a response record into the run's progress. Responses
// along the way carry overlapping subsets of the identifiers and links;
// empty fields never erase known values.
func (rs *run) applyRecord(rec *invenio.Record) {
	if rec.ID != "" {
		rs.prog.RecordID = rec.ID
	}

	if rec.ConceptID != "" {
		rs.prog.ConceptID = rec.ConceptID
	}

	if rec.Links.SelfHTML != "" {
		rs.prog.SelfHTML = rec.Links.SelfHTML
	}

	if rec.Links.Versions != "" {
		rs.prog.VersionsURL = rec.Links.Versions
	}
}

// The wrappers below issue each state's repository call, or consume the
// replayed response when the run was suspended exactly there.

func (rs *run) fetchRecord(ctx context.Context, recordID string) (*invenio.Record, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeRecord(raw)
	}

	return rs.w.repo.FetchRecord(ctx, rs.token, recordID)
}

func (rs *run) createRecord(ctx context.Context) (*invenio.Record, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeRecord(raw)
	}

	return rs.w.repo.CreateRecord(ctx, rs.token, rs.metadata)
}

func (rs *run) createNewVersion(ctx context.Context) (*invenio.Record, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeRecord(raw)
	}

	return rs.w.repo.CreateNewVersion(ctx, rs.token, rs.prog.VersionsURL)
}

func (rs *run) updateDraftMetadata(ctx context.Context) (*invenio.Record, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeRecord(raw)
	}

	return rs.w.repo.UpdateDraftMetadata(ctx, rs.token, rs.prog.RecordID, rs.metadata)
}

func (rs *run) initFileEntry(ctx context.Context) (*invenio.FileEntry, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeFileEntry(raw, rs.filename())
	}

	return rs.w.repo.InitFileEntry(ctx, rs.token, rs.prog.RecordID, rs.filename())
}

func (rs *run) uploadContent(ctx context.Context) error {
	if pending := rs.takePending(); pending != nil {
		_, err := rs.replay(ctx, pending)
		return err
	}

	return rs.w.repo.UploadFileContent(ctx, rs.token, rs.prog.ContentURL, rs.attachment.Content)
}

func (rs *run) commitFile(ctx context.Context) error {
	if pending := rs.takePending(); pending != nil {
		_, err := rs.replay(ctx, pending)
		return err
	}

	return rs.w.repo.CommitFile(ctx, rs.token, rs.prog.CommitURL)
}

func (rs *run) publish(ctx context.Context) (*invenio.Record, error) {
	if pending := rs.takePending(); pending != nil {
		raw, err := rs.replay(ctx, pending)
		if err != nil {
			return nil, err
		}

		return invenio.DecodeRecord(raw)
	}

	return rs.w.repo.Publish(ctx, rs.token, rs.prog.RecordID)
}
