package hoststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rdmotools/zenodo-go/internal/metadata"
)

// ErrNotFound is returned when a project or snapshot does not exist.
var ErrNotFound = errors.New("hoststore: not found")

// ProjectStore is the project/snapshot catalog. It implements the
// metadata source interface consumed by the metadata builder and the
// attachment renderer.
type ProjectStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

const (
	sqlProjectGet = `SELECT ref, title, description FROM projects WHERE ref = ?`

	sqlProjectInsert = `INSERT INTO projects (ref, title, description, created_at)
		VALUES (?, ?, ?, ?)`

	sqlSnapshotGet = `SELECT ref, title, description, created_at FROM snapshots
		WHERE project_ref = ? AND ref = ?`

	sqlSnapshotList = `SELECT ref, title, description, created_at FROM snapshots
		WHERE project_ref = ? ORDER BY created_at DESC`

	sqlSnapshotInsert = `INSERT INTO snapshots (ref, project_ref, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlSnapshotCount = `SELECT COUNT(*) FROM snapshots WHERE project_ref = ?`

	sqlMemberList = `SELECT given_name, family_name, orcid FROM project_members
		WHERE project_ref = ? ORDER BY id`

	sqlMemberInsert = `INSERT INTO project_members (project_ref, given_name, family_name, orcid)
		VALUES (?, ?, ?, ?)`
)

func (p *ProjectStore) Project(ctx context.Context, projectRef string) (metadata.Project, error) {
	var proj metadata.Project

	err := p.db.QueryRowContext(ctx, sqlProjectGet, projectRef).
		Scan(&proj.Ref, &proj.Title, &proj.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Project{}, fmt.Errorf("%w: project %s", ErrNotFound, projectRef)
	}

	if err != nil {
		return metadata.Project{}, fmt.Errorf("hoststore: reading project %s: %w", projectRef, err)
	}

	return proj, nil
}

func (p *ProjectStore) Snapshot(ctx context.Context, projectRef, snapshotRef string) (metadata.Snapshot, error) {
	var (
		snap    metadata.Snapshot
		created int64
	)

	err := p.db.QueryRowContext(ctx, sqlSnapshotGet, projectRef, snapshotRef).
		Scan(&snap.Ref, &snap.Title, &snap.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Snapshot{}, fmt.Errorf("%w: snapshot %s of project %s", ErrNotFound, snapshotRef, projectRef)
	}

	if err != nil {
		return metadata.Snapshot{}, fmt.Errorf("hoststore: reading snapshot %s: %w", snapshotRef, err)
	}

	snap.Created = time.Unix(created, 0).UTC()

	return snap, nil
}

func (p *ProjectStore) Texts(ctx context.Context, projectRef, attribute string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, sqlValueTexts, projectRef, attribute)
	if err != nil {
		return nil, fmt.Errorf("hoststore: listing values %s of project %s: %w", attribute, projectRef, err)
	}
	defer rows.Close()

	var texts []string

	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("hoststore: scanning value: %w", err)
		}

		texts = append(texts, text)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hoststore: listing values: %w", err)
	}

	return texts, nil
}

func (p *ProjectStore) Members(ctx context.Context, projectRef string) ([]metadata.Member, error) {
	rows, err := p.db.QueryContext(ctx, sqlMemberList, projectRef)
	if err != nil {
		return nil, fmt.Errorf("hoststore: listing members of project %s: %w", projectRef, err)
	}
	defer rows.Close()

	var members []metadata.Member

	for rows.Next() {
		var m metadata.Member
		if err := rows.Scan(&m.GivenName, &m.FamilyName, &m.ORCID); err != nil {
			return nil, fmt.Errorf("hoststore: scanning member: %w", err)
		}

		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hoststore: listing members: %w", err)
	}

	return members, nil
}

// CreateProject registers a project in the catalog.
func (p *ProjectStore) CreateProject(ctx context.Context, ref, title, description string) error {
	_, err := p.db.ExecContext(ctx, sqlProjectInsert, ref, title, description, p.nowFunc().Unix())
	if err != nil {
		return fmt.Errorf("hoststore: creating project %s: %w", ref, err)
	}

	return nil
}

// AddMember registers a project member.
func (p *ProjectStore) AddMember(ctx context.Context, projectRef string, m metadata.Member) error {
	_, err := p.db.ExecContext(ctx, sqlMemberInsert, projectRef, m.GivenName, m.FamilyName, m.ORCID)
	if err != nil {
		return fmt.Errorf("hoststore: adding member to project %s: %w", projectRef, err)
	}

	return nil
}

// ListSnapshots returns the project's snapshots, newest first.
func (p *ProjectStore) ListSnapshots(ctx context.Context, projectRef string) ([]metadata.Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, sqlSnapshotList, projectRef)
	if err != nil {
		return nil, fmt.Errorf("hoststore: listing snapshots of project %s: %w", projectRef, err)
	}
	defer rows.Close()

	var snaps []metadata.Snapshot

	for rows.Next() {
		var (
			snap    metadata.Snapshot
			created int64
		)

		if err := rows.Scan(&snap.Ref, &snap.Title, &snap.Description, &created); err != nil {
			return nil, fmt.Errorf("hoststore: scanning snapshot: %w", err)
		}

		snap.Created = time.Unix(created, 0).UTC()
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hoststore: listing snapshots: %w", err)
	}

	return snaps, nil
}

// CreateSnapshot freezes a new snapshot of the project. With an empty
// title, a numbered one is generated from the project title, matching the
// host's automatic snapshot naming.
func (p *ProjectStore) CreateSnapshot(ctx context.Context, projectRef, title, description string) (metadata.Snapshot, error) {
	project, err := p.Project(ctx, projectRef)
	if err != nil {
		return metadata.Snapshot{}, err
	}

	if title == "" {
		var count int
		if err := p.db.QueryRowContext(ctx, sqlSnapshotCount, projectRef).Scan(&count); err != nil {
			return metadata.Snapshot{}, fmt.Errorf("hoststore: counting snapshots: %w", err)
		}

		title = fmt.Sprintf("%s %d", project.Title, count+1)

		if description == "" {
			description = fmt.Sprintf("%s. This snapshot (%d.) was automatically generated.",
				project.Description, count+1)
		}
	}

	now := p.nowFunc()
	snap := metadata.Snapshot{
		Ref:         uuid.NewString(),
		Title:       title,
		Description: description,
		Created:     now.UTC(),
	}

	_, err = p.db.ExecContext(ctx, sqlSnapshotInsert, snap.Ref, projectRef, snap.Title, snap.Description, now.Unix())
	if err != nil {
		return metadata.Snapshot{}, fmt.Errorf("hoststore: creating snapshot: %w", err)
	}

	return snap, nil
}
