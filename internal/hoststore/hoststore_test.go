package hoststore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmotools/zenodo-go/internal/metadata"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "zenodo.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "zenodo.db")

	db, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zenodo.db")

	db, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already-migrated database applies nothing new.
	db, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionStore_CRUD(t *testing.T) {
	db := openTestDB(t)
	sessions := db.Sessions("s1")

	_, ok, err := sessions.Get("access_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sessions.Set("access_token", `{"value":"tok"}`))

	val, ok, err := sessions.Get("access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"value":"tok"}`, val)

	// Upsert replaces.
	require.NoError(t, sessions.Set("access_token", `{"value":"tok2"}`))

	val, _, err = sessions.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, `{"value":"tok2"}`, val)

	require.NoError(t, sessions.Delete("access_token"))

	_, ok, err = sessions.Get("access_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sessions.Delete("never-set"))
}

func TestSessionStore_ScopedBySessionID(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Sessions("alice").Set("k", "a"))
	require.NoError(t, db.Sessions("bob").Set("k", "b"))

	val, _, err := db.Sessions("alice").Get("k")
	require.NoError(t, err)
	assert.Equal(t, "a", val)

	val, _, err = db.Sessions("bob").Get("k")
	require.NoError(t, err)
	assert.Equal(t, "b", val)
}

func TestValueStore_AbsenceVsEmpty(t *testing.T) {
	db := openTestDB(t)
	values := db.Values()

	_, ok, err := values.Get("p1", "project/metadata/publication/zenodo_id")
	require.NoError(t, err)
	assert.False(t, ok, "never written reads as absent")

	require.NoError(t, values.Set("p1", "project/metadata/publication/zenodo_id", ""))

	val, ok, err := values.Get("p1", "project/metadata/publication/zenodo_id")
	require.NoError(t, err)
	assert.True(t, ok, "cleared value is present but empty")
	assert.Empty(t, val)
}

func TestValueStore_SetOverwritesIndexZero(t *testing.T) {
	db := openTestDB(t)
	values := db.Values()

	require.NoError(t, values.Set("p1", "project/dataset/title", "first"))
	require.NoError(t, values.Set("p1", "project/dataset/title", "second"))

	val, ok, err := values.Get("p1", "project/dataset/title")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", val)
}

func TestValueStore_AppendAndTexts(t *testing.T) {
	db := openTestDB(t)
	values := db.Values()

	require.NoError(t, values.Append("p1", "project/research_question/keywords", "oceanography"))
	require.NoError(t, values.Append("p1", "project/research_question/keywords", "carbonate"))
	require.NoError(t, values.Append("p1", "project/research_question/keywords", "pH"))

	texts, err := values.Texts("p1", "project/research_question/keywords")
	require.NoError(t, err)
	assert.Equal(t, []string{"oceanography", "carbonate", "pH"}, texts)

	texts, err = values.Texts("p1", "project/unset")
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestProjectStore_ProjectNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Projects().Project(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectStore_CreateAndRead(t *testing.T) {
	db := openTestDB(t)
	projects := db.Projects()
	ctx := context.Background()

	require.NoError(t, projects.CreateProject(ctx, "p1", "Ocean Study", "CO2 and pH."))

	project, err := projects.Project(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ocean Study", project.Title)
	assert.Equal(t, "CO2 and pH.", project.Description)

	// Duplicate refs are rejected by the primary key.
	require.Error(t, projects.CreateProject(ctx, "p1", "Again", ""))
}

func TestProjectStore_Members(t *testing.T) {
	db := openTestDB(t)
	projects := db.Projects()
	ctx := context.Background()

	require.NoError(t, projects.CreateProject(ctx, "p1", "P", ""))
	require.NoError(t, projects.AddMember(ctx, "p1", metadata.Member{
		GivenName: "Ada", FamilyName: "Lovelace", ORCID: "0000-0001-2345-6789",
	}))
	require.NoError(t, projects.AddMember(ctx, "p1", metadata.Member{
		GivenName: "Alan", FamilyName: "Turing",
	}))

	members, err := projects.Members(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Lovelace", members[0].FamilyName)
	assert.Equal(t, "0000-0001-2345-6789", members[0].ORCID)
	assert.Equal(t, "Turing", members[1].FamilyName)
}

func TestProjectStore_Snapshots(t *testing.T) {
	db := openTestDB(t)
	projects := db.Projects()
	ctx := context.Background()

	require.NoError(t, projects.CreateProject(ctx, "p1", "Ocean Study", "CO2."))

	// Deterministic, strictly increasing timestamps for ordering.
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	projects.nowFunc = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := projects.CreateSnapshot(ctx, "p1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Ocean Study 1", first.Title)
	assert.Contains(t, first.Description, "automatically generated")

	second, err := projects.CreateSnapshot(ctx, "p1", "Named snapshot", "Manual.")
	require.NoError(t, err)
	assert.Equal(t, "Named snapshot", second.Title)

	got, err := projects.Snapshot(ctx, "p1", first.Ref)
	require.NoError(t, err)
	assert.Equal(t, first.Title, got.Title)

	list, err := projects.ListSnapshots(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Ref, list[0].Ref, "newest first")
	assert.Equal(t, first.Ref, list[1].Ref)
}

func TestProjectStore_SnapshotNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Projects().CreateProject(ctx, "p1", "P", ""))

	_, err := db.Projects().Snapshot(ctx, "p1", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectStore_SnapshotRequiresProject(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Projects().CreateSnapshot(context.Background(), "missing", "t", "d")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
