package recordid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValues is an in-memory ValueStore that distinguishes absent from
// empty values, like the real store.
type fakeValues struct {
	data map[string]string
	err  error
}

func newFakeValues() *fakeValues {
	return &fakeValues{data: make(map[string]string)}
}

func (f *fakeValues) Get(projectRef, attribute string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}

	val, ok := f.data[projectRef+"\x00"+attribute]

	return val, ok, nil
}

func (f *fakeValues) Set(projectRef, attribute, text string) error {
	if f.err != nil {
		return f.err
	}

	f.data[projectRef+"\x00"+attribute] = text

	return nil
}

func TestLookup_Absent(t *testing.T) {
	identity := New(newFakeValues())

	ref, err := identity.Lookup("p1")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestStoreAndLookup(t *testing.T) {
	identity := New(newFakeValues())

	require.NoError(t, identity.Store("p1", RecordRef{RecordID: "abc12-xyz34", ConceptID: "abc11-xyz33"}))

	ref, err := identity.Lookup("p1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "abc12-xyz34", ref.RecordID)
	assert.Equal(t, "abc11-xyz33", ref.ConceptID)
}

func TestClear_WritesEmptyMarker(t *testing.T) {
	values := newFakeValues()
	identity := New(values)

	require.NoError(t, identity.Store("p1", RecordRef{RecordID: "abc12-xyz34"}))
	require.NoError(t, identity.Clear("p1"))

	// Cleared reads as nil, but the attribute itself remains present.
	ref, err := identity.Lookup("p1")
	require.NoError(t, err)
	assert.Nil(t, ref)

	val, ok, err := values.Get("p1", AttributeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, val)
}

func TestLookup_BareConceptValue(t *testing.T) {
	values := newFakeValues()
	require.NoError(t, values.Set("p1", AttributeKey, "1234567"))

	ref, err := New(values).Lookup("p1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Empty(t, ref.RecordID)
	assert.Equal(t, "1234567", ref.ConceptID)
	assert.Equal(t, "1234567", ref.FetchID())
}

func TestLookup_EmptyObject(t *testing.T) {
	values := newFakeValues()
	require.NoError(t, values.Set("p1", AttributeKey, "{}"))

	ref, err := New(values).Lookup("p1")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestLookup_MalformedJSON(t *testing.T) {
	values := newFakeValues()
	require.NoError(t, values.Set("p1", AttributeKey, `{"record_id":`))

	_, err := New(values).Lookup("p1")
	require.Error(t, err)
}

func TestLookup_StoreError(t *testing.T) {
	values := newFakeValues()
	values.err = errors.New("db locked")

	_, err := New(values).Lookup("p1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "db locked")
}

func TestFetchID_PrefersRecordID(t *testing.T) {
	assert.Equal(t, "r1", RecordRef{RecordID: "r1", ConceptID: "c1"}.FetchID())
	assert.Equal(t, "c1", RecordRef{ConceptID: "c1"}.FetchID())
}
