package repo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickroot/codec"
	"quickroot/db"
	"quickroot/model"
)

type memStore struct {
	data    map[string]string
	failPut bool
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Put(key, value string) error {
	if m.failPut {
		return errors.New("disk full")
	}
	m.data[key] = value
	return nil
}

// fixedClock always reports the same instant so identifiers must come from
// the monotonic fallback.
func fixedClock() func() time.Time {
	ts := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return ts }
}

func newTestRepo(t *testing.T, store Store) *Repository {
	t.Helper()
	r, err := New(store, nil, WithClock(fixedClock()))
	require.NoError(t, err)
	return r
}

func ids(list []model.Command) []int64 {
	out := make([]int64, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestNewEmptyStore(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	assert.Empty(t, r.List())
}

func TestNewCorruptBlob(t *testing.T) {
	store := newMemStore()
	store.data[Key] = "{not json"

	_, err := New(store, nil)
	require.Error(t, err)
	var de *codec.DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	r := newTestRepo(t, newMemStore())

	a, err := r.Add("a", "true")
	require.NoError(t, err)
	b, err := r.Add("b", "true")
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_000), a.ID)
	assert.Greater(t, b.ID, a.ID)
}

func TestAddRejectsEmptyName(t *testing.T) {
	r := newTestRepo(t, newMemStore())

	_, err := r.Add("   ", "ls")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, r.List())
}

func TestAddAllowsEmptyScript(t *testing.T) {
	r := newTestRepo(t, newMemStore())

	c, err := r.Add("noop", "")
	require.NoError(t, err)
	assert.Equal(t, "", c.Script)
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	store := newMemStore()
	r := newTestRepo(t, store)
	require.NoError(t, r.MergeOverwrite([]model.Command{
		{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 2, Name: "b-dup"}, {ID: 3, Name: "c"},
	}))

	removed, err := r.Delete(2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []int64{1, 2, 3}, ids(r.List()))
	assert.Equal(t, "b-dup", r.List()[1].Name)

	removed, err = r.Delete(42)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, r.List(), 3)
}

func TestMergeAppendIDsDisjoint(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	require.NoError(t, r.MergeOverwrite([]model.Command{
		{ID: 1_700_000_000_005, Name: "existing"},
		{ID: 3, Name: "old"},
	}))
	before := map[int64]bool{}
	for _, c := range r.List() {
		before[c.ID] = true
	}

	added, err := r.MergeAppend([]model.Command{
		{ID: 3, Name: "imported-a", Script: "a"},
		{ID: 1_700_000_000_005, Name: "imported-b", Script: "b"},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)

	seen := map[int64]bool{}
	for _, c := range added {
		assert.False(t, before[c.ID], "id %d collides with existing", c.ID)
		assert.False(t, seen[c.ID], "id %d assigned twice", c.ID)
		seen[c.ID] = true
		assert.Greater(t, c.ID, int64(1_700_000_000_005))
	}

	list := r.List()
	require.Len(t, list, 4)
	assert.Equal(t, "existing", list[0].Name)
	assert.Equal(t, "old", list[1].Name)
	assert.Equal(t, "imported-a", list[2].Name)
	assert.Equal(t, "imported-b", list[3].Name)
}

func TestMergeAppendDoesNotMutateInput(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	imported := []model.Command{{ID: 5, Name: "x"}}

	_, err := r.MergeAppend(imported)
	require.NoError(t, err)
	assert.Equal(t, int64(5), imported[0].ID)
}

func TestMergeOverwriteReplacesVerbatim(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	_, err := r.Add("old", "rm -rf /tmp/x")
	require.NoError(t, err)

	imported := []model.Command{{ID: 9, Name: "n", Script: "s"}, {ID: 9, Name: "m", Script: ""}}
	require.NoError(t, r.MergeOverwrite(imported))
	assert.Equal(t, imported, r.List())

	require.NoError(t, r.MergeOverwrite([]model.Command{}))
	assert.Empty(t, r.List())
}

func TestPersistFailureLeavesSnapshot(t *testing.T) {
	store := newMemStore()
	r := newTestRepo(t, store)
	_, err := r.Add("keep", "true")
	require.NoError(t, err)

	store.failPut = true
	_, err = r.Add("lost", "true")
	require.Error(t, err)
	_, err = r.MergeAppend([]model.Command{{Name: "x"}})
	require.Error(t, err)
	require.Error(t, r.MergeOverwrite(nil))
	_, err = r.Delete(r.List()[0].ID)
	require.Error(t, err)

	require.Len(t, r.List(), 1)
	assert.Equal(t, "keep", r.List()[0].Name)
}

func TestListIsCopy(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	_, err := r.Add("a", "")
	require.NoError(t, err)

	l := r.List()
	l[0].Name = "changed"
	assert.Equal(t, "a", r.List()[0].Name)
}

func TestGetAndFindByName(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	c, err := r.Add("whoami", "id")
	require.NoError(t, err)

	got, ok := r.Get(c.ID)
	assert.True(t, ok)
	assert.Equal(t, c, got)

	got, ok = r.FindByName("whoami")
	assert.True(t, ok)
	assert.Equal(t, c, got)

	_, ok = r.Get(c.ID + 1)
	assert.False(t, ok)
	_, ok = r.FindByName("nope")
	assert.False(t, ok)
}

func TestScenarioAgainstSQLite(t *testing.T) {
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	r, err := New(store, nil)
	require.NoError(t, err)
	require.Empty(t, r.List())

	first, err := r.Add("list", "ls -la")
	require.NoError(t, err)
	require.Len(t, r.List(), 1)
	assert.NotZero(t, first.ID)

	second, err := r.Add("id", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "id"}, []string{r.List()[0].Name, r.List()[1].Name})

	removed, err := r.Delete(first.ID)
	require.NoError(t, err)
	require.True(t, removed)
	assert.Equal(t, []model.Command{second}, r.List())

	// a second repository over the same store sees the persisted state
	reloaded, err := New(store, nil)
	require.NoError(t, err)
	assert.Equal(t, []model.Command{second}, reloaded.List())
}

func TestAddAfterMaxIDStaysUnique(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	require.NoError(t, r.MergeOverwrite([]model.Command{
		{ID: math.MaxInt64, Name: "max"},
		{ID: 1, Name: "one"},
	}))

	a, err := r.Add("a", "")
	require.NoError(t, err)
	b, err := r.Add("b", "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), a.ID)
	assert.Equal(t, int64(3), b.ID)

	added, err := r.MergeAppend([]model.Command{{Name: "c"}, {Name: "d"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids(added))

	seen := map[int64]bool{}
	for _, c := range r.List() {
		assert.False(t, seen[c.ID], "id %d assigned twice", c.ID)
		seen[c.ID] = true
	}

	removed, err := r.Delete(a.ID)
	require.NoError(t, err)
	require.True(t, removed)
	_, ok := r.Get(b.ID)
	assert.True(t, ok)
}

func TestSaveCopiesInput(t *testing.T) {
	r := newTestRepo(t, newMemStore())
	list := []model.Command{{ID: 1, Name: "a"}}
	require.NoError(t, r.Save(list))

	list[0].Name = "changed"
	assert.Equal(t, "a", r.List()[0].Name)
}
