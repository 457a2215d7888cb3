package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "data"), "", "")
}

func TestFileStoreLoadMissingIsEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = store.Snapshot()
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileStoreSaveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	records := []Record{{ID: "1", Name: "Arroz", Image: customImage, Tags: []string{"mercearia"}}}
	snap := Snapshot{
		RunID:    "run-1",
		LastSync: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Totals:   Totals{Products: 1},
		Sections: []json.RawMessage{json.RawMessage(`{"id":3,"descricao":"MERCEARIA"}`)},
	}

	require.NoError(t, store.Save(records, snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	gotSnap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "run-1", gotSnap.RunID)
	assert.Equal(t, 1, gotSnap.Totals.Products)
	assert.JSONEq(t, `{"id":3,"descricao":"MERCEARIA"}`, string(gotSnap.Sections[0]))

	entries, err := os.ReadDir(filepath.Dir(store.CatalogPath()))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")
}

func TestFileStoreLoadCorruptFails(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.CatalogPath()), 0o755))
	require.NoError(t, os.WriteFile(store.CatalogPath(), []byte(`[{"id":`), 0o644))

	_, err := store.Load()
	require.Error(t, err)
}

func TestFileStoreSaveFailureKeepsPreviousCatalog(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "products.json", "sync.json")
	require.NoError(t, store.Save([]Record{{ID: "1", Name: "Antigo"}}, Snapshot{RunID: "old"}))

	blocked := NewFileStore(filepath.Join(dir, "products.json"), "products.json", "sync.json")
	require.Error(t, blocked.Save([]Record{{ID: "2"}}, Snapshot{RunID: "new"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Antigo", loaded[0].Name)
}

func TestFileStoreSnapshotFailureReportsReplacedCatalog(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "products.json", "sync.json")
	require.NoError(t, os.MkdirAll(filepath.Join(store.SnapshotPath(), "occupied"), 0o755))

	err := store.Save([]Record{{ID: "2", Name: "Novo"}}, Snapshot{RunID: "new"})
	require.ErrorIs(t, err, ErrSnapshotNotSaved)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Novo", loaded[0].Name)
}

func TestFileStoreUpdateImage(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save([]Record{{ID: "1", Image: PlaceholderImage}, {ID: "2"}}, Snapshot{}))

	rec, err := store.UpdateImage("1", " "+customImage+" ")
	require.NoError(t, err)
	assert.Equal(t, customImage, rec.Image)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, customImage, loaded[0].Image)

	_, err = store.UpdateImage("404", customImage)
	require.ErrorIs(t, err, ErrRecordNotFound)
}
