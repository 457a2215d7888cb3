package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoSnapshot is returned when no sync has completed yet.
	ErrNoSnapshot = errors.New("catalog: no sync snapshot")
	// ErrRecordNotFound is returned when an id is not in the catalog.
	ErrRecordNotFound = errors.New("catalog: record not found")
	// ErrSnapshotNotSaved is returned by Save when the catalog was replaced
	// but the snapshot write failed afterwards.
	ErrSnapshotNotSaved = errors.New("catalog: catalog replaced but snapshot not saved")
)

// FileStore keeps the catalog and the sync snapshot as JSON files in one
// directory. Writes go through a temp file and rename so readers never see a
// half-written catalog.
type FileStore struct {
	dir          string
	catalogName  string
	snapshotName string

	mu sync.RWMutex
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir, catalogName, snapshotName string) *FileStore {
	if catalogName == "" {
		catalogName = "products.json"
	}
	if snapshotName == "" {
		snapshotName = "varejo-facil-sync.json"
	}
	return &FileStore{dir: dir, catalogName: catalogName, snapshotName: snapshotName}
}

// CatalogPath returns the catalog file location.
func (s *FileStore) CatalogPath() string { return filepath.Join(s.dir, s.catalogName) }

// SnapshotPath returns the snapshot file location.
func (s *FileStore) SnapshotPath() string { return filepath.Join(s.dir, s.snapshotName) }

// Load reads the current catalog. A missing or empty file yields an empty
// catalog; malformed JSON is an error.
func (s *FileStore) Load() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.CatalogPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.CatalogPath(), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", s.CatalogPath(), err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save writes the catalog and then the snapshot. If the catalog write fails
// nothing is replaced. A snapshot failure after that is reported as
// ErrSnapshotNotSaved, since the new catalog is already live.
func (s *FileStore) Save(records []Record, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("catalog: create %s: %w", s.dir, err)
	}
	if records == nil {
		records = []Record{}
	}
	if err := writeJSONAtomic(s.CatalogPath(), records); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.SnapshotPath(), snap); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotNotSaved, err)
	}
	return nil
}

// Snapshot reads the last snapshot.
func (s *FileStore) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.SnapshotPath())
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: read %s: %w", s.SnapshotPath(), err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("catalog: decode %s: %w", s.SnapshotPath(), err)
	}
	return snap, nil
}

// UpdateImage sets the image of one record in place and returns the updated
// record. The snapshot is left untouched.
func (s *FileStore) UpdateImage(id ID, image string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		records[i].Image = strings.TrimSpace(image)
		if err := writeJSONAtomic(s.CatalogPath(), records); err != nil {
			return Record{}, err
		}
		return records[i], nil
	}
	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("catalog: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("catalog: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("catalog: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("catalog: replace %s: %w", path, err)
	}
	return nil
}
