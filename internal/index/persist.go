package index

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/storage"
)

const (
	indexDirName     = "index"
	manifestFileName = "manifest.json"
	passagesFileName = "passages.json"
	vectorsFileName  = "vectors.bin"
)

type manifest struct {
	VideoID   string    `json:"video_id"`
	Provider  string    `json:"provider"`
	Dimension int       `json:"dimension"`
	Passages  int       `json:"passages"`
	CreatedAt time.Time `json:"created_at"`
}

// Save persists the index into the video's workspace. Everything is
// written to a staging directory first and renamed into place, so a
// concurrent loader sees either the previous index or the new one.
func Save(store *storage.FileStore, ix *PassageIndex) error {
	workspace, err := store.EnsureWorkspace(ix.VideoID)
	if err != nil {
		return err
	}
	staging, err := os.MkdirTemp(workspace, ".index-build-*")
	if err != nil {
		return fmt.Errorf("index: staging dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	man := manifest{
		VideoID:   ix.VideoID,
		Provider:  ix.Provider,
		Dimension: ix.Dimension,
		Passages:  len(ix.Passages),
		CreatedAt: ix.CreatedAt,
	}
	if err := writeJSON(filepath.Join(staging, manifestFileName), man); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, passagesFileName), ix.Passages); err != nil {
		return err
	}
	if err := writeVectors(filepath.Join(staging, vectorsFileName), ix); err != nil {
		return err
	}

	final := filepath.Join(workspace, indexDirName)
	old := filepath.Join(workspace, ".index-old")
	_ = os.RemoveAll(old)
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, old); err != nil {
			return fmt.Errorf("index: retire previous index: %w", err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		// Put the previous index back; the workspace must never be left
		// without a complete index when it had one.
		_ = os.Rename(old, final)
		return fmt.Errorf("index: install: %w", err)
	}
	_ = os.RemoveAll(old)
	return nil
}

// Load reads a persisted index from the video's workspace.
func Load(store *storage.FileStore, videoID string) (*PassageIndex, error) {
	workspace, err := store.Workspace(videoID)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(workspace, indexDirName)

	var man manifest
	if err := readJSON(filepath.Join(dir, manifestFileName), &man); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var passages []domain.Passage
	if err := readJSON(filepath.Join(dir, passagesFileName), &passages); err != nil {
		return nil, err
	}
	if err := readVectors(filepath.Join(dir, vectorsFileName), man.Dimension, passages); err != nil {
		return nil, err
	}
	return &PassageIndex{
		VideoID:   man.VideoID,
		Provider:  man.Provider,
		Dimension: man.Dimension,
		CreatedAt: man.CreatedAt,
		Passages:  passages,
	}, nil
}

// Registry is the in-process view of built indexes. Swapping an index for
// a video is atomic with respect to readers: a retrieval that started
// before a rebuild completes sees the old complete index.
type Registry struct {
	mu      sync.RWMutex
	store   *storage.FileStore
	indexes map[string]*PassageIndex
}

// NewRegistry creates a registry backed by the artifact store.
func NewRegistry(store *storage.FileStore) *Registry {
	return &Registry{store: store, indexes: make(map[string]*PassageIndex)}
}

// Swap installs a freshly built index for its video.
func (r *Registry) Swap(ix *PassageIndex) {
	r.mu.Lock()
	r.indexes[ix.VideoID] = ix
	r.mu.Unlock()
}

// Drop forgets a video's index, e.g. on cleanup.
func (r *Registry) Drop(videoID string) {
	r.mu.Lock()
	delete(r.indexes, videoID)
	r.mu.Unlock()
}

// Get returns the current index for a video, falling back to disk after
// a restart. The returned index is immutable.
func (r *Registry) Get(videoID string) (*PassageIndex, error) {
	r.mu.RLock()
	ix, ok := r.indexes[videoID]
	r.mu.RUnlock()
	if ok {
		return ix, nil
	}
	ix, err := Load(r.store, videoID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if cached, ok := r.indexes[videoID]; ok {
		ix = cached
	} else {
		r.indexes[videoID] = ix
	}
	r.mu.Unlock()
	return ix, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("index: write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("index: parse %s: %w", path, err)
	}
	return nil
}

// writeVectors lays the embedded passages' vectors out as little-endian
// float32 rows, ordered by passage ordinal.
func writeVectors(path string, ix *PassageIndex) error {
	var buf bytes.Buffer
	for _, p := range ix.Passages {
		if !p.Embedded {
			continue
		}
		if err := binary.Write(&buf, binary.LittleEndian, p.Vector); err != nil {
			return fmt.Errorf("index: encode vectors: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("index: write %s: %w", path, err)
	}
	return nil
}

func readVectors(path string, dim int, passages []domain.Passage) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	reader := bytes.NewReader(data)
	for i := range passages {
		if !passages[i].Embedded {
			continue
		}
		vec := make([]float32, dim)
		if err := binary.Read(reader, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("index: decode vectors: %w", err)
		}
		passages[i].Vector = vec
	}
	return nil
}
