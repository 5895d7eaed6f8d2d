package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// CheckpointStore persists the last fully-processed block number. It is
// read once at the start of a run and written once at the end; no partial
// updates exist.
type CheckpointStore interface {
	// Get returns the committed block, or ErrCheckpointNotFound when no
	// checkpoint has been written yet.
	Get(ctx context.Context) (uint64, error)
	// Set commits block as fully processed.
	Set(ctx context.Context, block uint64) error
}

type checkpointFile struct {
	LastBlock uint64 `json:"last_block"`
}

// FileCheckpoint stores the checkpoint in a small JSON file.
type FileCheckpoint struct {
	path string
	mu   sync.Mutex
}

// NewFileCheckpoint builds a file-backed checkpoint store at path.
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// Get reads the committed block from disk. A missing file or a zero
// block means no checkpoint exists yet.
func (f *FileCheckpoint) Get(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrCheckpointNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint file: %w", err)
	}

	var state checkpointFile
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, fmt.Errorf("parse checkpoint file: %w", err)
	}
	if state.LastBlock == 0 {
		return 0, ErrCheckpointNotFound
	}
	return state.LastBlock, nil
}

// Set writes the committed block atomically via a rename.
func (f *FileCheckpoint) Set(ctx context.Context, block uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.MarshalIndent(checkpointFile{LastBlock: block}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

var _ CheckpointStore = (*FileCheckpoint)(nil)
