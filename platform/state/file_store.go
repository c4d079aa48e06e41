package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

// FileStore keeps one JSON snapshot per stack in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// path escapes the stack name so separators and ".." stay inside dir.
func (s *FileStore) path(stack string) string {
	return filepath.Join(s.dir, url.PathEscape(stack)+".json")
}

// Load returns the snapshot stored for stack.
func (s *FileStore) Load(_ context.Context, stack string) (*platform.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(stack))
	if errors.Is(err, fs.ErrNotExist) {
		return &platform.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file state: load %q: %w", stack, err)
	}
	return platform.DecodeSnapshot(data)
}

// Save writes the snapshot through a temporary file so a crash never leaves
// a truncated snapshot behind.
func (s *FileStore) Save(_ context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("file state: create %s: %w", s.dir, err)
	}
	tmp := s.path(stack) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("file state: save %q: %w", stack, err)
	}
	if err := os.Rename(tmp, s.path(stack)); err != nil {
		return fmt.Errorf("file state: save %q: %w", stack, err)
	}
	return nil
}

// Delete removes the snapshot file for stack.
func (s *FileStore) Delete(_ context.Context, stack string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(stack)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file state: delete %q: %w", stack, err)
	}
	return nil
}

var _ platform.StateStore = (*FileStore)(nil)
