package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"screendeck/internal/safeio"
)

// FileStore keeps documents under OUTPUT_DIR/<owner>/<name>.
type FileStore struct {
	fs *safeio.SafeFS
}

func NewFileStore(root string) (*FileStore, error) {
	fsys, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}
	return &FileStore{fs: fsys}, nil
}

func (s *FileStore) Root() string { return s.fs.Root() }

func (s *FileStore) Put(_ context.Context, owner, name string, content []byte) error {
	owner, name, err := normalize(owner, name)
	if err != nil {
		return err
	}
	return s.fs.SafeWriteFile(filepath.Join(owner, name), content)
}

func (s *FileStore) Get(_ context.Context, owner, name string) ([]byte, error) {
	owner, name, err := normalize(owner, name)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.SafeReadFile(filepath.Join(owner, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FileStore) List(_ context.Context, owner string) ([]string, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	entries, err := s.fs.SafeReadDir(owner)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}
