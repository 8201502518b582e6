package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/okian/waypoint/pkg/logger"
)

const fileExt = ".json"

// FileStore keeps each document in <dir>/<namespace>/<name>.json.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	closed bool
	log    logger.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty storage directory", ErrStorage)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	o := buildOptions(opts)
	return &FileStore{dir: dir, log: o.log.Named("docstore.file")}, nil
}

func (s *FileStore) path(k Key) string {
	return filepath.Join(s.dir, filepath.FromSlash(k.Namespace), k.Name+fileExt)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return slices.Clone(emptyDocument), nil
	}
	if err != nil {
		s.log.Error(ctx, "read document", logger.String("key", key.String()), logger.Error(err))
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, key, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return slices.Clone(emptyDocument), nil
	}
	return b, nil
}

// Save writes a temporary file next to the target and renames it over.
func (s *FileStore) Save(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	pretty.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := writeAtomic(target, pretty.Bytes()); err != nil {
		s.log.Error(ctx, "write document", logger.String("key", key.String()), logger.Error(err))
		return fmt.Errorf("%w: write %s: %w", ErrStorage, key, err)
	}
	s.log.Debug(ctx, "document saved", logger.String("key", key.String()), logger.Int("bytes", pretty.Len()))
	return nil
}

func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Keys implements Store. Temporary files are skipped.
func (s *FileStore) Keys(_ context.Context, namespace string) ([]string, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, filepath.FromSlash(namespace)))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrStorage, namespace, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, fileExt))
	}
	slices.Sort(names)
	return names, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
