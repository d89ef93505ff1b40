package keystorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const entryExt = ".json"

// FileStorage keeps one JSON file per entry in a directory.
// Default location: ~/.capiscio/keys/
type FileStorage struct {
	dir    string
	mu     sync.RWMutex
	create func(path string) (entryFile, error)
}

type entryFile interface {
	io.WriteCloser
	Name() string
}

// createExclusive creates path, failing with os.ErrExist if it is present.
func createExclusive(path string) (entryFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DefaultKeysDir returns the default key storage directory.
func DefaultKeysDir() string {
	if envPath := os.Getenv("CAPISCIO_KEYS_PATH"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".capiscio/keys"
	}
	return filepath.Join(home, ".capiscio", "keys")
}

// NewFileStorage creates a file-based storage rooted at dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		dir = DefaultKeysDir()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	return &FileStorage{dir: dir, create: createExclusive}, nil
}

// Dir returns the storage directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) entryPath(name string) string {
	return filepath.Join(s.dir, encodeFilename(name)+entryExt)
}

// Save stores a new entry. It returns ErrEntryExists if name is taken.
func (s *FileStorage) Save(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	entry := &KeyEntry{Name: name, Value: value, Meta: cloneMeta(meta), CreatedAt: ts, ModifiedAt: ts}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	f, err := s.create(s.entryPath(name))
	if errors.Is(err, os.ErrExist) {
		return nil, ErrEntryExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}

	return entry, nil
}

// Load returns the entry stored under name, or nil if there is none.
func (s *FileStorage) Load(ctx context.Context, name string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.read(s.entryPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entry, err
}

// Exists reports whether an entry is stored under name.
func (s *FileStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.entryPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat entry: %w", err)
	}
	return true, nil
}

// Remove deletes the entry stored under name and reports whether it existed.
func (s *FileStorage) Remove(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateName(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.entryPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove entry: %w", err)
	}
	return true, nil
}

// Update replaces the value and meta of an existing entry. It returns
// ErrEntryNotFound if name is absent.
func (s *FileStorage) Update(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(name)
	entry, err := s.read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.Value = value
	entry.Meta = cloneMeta(meta)
	entry.ModifiedAt = now()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial entry.
	tmp, err := os.CreateTemp(s.dir, ".update-*")
	if err != nil {
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to replace entry: %w", err)
	}

	return entry, nil
}

// Clear removes all entries.
func (s *FileStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryFiles()
	if err != nil {
		return err
	}
	for _, fn := range names {
		if err := os.Remove(filepath.Join(s.dir, fn)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
	}
	return nil
}

// List returns all entries sorted by name.
func (s *FileStorage) List(ctx context.Context) ([]*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := make([]*KeyEntry, 0, len(names))
	for _, fn := range names {
		entry, err := s.read(filepath.Join(s.dir, fn))
		if err != nil {
			continue // Skip unreadable entries
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *FileStorage) entryFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys directory: %w", err)
	}
	var names []string
	for _, e := range dirEntries {
		if e.IsDir() || filepath.Ext(e.Name()) != entryExt {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FileStorage) read(path string) (*KeyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}

	var entry KeyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse entry %s: %w", filepath.Base(path), err)
	}
	return &entry, nil
}

// encodeFilename maps an entry name to a safe, unique filename.
// Characters that are unsafe in filenames, plus '%' itself, become %XX.
func encodeFilename(name string) string {
	var b strings.Builder
	for i, c := range []byte(name) {
		switch {
		case c == '/', c == '\\', c == ':', c == '*', c == '?', c == '"',
			c == '<', c == '>', c == '|', c == '%', c < 0x20, c == 0x7f,
			c == '.' && i == 0:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var _ Storage = (*FileStorage)(nil)
