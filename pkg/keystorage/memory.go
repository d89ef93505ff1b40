package keystorage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps entries in memory. Useful for tests and short-lived tools.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*KeyEntry
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]*KeyEntry)}
}

// Save stores a new entry. It returns ErrEntryExists if name is taken.
func (s *MemoryStorage) Save(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return nil, ErrEntryExists
	}
	ts := now()
	entry := &KeyEntry{Name: name, Value: value, Meta: cloneMeta(meta), CreatedAt: ts, ModifiedAt: ts}
	s.entries[name] = entry
	return cloneEntry(entry), nil
}

// Load returns the entry stored under name, or nil if there is none.
func (s *MemoryStorage) Load(ctx context.Context, name string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

// Exists reports whether an entry is stored under name.
func (s *MemoryStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[name]
	return ok, nil
}

// Remove deletes the entry stored under name and reports whether it existed.
func (s *MemoryStorage) Remove(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[name]
	delete(s.entries, name)
	return ok, nil
}

// Update replaces the value and meta of an existing entry. It returns
// ErrEntryNotFound if name is absent.
func (s *MemoryStorage) Update(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, ErrEntryNotFound
	}
	entry.Value = value
	entry.Meta = cloneMeta(meta)
	entry.ModifiedAt = now()
	return cloneEntry(entry), nil
}

// Clear removes all entries.
func (s *MemoryStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*KeyEntry)
	return nil
}

// List returns all entries sorted by name.
func (s *MemoryStorage) List(ctx context.Context) ([]*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*KeyEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, cloneEntry(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ Storage = (*MemoryStorage)(nil)
