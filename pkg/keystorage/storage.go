// Package keystorage persists private key material by name.
//
// Storage is the backend contract; MemoryStorage, FileStorage and
// SQLiteStorage implement it. PrivateKeyStorage sits on top and converts
// between private keys and stored entries.
package keystorage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors returned by storage backends.
var (
	ErrEntryExists   = errors.New("key entry already exists")
	ErrEntryNotFound = errors.New("key entry not found")
	ErrInvalidName   = errors.New("invalid key entry name")
)

// KeyEntry is one stored value.
type KeyEntry struct {
	Name       string            `json:"name"`
	Value      string            `json:"value"`
	Meta       map[string]string `json:"meta,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	ModifiedAt time.Time         `json:"modified_at"`
}

// Storage is a name-keyed entry store.
type Storage interface {
	// Save creates an entry. It returns ErrEntryExists if name is taken.
	Save(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error)

	// Load returns the entry, or nil with no error if it does not exist.
	Load(ctx context.Context, name string) (*KeyEntry, error)

	// Exists reports whether an entry is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Remove deletes an entry and reports whether it existed.
	Remove(ctx context.Context, name string) (bool, error)

	// Update replaces value and meta of an existing entry.
	// It returns ErrEntryNotFound if there is none.
	Update(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// List returns all entries ordered by name.
	List(ctx context.Context) ([]*KeyEntry, error)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}

func cloneMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func cloneEntry(e *KeyEntry) *KeyEntry {
	c := *e
	c.Meta = cloneMeta(e.Meta)
	return &c
}

// now returns the current time at the millisecond precision all backends store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
