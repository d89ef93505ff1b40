package keystorage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// PrivateKeyEntry is a loaded private key with its metadata.
type PrivateKeyEntry struct {
	PrivateKey crypto.PrivateKey
	Meta       map[string]string
}

// PrivateKeyStorage stores private keys through a Storage backend. Keys are
// serialized with the exporter and base64-encoded. Existing entries are never
// overwritten.
type PrivateKeyStorage struct {
	exporter crypto.PrivateKeyExporter
	storage  Storage
}

// NewPrivateKeyStorage creates a PrivateKeyStorage.
func NewPrivateKeyStorage(exporter crypto.PrivateKeyExporter, storage Storage) (*PrivateKeyStorage, error) {
	if exporter == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "private key exporter is required")
	}
	if storage == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "key storage is required")
	}
	return &PrivateKeyStorage{exporter: exporter, storage: storage}, nil
}

// Store saves key under name. It fails with PRIVATE_KEY_EXISTS if the name
// is taken.
func (s *PrivateKeyStorage) Store(ctx context.Context, name string, key crypto.PrivateKey, meta map[string]string) error {
	data, err := s.exporter.ExportPrivateKey(key)
	if err != nil {
		return err
	}
	_, err = s.storage.Save(ctx, name, base64.StdEncoding.EncodeToString(data), meta)
	if errors.Is(err, ErrEntryExists) {
		return sdkerr.Wrap(sdkerr.CodePrivateKeyExists, fmt.Sprintf("private key %q already exists", name), err)
	}
	return err
}

// Load returns the key stored under name, or nil if there is none.
func (s *PrivateKeyStorage) Load(ctx context.Context, name string) (*PrivateKeyEntry, error) {
	entry, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(entry.Value)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, fmt.Sprintf("stored private key %q is not valid base64", name), err)
	}
	key, err := s.exporter.ImportPrivateKey(data)
	if err != nil {
		return nil, err
	}
	return &PrivateKeyEntry{PrivateKey: key, Meta: entry.Meta}, nil
}

// Delete removes the key stored under name. A missing key is not an error.
func (s *PrivateKeyStorage) Delete(ctx context.Context, name string) error {
	_, err := s.storage.Remove(ctx, name)
	return err
}
