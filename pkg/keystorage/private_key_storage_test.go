package keystorage_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/keystorage"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of keystorage.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, name, value string, meta map[string]string) (*keystorage.KeyEntry, error) {
	args := m.Called(ctx, name, value, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keystorage.KeyEntry), args.Error(1)
}

func (m *MockStorage) Load(ctx context.Context, name string) (*keystorage.KeyEntry, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keystorage.KeyEntry), args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Remove(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Update(ctx context.Context, name, value string, meta map[string]string) (*keystorage.KeyEntry, error) {
	args := m.Called(ctx, name, value, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keystorage.KeyEntry), args.Error(1)
}

func (m *MockStorage) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStorage) List(ctx context.Context) ([]*keystorage.KeyEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keystorage.KeyEntry), args.Error(1)
}

func newKeys(t *testing.T) *crypto.KeyPair {
	t.Helper()
	keys, err := crypto.NewEd25519Crypto().GenerateKeys()
	require.NoError(t, err)
	return keys
}

func TestPrivateKeyStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	keys := newKeys(t)

	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter("alice-key"), keystorage.NewMemoryStorage())
	require.NoError(t, err)

	require.NoError(t, storage.Store(ctx, "alice", keys.PrivateKey, map[string]string{"identity": "alice"}))

	entry, err := storage.Load(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, map[string]string{"identity": "alice"}, entry.Meta)

	loaded, ok := entry.PrivateKey.(ed25519.PrivateKey)
	require.True(t, ok)
	assert.True(t, keys.PrivateKey.Equal(loaded))
}

func TestPrivateKeyStorageStoreTwice(t *testing.T) {
	ctx := context.Background()
	keys := newKeys(t)

	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), keystorage.NewMemoryStorage())
	require.NoError(t, err)

	require.NoError(t, storage.Store(ctx, "alice", keys.PrivateKey, nil))
	err = storage.Store(ctx, "alice", keys.PrivateKey, nil)
	assert.ErrorIs(t, err, sdkerr.ErrPrivateKeyExists)
	assert.ErrorIs(t, err, keystorage.ErrEntryExists)
}

func TestPrivateKeyStorageLoadMissing(t *testing.T) {
	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), keystorage.NewMemoryStorage())
	require.NoError(t, err)

	entry, err := storage.Load(context.Background(), "never-stored")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPrivateKeyStorageDelete(t *testing.T) {
	ctx := context.Background()

	backend := new(MockStorage)
	backend.On("Remove", ctx, "gone").Return(false, nil)
	backend.On("Remove", ctx, "broken").Return(false, errors.New("disk on fire"))

	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), backend)
	require.NoError(t, err)

	assert.NoError(t, storage.Delete(ctx, "gone"))
	assert.EqualError(t, storage.Delete(ctx, "broken"), "disk on fire")
	backend.AssertExpectations(t)
}

func TestPrivateKeyStoragePassesThroughBackendErrors(t *testing.T) {
	ctx := context.Background()
	keys := newKeys(t)
	backendErr := errors.New("backend unavailable")

	backend := new(MockStorage)
	backend.On("Save", ctx, "alice", mock.AnythingOfType("string"), map[string]string(nil)).Return(nil, backendErr)
	backend.On("Load", ctx, "alice").Return(nil, backendErr)

	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), backend)
	require.NoError(t, err)

	err = storage.Store(ctx, "alice", keys.PrivateKey, nil)
	assert.Same(t, backendErr, err)

	_, err = storage.Load(ctx, "alice")
	assert.Same(t, backendErr, err)
	backend.AssertExpectations(t)
}

func TestPrivateKeyStorageCorruptEntry(t *testing.T) {
	ctx := context.Background()

	backend := new(MockStorage)
	backend.On("Load", ctx, "alice").Return(&keystorage.KeyEntry{Name: "alice", Value: "***"}, nil)

	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), backend)
	require.NoError(t, err)

	_, err = storage.Load(ctx, "alice")
	assert.ErrorIs(t, err, sdkerr.ErrParse)
}

func TestNewPrivateKeyStorageValidation(t *testing.T) {
	_, err := keystorage.NewPrivateKeyStorage(nil, keystorage.NewMemoryStorage())
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	_, err = keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), nil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)
}
