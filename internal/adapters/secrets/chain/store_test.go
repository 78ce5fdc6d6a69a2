package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	portmocks "github.com/bnema/truck-load-watch/internal/ports/mocks"
)

func newChain(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(Backend{Name: "pass", Store: primary}, Backend{Name: "file", Store: fallback})
	require.NoError(t, err)

	return store, primary, fallback
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.EXPECT().Get(mock.Anything, "market/password").Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), "market/password")
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Get(mock.Anything, "market/password").Return("", errors.New("pass unavailable")).Once()
	fallback.EXPECT().Get(mock.Anything, "market/password").Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), "market/password")
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetJoinsErrorsWhenEveryBackendFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	passErr := errors.New("pass failed")
	fileErr := errors.New("file failed")
	primary.EXPECT().Get(mock.Anything, "market/password").Return("", passErr).Once()
	fallback.EXPECT().Get(mock.Anything, "market/password").Return("", fileErr).Once()

	_, err := store.Get(context.Background(), "market/password")
	require.Error(t, err)
	assert.ErrorIs(t, err, passErr)
	assert.ErrorIs(t, err, fileErr)
	assert.ErrorContains(t, err, "pass backend get failed")
	assert.ErrorContains(t, err, "file backend get failed")
}

func TestStoreGetStopsOnContextError(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.EXPECT().Get(mock.Anything, "market/password").Return("", context.DeadlineExceeded).Once()

	_, err := store.Get(context.Background(), "market/password")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewStoreValidatesBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore()
	require.ErrorIs(t, err, errNoBackends)

	_, err = NewStore(Backend{Name: "pass"})
	require.ErrorContains(t, err, "secret backend 0 (pass) is nil")
}
