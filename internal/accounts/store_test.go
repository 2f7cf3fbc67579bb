package accounts

import (
	"path/filepath"
	"testing"

	"github.com/hactazia/quiznet/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLogin(t *testing.T) {
	s, err := New(DefaultCapacity, nil)
	require.NoError(t, err)

	require.NoError(t, s.Register("alice", "p1"))
	require.ErrorIs(t, s.Register("alice", "p2"), apperr.ErrConflict)

	require.NoError(t, s.Login("alice", "p1"))
	require.ErrorIs(t, s.Login("alice", "wrong"), apperr.ErrUnauthorized)
	require.ErrorIs(t, s.Login("bob", "p1"), apperr.ErrUnauthorized)
}

func TestRegisterAtCapacity(t *testing.T) {
	s, err := New(1, nil)
	require.NoError(t, err)
	require.NoError(t, s.Register("alice", "p1"))
	require.ErrorIs(t, s.Register("bob", "p1"), apperr.ErrCapacity)
}

func TestFind(t *testing.T) {
	s, err := New(DefaultCapacity, nil)
	require.NoError(t, err)
	_, ok := s.Find("alice")
	require.False(t, ok)

	require.NoError(t, s.Register("alice", "p1"))
	acc, ok := s.Find("alice")
	require.True(t, ok)
	require.Equal(t, "alice", acc.Pseudo)
	require.NotEmpty(t, acc.PasswordHash)
	require.NotEqual(t, "p1", acc.PasswordHash)
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.dat")
	persister := FilePersister{Path: path}

	s, err := New(DefaultCapacity, persister)
	require.NoError(t, err)
	require.NoError(t, s.Register("alice", "p1"))
	require.NoError(t, s.Register("bob", "p2"))

	reloaded, err := New(DefaultCapacity, persister)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Size())
	require.NoError(t, reloaded.Login("alice", "p1"))
	require.NoError(t, reloaded.Login("bob", "p2"))
}

func TestFilePersisterToleratesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.dat")
	records, err := (FilePersister{Path: path}).Load()
	require.NoError(t, err)
	require.Nil(t, records)
}
