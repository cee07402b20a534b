package storage

import (
	"path/filepath"
	"testing"

	require "github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, st Store) {
	t.Helper()

	_, err := st.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Put([]byte("a"), []byte("one")))
	require.NoError(t, st.Put([]byte("b"), []byte("two")))

	val, err := st.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), val)

	require.NoError(t, st.Put([]byte("a"), []byte("uno")))
	val, err = st.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("uno"), val)

	keys, err := st.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, st.Delete([]byte("a")))
	_, err = st.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Clear())
	keys, err = st.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMemoryStoreContract(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	runStoreContract(t, st)
}

func TestBoltStoreContract(t *testing.T) {
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "meshsync.db"), []byte("contacts"))
	require.NoError(t, err)
	defer st.Close()
	runStoreContract(t, st)
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshsync.db")
	st, err := NewBoltStore(path, []byte("contacts"))
	require.NoError(t, err)
	require.NoError(t, st.Put([]byte("k"), []byte("v")))
	require.NoError(t, st.Close())

	st, err = NewBoltStore(path, []byte("contacts"))
	require.NoError(t, err)
	defer st.Close()
	val, err := st.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), val)
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	st := NewMemoryStore()
	buf := []byte("mutable")
	require.NoError(t, st.Put([]byte("k"), buf))
	buf[0] = 'X'
	val, err := st.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("mutable"), val)
}
