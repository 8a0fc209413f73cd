package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Create(dir, store.CreateOptions{Algorithm: "sha1"})
	require.NoError(t, err)
	return s
}

func TestHashOfNullBootstrap(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", string(s.HashOfNull()))

	h, err := s.Get(s.HashOfNull())
	require.NoError(t, err)
	require.NotNil(t, h)
	defer h.Close()
	require.Equal(t, int64(0), h.Size())
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello, world")
	d, err := s.Put(data, store.PutOptions{})
	require.NoError(t, err)

	h, err := s.Get(d)
	require.NoError(t, err)
	require.NotNil(t, h)
	defer h.Close()

	got, err := h.ReadAll()
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestPutDeduplicates(t *testing.T) {
	s := newTestStore(t)
	data := []byte("same content")

	d1, err := s.Put(data, store.PutOptions{})
	require.NoError(t, err)
	d2, err := s.Put(data, store.PutOptions{})
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestValidate(t *testing.T) {
	s := newTestStore(t)
	d, err := s.Put([]byte("validate me"), store.PutOptions{})
	require.NoError(t, err)
	require.Equal(t, store.Valid, s.Validate(d))
	require.Equal(t, store.Missing, s.Validate("0000000000000000000000000000000000000000"))
}

func TestPutHardlink(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.bin")
	content := make([]byte, 10*1024*1024)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	s := newTestStore(t)
	d, err := s.PutFile(srcPath, store.PutOptions{})
	require.NoError(t, err)

	h, err := s.Get(d)
	require.NoError(t, err)
	defer h.Close()
	got, err := h.ReadAll()
	require.NoError(t, err)
	require.Equal(t, content, got)

	// With the default fanout [1,2], the blob lives at a/bc/def...; it
	// must be the source file's inode, not a copy.
	srcInfo, err := os.Stat(srcPath)
	require.NoError(t, err)
	hex := string(d)
	blobInfo, err := os.Stat(filepath.Join(s.Root(), hex[:1], hex[1:3], hex[3:]))
	require.NoError(t, err)
	require.True(t, os.SameFile(srcInfo, blobInfo))
}

func TestOpenRejectsWrongAlgorithm(t *testing.T) {
	dir := t.TempDir()
	_, err := store.Create(dir, store.CreateOptions{Algorithm: "sha1"})
	require.NoError(t, err)

	confDigest := filepath.Join(dir, "conf", "digest")
	require.NoError(t, os.WriteFile(confDigest, []byte("not-a-real-algo\n"), 0o644))

	_, err = store.Open(dir)
	require.Error(t, err)
}

func TestIterateIncludesPutBlobs(t *testing.T) {
	s := newTestStore(t)
	d, err := s.Put([]byte("iterate me"), store.PutOptions{})
	require.NoError(t, err)

	digests, err := s.Iterate()
	require.NoError(t, err)

	found := false
	for _, got := range digests {
		if got == d {
			found = true
		}
	}
	require.True(t, found)
}
