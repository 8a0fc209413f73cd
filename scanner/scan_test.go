package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/scanner"
	"github.com/nrdvana/casfs/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Create(t.TempDir(), store.CreateOptions{Algorithm: "sha1"})
	require.NoError(t, err)
	return st
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))
}

func TestScanBuildsTreeWithFilesDirsAndSymlinks(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	writeTree(t, root)

	entry, stats, err := scanner.Scan(st, "universal", root, nil)
	require.NoError(t, err)
	require.Equal(t, dirent.TypeDir, entry.Type)
	require.Equal(t, 2, stats.FileCount)
	require.Equal(t, 2, stats.DirCount) // root + sub
	require.Equal(t, 1, stats.SymlinkCount)

	dir, _, err := codec.Load(mustReadBlob(t, st, entry))
	require.NoError(t, err)

	a, ok := dir.ByName(dirent.NameFromString("a.txt"))
	require.True(t, ok)
	require.Equal(t, dirent.TypeFile, a.Type)
	require.True(t, a.HasRef)

	link, ok := dir.ByName(dirent.NameFromString("link"))
	require.True(t, ok)
	require.Equal(t, dirent.TypeSymlink, link.Type)
	require.Equal(t, "a.txt", link.Ref.String())

	sub, ok := dir.ByName(dirent.NameFromString("sub"))
	require.True(t, ok)
	require.Equal(t, dirent.TypeDir, sub.Type)
}

func TestScanExcludesMatchingPaths(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	writeTree(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.log"), []byte("x"), 0o644))

	entry, _, err := scanner.Scan(st, "universal", root, nil, scanner.WithExclude("*.log"))
	require.NoError(t, err)

	dir, _, err := codec.Load(mustReadBlob(t, st, entry))
	require.NoError(t, err)
	_, ok := dir.ByName(dirent.NameFromString("ignore.log"))
	require.False(t, ok)
}

func TestScanReusesHintDigestForUnchangedFile(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	writeTree(t, root)

	entry1, _, err := scanner.Scan(st, "universal", root, nil)
	require.NoError(t, err)
	dir1, _, err := codec.Load(mustReadBlob(t, st, entry1))
	require.NoError(t, err)

	entry2, stats2, err := scanner.Scan(st, "universal", root, &dir1)
	require.NoError(t, err)
	require.Equal(t, 2, stats2.ReusedCount)

	a1, _ := dir1.ByName(dirent.NameFromString("a.txt"))
	dir2, _, err := codec.Load(mustReadBlob(t, st, entry2))
	require.NoError(t, err)
	a2, _ := dir2.ByName(dirent.NameFromString("a.txt"))
	require.Equal(t, a1.Ref.String(), a2.Ref.String())
}

func mustReadBlob(t *testing.T, st *store.Store, e dirent.DirEnt) []byte {
	t.Helper()
	h, err := st.Get(e.RefDigest())
	require.NoError(t, err)
	require.NotNil(t, h)
	defer h.Close()
	blob, err := h.ReadAll()
	require.NoError(t, err)
	return blob
}
