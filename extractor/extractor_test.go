package extractor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs"
	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/extractor"
	"github.com/nrdvana/casfs/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Create(t.TempDir(), store.CreateOptions{Algorithm: "sha1"})
	require.NoError(t, err)
	return st
}

func TestExtractFileDirAndSymlink(t *testing.T) {
	st := newTestStore(t)

	fileRef, err := st.Put([]byte("hello"), store.PutOptions{})
	require.NoError(t, err)

	subDir := dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("f.txt"), dirent.TypeFile).WithDigestRef(fileRef),
	}}
	subBlob, err := codec.Encode("universal", subDir)
	require.NoError(t, err)
	subRef, err := st.Put(subBlob, store.PutOptions{})
	require.NoError(t, err)

	rootDir := dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("sub"), dirent.TypeDir).WithDigestRef(subRef),
		dirent.New(dirent.NameFromString("link"), dirent.TypeSymlink).WithRef(dirent.NameFromString("sub/f.txt")),
	}}
	rootBlob, err := codec.Encode("universal", rootDir)
	require.NoError(t, err)
	rootRef, err := st.Put(rootBlob, store.PutOptions{})
	require.NoError(t, err)

	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithDigestRef(rootRef)
	fsys, err := casfs.Open(st, root)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, extractor.Extract(fsys, "", dest, extractor.WithNoRestoreOwner()))

	content, err := os.ReadFile(filepath.Join(dest, "sub", "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	target, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	require.Equal(t, "sub/f.txt", target)
}
