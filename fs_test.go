package casfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs"
	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Create(t.TempDir(), store.CreateOptions{Algorithm: "sha1"})
	require.NoError(t, err)
	return st
}

func putDir(t *testing.T, st *store.Store, dir dirent.Directory) dirent.Ref {
	t.Helper()
	blob, err := codec.Encode("universal", dir)
	require.NoError(t, err)
	d, err := st.Put(blob, store.PutOptions{})
	require.NoError(t, err)
	return dirent.NameFromString(string(d))
}

func newEmptyRootFS(t *testing.T, st *store.Store) *casfs.FS {
	t.Helper()
	ref := putDir(t, st, dirent.Directory{})
	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithRef(ref)
	fs, err := casfs.Open(st, root)
	require.NoError(t, err)
	return fs
}

func TestResolveRootSingleEmptyComponent(t *testing.T) {
	st := newTestStore(t)
	fs := newEmptyRootFS(t, st)

	p := casfs.NewPath(fs, "")
	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, dirent.TypeDir, entries[0].Type)
}

func TestResolveCannotAscendPastRoot(t *testing.T) {
	st := newTestStore(t)
	fs := newEmptyRootFS(t, st)

	p := casfs.NewPath(fs, "/../../..")
	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMkdirThenResolve(t *testing.T) {
	st := newTestStore(t)
	fs := newEmptyRootFS(t, st)

	require.NoError(t, fs.Mkdir("/a", casfs.MutateFlags{Mkdir: 1}))

	p := casfs.NewPath(fs, "/a")
	typ, err := p.Type()
	require.NoError(t, err)
	require.Equal(t, dirent.TypeDir, typ)
}

func TestCommitProducesNewRootAndPreservesSiblings(t *testing.T) {
	st := newTestStore(t)

	fileRef, err := st.Put([]byte("hello"), store.PutOptions{})
	require.NoError(t, err)
	siblingRef, err := st.Put([]byte("sibling"), store.PutOptions{})
	require.NoError(t, err)

	rootDir := dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("file"), dirent.TypeFile).WithDigestRef(fileRef),
		dirent.New(dirent.NameFromString("sibling"), dirent.TypeFile).WithDigestRef(siblingRef),
	}}
	rootRef := putDir(t, st, rootDir)
	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithRef(rootRef)

	fs, err := casfs.Open(st, root)
	require.NoError(t, err)

	r1 := fs.RootEntry()

	newFileRef, err := st.Put([]byte("hello2"), store.PutOptions{})
	require.NoError(t, err)
	newEnt := dirent.New(dirent.NameFromString("file"), dirent.TypeFile).WithDigestRef(newFileRef)
	require.NoError(t, fs.SetPath("/file", newEnt, casfs.MutateFlags{}))
	require.NoError(t, fs.Commit())

	r2 := fs.RootEntry()
	require.NotEqual(t, r1.RefDigest(), r2.RefDigest())

	dir, err := fs.GetDir(r2.RefDigest())
	require.NoError(t, err)
	sibling, ok := dir.ByName(dirent.NameFromString("sibling"))
	require.True(t, ok)
	require.Equal(t, siblingRef.String(), sibling.Ref.String())

	changed, ok := dir.ByName(dirent.NameFromString("file"))
	require.True(t, ok)
	require.Equal(t, newFileRef, changed.RefDigest())
}

func TestCommitPreservesDirectoryMetadata(t *testing.T) {
	st := newTestStore(t)

	fileRef, err := st.Put([]byte("hello"), store.PutOptions{})
	require.NoError(t, err)

	rootDir := dirent.Directory{
		Metadata: map[string]any{"umap": map[string]any{"1000": "alice"}},
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("file"), dirent.TypeFile).WithDigestRef(fileRef),
		},
	}
	rootRef := putDir(t, st, rootDir)
	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithRef(rootRef)

	fs, err := casfs.Open(st, root)
	require.NoError(t, err)

	newFileRef, err := st.Put([]byte("hello2"), store.PutOptions{})
	require.NoError(t, err)
	newEnt := dirent.New(dirent.NameFromString("file"), dirent.TypeFile).WithDigestRef(newFileRef)
	require.NoError(t, fs.SetPath("/file", newEnt, casfs.MutateFlags{}))
	require.NoError(t, fs.Commit())

	dir, err := fs.GetDir(fs.RootEntry().RefDigest())
	require.NoError(t, err)
	require.Equal(t, rootDir.Metadata, dir.Metadata)
}

func TestUnlinkOmitsEntryOnCommit(t *testing.T) {
	st := newTestStore(t)
	fileRef, err := st.Put([]byte("x"), store.PutOptions{})
	require.NoError(t, err)
	rootDir := dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("keep"), dirent.TypeFile).WithDigestRef(fileRef),
		dirent.New(dirent.NameFromString("drop"), dirent.TypeFile).WithDigestRef(fileRef),
	}}
	rootRef := putDir(t, st, rootDir)
	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithRef(rootRef)
	fs, err := casfs.Open(st, root)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink("/drop"))
	require.NoError(t, fs.Commit())

	newRoot := fs.RootEntry()
	dir, err := fs.GetDir(newRoot.RefDigest())
	require.NoError(t, err)
	_, ok := dir.ByName(dirent.NameFromString("drop"))
	require.False(t, ok)
	_, ok = dir.ByName(dirent.NameFromString("keep"))
	require.True(t, ok)
}

func TestRollbackDiscardsOverrides(t *testing.T) {
	st := newTestStore(t)
	fs := newEmptyRootFS(t, st)
	r1 := fs.RootEntry()

	require.NoError(t, fs.Mkdir("/a", casfs.MutateFlags{Mkdir: 1}))
	fs.Rollback()
	require.NoError(t, fs.Commit())

	require.Equal(t, r1.RefDigest(), fs.RootEntry().RefDigest())
}

func TestSymlinkWithoutTrailingSlashStaysUnfollowed(t *testing.T) {
	st := newTestStore(t)

	targetRef, err := st.Put([]byte("target"), store.PutOptions{})
	require.NoError(t, err)
	rootDir := dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("f10"), dirent.TypeFile).WithDigestRef(targetRef),
		dirent.New(dirent.NameFromString("L1"), dirent.TypeSymlink).WithRef(dirent.NameFromString("f10")),
	}}
	rootRef := putDir(t, st, rootDir)

	root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithRef(rootRef)
	fs, err := casfs.Open(st, root)
	require.NoError(t, err)

	// Without a trailing slash, resolving the symlink path returns the
	// symlink entry itself, unfollowed.
	p := casfs.NewPath(fs, "/L1")
	typ, err := p.Type()
	require.NoError(t, err)
	require.Equal(t, dirent.TypeSymlink, typ)

	// A trailing empty component forces the follow.
	p2 := casfs.NewPath(fs, "/L1/")
	typ2, err := p2.Type()
	require.NoError(t, err)
	require.Equal(t, dirent.TypeFile, typ2)
}

func TestNoSuchEntryFails(t *testing.T) {
	st := newTestStore(t)
	fs := newEmptyRootFS(t, st)

	p := casfs.NewPath(fs, "/missing")
	_, err := p.Entries()
	require.Error(t, err)
}
