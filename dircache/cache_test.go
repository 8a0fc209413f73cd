package dircache_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs/dircache"
	"github.com/nrdvana/casfs/dirent"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := dircache.New(4)
	dir := &dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("a"), dirent.TypeFile),
	}}
	c.Put("deadbeef", dir)

	got, ok := c.Get("deadbeef")
	require.True(t, ok)
	require.Same(t, dir, got)
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := dircache.New(4)
	_, ok := c.Get("nonexistent")
	require.False(t, ok)
}

func TestClearDropsEverything(t *testing.T) {
	c := dircache.New(4)
	dir := &dirent.Directory{}
	c.Put("abc", dir)
	c.Clear()
	_, ok := c.Get("abc")
	require.False(t, ok)
}

func TestRingKeepsStrongReferencesAliveAcrossGC(t *testing.T) {
	c := dircache.New(2)
	dir := &dirent.Directory{Entries: []dirent.DirEnt{
		dirent.New(dirent.NameFromString("strong"), dirent.TypeFile),
	}}
	c.Put("ring-key", dir)
	dir = nil // drop this test's own reference; the ring still holds one

	runtime.GC()
	runtime.GC()

	got, ok := c.Get("ring-key")
	require.True(t, ok)
	require.Equal(t, "strong", got.Entries[0].Name.String())
}

func TestSizeResizesRing(t *testing.T) {
	c := dircache.New(1)
	c.Size(8)
	for i := 0; i < 8; i++ {
		c.Put(string(rune('a'+i)), &dirent.Directory{})
	}
	// All 8 should still be reachable via their strong ring slots.
	for i := 0; i < 8; i++ {
		_, ok := c.Get(string(rune('a' + i)))
		require.True(t, ok)
	}
}
