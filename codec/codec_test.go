package codec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/dirent"
)

func TestMinimalCodecExactBytes(t *testing.T) {
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("test"), dirent.TypeFile),
		},
	}
	blob, err := codec.Encode("", dir)
	require.NoError(t, err)
	require.Equal(t, "CAS_Dir 00 \n\x00\x04\x00ftest\x00\x00", string(blob))
}

func TestMinimalCodecAliasDecodes(t *testing.T) {
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("a"), dirent.TypeDir),
		},
	}
	blob, err := codec.Encode("", dir)
	require.NoError(t, err)

	c, ok := codec.Lookup("minimal")
	require.True(t, ok)
	require.Equal(t, "", c.Name())

	name, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Equal(t, "", name)
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, "a", decoded.Entries[0].Name.String())
	require.Equal(t, dirent.TypeDir, decoded.Entries[0].Type)
}

func TestUniversalRoundTrip(t *testing.T) {
	dir := dirent.Directory{
		Metadata: map[string]any{"scan_ts": float64(1000)},
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("b"), dirent.TypeFile).
				WithRef(dirent.NameFromString("deadbeef")).
				WithSize(42),
			dirent.New(dirent.NameFromString("a"), dirent.TypeDir).
				WithRef(dirent.NameFromString("cafef00d")),
		},
	}
	blob, err := codec.Encode("universal", dir)
	require.NoError(t, err)

	name, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Equal(t, "universal", name)
	require.Len(t, decoded.Entries, 2)
	require.Equal(t, "a", decoded.Entries[0].Name.String())
	require.Equal(t, "b", decoded.Entries[1].Name.String())
	require.Equal(t, uint64(42), decoded.Entries[1].Size)
	require.Equal(t, float64(1000), decoded.Metadata["scan_ts"])
}

func TestUniversalNonUTF8Name(t *testing.T) {
	raw := []byte{0xff, 0xfe, 'x'}
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NewName(raw), dirent.TypeFile),
		},
	}
	blob, err := codec.Encode("universal", dir)
	require.NoError(t, err)

	_, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, raw, decoded.Entries[0].Name.Bytes())
}

func TestUniversalUnicodeName(t *testing.T) {
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("café.txt"), dirent.TypeFile),
		},
	}
	for _, format := range []string{"universal", "unix", ""} {
		blob, err := codec.Encode(format, dir)
		require.NoError(t, err)
		_, decoded, err := codec.Load(blob)
		require.NoError(t, err)
		require.Equal(t, "café.txt", decoded.Entries[0].Name.String())
	}
}

func TestUnixCodecRoundTrip(t *testing.T) {
	dir := dirent.Directory{
		Metadata: map[string]any{"umap": map[string]any{"1000": "alice"}},
		Entries: []dirent.DirEnt{
			func() dirent.DirEnt {
				e := dirent.New(dirent.NameFromString("file.txt"), dirent.TypeFile).
					WithRef(dirent.NameFromString("abc123")).
					WithSize(100)
				e.UID, e.GID, e.Mode = 1000, 1000, 0644
				e.HasUnixMeta = true
				e.ModifyTS = 1700000000
				e.HasTS = true
				return e
			}(),
		},
	}
	blob, err := codec.Encode("unix", dir)
	require.NoError(t, err)

	name, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Equal(t, "unix", name)
	require.Len(t, decoded.Entries, 1)
	e := decoded.Entries[0]
	require.Equal(t, "file.txt", e.Name.String())
	require.Equal(t, uint64(100), e.Size)
	require.Equal(t, uint32(1000), e.UID)
	require.Equal(t, uint32(0644), e.Mode)
	require.Equal(t, int64(1700000000), e.ModifyTS)
	require.Equal(t, "alice", decoded.Metadata["umap"].(map[string]any)["1000"])
}

func TestUnixCodecDerivesAndAppliesOwnerNames(t *testing.T) {
	e := dirent.New(dirent.NameFromString("file.txt"), dirent.TypeFile).
		WithRef(dirent.NameFromString("abc123")).
		WithSize(100)
	e.UID, e.GID = 1000, 2000
	e.User, e.Group = "alice", "staff"
	e.HasUnixMeta = true

	blob, err := codec.Encode("unix", dirent.Directory{Entries: []dirent.DirEnt{e}})
	require.NoError(t, err)

	_, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Equal(t, "alice", decoded.Metadata["umap"].(map[string]any)["1000"])
	require.Equal(t, "staff", decoded.Metadata["gmap"].(map[string]any)["2000"])
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, "alice", decoded.Entries[0].User)
	require.Equal(t, "staff", decoded.Entries[0].Group)
}

func TestUnixCodecElidesTrailingEmptyFields(t *testing.T) {
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("x"), dirent.TypeFile).WithSize(5),
		},
	}
	blob, err := codec.Encode("unix", dir)
	require.NoError(t, err)
	// int_attrs_len must be exactly len("5") == 1: only "size" was set, and
	// it is the first field, so nothing trails it.
	require.True(t, strings.HasSuffix(string(blob), "\x01\x00\x01fx\x00\x005"))
	_, decoded, err := codec.Load(blob)
	require.NoError(t, err)
	require.Equal(t, uint64(5), decoded.Entries[0].Size)
	require.False(t, decoded.Entries[0].HasUnixMeta)
}

func TestNameExceeding255BytesIsRejected(t *testing.T) {
	longName := strings.Repeat("a", 256)
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString(longName), dirent.TypeFile),
		},
	}
	for _, format := range []string{"", "unix"} {
		_, err := codec.Encode(format, dir)
		require.Error(t, err)
	}
}

func TestNameAt255BytesIsAccepted(t *testing.T) {
	name := strings.Repeat("a", 255)
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString(name), dirent.TypeFile),
		},
	}
	for _, format := range []string{"", "unix", "universal"} {
		blob, err := codec.Encode(format, dir)
		require.NoError(t, err)
		_, decoded, err := codec.Load(blob)
		require.NoError(t, err)
		require.Equal(t, name, decoded.Entries[0].Name.String())
	}
}

func TestEntriesEncodedInSortedOrder(t *testing.T) {
	dir := dirent.Directory{
		Entries: []dirent.DirEnt{
			dirent.New(dirent.NameFromString("zebra"), dirent.TypeFile),
			dirent.New(dirent.NameFromString("apple"), dirent.TypeFile),
			dirent.New(dirent.NameFromString("mango"), dirent.TypeFile),
		},
	}
	for _, format := range []string{"", "unix", "universal"} {
		_, decoded, err := codec.Load(mustEncode(t, format, dir))
		require.NoError(t, err)
		require.Len(t, decoded.Entries, 3)
		require.Equal(t, "apple", decoded.Entries[0].Name.String())
		require.Equal(t, "mango", decoded.Entries[1].Name.String())
		require.Equal(t, "zebra", decoded.Entries[2].Name.String())
	}
}

func TestUnknownFormatNameError(t *testing.T) {
	_, err := codec.Encode("nonexistent", dirent.Directory{})
	require.Error(t, err)
}

func mustEncode(t *testing.T, format string, dir dirent.Directory) []byte {
	t.Helper()
	blob, err := codec.Encode(format, dir)
	require.NoError(t, err)
	return blob
}
