package digest_test

import (
	"testing"

	"github.com/nrdvana/casfs/digest"
	"github.com/stretchr/testify/require"
)

func TestHashOfNullSHA1(t *testing.T) {
	d, err := digest.HashOfNull("sha1")
	require.NoError(t, err)
	require.Equal(t, digest.Digest("da39a3ee5e6b4b0d3255bfef95601890afd80709"), d)
}

func TestSumRoundTrip(t *testing.T) {
	d, err := digest.Sum("sha256", []byte("hello"))
	require.NoError(t, err)
	require.Len(t, string(d), 64)

	raw, err := d.Bytes()
	require.NoError(t, err)
	require.Len(t, raw, 32)
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := digest.New("md5-but-not-registered")
	require.Error(t, err)
}

func TestBlake3Registered(t *testing.T) {
	require.True(t, digest.Registered("blake3"))
	d, err := digest.Sum("blake3", []byte("x"))
	require.NoError(t, err)
	require.NotEmpty(t, d)
}
