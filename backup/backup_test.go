package backup_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nrdvana/casfs/backup"
)

func TestWriteAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, backup.WriteConfig(dir, "cas", "scanner.Scan", "extractor.Extract"))

	cfg, err := backup.LoadConfig(dir)
	require.NoError(t, err)

	casPath, err := cfg.CASPath()
	require.NoError(t, err)
	require.Equal(t, dir+"/cas", casPath)
	require.Equal(t, "2006-01-02T15:04:05Z", cfg.DateFormat())
}

func TestSnapshotIndexAppendAndRejectEarlierTimestamp(t *testing.T) {
	dir := t.TempDir()
	idx, err := backup.OpenSnapshotIndex(dir)
	require.NoError(t, err)
	require.Empty(t, idx.Snapshots())

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Append(t1, "deadbeef", "first"))
	require.NoError(t, idx.Append(t2, "cafef00d", "second"))

	err = idx.Append(t1, "badc0de", "out of order")
	require.Error(t, err)

	reloaded, err := backup.OpenSnapshotIndex(dir)
	require.NoError(t, err)
	require.Len(t, reloaded.Snapshots(), 2)
	require.Equal(t, "deadbeef", reloaded.Snapshots()[0].Hash)
}

func TestSnapshotIndexRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/casbak.snapshots", []byte("Bogus\tHeader\n"), 0o644))

	_, err := backup.OpenSnapshotIndex(dir)
	require.Error(t, err)
}

func TestParseDateSpec(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	t1, err := backup.ParseDateSpec("2026-07-01", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), t1)

	t2, err := backup.ParseDateSpec("7D", now)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, -7), t2)

	t3, err := backup.ParseDateSpec("1700000000", now)
	require.NoError(t, err)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), t3)

	_, err = backup.ParseDateSpec("not-a-date", now)
	require.Error(t, err)
}
