package disk_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/strata/pkg/disk"
	"github.com/downfa11-org/strata/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogManagerRoundTrip(t *testing.T) {
	lm, err := disk.NewLogManager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer lm.Close()

	records := []string{"x", "yy", "\x00\x01binary"}
	off, err := lm.Append(mustEntry(t, records...))
	require.NoError(t, err)

	got, err := lm.ReadEntry(lm.ActiveName(), off)
	require.NoError(t, err)
	assert.Equal(t, records, recordStrings(got))
}

func TestLogManagerRotation(t *testing.T) {
	dir := t.TempDir()
	const maxSize = 64
	lm, err := disk.NewLogManager(dir, maxSize)
	require.NoError(t, err)
	defer lm.Close()

	first := lm.ActiveName()
	var before []types.LogOffset
	for i := 0; ; i++ {
		off, err := lm.Append(mustEntry(t, fmt.Sprintf("record-%02d", i)))
		require.NoError(t, err)
		if lm.ActiveName() != first {
			break
		}
		before = append(before, off)
	}

	if diff := cmp.Diff(before, lm.OffsetsFor(first)); diff != "" {
		t.Fatalf("sealed offsets mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, lm.ActiveOffsets(), 1)
	assert.Equal(t, []string{first}, lm.SealedSegments())
	assert.Nil(t, lm.OffsetsFor("unknown.wal"))

	files, err := filepath.Glob(filepath.Join(dir, "*"+disk.SegmentExt))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	got, err := lm.ReadEntry(first, before[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"record-00"}, recordStrings(got))
}

func TestLogManagerReopenLoadsNewest(t *testing.T) {
	dir := t.TempDir()
	lm, err := disk.NewLogManager(dir, 1<<20)
	require.NoError(t, err)

	var written []types.LogOffset
	for i := 0; i < 3; i++ {
		off, err := lm.Append(mustEntry(t, fmt.Sprintf("r%d", i)))
		require.NoError(t, err)
		written = append(written, off)
	}
	name := lm.ActiveName()
	require.NoError(t, lm.Close())

	reopened, err := disk.NewLogManager(dir, 1<<20)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, name, reopened.ActiveName())
	if diff := cmp.Diff(written, reopened.ActiveOffsets()); diff != "" {
		t.Fatalf("recovered offsets mismatch (-want +got):\n%s", diff)
	}

	// the loaded segment is read-only, so the next append opens a new one
	_, err = reopened.Append(mustEntry(t, "after-restart"))
	require.NoError(t, err)
	assert.NotEqual(t, name, reopened.ActiveName())
	if diff := cmp.Diff(written, reopened.OffsetsFor(name)); diff != "" {
		t.Fatalf("sealed offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestLogManagerReplay(t *testing.T) {
	dir := t.TempDir()
	lm, err := disk.NewLogManager(dir, 32)
	require.NoError(t, err)

	var want []string
	for i := 0; i < 6; i++ {
		rec := fmt.Sprintf("entry-%d", i)
		_, err := lm.Append(mustEntry(t, rec))
		require.NoError(t, err)
		want = append(want, rec)
	}
	require.NoError(t, lm.Close())

	reopened, err := disk.NewLogManager(dir, 32)
	require.NoError(t, err)
	defer reopened.Close()

	var got []string
	segments := map[string]int{}
	err = reopened.Replay(func(segment string, _ types.LogOffset, entry types.LogEntry) error {
		segments[segment]++
		got = append(got, recordStrings(entry)...)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Greater(t, len(segments), 1)
	for _, name := range reopened.SealedSegments() {
		assert.Len(t, reopened.OffsetsFor(name), segments[name])
	}
}

func TestLogManagerReadEntryUnknownSegment(t *testing.T) {
	lm, err := disk.NewLogManager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer lm.Close()

	_, err = lm.ReadEntry(disk.SegmentName(42), types.LogOffset{FileOffset: 4, PayloadLen: 2})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = lm.ReadEntry("../escape.wal", types.LogOffset{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLogManagerRotationFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wal")
	lm, err := disk.NewLogManager(dir, 8)
	require.NoError(t, err)
	defer lm.Close()

	_, err = lm.Append(mustEntry(t, "fills-the-segment"))
	require.NoError(t, err)

	// a plain file where the directory was makes segment creation fail
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0o644))

	_, err = lm.Append(mustEntry(t, "next"))
	assert.ErrorIs(t, err, disk.ErrRotationFailed)
}
