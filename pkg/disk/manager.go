package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/downfa11-org/strata/pkg/types"
	"github.com/downfa11-org/strata/util"
)

var (
	// ErrRotationFailed means a new segment could not be created. No further
	// appends can be made durable.
	ErrRotationFailed = errors.New("log segment rotation failed")

	ErrSegmentClosed = errors.New("log segment is closed")
)

// LogManager owns the active segment and the offset index of sealed ones.
// Appends come from a single owner; mu only guards against diagnostic readers.
type LogManager struct {
	mu sync.RWMutex

	dir     string
	maxSize uint64

	active        *Segment
	activeOffsets []types.LogOffset
	sealed        map[string][]types.LogOffset
}

// NewLogManager opens dir. If it already holds segments the newest one is
// loaded to seed the active offsets; older segments are left for Replay.
func NewLogManager(dir string, maxSize uint64) (*LogManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	lm := &LogManager{
		dir:     dir,
		maxSize: maxSize,
		sealed:  make(map[string][]types.LogOffset),
	}

	names, err := lm.segmentNames()
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		seg, err := CreateSegment(dir, maxSize)
		if err != nil {
			return nil, err
		}
		lm.active = seg
		metrics.ActiveSegmentBytes.Set(0)
		util.Info("log manager initialized with new segment %s", seg.Name())
		return lm, nil
	}

	newest := names[len(names)-1]
	seg, offsets, err := LoadSegment(filepath.Join(dir, newest), maxSize)
	if err != nil {
		return nil, err
	}
	lm.active = seg
	lm.activeOffsets = offsets
	metrics.ActiveSegmentBytes.Set(float64(seg.Size()))
	util.Info("log manager loaded segment %s with %d entries (%d older segments)", newest, len(offsets), len(names)-1)
	return lm, nil
}

func (lm *LogManager) segmentNames() ([]string, error) {
	entries, err := os.ReadDir(lm.dir)
	if err != nil {
		return nil, fmt.Errorf("read log directory %s: %w", lm.dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isSegmentFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Append writes entry to the active segment. When the segment is full it is
// sealed, its offsets are indexed under its name, and the append is retried
// once against a fresh segment. ErrRotationFailed is returned only when that
// fresh segment cannot be created.
func (lm *LogManager) Append(entry types.LogEntry) (types.LogOffset, error) {
	data := entry.Encode()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	off, err := lm.active.Append(data)
	if err == nil {
		lm.recordLocked(off)
		return off, nil
	}
	if !errors.Is(err, types.ErrLogFull) && !errors.Is(err, types.ErrSegmentReadOnly) {
		return types.LogOffset{}, err
	}

	if err := lm.rotateLocked(); err != nil {
		return types.LogOffset{}, err
	}

	off, err = lm.active.Append(data)
	if err != nil {
		return types.LogOffset{}, err
	}
	lm.recordLocked(off)
	return off, nil
}

func (lm *LogManager) recordLocked(off types.LogOffset) {
	lm.activeOffsets = append(lm.activeOffsets, off)
	metrics.ActiveSegmentBytes.Set(float64(off.End()))
}

func (lm *LogManager) rotateLocked() error {
	next, err := CreateSegment(lm.dir, lm.maxSize)
	if err != nil {
		util.Error("segment rotation failed: %v", err)
		return fmt.Errorf("%w: %v", ErrRotationFailed, err)
	}

	old := lm.active
	old.Seal()
	lm.sealed[old.Name()] = lm.activeOffsets
	if err := old.Close(); err != nil {
		util.Warn("close sealed segment %s: %v", old.Name(), err)
	}

	util.Debug("rotated log segment %s (%d entries) -> %s", old.Name(), len(lm.activeOffsets), next.Name())
	lm.active = next
	lm.activeOffsets = nil
	metrics.SegmentRotations.Inc()
	metrics.ActiveSegmentBytes.Set(0)
	return nil
}

// OffsetsFor returns the recorded offsets of a sealed segment, or nil if the
// segment is unknown.
func (lm *LogManager) OffsetsFor(name string) []types.LogOffset {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	offsets, ok := lm.sealed[name]
	if !ok {
		return nil
	}
	out := make([]types.LogOffset, len(offsets))
	copy(out, offsets)
	return out
}

// ActiveName is the file name of the segment currently receiving appends.
func (lm *LogManager) ActiveName() string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.active.Name()
}

// ActiveOffsets returns the offsets written to the active segment.
func (lm *LogManager) ActiveOffsets() []types.LogOffset {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	out := make([]types.LogOffset, len(lm.activeOffsets))
	copy(out, lm.activeOffsets)
	return out
}

// SealedSegments lists the names of indexed sealed segments.
func (lm *LogManager) SealedSegments() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	names := make([]string, 0, len(lm.sealed))
	for name := range lm.sealed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadEntry reads one entry from any segment in the directory.
func (lm *LogManager) ReadEntry(segment string, off types.LogOffset) (types.LogEntry, error) {
	lm.mu.RLock()
	active := lm.active
	lm.mu.RUnlock()

	if segment == active.Name() {
		entry, err := active.ReadAtIndex(off)
		if !errors.Is(err, ErrSegmentClosed) {
			return entry, err
		}
		// rotated away under us; the file is still on disk
	}

	if filepath.Base(segment) != segment || !isSegmentFile(segment) {
		return types.LogEntry{}, fmt.Errorf("segment %q: %w", segment, types.ErrNotFound)
	}
	s, err := OpenSegment(filepath.Join(lm.dir, segment))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.LogEntry{}, fmt.Errorf("segment %q: %w", segment, types.ErrNotFound)
		}
		return types.LogEntry{}, err
	}
	defer s.Close()
	return s.ReadAtIndex(off)
}

// Replay walks every segment in creation order and hands each entry to fn.
// Segments other than the active one are indexed as sealed along the way.
func (lm *LogManager) Replay(fn func(segment string, off types.LogOffset, entry types.LogEntry) error) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names, err := lm.segmentNames()
	if err != nil {
		return err
	}

	activeName := lm.active.Name()
	for _, name := range names {
		var offsets []types.LogOffset
		err := ScanFile(filepath.Join(lm.dir, name), func(off types.LogOffset, entry types.LogEntry) error {
			offsets = append(offsets, off)
			return fn(name, off, entry)
		})
		if err != nil {
			return fmt.Errorf("replay %s: %w", name, err)
		}
		if name != activeName {
			lm.sealed[name] = offsets
		}
		util.Debug("replayed segment %s: %d entries", name, len(offsets))
	}
	return nil
}

func (lm *LogManager) Dir() string { return lm.dir }

func (lm *LogManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.active.Close()
}
