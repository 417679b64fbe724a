package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/downfa11-org/strata/pkg/types"
	"github.com/downfa11-org/strata/util"
)

const (
	SegmentExt = ".wal"

	createAttempts = 8
)

// Segment is one append-only log file. All reads and writes take mu so byte
// ranges never interleave.
type Segment struct {
	mu sync.Mutex

	name     string
	path     string
	file     *os.File
	size     uint64
	maxSize  uint64
	writable bool
}

// SegmentName is the file name for a segment created at micros.
func SegmentName(micros uint64) string {
	return fmt.Sprintf("%020d%s", micros, SegmentExt)
}

// CreateSegment creates a new writable segment named by the current time.
func CreateSegment(dir string, maxSize uint64) (*Segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	var lastErr error
	for i := 0; i < createAttempts; i++ {
		name := SegmentName(util.NowMicros())
		path := filepath.Join(dir, name)

		f, err := openSegmentFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("create segment %s: %w", path, err)
		}

		util.Debug("created log segment %s", path)
		return &Segment{
			name:     name,
			path:     path,
			file:     f,
			maxSize:  maxSize,
			writable: true,
		}, nil
	}
	return nil, fmt.Errorf("create segment in %s: %w", dir, lastErr)
}

// OpenSegment opens an existing segment for read-only replay.
func OpenSegment(path string) (*Segment, error) {
	f, err := openSegmentFile(path, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat segment %s: %w", path, err)
	}

	return &Segment{
		name: filepath.Base(path),
		path: path,
		file: f,
		size: uint64(info.Size()),
	}, nil
}

// LoadSegment opens an existing segment read-only and reconstructs the
// offsets of every frame it holds.
func LoadSegment(path string, maxSize uint64) (*Segment, []types.LogOffset, error) {
	var offsets []types.LogOffset
	err := ScanFile(path, func(off types.LogOffset, _ types.LogEntry) error {
		offsets = append(offsets, off)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load segment %s: %w", path, err)
	}

	s, err := OpenSegment(path)
	if err != nil {
		return nil, nil, err
	}
	s.maxSize = maxSize
	return s, offsets, nil
}

func (s *Segment) Name() string { return s.name }
func (s *Segment) Path() string { return s.path }

func (s *Segment) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Segment) Writable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writable
}

// Append frames entry and writes it at the end of the segment. Once the
// segment has grown past maxSize it turns read-only and returns ErrLogFull
// without writing.
func (s *Segment) Append(entry []byte) (types.LogOffset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.writable || s.file == nil {
		return types.LogOffset{}, types.ErrSegmentReadOnly
	}
	if s.size > s.maxSize {
		s.writable = false
		return types.LogOffset{}, types.ErrLogFull
	}

	frame, err := EncodeFrame(entry)
	if err != nil {
		return types.LogOffset{}, err
	}

	if _, err := s.file.WriteAt(frame, int64(s.size)); err != nil {
		return types.LogOffset{}, fmt.Errorf("write frame to %s: %w", s.name, err)
	}
	if err := s.file.Sync(); err != nil {
		return types.LogOffset{}, fmt.Errorf("sync %s: %w", s.name, err)
	}

	off := types.LogOffset{
		FileOffset: s.size + types.FrameHeaderSize,
		PayloadLen: uint64(len(entry)),
	}
	s.size += uint64(len(frame))
	return off, nil
}

// ReadAt decodes the frame starting at frameOffset.
func (s *Segment) ReadAt(frameOffset uint64) (types.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return types.LogEntry{}, ErrSegmentClosed
	}
	if frameOffset+types.FrameHeaderSize > s.size {
		return types.LogEntry{}, fmt.Errorf("%w: frame offset %d past end of %s (%d bytes)", types.ErrCorruptLog, frameOffset, s.name, s.size)
	}

	var lenBuf [types.FrameHeaderSize]byte
	if _, err := s.file.ReadAt(lenBuf[:], int64(frameOffset)); err != nil {
		return types.LogEntry{}, fmt.Errorf("read frame length: %w", err)
	}

	off := types.LogOffset{
		FileOffset: frameOffset + types.FrameHeaderSize,
		PayloadLen: uint64(binary.BigEndian.Uint32(lenBuf[:])),
	}
	return s.readLocked(off)
}

// ReadAtIndex decodes the entry addressed by off.
func (s *Segment) ReadAtIndex(off types.LogOffset) (types.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(off)
}

func (s *Segment) readLocked(off types.LogOffset) (types.LogEntry, error) {
	if s.file == nil {
		return types.LogEntry{}, ErrSegmentClosed
	}
	if off.End() > s.size {
		return types.LogEntry{}, fmt.Errorf("%w: entry %s past end of %s (%d bytes)", types.ErrCorruptLog, off, s.name, s.size)
	}

	data := make([]byte, off.PayloadLen)
	if _, err := s.file.ReadAt(data, int64(off.FileOffset)); err != nil {
		return types.LogEntry{}, fmt.Errorf("read entry %s from %s: %w", off, s.name, err)
	}
	return types.DecodeLogEntry(data)
}

// Seal turns the segment read-only.
func (s *Segment) Seal() {
	s.mu.Lock()
	s.writable = false
	s.mu.Unlock()
}

func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writable = false
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func isSegmentFile(name string) bool {
	return strings.HasSuffix(name, SegmentExt)
}
