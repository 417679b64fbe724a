package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/downfa11-org/strata/pkg/types"
	"golang.org/x/exp/mmap"
)

// sizedReaderAt is satisfied by mmap.ReaderAt and bytes.Reader.
type sizedReaderAt interface {
	io.ReaderAt
	Len() int
}

// EncodeFrame prefixes an encoded entry with its u32 length.
func EncodeFrame(entry []byte) ([]byte, error) {
	if uint64(len(entry)) > math.MaxUint32 {
		return nil, fmt.Errorf("frame too large: %d bytes", len(entry))
	}
	buf := make([]byte, types.FrameHeaderSize+len(entry))
	binary.BigEndian.PutUint32(buf, uint32(len(entry)))
	copy(buf[types.FrameHeaderSize:], entry)
	return buf, nil
}

// scanFrames walks r from the start and decodes each frame in order. A frame
// whose declared length runs past the end, a partial length prefix, or an
// undecodable entry stops the scan with ErrCorruptLog.
func scanFrames(r sizedReaderAt, fn func(types.LogOffset, types.LogEntry) error) error {
	total := uint64(r.Len())
	var lenBuf [types.FrameHeaderSize]byte
	var pos uint64

	for pos < total {
		if total-pos < types.FrameHeaderSize {
			return fmt.Errorf("%w: %d trailing bytes at offset %d", types.ErrCorruptLog, total-pos, pos)
		}
		if _, err := r.ReadAt(lenBuf[:], int64(pos)); err != nil {
			return fmt.Errorf("read frame length at %d: %w", pos, err)
		}

		frameLen := uint64(binary.BigEndian.Uint32(lenBuf[:]))
		remaining := total - pos - types.FrameHeaderSize
		if frameLen > remaining {
			return fmt.Errorf("%w: frame at %d declares %d bytes, %d remain", types.ErrCorruptLog, pos, frameLen, remaining)
		}

		data := make([]byte, frameLen)
		if _, err := r.ReadAt(data, int64(pos+types.FrameHeaderSize)); err != nil {
			return fmt.Errorf("read frame at %d: %w", pos, err)
		}
		entry, err := types.DecodeLogEntry(data)
		if err != nil {
			return fmt.Errorf("frame at %d: %w", pos, err)
		}

		off := types.LogOffset{FileOffset: pos + types.FrameHeaderSize, PayloadLen: frameLen}
		if err := fn(off, entry); err != nil {
			return err
		}
		pos += types.FrameHeaderSize + frameLen
	}
	return nil
}

// ScanFrames returns the offsets of every frame in r, in file order.
func ScanFrames(r sizedReaderAt) ([]types.LogOffset, error) {
	var offsets []types.LogOffset
	err := scanFrames(r, func(off types.LogOffset, _ types.LogEntry) error {
		offsets = append(offsets, off)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offsets, nil
}

// ScanFile memory-maps a segment file and replays its frames through fn.
func ScanFile(path string, fn func(types.LogOffset, types.LogEntry) error) error {
	reader, err := mmap.Open(path)
	if err != nil {
		return fmt.Errorf("mmap open failed: %w", err)
	}
	defer reader.Close()

	return scanFrames(reader, fn)
}
