package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// FrameHeaderSize is the u32 length prefix written before every entry.
	FrameHeaderSize = 4
	entryCountSize  = 2
	entryLenSize    = 4
)

// LogOffset points at the payload of one framed entry inside a segment. The
// payload starts FrameHeaderSize bytes after the frame boundary.
type LogOffset struct {
	FileOffset uint64 `json:"file_offset"`
	PayloadLen uint64 `json:"payload_len"`
}

// FrameStart is the position of the frame length prefix.
func (o LogOffset) FrameStart() uint64 {
	return o.FileOffset - FrameHeaderSize
}

// End is the first byte after the entry.
func (o LogOffset) End() uint64 {
	return o.FileOffset + o.PayloadLen
}

func (o LogOffset) String() string {
	return fmt.Sprintf("%d+%d", o.FileOffset, o.PayloadLen)
}

// LogEntry is one logical append: a batch of opaque records concatenated into
// Payload with a per-record length table.
type LogEntry struct {
	RecordLens []uint32
	Payload    []byte
}

// NewLogEntry packs records into a single entry.
func NewLogEntry(records [][]byte) (LogEntry, error) {
	if len(records) > math.MaxUint16 {
		return LogEntry{}, fmt.Errorf("%w: %d", ErrTooManyRecords, len(records))
	}

	total := 0
	lens := make([]uint32, len(records))
	for i, r := range records {
		if uint64(len(r)) > math.MaxUint32 {
			return LogEntry{}, fmt.Errorf("record %d too large: %d bytes", i, len(r))
		}
		lens[i] = uint32(len(r))
		total += len(r)
	}

	payload := make([]byte, 0, total)
	for _, r := range records {
		payload = append(payload, r...)
	}
	return LogEntry{RecordLens: lens, Payload: payload}, nil
}

// RecordCount is the number of records in the entry.
func (e LogEntry) RecordCount() int {
	return len(e.RecordLens)
}

// Records splits the payload back into the original records. The returned
// slices alias Payload.
func (e LogEntry) Records() [][]byte {
	out := make([][]byte, 0, len(e.RecordLens))
	pos := 0
	for _, l := range e.RecordLens {
		out = append(out, e.Payload[pos:pos+int(l)])
		pos += int(l)
	}
	return out
}

// EncodedLen is the size of the entry once encoded, excluding the frame header.
func (e LogEntry) EncodedLen() int {
	return entryCountSize + entryLenSize*len(e.RecordLens) + len(e.Payload)
}

// Encode serializes the entry as [u16 count][u32 len]*count[payload].
func (e LogEntry) Encode() []byte {
	buf := make([]byte, e.EncodedLen())
	binary.BigEndian.PutUint16(buf[0:], uint16(len(e.RecordLens)))
	pos := entryCountSize
	for _, l := range e.RecordLens {
		binary.BigEndian.PutUint32(buf[pos:], l)
		pos += entryLenSize
	}
	copy(buf[pos:], e.Payload)
	return buf
}

// DecodeLogEntry parses an encoded entry and validates its length table.
func DecodeLogEntry(data []byte) (LogEntry, error) {
	if len(data) < entryCountSize {
		return LogEntry{}, fmt.Errorf("%w: entry shorter than record count (%d bytes)", ErrCorruptLog, len(data))
	}

	count := int(binary.BigEndian.Uint16(data[0:]))
	headerLen := entryCountSize + entryLenSize*count
	if headerLen > len(data) {
		return LogEntry{}, fmt.Errorf("%w: length table of %d records exceeds entry (%d bytes)", ErrCorruptLog, count, len(data))
	}

	lens := make([]uint32, count)
	var sum uint64
	pos := entryCountSize
	for i := 0; i < count; i++ {
		lens[i] = binary.BigEndian.Uint32(data[pos:])
		sum += uint64(lens[i])
		pos += entryLenSize
	}

	payload := data[headerLen:]
	if sum != uint64(len(payload)) {
		return LogEntry{}, fmt.Errorf("%w: record lengths sum to %d, payload is %d bytes", ErrCorruptLog, sum, len(payload))
	}
	return LogEntry{RecordLens: lens, Payload: payload}, nil
}
