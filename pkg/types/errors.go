package types

import "errors"

var (
	// ErrLogFull is returned by a segment that reached its size ceiling. The
	// caller rotates to a new segment and retries.
	ErrLogFull = errors.New("log segment is full")

	// ErrSegmentReadOnly is returned when appending to a segment opened for replay.
	ErrSegmentReadOnly = errors.New("log segment is read-only")

	// ErrCorruptLog is returned when a frame cannot be decoded.
	ErrCorruptLog = errors.New("corrupt log")

	// ErrTooManyRecords is returned when a log entry would exceed the u16 record count.
	ErrTooManyRecords = errors.New("too many records in one log entry")

	ErrNotFound = errors.New("not found")

	// ErrUntaggedBatch marks a batch without a table-name tag.
	ErrUntaggedBatch = errors.New("batch has no table name tag")

	// ErrSchemaConflict is returned when two batches declare the same field with different types.
	ErrSchemaConflict = errors.New("schema conflict")
)
