package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// GenerationSeparator joins a prefix and its generation timestamp.
	GenerationSeparator = "-"
	// FlushedSuffix is appended to the names of flushed generation files.
	FlushedSuffix = ".parquet"
)

// TableIdentifier names one generation of a logical table. A zero Generation
// means the identifier addresses the prefix itself.
type TableIdentifier struct {
	Prefix     string `json:"prefix"`
	Generation uint64 `json:"generation,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
}

func NewIdentifier(prefix string, generation uint64) TableIdentifier {
	return TableIdentifier{Prefix: prefix, Generation: generation}
}

// Name is the registered in-memory name: prefix-generation.
func (id TableIdentifier) Name() string {
	if id.Generation == 0 {
		return id.Prefix
	}
	return id.Prefix + GenerationSeparator + strconv.FormatUint(id.Generation, 10)
}

// FileName is Name plus the optional suffix.
func (id TableIdentifier) FileName() string {
	return id.Name() + id.Suffix
}

// WithSuffix returns a copy carrying suffix.
func (id TableIdentifier) WithSuffix(suffix string) TableIdentifier {
	id.Suffix = suffix
	return id
}

func (id TableIdentifier) String() string {
	return id.FileName()
}

// ParseIdentifier reverses FileName. The generation is read after the last
// separator; a name without a numeric generation is treated as a bare prefix.
func ParseIdentifier(name string) (TableIdentifier, error) {
	if name == "" {
		return TableIdentifier{}, fmt.Errorf("empty table name")
	}

	var id TableIdentifier
	if strings.HasSuffix(name, FlushedSuffix) {
		id.Suffix = FlushedSuffix
		name = strings.TrimSuffix(name, FlushedSuffix)
	}

	i := strings.LastIndex(name, GenerationSeparator)
	if i <= 0 {
		id.Prefix = name
		return id, nil
	}

	gen, err := strconv.ParseUint(name[i+1:], 10, 64)
	if err != nil {
		id.Prefix = name
		return id, nil
	}
	id.Prefix = name[:i]
	id.Generation = gen
	return id, nil
}

// TableSnapshot describes one materialized generation. Mutable is fixed at
// creation from the size threshold and never changes.
type TableSnapshot struct {
	ID        TableIdentifier `json:"id"`
	Mutable   bool            `json:"mutable"`
	SizeBytes int             `json:"size_bytes"`
	Rows      int64           `json:"rows"`
	TimeStart uint64          `json:"time_start"`
	TimeEnd   uint64          `json:"time_end"`

	// Supersedes is the generation this one replaced, if any.
	Supersedes *TableIdentifier `json:"supersedes,omitempty"`
}

// NewSnapshot builds a snapshot whose mutability is derived from threshold.
func NewSnapshot(id TableIdentifier, sizeBytes int, threshold int, rows int64, start, end uint64) TableSnapshot {
	return TableSnapshot{
		ID:        id,
		Mutable:   sizeBytes <= threshold,
		SizeBytes: sizeBytes,
		Rows:      rows,
		TimeStart: start,
		TimeEnd:   end,
	}
}
