package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// TimeColumn is the column used for a generation's time range.
const TimeColumn = "time"

// Size is the number of bytes held by rec's buffers.
func Size(rec arrow.Record) int {
	total := 0
	for _, col := range rec.Columns() {
		total += dataSize(col.Data())
	}
	return total
}

func dataSize(d arrow.ArrayData) int {
	n := 0
	for _, buf := range d.Buffers() {
		if buf != nil {
			n += buf.Len()
		}
	}
	for _, child := range d.Children() {
		n += dataSize(child)
	}
	return n
}

// TimeRange returns the min and max of rec's time column. Without a usable
// time column, or when every value is null, both ends are fallback.
func TimeRange(rec arrow.Record, fallback uint64) (uint64, uint64) {
	idx := rec.Schema().FieldIndices(TimeColumn)
	if len(idx) == 0 {
		return fallback, fallback
	}

	var (
		start, end uint64
		found      bool
	)
	observe := func(v uint64) {
		if !found {
			start, end, found = v, v, true
			return
		}
		if v < start {
			start = v
		}
		if v > end {
			end = v
		}
	}

	switch col := rec.Column(idx[0]).(type) {
	case *array.Uint64:
		for i := 0; i < col.Len(); i++ {
			if col.IsValid(i) {
				observe(col.Value(i))
			}
		}
	case *array.Int64:
		for i := 0; i < col.Len(); i++ {
			if col.IsValid(i) && col.Value(i) >= 0 {
				observe(uint64(col.Value(i)))
			}
		}
	case *array.Timestamp:
		for i := 0; i < col.Len(); i++ {
			if col.IsValid(i) && col.Value(i) >= 0 {
				observe(uint64(col.Value(i)))
			}
		}
	}

	if !found {
		return fallback, fallback
	}
	return start, end
}
