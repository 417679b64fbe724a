// Package query is the in-process query store: named record sets with a
// small SELECT dialect over them.
package query

import (
	"fmt"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/pkg/types"
)

type Store struct {
	mu     sync.RWMutex
	mem    memory.Allocator
	tables map[string][]arrow.Record
}

func NewStore(mem memory.Allocator) *Store {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Store{
		mem:    mem,
		tables: make(map[string][]arrow.Record),
	}
}

// Register makes recs addressable by name. The store keeps its own reference
// to each record. Registering an existing name fails.
func (s *Store) Register(name string, recs ...arrow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; ok {
		return fmt.Errorf("table %q already registered", name)
	}
	for _, r := range recs {
		r.Retain()
	}
	s.tables[name] = append([]arrow.Record(nil), recs...)
	return nil
}

// Deregister drops name and releases its records.
func (s *Store) Deregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("table %q: %w", name, types.ErrNotFound)
	}
	delete(s.tables, name)
	for _, r := range recs {
		r.Release()
	}
	return nil
}

// Table returns the records registered under name. Each returned record is
// retained for the caller.
func (s *Store) Table(name string) ([]arrow.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, types.ErrNotFound)
	}
	out := make([]arrow.Record, len(recs))
	for i, r := range recs {
		r.Retain()
		out[i] = r
	}
	return out, nil
}

// Names lists registered tables, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SQL runs a SELECT and returns a single merged result record.
func (s *Store) SQL(sql string) ([]arrow.Record, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}

	recs, err := s.Table(stmt.Table)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	if len(recs) == 0 {
		return nil, nil
	}

	merged, err := batch.Merge(s.mem, recs...)
	if err != nil {
		return nil, err
	}
	result, err := s.execute(stmt, merged)
	merged.Release()
	if err != nil {
		return nil, err
	}
	return []arrow.Record{result}, nil
}

// execute applies filter, projection and limit to rec. The returned record
// is owned by the caller.
func (s *Store) execute(stmt *Statement, rec arrow.Record) (arrow.Record, error) {
	rec.Retain()
	cur := rec

	if stmt.Where != nil {
		filtered, err := s.filter(cur, stmt.Where)
		cur.Release()
		if err != nil {
			return nil, err
		}
		cur = filtered
	}

	if stmt.Columns != nil {
		projected, err := project(cur, stmt.Columns)
		cur.Release()
		if err != nil {
			return nil, err
		}
		cur = projected
	}

	if stmt.Limit >= 0 && stmt.Limit < cur.NumRows() {
		limited := cur.NewSlice(0, stmt.Limit)
		cur.Release()
		cur = limited
	}
	return cur, nil
}

func (s *Store) filter(rec arrow.Record, p *Predicate) (arrow.Record, error) {
	idx := rec.Schema().FieldIndices(p.Column)
	if len(idx) == 0 {
		return nil, fmt.Errorf("unknown column %q", p.Column)
	}
	col := rec.Column(idx[0])

	var runs []arrow.Record
	defer func() {
		for _, r := range runs {
			r.Release()
		}
	}()

	start := -1
	for i := 0; i <= col.Len(); i++ {
		hit := i < col.Len() && matches(col, i, p.Value)
		if hit && start < 0 {
			start = i
		}
		if !hit && start >= 0 {
			runs = append(runs, rec.NewSlice(int64(start), int64(i)))
			start = -1
		}
	}

	if len(runs) == 0 {
		return rec.NewSlice(0, 0), nil
	}
	return batch.Merge(s.mem, runs...)
}

func project(rec arrow.Record, columns []string) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, len(columns))
	cols := make([]arrow.Array, 0, len(columns))
	for _, name := range columns {
		idx := rec.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		fields = append(fields, rec.Schema().Field(idx[0]))
		cols = append(cols, rec.Column(idx[0]))
	}

	md := rec.Schema().Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), nil
}

func matches(col arrow.Array, i int, want interface{}) bool {
	if col.IsNull(i) {
		return false
	}

	switch want := want.(type) {
	case bool:
		b, ok := col.(*array.Boolean)
		return ok && b.Value(i) == want
	case float64:
		v, ok := numericValue(col, i)
		return ok && v == want
	case string:
		return col.ValueStr(i) == want
	}
	return false
}

func numericValue(col arrow.Array, i int) (float64, bool) {
	switch a := col.(type) {
	case *array.Int8:
		return float64(a.Value(i)), true
	case *array.Int16:
		return float64(a.Value(i)), true
	case *array.Int32:
		return float64(a.Value(i)), true
	case *array.Int64:
		return float64(a.Value(i)), true
	case *array.Uint8:
		return float64(a.Value(i)), true
	case *array.Uint16:
		return float64(a.Value(i)), true
	case *array.Uint32:
		return float64(a.Value(i)), true
	case *array.Uint64:
		return float64(a.Value(i)), true
	case *array.Float32:
		return float64(a.Value(i)), true
	case *array.Float64:
		return a.Value(i), true
	case *array.Timestamp:
		return float64(a.Value(i)), true
	}
	return 0, false
}

// Close releases every registered record.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, recs := range s.tables {
		for _, r := range recs {
			r.Release()
		}
		delete(s.tables, name)
	}
}
