// Package batch holds the columnar helpers the engine builds on: schema
// reconciliation, table tagging, size accounting and the log record codec.
package batch

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/pkg/types"
)

var errNoInput = errors.New("merge needs at least one record")

// UnionSchema combines the fields of schemas in first-seen order. A field
// missing from any schema, or nullable in any, is nullable in the union.
// Metadata keys are taken from the first schema that declares them.
func UnionSchema(schemas ...*arrow.Schema) (*arrow.Schema, error) {
	var fields []arrow.Field
	index := make(map[string]int)
	seen := make(map[string]int)
	var mdKeys, mdVals []string
	mdSeen := make(map[string]bool)

	for _, s := range schemas {
		for _, f := range s.Fields() {
			i, ok := index[f.Name]
			if !ok {
				index[f.Name] = len(fields)
				fields = append(fields, arrow.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable, Metadata: f.Metadata})
				seen[f.Name] = 1
				continue
			}
			if !arrow.TypeEqual(fields[i].Type, f.Type) {
				return nil, fmt.Errorf("%w: field %q is %s and %s", types.ErrSchemaConflict, f.Name, fields[i].Type, f.Type)
			}
			fields[i].Nullable = fields[i].Nullable || f.Nullable
			seen[f.Name]++
		}

		md := s.Metadata()
		for k, key := range md.Keys() {
			if !mdSeen[key] {
				mdSeen[key] = true
				mdKeys = append(mdKeys, key)
				mdVals = append(mdVals, md.Values()[k])
			}
		}
	}

	for i := range fields {
		if seen[fields[i].Name] < len(schemas) {
			fields[i].Nullable = true
		}
	}

	var md *arrow.Metadata
	if len(mdKeys) > 0 {
		m := arrow.NewMetadata(mdKeys, mdVals)
		md = &m
	}
	return arrow.NewSchema(fields, md), nil
}

// Merge concatenates recs under their union schema. Columns a record lacks
// are filled with nulls of the field type. The result has the sum of the
// input row counts; with no fields at all it carries only that row count.
// The caller owns the returned record.
func Merge(mem memory.Allocator, recs ...arrow.Record) (arrow.Record, error) {
	if len(recs) == 0 {
		return nil, errNoInput
	}

	schemas := make([]*arrow.Schema, len(recs))
	var rows int64
	for i, r := range recs {
		schemas[i] = r.Schema()
		rows += r.NumRows()
	}

	schema, err := UnionSchema(schemas...)
	if err != nil {
		return nil, err
	}
	if schema.NumFields() == 0 {
		return array.NewRecord(schema, nil, rows), nil
	}

	cols := make([]arrow.Array, 0, schema.NumFields())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, field := range schema.Fields() {
		col, err := mergeColumn(mem, field, recs)
		if err != nil {
			return nil, fmt.Errorf("merge column %q: %w", field.Name, err)
		}
		cols = append(cols, col)
	}
	return array.NewRecord(schema, cols, rows), nil
}

func mergeColumn(mem memory.Allocator, field arrow.Field, recs []arrow.Record) (arrow.Array, error) {
	parts := make([]arrow.Array, 0, len(recs))
	var synthesized []arrow.Array
	defer func() {
		for _, a := range synthesized {
			a.Release()
		}
	}()

	for _, r := range recs {
		if idx := r.Schema().FieldIndices(field.Name); len(idx) > 0 {
			parts = append(parts, r.Column(idx[0]))
			continue
		}
		nulls := array.MakeArrayOfNull(mem, field.Type, int(r.NumRows()))
		synthesized = append(synthesized, nulls)
		parts = append(parts, nulls)
	}

	if len(parts) == 1 {
		parts[0].Retain()
		return parts[0], nil
	}
	return array.Concatenate(parts, mem)
}
