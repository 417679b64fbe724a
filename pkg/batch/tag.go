package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// TableNameKey is the schema metadata key naming the table a batch belongs to.
const TableNameKey = "table_name"

// Tag returns a copy of rec whose schema metadata names table. Existing
// metadata is kept. The caller owns the returned record.
func Tag(rec arrow.Record, table string) arrow.Record {
	schema := rec.Schema()
	md := schema.Metadata()

	keys := append([]string{}, md.Keys()...)
	vals := append([]string{}, md.Values()...)
	if i := md.FindKey(TableNameKey); i >= 0 {
		vals[i] = table
	} else {
		keys = append(keys, TableNameKey)
		vals = append(vals, table)
	}

	tagged := arrow.NewMetadata(keys, vals)
	return array.NewRecord(arrow.NewSchema(schema.Fields(), &tagged), rec.Columns(), rec.NumRows())
}

// TableName reads the table tag from rec's schema metadata.
func TableName(rec arrow.Record) (string, bool) {
	md := rec.Schema().Metadata()
	i := md.FindKey(TableNameKey)
	if i < 0 || md.Values()[i] == "" {
		return "", false
	}
	return md.Values()[i], true
}
