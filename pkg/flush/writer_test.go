package flush_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/pkg/flush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T, mem memory.Allocator) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "time", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Uint64Builder).AppendValues([]uint64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{0.5, 1.5, 2.5}, nil)
	rec := b.NewRecord()
	defer rec.Release()
	return batch.Tag(rec, "cpu")
}

func TestFileWriterRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	rec := sample(t, mem)
	defer rec.Release()

	for _, compression := range []string{"none", "lz4", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			w, err := flush.NewFileWriter(compression)
			require.NoError(t, err)

			path := flush.Path(t.TempDir(), "cpu", "cpu-1.parquet")
			require.NoError(t, w.Flush(context.Background(), "cpu-1", path, []arrow.Record{rec, rec}))

			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			recs, err := flush.ReadFile(mem, path)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			defer recs[0].Release()

			assert.Equal(t, int64(6), recs[0].NumRows())
			name, ok := batch.TableName(recs[0])
			require.True(t, ok)
			assert.Equal(t, "cpu", name)
		})
	}
}

func TestFlushPathLayout(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "cpu", "L0", "cpu-7.parquet"), flush.Path("/data", "cpu", "cpu-7.parquet"))
}

func TestFileWriterRejects(t *testing.T) {
	_, err := flush.NewFileWriter("brotli")
	assert.Error(t, err)

	w, err := flush.NewFileWriter("none")
	require.NoError(t, err)
	assert.Error(t, w.Flush(context.Background(), "empty", filepath.Join(t.TempDir(), "x.parquet"), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := sample(t, memory.NewGoAllocator())
	defer rec.Release()
	assert.ErrorIs(t, w.Flush(ctx, "cpu-1", filepath.Join(t.TempDir(), "x.parquet"), []arrow.Record{rec}), context.Canceled)
}
