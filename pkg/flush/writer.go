// Package flush persists generations as Parquet files.
package flush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/util"
)

// LevelDir is the directory freshly flushed generations land in.
const LevelDir = "L0"

var errNoRecords = errors.New("nothing to flush")

// FileWriter writes generations to Parquet files with optional column
// compression ("none", "lz4" or "zstd").
type FileWriter struct {
	Compression string
	Mem         memory.Allocator
}

func NewFileWriter(compression string) (*FileWriter, error) {
	switch compression {
	case "", "none", "lz4", "zstd":
	default:
		return nil, fmt.Errorf("unsupported flush compression: %s", compression)
	}
	return &FileWriter{Compression: compression, Mem: memory.DefaultAllocator}, nil
}

// Path is where a generation named name of prefix is flushed under root.
func Path(root, prefix, fileName string) string {
	return filepath.Join(root, prefix, LevelDir, fileName)
}

func (w *FileWriter) properties() *parquet.WriterProperties {
	codec := compress.Codecs.Uncompressed
	switch w.Compression {
	case "lz4":
		codec = compress.Codecs.Lz4Raw
	case "zstd":
		codec = compress.Codecs.Zstd
	}
	return parquet.NewWriterProperties(parquet.WithAllocator(w.Mem), parquet.WithCompression(codec))
}

// Flush writes recs to path. The file appears atomically: data goes to a
// temporary file that is synced and renamed into place.
func (w *FileWriter) Flush(ctx context.Context, name, path string, recs []arrow.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("flush %s: %w", name, errNoRecords)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := recs[0]
	if len(recs) > 1 {
		merged, err := batch.Merge(w.Mem, recs...)
		if err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
		defer merged.Release()
		rec = merged
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create flush directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if err := w.write(f, rec); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	util.Debug("flushed %s (%d rows) to %s", name, rec.NumRows(), path)
	return nil
}

// sink hides the file's Close from the parquet writer so the file can be
// synced after the footer is written.
type sink struct{ io.Writer }

func (w *FileWriter) write(f *os.File, rec arrow.Record) error {
	props := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(rec.Schema(), sink{f}, w.properties(), props)
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadFile loads every record of a flushed file. The caller releases them.
func ReadFile(mem memory.Allocator, path string) ([]arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, -1)
	defer tr.Release()

	var recs []arrow.Record
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := tr.Err(); err != nil {
		for _, r := range recs {
			r.Release()
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return recs, nil
}
