package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/pkg/catalog"
	"github.com/downfa11-org/strata/pkg/config"
	"github.com/downfa11-org/strata/pkg/flush"
	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/downfa11-org/strata/pkg/types"
	"github.com/downfa11-org/strata/util"
)

// QueryEngine stores registered generations and runs queries over them.
type QueryEngine interface {
	Register(name string, recs ...arrow.Record) error
	Deregister(name string) error
	Table(name string) ([]arrow.Record, error)
	SQL(query string) ([]arrow.Record, error)
}

// Flusher persists one generation to path.
type Flusher interface {
	Flush(ctx context.Context, name, path string, recs []arrow.Record) error
}

// StorageEngine merges incoming batches into table generations and answers
// queries over them. It is not safe for concurrent use; the command actor is
// its only caller.
type StorageEngine struct {
	cfg     *config.Config
	mem     memory.Allocator
	catalog *catalog.Catalog
	queries QueryEngine
	flusher Flusher
}

// New builds an engine. flusher may be nil, in which case immutable
// generations are only kept in memory.
func New(cfg *config.Config, queries QueryEngine, flusher Flusher) *StorageEngine {
	return &StorageEngine{
		cfg:     cfg,
		mem:     memory.DefaultAllocator,
		catalog: catalog.New(),
		queries: queries,
		flusher: flusher,
	}
}

// InsertBatch merges rec into the writable generation of its table and
// registers the result as a new generation. An untagged batch is rejected
// with false and no error; it leaves the catalog untouched.
func (e *StorageEngine) InsertBatch(ctx context.Context, rec arrow.Record) (bool, error) {
	table, ok := batch.TableName(rec)
	if !ok {
		metrics.UntaggedBatches.Inc()
		util.Warn("rejecting untagged batch (%d rows, %d columns)", rec.NumRows(), rec.NumCols())
		return false, nil
	}

	inputs := make([]arrow.Record, 0, 2)
	var previous *types.TableIdentifier
	if w, ok := e.catalog.Writable(table); ok {
		id := w.ID
		previous = &id
		if w.Mutable {
			old, err := e.queries.Table(id.Name())
			if err != nil {
				return false, fmt.Errorf("load writable generation %s: %w", id.Name(), err)
			}
			defer func() {
				for _, r := range old {
					r.Release()
				}
			}()
			inputs = append(inputs, old...)
		}
	}
	inputs = append(inputs, rec)

	merged, err := batch.Merge(e.mem, inputs...)
	if err != nil {
		if errors.Is(err, types.ErrSchemaConflict) {
			metrics.SchemaConflicts.Inc()
			util.Warn("schema conflict on table %s: %v", table, err)
		}
		return false, err
	}
	defer merged.Release()

	gen := util.NowMicros()
	id := types.NewIdentifier(table, gen)
	start, end := batch.TimeRange(merged, gen)
	snap := types.NewSnapshot(id, batch.Size(merged), e.cfg.GenerationThreshold, merged.NumRows(), start, end)
	snap.Supersedes = previous

	if err := e.queries.Register(id.Name(), merged); err != nil {
		util.Error("register generation %s: %v", id.Name(), err)
		return false, fmt.Errorf("register %s: %w", id.Name(), err)
	}

	res := e.catalog.Insert(snap)
	metrics.ObserveGeneration(snap.Mutable)
	if res.Sealed != nil {
		metrics.GenerationsSealed.Inc()
		util.Debug("sealed generation %s", res.Sealed.Name())
	}
	if res.Replaced != nil && !e.cfg.RetainSuperseded {
		if err := e.queries.Deregister(res.Replaced.Name()); err != nil {
			util.Warn("deregister superseded generation %s: %v", res.Replaced.Name(), err)
		}
	}

	util.Debug("table %s generation %d: %d rows, %d bytes, mutable=%t", table, gen, snap.Rows, snap.SizeBytes, snap.Mutable)

	if !snap.Mutable {
		e.flush(ctx, snap, merged)
	}
	return true, nil
}

// FlushPath is where a generation is written once it turns immutable.
func (e *StorageEngine) FlushPath(id types.TableIdentifier) string {
	return flush.Path(e.cfg.FlushDir, id.Prefix, id.WithSuffix(types.FlushedSuffix).FileName())
}

func (e *StorageEngine) flush(ctx context.Context, snap types.TableSnapshot, rec arrow.Record) {
	if e.flusher == nil {
		return
	}

	path := e.FlushPath(snap.ID)
	if err := e.flusher.Flush(ctx, snap.ID.Name(), path, []arrow.Record{rec}); err != nil {
		metrics.ObserveFlush(false)
		util.Error("flush %s to %s failed: %v", snap.ID.Name(), path, err)
		return
	}
	metrics.ObserveFlush(true)

	if err := e.catalog.MarkFlushed(snap.ID); err != nil {
		util.Warn("mark %s flushed: %v", snap.ID.Name(), err)
	}
	util.Info("flushed generation %s to %s", snap.ID.Name(), path)
}

// Query runs sql against the query engine. Errors are returned unchanged.
func (e *StorageEngine) Query(sql string) ([]arrow.Record, error) {
	return e.queries.SQL(sql)
}

// QueryTable returns the records registered under name.
func (e *StorageEngine) QueryTable(name string) ([]arrow.Record, error) {
	return e.queries.Table(name)
}

// QueryPrefix collects the records of every tracked generation of prefix,
// sealed ones first.
func (e *StorageEngine) QueryPrefix(prefix string) ([]arrow.Record, error) {
	ids := e.catalog.SnapshotsForPrefix(prefix)
	if len(ids) == 0 {
		return nil, fmt.Errorf("table %q: %w", prefix, types.ErrNotFound)
	}

	var out []arrow.Record
	for _, id := range ids {
		recs, err := e.queries.Table(id.Name())
		if err != nil {
			for _, r := range out {
				r.Release()
			}
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Tables lists every tracked generation.
func (e *StorageEngine) Tables() []types.TableIdentifier {
	return e.catalog.Identifiers()
}

func (e *StorageEngine) Snapshot(id types.TableIdentifier) (types.TableSnapshot, bool) {
	return e.catalog.Snapshot(id)
}

func (e *StorageEngine) SnapshotsForPrefix(prefix string) []types.TableIdentifier {
	return e.catalog.SnapshotsForPrefix(prefix)
}

func (e *StorageEngine) IsWritable(id types.TableIdentifier) (bool, error) {
	return e.catalog.IsWritable(id)
}

func (e *StorageEngine) IsFlushed(id types.TableIdentifier) bool {
	return e.catalog.IsFlushed(id)
}

// Evict drops a sealed generation from the catalog and the query engine.
func (e *StorageEngine) Evict(id types.TableIdentifier) error {
	if err := e.catalog.Evict(id); err != nil {
		return err
	}
	if err := e.queries.Deregister(id.Name()); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	util.Debug("evicted generation %s", id.Name())
	return nil
}
