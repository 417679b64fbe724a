// Package controller runs the command actor: the single owner of the log
// and the storage engine. Every mutation and read goes through its queue
// and is applied in arrival order.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/pkg/config"
	"github.com/downfa11-org/strata/pkg/disk"
	"github.com/downfa11-org/strata/pkg/engine"
	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/downfa11-org/strata/pkg/types"
	"github.com/downfa11-org/strata/util"
)

// ErrActorStopped is returned to callers once the actor has exited.
var ErrActorStopped = errors.New("command actor stopped")

type Actor struct {
	log    *disk.LogManager
	engine *engine.StorageEngine
	mem    memory.Allocator
	codec  util.Codec

	commands chan Command
	done     chan struct{}
	err      error
}

func NewActor(cfg *config.Config, lm *disk.LogManager, eng *engine.StorageEngine) (*Actor, error) {
	codec, err := util.CodecFor(cfg.CompressionType)
	if err != nil {
		return nil, err
	}
	size := cfg.CommandQueueSize
	if size <= 0 {
		size = 1
	}

	return &Actor{
		log:      lm,
		engine:   eng,
		mem:      memory.DefaultAllocator,
		codec:    codec,
		commands: make(chan Command, size),
		done:     make(chan struct{}),
	}, nil
}

// Run processes commands until ctx is cancelled or a rotation failure makes
// further appends impossible; that failure is returned. Run must be called
// at most once.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)
	util.Info("command actor started (queue capacity %d)", cap(a.commands))

	for {
		select {
		case <-ctx.Done():
			util.Info("command actor stopping: %v", ctx.Err())
			return nil
		case cmd := <-a.commands:
			metrics.CommandQueueDepth.Set(float64(len(a.commands)))
			if err := a.dispatch(ctx, cmd); err != nil {
				a.err = err
				util.Error("command actor stopped: %v", err)
				return err
			}
		}
	}
}

// Done is closed when Run returns.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Err is the fatal error Run returned, if any. Valid after Done is closed.
func (a *Actor) Err() error { return a.err }

func (a *Actor) dispatch(ctx context.Context, cmd Command) error {
	util.Debug("[%s] %s", cmd.requestID(), cmd.name())

	switch c := cmd.(type) {
	case *AppendCommand:
		return a.handleAppend(ctx, c)
	case *OffsetListCommand:
		c.Reply <- a.log.OffsetsFor(c.Segment)
	case *TableCommand:
		recs, err := a.engine.QueryTable(c.Name)
		c.Reply <- firstRecord(recs, err)
	case *QueryCommand:
		recs, err := a.engine.Query(c.SQL)
		c.Reply <- firstRecord(recs, err)
	case *PrefixCommand:
		recs, err := a.engine.QueryPrefix(c.Prefix)
		c.Reply <- PrefixReply{Records: recs, Err: err}
	case *TableListCommand:
		c.Reply <- a.engine.Tables()
	case *EvictCommand:
		c.Reply <- a.engine.Evict(c.Table)
	default:
		util.Warn("[%s] unknown command %T", cmd.requestID(), cmd)
	}
	return nil
}

func firstRecord(recs []arrow.Record, err error) RecordReply {
	if err != nil {
		return RecordReply{Err: err}
	}
	if len(recs) == 0 {
		return RecordReply{}
	}
	for _, r := range recs[1:] {
		r.Release()
	}
	return RecordReply{Record: recs[0]}
}

func (a *Actor) handleAppend(ctx context.Context, c *AppendCommand) error {
	start := time.Now()

	entry, err := types.NewLogEntry(c.Records)
	if err != nil {
		c.Reply <- AppendReply{Err: err}
		metrics.ObserveAppend(false, time.Since(start).Seconds())
		return nil
	}

	off, err := a.log.Append(entry)
	if err != nil {
		c.Reply <- AppendReply{Err: err}
		metrics.ObserveAppend(false, time.Since(start).Seconds())
		if errors.Is(err, disk.ErrRotationFailed) {
			return err
		}
		util.Error("[%s] log append failed: %v", c.ID, err)
		return nil
	}
	segment := a.log.ActiveName()

	ok, insertErr := true, error(nil)
	for i, raw := range c.Records {
		inserted, err := a.insertRecord(ctx, raw)
		if !inserted {
			ok = false
			if err != nil && insertErr == nil {
				insertErr = fmt.Errorf("record %d: %w", i, err)
			}
		}
	}

	util.Debug("[%s] appended %d records at %s@%s ok=%t", c.ID, len(c.Records), segment, off, ok)
	c.Reply <- AppendReply{OK: ok, Segment: segment, Offset: off, Err: insertErr}
	metrics.ObserveAppend(ok, time.Since(start).Seconds())
	return nil
}

// insertRecord decodes one log record into batches and inserts each.
func (a *Actor) insertRecord(ctx context.Context, raw []byte) (bool, error) {
	recs, err := batch.DecodeRecords(a.mem, raw)
	if err != nil {
		return false, err
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	ok := true
	for _, rec := range recs {
		inserted, err := a.engine.InsertBatch(ctx, rec)
		if err != nil {
			return false, err
		}
		ok = ok && inserted
	}
	return ok, nil
}

// Replay rebuilds the engine from every entry in the log. It must run before
// Run starts. It returns the number of records inserted.
func (a *Actor) Replay(ctx context.Context) (int, error) {
	inserted := 0
	err := a.log.Replay(func(segment string, off types.LogOffset, entry types.LogEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, raw := range entry.Records() {
			ok, err := a.insertRecord(ctx, raw)
			if err != nil {
				util.Warn("replay %s@%s: %v", segment, off, err)
				continue
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return inserted, err
	}
	util.Info("replayed %d records into %d tables", inserted, len(a.engine.Tables()))
	return inserted, nil
}
