package controller

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/downfa11-org/strata/pkg/batch"
	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/downfa11-org/strata/pkg/types"
	"github.com/downfa11-org/strata/util"
)

// Client submits commands to an Actor. It is safe for concurrent use.
type Client struct {
	actor *Actor
}

func NewClient(a *Actor) *Client {
	return &Client{actor: a}
}

func (c *Client) send(ctx context.Context, cmd Command) error {
	select {
	case <-c.actor.done:
		return ErrActorStopped
	default:
	}

	select {
	case c.actor.commands <- cmd:
		metrics.CommandQueueDepth.Set(float64(len(c.actor.commands)))
		return nil
	case <-c.actor.done:
		return ErrActorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for the reply to a sent command. If ctx ends first, a reply
// the actor still delivers is handed to release so its records are freed.
func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T, release func(T)) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		if release != nil {
			go drain(done, reply, release)
		}
		return zero, ctx.Err()
	case <-done:
		// the actor may have answered right before exiting
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrActorStopped
		}
	}
}

func drain[T any](done <-chan struct{}, reply <-chan T, release func(T)) {
	select {
	case r := <-reply:
		release(r)
	case <-done:
		select {
		case r := <-reply:
			release(r)
		default:
		}
	}
}

// AppendAsync enqueues records and returns the channel the reply arrives on.
func (c *Client) AppendAsync(ctx context.Context, records [][]byte) (<-chan AppendReply, error) {
	cmd := &AppendCommand{
		ID:      util.NewRequestID(),
		Records: records,
		Reply:   make(chan AppendReply, 1),
	}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.Reply, nil
}

// Append makes records durable and inserts them. The reply's OK is false if
// either the log write or any insert failed.
func (c *Client) Append(ctx context.Context, records [][]byte) (AppendReply, error) {
	reply, err := c.AppendAsync(ctx, records)
	if err != nil {
		return AppendReply{}, err
	}
	return await(ctx, c.actor.done, reply, nil)
}

// AppendBatch tags rec with table, encodes it and appends it.
func (c *Client) AppendBatch(ctx context.Context, table string, rec arrow.Record) (AppendReply, error) {
	tagged := batch.Tag(rec, table)
	data, err := batch.EncodeRecord(tagged, c.actor.codec)
	tagged.Release()
	if err != nil {
		return AppendReply{}, err
	}
	return c.Append(ctx, [][]byte{data})
}

// OffsetList returns the offsets recorded for a sealed segment.
func (c *Client) OffsetList(ctx context.Context, segment string) ([]types.LogOffset, error) {
	cmd := &OffsetListCommand{ID: util.NewRequestID(), Segment: segment, Reply: make(chan []types.LogOffset, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	return await(ctx, c.actor.done, cmd.Reply, nil)
}

// Table returns the first batch registered under name, or nil. The caller
// releases the returned record.
func (c *Client) Table(ctx context.Context, name string) (arrow.Record, error) {
	cmd := &TableCommand{ID: util.NewRequestID(), Name: name, Reply: make(chan RecordReply, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	r, err := await(ctx, c.actor.done, cmd.Reply, RecordReply.release)
	if err != nil {
		return nil, err
	}
	return r.Record, r.Err
}

// Query runs sql and returns the first result batch, or nil. The caller
// releases the returned record.
func (c *Client) Query(ctx context.Context, sql string) (arrow.Record, error) {
	cmd := &QueryCommand{ID: util.NewRequestID(), SQL: sql, Reply: make(chan RecordReply, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	r, err := await(ctx, c.actor.done, cmd.Reply, RecordReply.release)
	if err != nil {
		return nil, err
	}
	return r.Record, r.Err
}

// Prefix returns every batch of every generation of prefix.
func (c *Client) Prefix(ctx context.Context, prefix string) ([]arrow.Record, error) {
	cmd := &PrefixCommand{ID: util.NewRequestID(), Prefix: prefix, Reply: make(chan PrefixReply, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	r, err := await(ctx, c.actor.done, cmd.Reply, PrefixReply.release)
	if err != nil {
		return nil, err
	}
	return r.Records, r.Err
}

// TableList returns every tracked generation.
func (c *Client) TableList(ctx context.Context) ([]types.TableIdentifier, error) {
	cmd := &TableListCommand{ID: util.NewRequestID(), Reply: make(chan []types.TableIdentifier, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	return await(ctx, c.actor.done, cmd.Reply, nil)
}

// Evict drops a sealed generation.
func (c *Client) Evict(ctx context.Context, id types.TableIdentifier) error {
	cmd := &EvictCommand{ID: util.NewRequestID(), Table: id, Reply: make(chan error, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return err
	}
	r, err := await(ctx, c.actor.done, cmd.Reply, nil)
	if err != nil {
		return err
	}
	return r
}
