package controller

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestAwaitReleasesLateReply(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil)
	b := array.NewRecordBuilder(mem, schema)
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	rec := b.NewRecord()
	b.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	reply := make(chan RecordReply, 1)
	_, err := await(ctx, done, reply, RecordReply.release)
	require.ErrorIs(t, err, context.Canceled)

	// the actor answers after the caller has gone away
	reply <- RecordReply{Record: rec}

	require.Eventually(t, func() bool { return mem.CurrentAlloc() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAwaitReleasesReplyLeftAtStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	reply := make(chan PrefixReply, 1)
	released := make(chan struct{})
	_, err := await(ctx, done, reply, func(PrefixReply) { close(released) })
	require.ErrorIs(t, err, context.Canceled)

	reply <- PrefixReply{}
	close(done)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("buffered reply was not released")
	}
}
