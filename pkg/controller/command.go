package controller

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/downfa11-org/strata/pkg/types"
)

// Command is a request processed by the actor. Every command carries a reply
// channel with room for exactly one reply, so the actor never blocks on a
// caller that stopped listening.
type Command interface {
	requestID() string
	name() string
}

type AppendReply struct {
	OK      bool
	Segment string
	Offset  types.LogOffset
	Err     error
}

// AppendCommand makes records durable, then inserts each decoded batch.
type AppendCommand struct {
	ID      string
	Records [][]byte
	Reply   chan AppendReply
}

type OffsetListCommand struct {
	ID      string
	Segment string
	Reply   chan []types.LogOffset
}

// RecordReply carries a single result batch; Record is nil when there is none.
// The receiver owns Record and must release it.
type RecordReply struct {
	Record arrow.Record
	Err    error
}

func (r RecordReply) release() {
	if r.Record != nil {
		r.Record.Release()
	}
}

type TableCommand struct {
	ID    string
	Name  string
	Reply chan RecordReply
}

type QueryCommand struct {
	ID    string
	SQL   string
	Reply chan RecordReply
}

// PrefixReply carries every batch of a table; the receiver releases them.
type PrefixReply struct {
	Records []arrow.Record
	Err     error
}

func (r PrefixReply) release() {
	for _, rec := range r.Records {
		rec.Release()
	}
}

type PrefixCommand struct {
	ID     string
	Prefix string
	Reply  chan PrefixReply
}

type TableListCommand struct {
	ID    string
	Reply chan []types.TableIdentifier
}

type EvictCommand struct {
	ID    string
	Table types.TableIdentifier
	Reply chan error
}

func (c *AppendCommand) requestID() string     { return c.ID }
func (c *OffsetListCommand) requestID() string { return c.ID }
func (c *TableCommand) requestID() string      { return c.ID }
func (c *QueryCommand) requestID() string      { return c.ID }
func (c *PrefixCommand) requestID() string     { return c.ID }
func (c *TableListCommand) requestID() string  { return c.ID }
func (c *EvictCommand) requestID() string      { return c.ID }

func (c *AppendCommand) name() string     { return "APPEND" }
func (c *OffsetListCommand) name() string { return "OFFSET_LIST" }
func (c *TableCommand) name() string      { return "TABLE" }
func (c *QueryCommand) name() string      { return "QUERY" }
func (c *PrefixCommand) name() string     { return "PREFIX" }
func (c *TableListCommand) name() string  { return "TABLE_LIST" }
func (c *EvictCommand) name() string      { return "EVICT" }
