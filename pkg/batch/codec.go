package batch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/downfa11-org/strata/util"
)

var errEmptyRecord = errors.New("empty log record")

// EncodeRecord serializes rec as an Arrow IPC stream behind a one-byte codec
// marker, compressing the stream with codec.
func EncodeRecord(rec arrow.Record, codec util.Codec) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write ipc stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close ipc stream: %w", err)
	}

	body, err := util.Compress(buf.Bytes(), codec)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(codec))
	return append(out, body...), nil
}

// DecodeRecords reverses EncodeRecord. The caller releases the returned records.
func DecodeRecords(mem memory.Allocator, data []byte) ([]arrow.Record, error) {
	if len(data) == 0 {
		return nil, errEmptyRecord
	}

	body, err := util.Decompress(data[1:], util.Codec(data[0]))
	if err != nil {
		return nil, err
	}

	rdr, err := ipc.NewReader(bytes.NewReader(body), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open ipc stream: %w", err)
	}
	defer rdr.Release()

	var recs []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		for _, r := range recs {
			r.Release()
		}
		return nil, fmt.Errorf("read ipc stream: %w", err)
	}
	return recs, nil
}
