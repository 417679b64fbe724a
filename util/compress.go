package util

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	snappy "github.com/segmentio/kafka-go/compress/snappy/go-xerial-snappy"
)

// Codec identifies a record compression scheme. The value is persisted as the
// first byte of every encoded record, so existing values must never change.
type Codec byte

const (
	CodecNone   Codec = 0
	CodecGzip   Codec = 1
	CodecSnappy Codec = 2
	CodecLZ4    Codec = 3
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecSnappy:
		return "snappy"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", byte(c))
	}
}

// CodecFor resolves a configured compression_type name.
func CodecFor(compressionType string) (Codec, error) {
	switch compressionType {
	case "none", "":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "snappy":
		return CodecSnappy, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return CodecNone, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// Compress applies codec to data.
func Compress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CodecSnappy:
		// xerial framing; Decode rejects raw blocks shorter than its header
		return snappy.EncodeStream(nil, data), nil

	case CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CodecNone:
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

// Decompress reverses Compress.
func Decompress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := gr.Close(); err != nil {
				Error("failed to close gzip reader: %v", err)
			}
		}()
		return io.ReadAll(gr)

	case CodecSnappy:
		return snappy.Decode(data)

	case CodecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	case CodecNone:
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

// CompressMessage compresses data with the named compression type.
func CompressMessage(data []byte, compressionType string) ([]byte, error) {
	codec, err := CodecFor(compressionType)
	if err != nil {
		return nil, err
	}
	return Compress(data, codec)
}

// DecompressMessage decompresses data with the named compression type.
func DecompressMessage(data []byte, compressionType string) ([]byte, error) {
	codec, err := CodecFor(compressionType)
	if err != nil {
		return nil, err
	}
	return Decompress(data, codec)
}
