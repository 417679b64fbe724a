package util_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/downfa11-org/strata/util"
)

func TestCodecFor(t *testing.T) {
	tests := []struct {
		name    string
		want    util.Codec
		wantErr bool
	}{
		{"", util.CodecNone, false},
		{"none", util.CodecNone, false},
		{"gzip", util.CodecGzip, false},
		{"snappy", util.CodecSnappy, false},
		{"lz4", util.CodecLZ4, false},
		{"zstd", util.CodecNone, true},
	}

	for _, tt := range tests {
		got, err := util.CodecFor(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CodecFor(%q) expected error", tt.name)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CodecFor(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
}

// TestCompressDecompressRoundtrip verifies roundtrip compression/decompression
func TestCompressDecompressRoundtrip(t *testing.T) {
	testCases := [][]byte{
		[]byte("a"),
		[]byte("Hello, World!"),
		make([]byte, 1000),
		bytes.Repeat([]byte("columnar"), 2000),
	}

	for _, tc := range testCases {
		tc := tc
		for _, ct := range []string{"gzip", "snappy", "lz4", "none"} {
			ct := ct

			t.Run(fmt.Sprintf("%s_%dB", ct, len(tc)), func(t *testing.T) {
				compressed, err := util.CompressMessage(tc, ct)
				if err != nil {
					t.Fatalf("compression failed: %v", err)
				}

				decompressed, err := util.DecompressMessage(compressed, ct)
				if err != nil {
					t.Fatalf("decompression failed: %v", err)
				}

				if !bytes.Equal(decompressed, tc) {
					t.Fatalf("roundtrip failed: original=%d decompressed=%d", len(tc), len(decompressed))
				}
			})
		}
	}
}

func TestCompressUnsupported(t *testing.T) {
	if _, err := util.CompressMessage([]byte("x"), "unknown"); err == nil {
		t.Fatalf("expected error for unknown compression type")
	}
	if _, err := util.Decompress([]byte("x"), util.Codec(42)); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

// TestConcurrentCompression tests thread safety of compression functions
func TestConcurrentCompression(t *testing.T) {
	testData := []byte("Hello, concurrent compression")
	codecs := []util.Codec{util.CodecGzip, util.CodecSnappy, util.CodecLZ4, util.CodecNone}

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			codec := codecs[id%len(codecs)]
			c, err := util.Compress(testData, codec)
			if err != nil {
				errCh <- fmt.Errorf("compress failed (id=%d codec=%s): %v", id, codec, err)
				return
			}

			d, err := util.Decompress(c, codec)
			if err != nil {
				errCh <- fmt.Errorf("decompress failed (id=%d codec=%s): %v", id, codec, err)
				return
			}

			if !bytes.Equal(d, testData) {
				errCh <- fmt.Errorf("data mismatch (id=%d codec=%s)", id, codec)
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}

func TestSnappyTinyPayloads(t *testing.T) {
	for n := 1; n <= 8; n++ {
		data := bytes.Repeat([]byte{'x'}, n)
		compressed, err := util.Compress(data, util.CodecSnappy)
		if err != nil {
			t.Fatalf("compress %dB: %v", n, err)
		}
		got, err := util.Decompress(compressed, util.CodecSnappy)
		if err != nil {
			t.Fatalf("decompress %dB: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("%dB roundtrip mismatch: %q", n, got)
		}
	}
}
