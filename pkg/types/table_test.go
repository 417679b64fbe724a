package types_test

import (
	"testing"

	"github.com/downfa11-org/strata/pkg/types"
	"github.com/google/go-cmp/cmp"
)

func TestIdentifierNames(t *testing.T) {
	id := types.NewIdentifier("sensor-eu", 1700000000000001)

	if got := id.Name(); got != "sensor-eu-1700000000000001" {
		t.Errorf("Name() = %q", got)
	}
	if got := id.WithSuffix(types.FlushedSuffix).FileName(); got != "sensor-eu-1700000000000001.parquet" {
		t.Errorf("FileName() = %q", got)
	}
	if got := (types.TableIdentifier{Prefix: "bare"}).Name(); got != "bare" {
		t.Errorf("bare Name() = %q", got)
	}
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want types.TableIdentifier
	}{
		{"class-42", types.TableIdentifier{Prefix: "class", Generation: 42}},
		{"sensor-eu-42", types.TableIdentifier{Prefix: "sensor-eu", Generation: 42}},
		{"class-42.parquet", types.TableIdentifier{Prefix: "class", Generation: 42, Suffix: ".parquet"}},
		{"class", types.TableIdentifier{Prefix: "class"}},
		{"sensor-eu", types.TableIdentifier{Prefix: "sensor-eu"}},
	}

	for _, tt := range tests {
		got, err := types.ParseIdentifier(tt.in)
		if err != nil {
			t.Fatalf("ParseIdentifier(%q): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseIdentifier(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}

	if _, err := types.ParseIdentifier(""); err == nil {
		t.Errorf("expected error for empty name")
	}
}

func TestNewSnapshotMutability(t *testing.T) {
	id := types.NewIdentifier("t", 1)
	if s := types.NewSnapshot(id, 100, 100, 1, 0, 0); !s.Mutable {
		t.Errorf("size equal to threshold should stay mutable")
	}
	if s := types.NewSnapshot(id, 101, 100, 1, 0, 0); s.Mutable {
		t.Errorf("size above threshold should be immutable")
	}
}
