package util_test

import (
	"testing"

	"github.com/downfa11-org/strata/util"
	"github.com/google/uuid"
)

func TestNewRequestID(t *testing.T) {
	id1 := util.NewRequestID()
	id2 := util.NewRequestID()

	if id1 == id2 {
		t.Errorf("Expected distinct request ids, got %s twice", id1)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("Expected a uuid, got %q: %v", id1, err)
	}
}

func TestNowMicrosMonotonic(t *testing.T) {
	prev := util.NowMicros()
	for i := 0; i < 10000; i++ {
		next := util.NowMicros()
		if next <= prev {
			t.Fatalf("NowMicros not strictly increasing: %d then %d", prev, next)
		}
		prev = next
	}
}
