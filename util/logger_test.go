package util_test

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/downfa11-org/strata/util"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	util.SetOutput(&buf)
	prev := util.Level()
	defer func() {
		util.SetLevel(prev)
		log.SetOutput(os.Stderr)
	}()

	util.SetLevel(util.LogLevelWarn)
	if util.Level() != util.LogLevelWarn {
		t.Fatalf("Level() = %v, want warn", util.Level())
	}

	util.Debug("segment %d", 1)
	util.Info("segment %d", 2)
	util.Warn("segment %d", 3)
	util.Error("segment %d", 4)

	out := buf.String()
	if strings.Contains(out, "[DEBUG]") || strings.Contains(out, "[INFO]") {
		t.Fatalf("messages below warn leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] segment 3") || !strings.Contains(out, "[ERROR] segment 4") {
		t.Fatalf("missing warn/error lines: %q", out)
	}
}
