package util_test

import (
	"testing"

	"github.com/downfa11-org/strata/util"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		input    string
		fallback int
		want     int
	}{
		{"123", 0, 123},
		{"0", 99, 0},
		{"-5", 0, -5},
		{"abc", 42, 42},
		{"", 7, 7},
		{"   ", 8, 8},
	}

	for _, tt := range tests {
		got := util.ParseInt(tt.input, tt.fallback)
		if got != tt.want {
			t.Errorf("ParseInt(%q, %d) = %d; want %d", tt.input, tt.fallback, got, tt.want)
		}
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		fallback bool
		want     bool
	}{
		{"true", false, true},
		{"false", true, false},
		{"1", false, true},
		{"t", false, true},
		{"yes", false, false},
		{"", true, true},
	}

	for _, tt := range tests {
		got := util.ParseBool(tt.input, tt.fallback)
		if got != tt.want {
			t.Errorf("ParseBool(%q, %v) = %v; want %v", tt.input, tt.fallback, got, tt.want)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"64KB", 64 << 10, false},
		{"1mb", 1 << 20, false},
		{"2 GB", 2 << 30, false},
		{"10B", 10, false},
		{"", 0, true},
		{"lots", 0, true},
		{"xMB", 0, true},
	}

	for _, tt := range tests {
		got, err := util.ParseBytes(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBytes(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBytes(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBytes(%q) = %d; want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]util.LogLevel{
		"debug":   util.LogLevelDebug,
		"INFO":    util.LogLevelInfo,
		"warning": util.LogLevelWarn,
		"error":   util.LogLevelError,
		"bogus":   util.LogLevelInfo,
	}
	for in, want := range cases {
		if got := util.ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v; want %v", in, got, want)
		}
	}
}
