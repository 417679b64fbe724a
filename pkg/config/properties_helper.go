package config

import (
	"os"
	"strings"

	"github.com/downfa11-org/strata/util"
)

func (cfg *Config) Normalize() {
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = defaultExporterPort
	}

	// log
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = defaultLogDir
	}
	if cfg.SegmentSize < minSegmentSize {
		cfg.SegmentSize = defaultSegmentSize
	}
	cfg.CompressionType = strings.ToLower(strings.TrimSpace(cfg.CompressionType))
	if cfg.CompressionType == "" {
		cfg.CompressionType = "none"
	}
	switch cfg.CompressionType {
	case "none", "gzip", "snappy", "lz4":
	default:
		util.Warn("Invalid compression_type '%s', defaulting to 'none'", cfg.CompressionType)
		cfg.CompressionType = "none"
	}

	// tables
	if cfg.GenerationThreshold <= 0 {
		cfg.GenerationThreshold = defaultGenerationThreshold
	}
	if strings.TrimSpace(cfg.FlushDir) == "" {
		cfg.FlushDir = defaultFlushDir
	}
	cfg.FlushCompression = strings.ToLower(strings.TrimSpace(cfg.FlushCompression))
	switch cfg.FlushCompression {
	case "none", "lz4", "zstd":
	case "":
		cfg.FlushCompression = "none"
	default:
		util.Warn("Invalid flush_compression '%s', defaulting to 'none'", cfg.FlushCompression)
		cfg.FlushCompression = "none"
	}

	// actor
	if cfg.CommandQueueSize <= 0 {
		cfg.CommandQueueSize = defaultCommandQueueSize
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvBytes(target *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := util.ParseBytes(v); err == nil && n >= 0 {
			*target = uint64(n)
		} else {
			util.Warn("ignoring %s=%q: not a byte size", key, v)
		}
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
