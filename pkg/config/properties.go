package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/strata/util"
	"gopkg.in/yaml.v3"
)

const (
	defaultLogDir              = "strata-wal"
	defaultFlushDir            = "strata-data"
	defaultSegmentSize         = 64 << 20
	defaultGenerationThreshold = 8 << 20
	defaultCommandQueueSize    = 1024
	defaultExporterPort        = 9100
	minSegmentSize             = 1024
)

// Config is fixed at engine construction; nothing is reconfigured at runtime.
type Config struct {
	// Log
	LogDir          string `yaml:"log_dir" json:"log.dir"`
	SegmentSize     uint64 `yaml:"segment_size" json:"segment.size"`
	CompressionType string `yaml:"compression_type" json:"compression.type"`
	ReplayOnStart   bool   `yaml:"replay_on_start" json:"replay.on.start"`

	// Tables
	GenerationThreshold int    `yaml:"generation_threshold" json:"generation.threshold"`
	RetainSuperseded    bool   `yaml:"retain_superseded" json:"retain.superseded"`
	FlushDir            string `yaml:"flush_dir" json:"flush.dir"`
	FlushCompression    string `yaml:"flush_compression" json:"flush.compression"`

	// Actor
	CommandQueueSize int `yaml:"command_queue_size" json:"command.queue.size"`

	// Observability
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`
}

// Default returns a normalized configuration with every default applied.
func Default() *Config {
	cfg := &Config{LogLevel: util.LogLevelInfo}
	cfg.Normalize()
	return cfg
}

// LoadConfig layers defaults, an optional YAML/JSON file, explicitly set
// flags and STRATA_* environment variables, in that order.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("strata", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	logDirStr := fs.String("log-dir", defaultLogDir, "Directory holding log segments")
	segmentSizeStr := fs.String("segment-size", "64MB", "Maximum segment size (e.g. 1048576, 64MB)")
	thresholdStr := fs.String("generation-threshold", "8MB", "Generation size above which a table generation is sealed")
	queueSizeStr := fs.String("command-queue", "1024", "Actor command queue capacity")
	compressionStr := fs.String("compression", "none", "Record compression (none, gzip, snappy, lz4)")
	flushDirStr := fs.String("flush-dir", defaultFlushDir, "Directory sealed generations are flushed to")
	flushCompressionStr := fs.String("flush-compression", "none", "Flushed file compression (none, lz4, zstd)")
	replayStr := fs.String("replay", "false", "Rebuild tables from every log segment at startup")
	retainStr := fs.String("retain-superseded", "false", "Keep merged-away generations registered")
	exporterStr := fs.String("exporter", "true", "Enable Prometheus exporter")
	exporterPortStr := fs.String("exporter-port", "9100", "Exporter port")
	logLevelStr := fs.String("log-level", "info", "Log Level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	apply := func(all bool) error {
		set := func(name string) bool { return all || explicit[name] }

		if set("log-dir") {
			cfg.LogDir = *logDirStr
		}
		if set("segment-size") {
			n, err := util.ParseBytes(*segmentSizeStr)
			if err != nil {
				return fmt.Errorf("segment-size: %w", err)
			}
			cfg.SegmentSize = uint64(n)
		}
		if set("generation-threshold") {
			n, err := util.ParseBytes(*thresholdStr)
			if err != nil {
				return fmt.Errorf("generation-threshold: %w", err)
			}
			cfg.GenerationThreshold = int(n)
		}
		if set("command-queue") {
			cfg.CommandQueueSize = util.ParseInt(*queueSizeStr, defaultCommandQueueSize)
		}
		if set("compression") {
			cfg.CompressionType = *compressionStr
		}
		if set("flush-dir") {
			cfg.FlushDir = *flushDirStr
		}
		if set("flush-compression") {
			cfg.FlushCompression = *flushCompressionStr
		}
		if set("replay") {
			cfg.ReplayOnStart = util.ParseBool(*replayStr, false)
		}
		if set("retain-superseded") {
			cfg.RetainSuperseded = util.ParseBool(*retainStr, false)
		}
		if set("exporter") {
			cfg.EnableExporter = util.ParseBool(*exporterStr, true)
		}
		if set("exporter-port") {
			cfg.ExporterPort = util.ParseInt(*exporterPortStr, defaultExporterPort)
		}
		if set("log-level") {
			cfg.LogLevel = util.ParseLogLevel(*logLevelStr)
		}
		return nil
	}

	if err := apply(true); err != nil {
		return nil, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", *configPath, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", *configPath, err)
			}
		}
	}

	if err := apply(false); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrideEnvString(&cfg.LogDir, "STRATA_LOG_DIR")
	overrideEnvBytes(&cfg.SegmentSize, "STRATA_SEGMENT_SIZE")
	overrideEnvString(&cfg.CompressionType, "STRATA_COMPRESSION_TYPE")
	overrideEnvBool(&cfg.ReplayOnStart, "STRATA_REPLAY_ON_START")
	overrideEnvInt(&cfg.GenerationThreshold, "STRATA_GENERATION_THRESHOLD")
	overrideEnvBool(&cfg.RetainSuperseded, "STRATA_RETAIN_SUPERSEDED")
	overrideEnvString(&cfg.FlushDir, "STRATA_FLUSH_DIR")
	overrideEnvString(&cfg.FlushCompression, "STRATA_FLUSH_COMPRESSION")
	overrideEnvInt(&cfg.CommandQueueSize, "STRATA_COMMAND_QUEUE_SIZE")
	overrideEnvBool(&cfg.EnableExporter, "STRATA_ENABLE_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "STRATA_EXPORTER_PORT")
	if v := os.Getenv("STRATA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
}
