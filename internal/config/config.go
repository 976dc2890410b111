package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Collector modes.
const (
	CollectorSimulated = "simulated"
	CollectorHost      = "host"
	CollectorHTTP      = "http"
	CollectorRedis     = "redis"
)

// Alert forwarding modes.
const (
	ForwardNone   = ""
	ForwardJSONL  = "jsonl"
	ForwardHTTP   = "http"
	ForwardRedis  = "redis"
	ForwardSQLite = "sqlite"
)

// Config captures the settings required to boot the IDS service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detector  DetectorConfig  `yaml:"detector"`
	Collector CollectorConfig `yaml:"collector"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Rules     RulesConfig     `yaml:"rules"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP facade and gRPC health listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DetectorConfig controls the isolation forest and its artifact.
type DetectorConfig struct {
	ModelPath     string  `yaml:"modelPath"`
	Contamination float64 `yaml:"contamination"`
	Seed          int64   `yaml:"seed"`
	Trees         int     `yaml:"trees"`
	SampleSize    int     `yaml:"sampleSize"`
}

// CollectorConfig selects and configures the signal source.
type CollectorConfig struct {
	Mode   string              `yaml:"mode"`
	Seed   int64               `yaml:"seed"`
	Events []string            `yaml:"events"`
	Host   HostCollectorConfig `yaml:"host"`
	HTTP   HTTPCollectorConfig `yaml:"http"`
	Redis  RedisConfig         `yaml:"redis"`
}

// HostCollectorConfig configures gopsutil sampling.
type HostCollectorConfig struct {
	CPUInterval time.Duration `yaml:"cpuInterval"`
}

// HTTPCollectorConfig configures the node agent client.
type HTTPCollectorConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	SnapshotPath string        `yaml:"snapshotPath"`
	Node         string        `yaml:"node"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RedisConfig configures a Redis list endpoint.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"blockTimeout"`
}

// PipelineConfig controls training and scheduled detection.
type PipelineConfig struct {
	BootstrapSamples int           `yaml:"bootstrapSamples"`
	BootstrapRetry   time.Duration `yaml:"bootstrapRetry"`
	Interval         time.Duration `yaml:"interval"`
}

// AlertsConfig controls the alert log and optional forwarding.
type AlertsConfig struct {
	FilePath string        `yaml:"filePath"`
	Forward  ForwardConfig `yaml:"forward"`
}

// ForwardConfig configures where raised alerts are forwarded.
type ForwardConfig struct {
	Mode    string            `yaml:"mode"`
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	Redis   RedisConfig       `yaml:"redis"`
}

// RulesConfig controls triage rule-pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_IDS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8000",
			GRPCAddress:     ":50051",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Detector: DetectorConfig{
			ModelPath:     "detector_model.bin",
			Contamination: 0.1,
			Seed:          42,
			Trees:         100,
			SampleSize:    256,
		},
		Collector: CollectorConfig{
			Mode:   CollectorSimulated,
			Events: []string{"login_fail", "http_error"},
			Host:   HostCollectorConfig{CPUInterval: 200 * time.Millisecond},
			HTTP: HTTPCollectorConfig{
				SnapshotPath: "/api/v1/ids/snapshot",
				Timeout:      5 * time.Second,
			},
			Redis: RedisConfig{
				Addr:         "127.0.0.1:6379",
				Key:          "mirador-ids:snapshots",
				BlockTimeout: 5 * time.Second,
			},
		},
		Pipeline: PipelineConfig{BootstrapSamples: 20, BootstrapRetry: 30 * time.Second},
		Alerts: AlertsConfig{
			FilePath: "alerts.json",
			Forward: ForwardConfig{
				Timeout: 5 * time.Second,
				Redis: RedisConfig{
					Addr: "127.0.0.1:6379",
					Key:  "mirador-ids:alerts",
				},
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Detector.Contamination <= 0 || c.Detector.Contamination > 0.5 {
		return fmt.Errorf("detector.contamination must be in (0, 0.5], got %v", c.Detector.Contamination)
	}
	if c.Detector.Trees <= 0 {
		return fmt.Errorf("detector.trees must be positive, got %d", c.Detector.Trees)
	}
	if c.Detector.SampleSize <= 0 {
		return fmt.Errorf("detector.sampleSize must be positive, got %d", c.Detector.SampleSize)
	}
	if c.Pipeline.BootstrapSamples <= 0 {
		return fmt.Errorf("pipeline.bootstrapSamples must be positive, got %d", c.Pipeline.BootstrapSamples)
	}
	if c.Pipeline.BootstrapRetry < 0 {
		return fmt.Errorf("pipeline.bootstrapRetry must not be negative")
	}
	if c.Pipeline.Interval < 0 {
		return fmt.Errorf("pipeline.interval must not be negative")
	}

	switch c.Collector.Mode {
	case CollectorSimulated, CollectorHost:
	case CollectorHTTP:
		if c.Collector.HTTP.BaseURL == "" {
			return fmt.Errorf("collector.http.baseURL is required in http mode")
		}
	case CollectorRedis:
		if c.Collector.Redis.Key == "" {
			return fmt.Errorf("collector.redis.key is required in redis mode")
		}
	default:
		return fmt.Errorf("unknown collector.mode %q", c.Collector.Mode)
	}

	switch c.Alerts.Forward.Mode {
	case ForwardNone:
	case ForwardJSONL, ForwardSQLite:
		if c.Alerts.Forward.Path == "" {
			return fmt.Errorf("alerts.forward.path is required in %s mode", c.Alerts.Forward.Mode)
		}
	case ForwardHTTP:
		if c.Alerts.Forward.URL == "" {
			return fmt.Errorf("alerts.forward.url is required in http mode")
		}
	case ForwardRedis:
		if c.Alerts.Forward.Redis.Key == "" {
			return fmt.Errorf("alerts.forward.redis.key is required in redis mode")
		}
	default:
		return fmt.Errorf("unknown alerts.forward.mode %q", c.Alerts.Forward.Mode)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_IDS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v, ok := os.LookupEnv("MIRADOR_IDS_GRPC_ADDRESS"); ok {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("MIRADOR_IDS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_IDS_MODEL_PATH"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("MIRADOR_IDS_CONTAMINATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detector.Contamination = f
		}
	}
	if v := os.Getenv("MIRADOR_IDS_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Detector.Seed = seed
		}
	}
	if v := os.Getenv("MIRADOR_IDS_COLLECTOR_MODE"); v != "" {
		cfg.Collector.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_IDS_COLLECTOR_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Collector.Seed = seed
		}
	}
	if v := os.Getenv("MIRADOR_IDS_AGENT_URL"); v != "" {
		cfg.Collector.HTTP.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_IDS_REDIS_ADDR"); v != "" {
		cfg.Collector.Redis.Addr = v
		cfg.Alerts.Forward.Redis.Addr = v
	}
	if v := os.Getenv("MIRADOR_IDS_REDIS_PASSWORD"); v != "" {
		cfg.Collector.Redis.Password = v
		cfg.Alerts.Forward.Redis.Password = v
	}
	if v := os.Getenv("MIRADOR_IDS_BOOTSTRAP_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BootstrapSamples = n
		}
	}
	if v := os.Getenv("MIRADOR_IDS_BOOTSTRAP_RETRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.BootstrapRetry = d
		}
	}
	if v := os.Getenv("MIRADOR_IDS_CYCLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.Interval = d
		}
	}
	if v := os.Getenv("MIRADOR_IDS_ALERTS_PATH"); v != "" {
		cfg.Alerts.FilePath = v
	}
	if v := os.Getenv("MIRADOR_IDS_ALERTS_FORWARD"); v != "" {
		cfg.Alerts.Forward.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_IDS_ALERTS_FORWARD_PATH"); v != "" {
		cfg.Alerts.Forward.Path = v
	}
	if v := os.Getenv("MIRADOR_IDS_ALERTS_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Forward.URL = v
	}
	if v := os.Getenv("MIRADOR_IDS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_IDS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_IDS_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("MIRADOR_IDS_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
}
