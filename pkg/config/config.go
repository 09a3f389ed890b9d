package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/util"
)

type Config struct {
	Environment string   `yaml:"environment" default:"development" validate:"required"`
	Symbols     []string `yaml:"symbols" validate:"required,min=1"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Exchange struct {
		Client         string        `yaml:"client" default:"binance" validate:"oneof=binance stream"`
		Name           string        `yaml:"name" default:"binance"`
		DepthLimit     int           `yaml:"depth_limit" default:"50"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" default:"5s"`
		RequestsPerSec float64       `yaml:"requests_per_sec" default:"10"`
		Stream         struct {
			URL            string        `yaml:"url"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		} `yaml:"stream"`
	} `yaml:"exchange"`

	Analyzer struct {
		PollInterval    time.Duration `yaml:"poll_interval" default:"1s"`
		WallThreshold   float64       `yaml:"wall_threshold" default:"100000"`
		AlertMultiplier float64       `yaml:"alert_multiplier" default:"5"`
		DepthLevels     int           `yaml:"depth_levels" default:"20"`
		LayeringLevels  int           `yaml:"layering_levels" default:"12"`
		HistorySize     int           `yaml:"history_size" default:"100"`
	} `yaml:"analyzer"`

	Mapper struct {
		ManipulationThreshold float64 `yaml:"manipulation_threshold" default:"0.6"`
		DepthRatio            float64 `yaml:"depth_ratio" default:"1.5"`
		Timeframe             string  `yaml:"timeframe" default:"1s"`
	} `yaml:"mapper"`

	Predictor struct {
		RecentEvents int `yaml:"recent_events" default:"10"`
	} `yaml:"predictor"`

	Memory struct {
		Backend       string        `yaml:"backend" default:"file" validate:"oneof=file redis"`
		Path          string        `yaml:"path" default:"data/pattern_memory.json"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"5s"`
		Redis         struct {
			Addr      string `yaml:"addr" default:"localhost:6379"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix" default:"whale:patterns"`
		} `yaml:"redis"`
	} `yaml:"memory"`

	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		TopicPrefix  string        `yaml:"topic_prefix" default:"whale"`
		Compression  string        `yaml:"compression" default:"gzip"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"whale"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		TradesTable string        `yaml:"trades_table" default:"whale.trades"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"1m"`
	} `yaml:"clickhouse"`

	Trainer struct {
		ModelDir   string        `yaml:"model_dir" default:"data/models"`
		MinSamples int           `yaml:"min_samples" default:"50"`
		Interval   time.Duration `yaml:"interval" default:"10m"`
	} `yaml:"trainer"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies struct defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides deployment-sensitive
// keys from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Memory.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("MEMORY_PATH"); v != "" {
		c.Memory.Path = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	c.ClickHouse.Port = util.ParseIntDefault(os.Getenv("CLICKHOUSE_PORT"), c.ClickHouse.Port)

	return c, nil
}
