package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/confidence"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/signals"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"`
		GRPCAddr string `yaml:"grpc_addr"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"` // SQLite file, ":memory:" for throwaway runs
	} `yaml:"database"`

	Logging struct {
		Level string `yaml:"level"` // debug, info, warn, error
	} `yaml:"logging"`

	Update update.Config     `yaml:"update"`
	Policy confidence.Policy `yaml:"policy"`
	FSI    signals.FSIConfig `yaml:"fsi"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from YAML file. Environment references like
// ${ADAPTIVE_DB} are expanded before decoding, and ADAPTIVE_DB, HTTP_ADDR and
// GRPC_ADDR override the file.
func LoadConfig(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes and applies defaults and overrides.
func Parse(raw []byte) (*Config, error) {
	config := &Config{}
	expanded := os.ExpandEnv(string(raw))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyDefaults(config)

	if err := config.Update.Validate(); err != nil {
		return nil, err
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(config *Config) {
	config.Server.HTTPAddr = envOr("HTTP_ADDR", config.Server.HTTPAddr)
	config.Server.GRPCAddr = envOr("GRPC_ADDR", config.Server.GRPCAddr)
	config.Database.Path = envOr("ADAPTIVE_DB", config.Database.Path)

	if config.Server.HTTPAddr == "" {
		config.Server.HTTPAddr = ":8000"
	}
	if config.Server.GRPCAddr == "" {
		config.Server.GRPCAddr = ":50052"
	}
	if config.Database.Path == "" {
		config.Database.Path = "adaptive_feedback.db"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	def := update.DefaultConfig()
	if config.Update.ActionCount == 0 {
		config.Update.ActionCount = def.ActionCount
	}
	if config.Update.ApproveFactor == 0 {
		config.Update.ApproveFactor = def.ApproveFactor
	}
	if config.Update.RejectFactor == 0 {
		config.Update.RejectFactor = def.RejectFactor
	}
	if config.Update.MinWeight == 0 {
		config.Update.MinWeight = def.MinWeight
	}
	if config.Update.MaxWeight == 0 {
		config.Update.MaxWeight = def.MaxWeight
	}
	if len(config.Update.ActionLabels) == 0 {
		config.Update.ActionLabels = def.ActionLabels
	}

	if len(config.Policy.Buckets) == 0 {
		config.Policy = confidence.DefaultPolicy()
	}

	fsi := signals.DefaultFSIConfig()
	if config.FSI.Field == "" {
		config.FSI.Field = fsi.Field
	}
	if config.FSI.LowBelow == 0 {
		config.FSI.LowBelow = fsi.LowBelow
	}
	if config.FSI.HighAbove == 0 {
		config.FSI.HighAbove = fsi.HighAbove
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
