// Package config provides the framework configuration structures and the
// loader that fills them from embedded YAML and the environment.
package config

import (
	"github.com/mitchellh/mapstructure"

	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "config"

// EmbeddedConfig carries the raw bytes of the embedded application.yaml.
type EmbeddedConfig []byte

// Config is the root configuration structure.
type Config struct {
	PassBatch PassBatchConfig `yaml:"passbatch"`
}

// PassBatchConfig groups all framework settings under one root key.
type PassBatchConfig struct {
	Batch    BatchConfig    `yaml:"batch"`
	System   SystemConfig   `yaml:"system"`
	Security SecurityConfig `yaml:"security"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	// AdapterConfigs holds the raw per-adapter configuration trees
	// ("database", "storage"), decoded on demand.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// BatchConfig tunes job execution.
type BatchConfig struct {
	PollingIntervalSeconds int `yaml:"pollingIntervalSeconds"`
	ChunkSize              int `yaml:"chunkSize"`
}

// SystemConfig covers process-level settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SecurityConfig lists parameter keys masked in log output.
type SecurityConfig struct {
	MaskedParameterKeys []string `yaml:"maskedParameterKeys"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig controls the OpenTelemetry exporters.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Protocol    string `yaml:"protocol"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"serviceName"`
}

// NewConfig returns a Config filled with defaults.
func NewConfig() *Config {
	return &Config{
		PassBatch: PassBatchConfig{
			Batch: BatchConfig{
				PollingIntervalSeconds: 1,
				ChunkSize:              10,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Metrics: MetricsConfig{Port: 9464},
			Tracing: TracingConfig{
				Protocol:    "grpc",
				ServiceName: "passbatch",
			},
		},
	}
}

// DatabaseConfigs decodes the "database" adapter tree into named database
// configurations.
func (c *Config) DatabaseConfigs() (map[string]dbconfig.DatabaseConfig, error) {
	out := make(map[string]dbconfig.DatabaseConfig)
	if err := c.decodeAdapterConfigs("database", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StorageConfigs decodes the "storage" adapter tree into named storage
// configurations.
func (c *Config) StorageConfigs() (map[string]storageconfig.StorageConfig, error) {
	out := make(map[string]storageconfig.StorageConfig)
	if err := c.decodeAdapterConfigs("storage", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Config) decodeAdapterConfigs(kind string, out interface{}) error {
	raw, ok := c.PassBatch.AdapterConfigs[kind]
	if !ok {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "yaml",
	})
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create decoder for '"+kind+"' adapter config", err, false, false)
	}
	if err := decoder.Decode(raw); err != nil {
		return exception.NewBatchError(moduleName, "failed to decode '"+kind+"' adapter config", err, false, false)
	}
	return nil
}
