// Package config binds the application-side settings of the pipeline:
// chunk sizes, the notification lead window and the report export target.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	coreconfig "github.com/tigerroll/passbatch/pkg/batch/core/config"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "app_config"

// JobsConfig tunes the application jobs.
type JobsConfig struct {
	// Database is the connection name the jobs run against.
	Database string `yaml:"database"`
	// ExpireChunkSize is the chunk size of expirePassesJob.
	ExpireChunkSize int `yaml:"expireChunkSize"`
	// NotificationChunkSize is the chunk size of both notification steps.
	NotificationChunkSize int `yaml:"notificationChunkSize"`
	// StatisticsChunkSize is the chunk size of the addStatistics step.
	StatisticsChunkSize int `yaml:"statisticsChunkSize"`
	// NotificationLeadMinutes is how far ahead of class start a booking
	// becomes eligible for a BEFORE_CLASS notification.
	NotificationLeadMinutes int `yaml:"notificationLeadMinutes"`
}

// ReportConfig targets the Parquet statistics export.
type ReportConfig struct {
	StorageRef    string `yaml:"storageRef"`
	OutputBaseDir string `yaml:"outputBaseDir"`
	Compression   string `yaml:"compression"`
}

// AppConfig is the application section of the configuration file.
type AppConfig struct {
	Jobs   JobsConfig   `yaml:"jobs"`
	Report ReportConfig `yaml:"report"`
}

// NewAppConfig returns the defaults applied before unmarshalling.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Jobs: JobsConfig{
			Database:                "main",
			ExpireChunkSize:         5,
			NotificationChunkSize:   10,
			StatisticsChunkSize:     10,
			NotificationLeadMinutes: 10,
		},
		Report: ReportConfig{
			StorageRef:    "report",
			OutputBaseDir: "reports",
			Compression:   "SNAPPY",
		},
	}
}

// NotificationLeadWindow returns the lead window as a duration.
func (c *AppConfig) NotificationLeadWindow() time.Duration {
	return time.Duration(c.Jobs.NotificationLeadMinutes) * time.Minute
}

type fileRoot struct {
	PassBatch struct {
		App AppConfig `yaml:"app"`
	} `yaml:"passbatch"`
}

// Load parses the application section out of the embedded configuration,
// after the same ${VAR} expansion the framework config applies.
func Load(embedded coreconfig.EmbeddedConfig) (*AppConfig, error) {
	expanded, err := coreconfig.NewOsEnvironmentExpander().Expand(embedded)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders in app config", err, false, false)
	}
	root := fileRoot{}
	root.PassBatch.App = *NewAppConfig()
	if err := yaml.Unmarshal(expanded, &root); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal app config", err, false, false)
	}
	cfg := root.PassBatch.App
	return &cfg, nil
}
