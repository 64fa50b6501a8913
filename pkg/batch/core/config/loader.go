package config

import (
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// LoadConfig loads the application configuration: it applies the optional
// .env file, expands ${VAR} placeholders in the embedded YAML, and
// unmarshals it over the defaults. Intended to be called once at startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders in config", err, false, false)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	logger.SetLogLevel(cfg.PassBatch.System.Logging.Level)
	model.SetMaskedParameterKeys(cfg.PassBatch.Security.MaskedParameterKeys)
	logger.Infof("configuration loaded, log level %s", cfg.PassBatch.System.Logging.Level)
	return cfg, nil
}
