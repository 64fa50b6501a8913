package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/passbatch/internal/config"
	coreconfig "github.com/tigerroll/passbatch/pkg/batch/core/config"
)

func TestLoad_BindsAppSection(t *testing.T) {
	yaml := []byte(`
passbatch:
  app:
    jobs:
      database: analytics
      expireChunkSize: 50
      notificationChunkSize: 25
      statisticsChunkSize: 100
      notificationLeadMinutes: 15
    report:
      storageRef: warehouse
      outputBaseDir: exports
      compression: GZIP
`)

	cfg, err := appconfig.Load(coreconfig.EmbeddedConfig(yaml))
	require.NoError(t, err)

	assert.Equal(t, "analytics", cfg.Jobs.Database)
	assert.Equal(t, 50, cfg.Jobs.ExpireChunkSize)
	assert.Equal(t, 25, cfg.Jobs.NotificationChunkSize)
	assert.Equal(t, 100, cfg.Jobs.StatisticsChunkSize)
	assert.Equal(t, 15*time.Minute, cfg.NotificationLeadWindow())
	assert.Equal(t, "warehouse", cfg.Report.StorageRef)
	assert.Equal(t, "exports", cfg.Report.OutputBaseDir)
	assert.Equal(t, "GZIP", cfg.Report.Compression)
}

func TestLoad_AppliesDefaultsWhenSectionIsAbsent(t *testing.T) {
	cfg, err := appconfig.Load(coreconfig.EmbeddedConfig([]byte("passbatch: {}")))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Jobs.Database)
	assert.Equal(t, 5, cfg.Jobs.ExpireChunkSize)
	assert.Equal(t, 10, cfg.Jobs.NotificationChunkSize)
	assert.Equal(t, 10*time.Minute, cfg.NotificationLeadWindow())
	assert.Equal(t, "report", cfg.Report.StorageRef)
	assert.Equal(t, "SNAPPY", cfg.Report.Compression)
}

func TestLoad_ExpandsEnvironmentPlaceholders(t *testing.T) {
	t.Setenv("PASSBATCH_TEST_OUTPUT", "s3-mirror")

	yaml := []byte(`
passbatch:
  app:
    report:
      outputBaseDir: ${PASSBATCH_TEST_OUTPUT}
`)
	cfg, err := appconfig.Load(coreconfig.EmbeddedConfig(yaml))
	require.NoError(t, err)
	assert.Equal(t, "s3-mirror", cfg.Report.OutputBaseDir)
}
