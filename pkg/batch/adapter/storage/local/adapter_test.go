package local_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage/local"
)

func newConnection(t *testing.T) (storageadapter.StorageConnection, string) {
	t.Helper()
	baseDir := t.TempDir()
	conn, err := local.NewLocalConnection(storageconfig.StorageConfig{
		Type:       local.ProviderType,
		BucketName: "reports",
		BaseDir:    baseDir,
	}, "report")
	require.NoError(t, err)
	return conn, baseDir
}

func TestLocalConnection_UploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	content := "period_start,all_count\n2026-03-01,5\n"
	require.NoError(t, conn.Upload(ctx, "", "daily/dt=2026-03-01/data.parquet", strings.NewReader(content), "application/octet-stream"))

	rc, err := conn.Download(ctx, "", "daily/dt=2026-03-01/data.parquet")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestLocalConnection_ListObjectsFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	for _, name := range []string{"daily/a.parquet", "daily/b.parquet", "weekly/c.parquet"} {
		require.NoError(t, conn.Upload(ctx, "", name, strings.NewReader("x"), ""))
	}

	var listed []string
	require.NoError(t, conn.ListObjects(ctx, "", "daily/", func(objectName string) error {
		listed = append(listed, objectName)
		return nil
	}))
	sort.Strings(listed)
	assert.Equal(t, []string{"daily/a.parquet", "daily/b.parquet"}, listed)
}

func TestLocalConnection_ListObjectsOnMissingBucketIsEmpty(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	calls := 0
	require.NoError(t, conn.ListObjects(ctx, "empty-bucket", "", func(string) error {
		calls++
		return nil
	}))
	assert.Zero(t, calls)
}

func TestLocalConnection_DeleteObject(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	require.NoError(t, conn.Upload(ctx, "", "victim.parquet", strings.NewReader("x"), ""))
	require.NoError(t, conn.DeleteObject(ctx, "", "victim.parquet"))

	_, err := conn.Download(ctx, "", "victim.parquet")
	require.Error(t, err)

	// Deleting a missing object is tolerated.
	require.NoError(t, conn.DeleteObject(ctx, "", "victim.parquet"))
}

func TestLocalConnection_RejectsPathEscapingBaseDir(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	err := conn.Upload(ctx, "", "../../outside.txt", strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestProvider_CachesConnectionsAndValidatesType(t *testing.T) {
	baseDir := t.TempDir()
	provider := local.NewProvider(map[string]storageconfig.StorageConfig{
		"report": {Type: local.ProviderType, BucketName: "reports", BaseDir: baseDir},
		"remote": {Type: "gcs", BucketName: "remote"},
	})

	first, err := provider.GetConnection("report")
	require.NoError(t, err)
	second, err := provider.GetConnection("report")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = provider.GetConnection("remote")
	require.Error(t, err)
	_, err = provider.GetConnection("missing")
	require.Error(t, err)
}
