// Package gcs implements the storage ports on Google Cloud Storage.
package gcs

import (
	"context"
	"io"
	"sync"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// ProviderType identifies the Google Cloud Storage backend.
const ProviderType = "gcs"

const moduleName = "gcs_storage"

type gcsConnection struct {
	client *gcstorage.Client
	cfg    storageconfig.StorageConfig
	name   string
}

var _ storageadapter.StorageConnection = (*gcsConnection)(nil)

// NewGCSConnection dials a GCS client for the named configuration. When
// CredentialsFile is set it is used instead of application default
// credentials.
func NewGCSConnection(ctx context.Context, cfg storageconfig.StorageConfig, name string) (storageadapter.StorageConnection, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "gcs storage '%s': failed to create client: %w", name, err)
	}
	return &gcsConnection{client: client, cfg: cfg, name: name}, nil
}

func (c *gcsConnection) Close() error { return c.client.Close() }
func (c *gcsConnection) Type() string { return ProviderType }
func (c *gcsConnection) Name() string { return c.name }

func (c *gcsConnection) bucketName(bucket string) string {
	if bucket == "" {
		return c.cfg.BucketName
	}
	return bucket
}

func (c *gcsConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := c.client.Bucket(c.bucketName(bucket)).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return exception.NewBatchErrorf(moduleName, "failed to upload gs://%s/%s: %w", c.bucketName(bucket), objectName, err)
	}
	if err := w.Close(); err != nil {
		return exception.NewBatchErrorf(moduleName, "failed to finalize gs://%s/%s: %w", c.bucketName(bucket), objectName, err)
	}
	logger.Debugf("uploaded object gs://%s/%s (gcs storage '%s')", c.bucketName(bucket), objectName, c.name)
	return nil
}

func (c *gcsConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(c.bucketName(bucket)).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "failed to open gs://%s/%s: %w", c.bucketName(bucket), objectName, err)
	}
	return r, nil
}

func (c *gcsConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	it := c.client.Bucket(c.bucketName(bucket)).Objects(ctx, &gcstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to list gs://%s/%s*: %w", c.bucketName(bucket), prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

func (c *gcsConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := c.client.Bucket(c.bucketName(bucket)).Object(objectName).Delete(ctx)
	if err == gcstorage.ErrObjectNotExist {
		logger.Warnf("attempted to delete missing object gs://%s/%s (gcs storage '%s')", c.bucketName(bucket), objectName, c.name)
		return nil
	}
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "failed to delete gs://%s/%s: %w", c.bucketName(bucket), objectName, err)
	}
	return nil
}

// Provider manages GCS connections keyed by name.
type Provider struct {
	configs     map[string]storageconfig.StorageConfig
	connections map[string]storageadapter.StorageConnection
	mu          sync.Mutex
}

var _ storageadapter.StorageProvider = (*Provider)(nil)

// NewProvider builds a provider over the named storage configurations.
func NewProvider(configs map[string]storageconfig.StorageConfig) *Provider {
	return &Provider{
		configs:     configs,
		connections: make(map[string]storageadapter.StorageConnection),
	}
}

func (p *Provider) Type() string { return ProviderType }

func (p *Provider) GetConnection(name string) (storageadapter.StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(name)
}

func (p *Provider) ForceReconnect(name string) (storageadapter.StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("failed to close gcs connection '%s' during reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	return p.getLocked(name)
}

func (p *Provider) getLocked(name string) (storageadapter.StorageConnection, error) {
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	cfg, ok := p.configs[name]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "storage configuration '%s' not found", name)
	}
	if cfg.Type != ProviderType {
		return nil, exception.NewBatchErrorf(moduleName, "storage configuration '%s' has type '%s', want '%s'", name, cfg.Type, ProviderType)
	}
	conn, err := NewGCSConnection(context.Background(), cfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	return conn, nil
}

func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Warnf("failed to close gcs connection '%s': %v", name, err)
		}
		delete(p.connections, name)
	}
	return nil
}
