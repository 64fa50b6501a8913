// Package local implements the storage ports on the local file system.
// Buckets map to directories under the configured base directory.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	storageadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// ProviderType identifies the local file-system backend.
const ProviderType = "local"

const moduleName = "local_storage"

type localConnection struct {
	cfg  storageconfig.StorageConfig
	name string
}

var _ storageadapter.StorageConnection = (*localConnection)(nil)

// NewLocalConnection validates the base directory, creating it when
// missing, and returns a connection rooted there.
func NewLocalConnection(cfg storageconfig.StorageConfig, name string) (storageadapter.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, exception.NewBatchErrorf(moduleName, "local storage '%s': baseDir must be configured", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, exception.NewBatchErrorf(moduleName, "local storage '%s': failed to create baseDir '%s': %w", name, cfg.BaseDir, err)
		}
	case err != nil:
		return nil, exception.NewBatchErrorf(moduleName, "local storage '%s': failed to stat baseDir '%s': %w", name, cfg.BaseDir, err)
	case !info.IsDir():
		return nil, exception.NewBatchErrorf(moduleName, "local storage '%s': baseDir '%s' is not a directory", name, cfg.BaseDir)
	}
	return &localConnection{cfg: cfg, name: name}, nil
}

func (c *localConnection) Close() error { return nil }
func (c *localConnection) Type() string { return ProviderType }
func (c *localConnection) Name() string { return c.name }

func (c *localConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return exception.NewBatchErrorf(moduleName, "failed to create directory for '%s': %w", fullPath, err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "failed to create '%s': %w", fullPath, err)
	}
	defer file.Close()
	if _, err := io.Copy(file, data); err != nil {
		return exception.NewBatchErrorf(moduleName, "failed to write '%s': %w", fullPath, err)
	}
	logger.Debugf("uploaded object to %s (local storage '%s')", fullPath, c.name)
	return nil
}

func (c *localConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "failed to open '%s': %w", fullPath, err)
	}
	return file, nil
}

func (c *localConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	basePath, err := c.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	walkErr := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == basePath {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		objectName, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		objectName = filepath.ToSlash(objectName)
		if prefix != "" && !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
	if walkErr != nil {
		return exception.NewBatchErrorf(moduleName, "failed to list objects under '%s': %w", basePath, walkErr)
	}
	return nil
}

func (c *localConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	fullPath, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("attempted to delete missing object '%s' (local storage '%s')", fullPath, c.name)
			return nil
		}
		return exception.NewBatchErrorf(moduleName, "failed to delete '%s': %w", fullPath, err)
	}
	return nil
}

// resolvePath joins baseDir/bucket/objectName and rejects paths escaping
// the base directory.
func (c *localConnection) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = c.cfg.BucketName
	}
	fullPath := filepath.Join(c.cfg.BaseDir, bucket, objectName)

	absBase, err := filepath.Abs(c.cfg.BaseDir)
	if err != nil {
		return "", exception.NewBatchErrorf(moduleName, "failed to resolve baseDir '%s': %w", c.cfg.BaseDir, err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", exception.NewBatchErrorf(moduleName, "failed to resolve path '%s': %w", fullPath, err)
	}
	if !strings.HasPrefix(absFull, absBase) {
		return "", exception.NewBatchErrorf(moduleName, "path '%s' escapes baseDir '%s'", fullPath, c.cfg.BaseDir)
	}
	return fullPath, nil
}

// Provider manages local file-system connections keyed by name.
type Provider struct {
	configs     map[string]storageconfig.StorageConfig
	connections map[string]storageadapter.StorageConnection
	mu          sync.Mutex
}

var _ storageadapter.StorageProvider = (*Provider)(nil)

// NewProvider builds a provider over the named storage configurations.
// Entries of other types are ignored so the full adapter config map can
// be passed as-is.
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
			logger.Warnf("failed to close local storage connection '%s' during reconnect: %v", name, err)
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
	conn, err := NewLocalConnection(cfg, name)
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
			logger.Warnf("failed to close local storage connection '%s': %v", name, err)
		}
		delete(p.connections, name)
	}
	return nil
}
