package gorm

import (
	"sync"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// DialectorFunc builds a gorm dialector from a DSN. Each driver package
// supplies its own.
type DialectorFunc func(dsn string) gorm.Dialector

// Provider implements adapter.DBProvider for one database type, opening
// gorm connections lazily by name.
type Provider struct {
	dbType    string
	dialector DialectorFunc
	configs   map[string]dbconfig.DatabaseConfig

	mu          sync.Mutex
	connections map[string]adapter.DBConnection
}

var _ adapter.DBProvider = (*Provider)(nil)

// NewProvider creates a provider for dbType over the named configurations.
func NewProvider(dbType string, dialector DialectorFunc, configs map[string]dbconfig.DatabaseConfig) *Provider {
	return &Provider{
		dbType:      dbType,
		dialector:   dialector,
		configs:     configs,
		connections: make(map[string]adapter.DBConnection),
	}
}

func (p *Provider) Type() string { return p.dbType }

func (p *Provider) GetConnection(name string) (adapter.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	return p.openLocked(name)
}

func (p *Provider) ForceReconnect(name string) (adapter.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("failed to close connection '%s' during reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	return p.openLocked(name)
}

func (p *Provider) openLocked(name string) (adapter.DBConnection, error) {
	cfg, ok := p.configs[name]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "database configuration '%s' not found", name)
	}
	if cfg.Type != p.dbType {
		return nil, exception.NewBatchErrorf(moduleName, "database '%s' has type '%s', provider serves '%s'", name, cfg.Type, p.dbType)
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to build DSN for '"+name+"'", err, false, false)
	}
	db, err := gorm.Open(p.dialector(dsn), &gorm.Config{Logger: NewGormLogger()})
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to open database '"+name+"'", err, false, false)
	}
	conn := NewGormDBAdapter(db, name, p.dbType)
	p.connections[name] = conn
	logger.Debugf("opened %s connection '%s'", p.dbType, name)
	return conn, nil
}

func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.connections, name)
	}
	return firstErr
}
