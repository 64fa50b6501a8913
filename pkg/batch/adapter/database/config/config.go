// Package config defines the configuration of database connections.
package config

import "fmt"

// DatabaseConfig describes one named database connection. The Type field
// selects the provider ("postgres", "mysql", "sqlite").
type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	// Path is the database file path for sqlite connections.
	Path string `yaml:"path" mapstructure:"path"`
}

// DSN builds the driver-specific data source name for the configuration.
func (c DatabaseConfig) DSN() (string, error) {
	switch c.Type {
	case "postgres", "redshift":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, sslMode), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Database), nil
	case "sqlite":
		if c.Path == "" {
			return "", fmt.Errorf("sqlite connection requires 'path'")
		}
		return c.Path, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", c.Type)
	}
}
