// Package config defines the configuration of object-storage connections.
package config

// StorageConfig describes one named storage connection. The Type field
// selects the provider ("local", "gcs").
type StorageConfig struct {
	Type       string `yaml:"type" mapstructure:"type"`
	BucketName string `yaml:"bucket" mapstructure:"bucket"`
	// BaseDir is the root directory for local storage.
	BaseDir string `yaml:"baseDir" mapstructure:"baseDir"`
	// CredentialsFile is an optional service-account key file for GCS.
	CredentialsFile string `yaml:"credentialsFile" mapstructure:"credentialsFile"`
}
