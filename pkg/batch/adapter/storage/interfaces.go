// Package storage defines the ports for object-storage backends. Report
// writers talk to these interfaces so the same step can target the local
// file system or GCS.
package storage

import (
	"context"
	"io"

	coreadapter "github.com/tigerroll/passbatch/pkg/batch/core/adapter"
)

// StorageProviderGroup is the Fx group name under which storage providers
// are collected.
const StorageProviderGroup = "storage_providers"

// StorageExecutor defines the object operations common to all backends.
type StorageExecutor interface {
	// Upload writes data to bucket/objectName, replacing any existing
	// object. contentType is advisory; backends may ignore it.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName for reading. The caller closes the
	// returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix. Returning an
	// error from fn aborts the walk.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is
	// not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named connection to one storage backend.
type StorageConnection interface {
	coreadapter.ResourceConnection
	StorageExecutor
}

// StorageProvider manages the connections of one backend type.
type StorageProvider interface {
	Type() string
	GetConnection(name string) (StorageConnection, error)
	ForceReconnect(name string) (StorageConnection, error)
	CloseAll() error
}
