package domain

import "context"

// BlobWriter stores immutable objects, keyed by path.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Archiver moves aged trade records out of the hot store into blob storage.
type Archiver interface {
	// ArchiveBefore writes all records older than retentionDays to blob
	// storage and returns how many were archived.
	ArchiveBefore(ctx context.Context, retentionDays int) (int, error)
}
