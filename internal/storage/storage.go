// Package storage abstracts where uploaded audio lives. The pipeline only
// needs to fetch bytes by locator; writes happen on the ingest path.
package storage

import (
	"context"

	"github.com/Deven-0012/Cloud-281/internal/conf"
)

// AudioStore fetches and stores audio captures by their storage locator
// (the bucket/key equivalent recorded on the ingestion job).
type AudioStore interface {
	// Fetch returns the raw bytes for locator. Unreachable backends are
	// transient errors; a missing object is permanent.
	Fetch(ctx context.Context, locator string) ([]byte, error)
	// Put stores data under locator, creating intermediate paths as needed.
	Put(ctx context.Context, locator string, data []byte) error
}

// New creates the configured audio store.
func New(settings *conf.StorageSettings) AudioStore {
	switch settings.Provider {
	case "ftp":
		return NewFTPStore(settings)
	default:
		return NewLocalStore(settings.Local.Path)
	}
}
