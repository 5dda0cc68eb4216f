package backend

import (
	"context"

	"ledger/internal/storage"
)

// Store is what every backend provides: the read side the engine consumes
// and the loader used for fixtures and imports.
type Store interface {
	storage.Ledger
	storage.Loader
}

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function
type BackendResult struct {
	Type    BackendType
	Store   Store
	Cleanup CleanupFunc
}

// Ping checks the store when it supports health checks. Stores without a
// connection are always reachable.
func (r *BackendResult) Ping(ctx context.Context) error {
	if p, ok := r.Store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresURL  string

	// Memory backend seed directory
	DataDirectory string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// IsSQL reports whether the backend keeps a schema that needs migrating.
func (bt BackendType) IsSQL() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
