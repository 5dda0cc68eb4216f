package backend

import (
	"context"
	"fmt"

	"ledger/internal/log"
	"ledger/internal/storage/memory"
	"ledger/internal/storage/postgres"
	"ledger/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Using SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Type:  SQLiteBackend,
		Store: repo,
		Cleanup: func() error {
			f.logger.Info("Closing SQLite repository")
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.NewRepository(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Using Postgres backend")
	return &BackendResult{
		Type:  PostgresBackend,
		Store: repo,
		Cleanup: func() error {
			f.logger.Info("Closing Postgres pool")
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := memory.NewFromDir(ctx, config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	f.logger.Info("Using memory backend", "data_dir", config.DataDirectory, "transactions", store.Len())
	return &BackendResult{
		Type:    MemoryBackend,
		Store:   store,
		Cleanup: func() error { return nil },
	}, nil
}
