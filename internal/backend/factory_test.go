package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/config"
	"ledger/internal/query"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data", cfg.DataDirectory)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackendTypeIsSQL(t *testing.T) {
	assert.False(t, MemoryBackend.IsSQL())
	assert.True(t, SQLiteBackend.IsSQL())
	assert.True(t, PostgresBackend.IsSQL())
}

func TestCreateMemoryBackendSeedsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	seed := `{
  "accounts": [{"id": 1, "name": "Checking", "userId": "alice"}],
  "transactions": [{"id": 1, "description": "Coffee", "amount": "-3.50", "date": "2024-01-02", "userId": "alice", "accountId": 1}]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.json"), []byte(seed), 0600))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Cleanup()

	totals, err := res.Store.SumTotals(context.Background(), query.NewFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, int64(-350), totals.Expense)
	assert.NoError(t, res.Ping(context.Background()))
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "ledger.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Equal(t, SQLiteBackend, res.Type)
	assert.NoError(t, res.Ping(context.Background()))
}
