package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openDB(t *testing.T, path string) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	return db
}

func TestDefaultsOnFirstOpen(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "settings.db"))
	defer db.Close()

	st, err := New(db)
	require.NoError(t, err)

	cfg, err := st.Settings()
	require.NoError(t, err)
	assert.Equal(t, defaultSettings, cfg)
}

func TestSettingsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	db := openDB(t, path)
	st, err := New(db)
	require.NoError(t, err)
	require.NoError(t, st.SetSettings(Settings{UseServerLogs: true}))
	require.NoError(t, db.Close())

	db = openDB(t, path)
	defer db.Close()
	st, err = New(db)
	require.NoError(t, err)

	cfg, err := st.Settings()
	require.NoError(t, err)
	assert.True(t, cfg.UseServerLogs, "defaults do not overwrite saved settings")
}
