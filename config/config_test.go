package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/terminology"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tissguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should return defaults without file or environment", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Should merge a partial YAML file over defaults", func(t *testing.T) {
		path := writeFile(t, `
engine:
  window_size: 1048576
store:
  driver: memory
server:
  read_timeout: 5s
rules:
  check_future_dates: false
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1048576, cfg.Engine.WindowSize)
		assert.Equal(t, int64(tv.DefaultLargeFileThreshold), cfg.Engine.LargeFileThreshold)
		assert.Equal(t, "memory", cfg.Store.Driver)
		assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
		assert.False(t, cfg.Rules.CheckFutureDates)
		assert.True(t, cfg.Rules.CheckNegativeValues)
	})

	t.Run("Should let the environment override the file", func(t *testing.T) {
		path := writeFile(t, "store:\n  driver: memory\n")
		t.Setenv("TISSGUARD_STORE_DRIVER", "sqlite")
		t.Setenv("TISSGUARD_STORE_SQLITE_PATH", "/tmp/x.db")
		t.Setenv("TISSGUARD_SERVER_ADDR", ":9090")
		t.Setenv("TISSGUARD_WORKER_WORKERS", "3")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Store.Driver)
		assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, 3, cfg.Worker.Workers)
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		path := writeFile(t, "store:\n  driver: oracle\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("Should reject malformed YAML", func(t *testing.T) {
		path := writeFile(t, "store: [driver\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("Should fail on a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should require a redis address for the redis driver", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Driver = "redis"
		assert.Error(t, Validate(cfg))
		cfg.Store.RedisAddr = "localhost:6379"
		assert.NoError(t, Validate(cfg))
	})

	t.Run("Should keep the tail smaller than the window", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.TailSize = cfg.Engine.WindowSize
		assert.Error(t, Validate(cfg))
	})
}

func TestConfig_OptionsAndSettings(t *testing.T) {
	t.Run("Should map sections onto engine options and toggles", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.WindowSize = 4096
		cfg.Engine.Metrics = false
		cfg.Rules.CheckNegativeValues = false

		opts := tv.Apply(cfg.Options()...)
		assert.Equal(t, 4096, opts.WindowSize)
		assert.False(t, opts.CollectMetrics)

		settings := cfg.Settings()
		assert.True(t, settings.Enabled(tv.SettingCheckFutureDates))
		assert.False(t, settings.Enabled(tv.SettingCheckNegativeValues))
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should split section from field", func(t *testing.T) {
		assert.Equal(t, "store.sqlite_path", transformEnvKey("STORE_SQLITE_PATH"))
		assert.Equal(t, "log.level", transformEnvKey("LOG__LEVEL"))
		assert.Equal(t, "debug", transformEnvKey("DEBUG"))
		assert.Equal(t, "", transformEnvKey("_"))
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should open a seeded memory store behind a cache", func(t *testing.T) {
		store, closeFn, err := OpenStore(ctx, StoreConfig{Driver: "memory", CacheSize: 8, Seed: true})
		require.NoError(t, err)
		defer closeFn()

		_, cached := store.(*terminology.CachedStore)
		assert.True(t, cached)
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(terminology.CommonProcedures()), n)
	})

	t.Run("Should open a sqlite store", func(t *testing.T) {
		store, closeFn, err := OpenStore(ctx, StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "tuss.db"),
		})
		require.NoError(t, err)
		defer closeFn()

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Should open a redis store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, closeFn, err := OpenStore(ctx, StoreConfig{Driver: "redis", RedisAddr: mr.Addr(), Seed: true})
		require.NoError(t, err)
		defer closeFn()

		ok, err := store.Exists(ctx, "10101012")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should reject unknown drivers", func(t *testing.T) {
		_, _, err := OpenStore(ctx, StoreConfig{Driver: "oracle"})
		assert.Error(t, err)
	})
}
