package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	t.Parallel()

	record := NewRecord(handshake.NewIdentity("alice"), time.Hour)
	assert.True(t, validID(record.ID))
	assert.True(t, record.Authenticated)
	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, handshake.NewIdentity("alice"), record.Identity())
	assert.WithinDuration(t, record.CreatedAt.Add(time.Hour), record.ExpiresAt, time.Second)
	assert.False(t, record.Expired(time.Now()))
	assert.True(t, record.Expired(time.Now().Add(2*time.Hour)))

	anonymous := NewRecord(handshake.Identity{}, 0)
	assert.True(t, anonymous.Authenticated)
	assert.Empty(t, anonymous.Username)
	assert.False(t, anonymous.Identity().Present)
	assert.True(t, anonymous.ExpiresAt.IsZero())
	assert.False(t, anonymous.Expired(time.Now().Add(1000*time.Hour)))
}

// storeContract exercises the behaviour every backend shares.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	record := NewRecord(handshake.NewIdentity("bob"), time.Hour)
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, "bob", loaded.Username)
	assert.True(t, loaded.Authenticated)

	_, err = store.Load(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, nil))
	assert.Error(t, store.Save(ctx, &Record{}))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	storeContract(t, store)

	expired := NewRecord(handshake.NewIdentity("carol"), time.Minute)
	require.NoError(t, store.Save(context.Background(), expired))
	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := store.Load(context.Background(), expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	record := NewRecord(handshake.NewIdentity("dave"), time.Hour)
	require.NoError(t, store.Save(context.Background(), record))
	record.Username = "mallory"

	loaded, err := store.Load(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave", loaded.Username)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "sessions")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	storeContract(t, store)

	record := NewRecord(handshake.NewIdentity("erin"), time.Hour)
	require.NoError(t, store.Save(context.Background(), record))
	info, err := os.Stat(filepath.Join(dir, record.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Save(context.Background(), &Record{ID: "../escape"})
	assert.Error(t, err)
	_, err = store.Load(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRemovesExpired(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	record := NewRecord(handshake.NewIdentity("frank"), time.Hour)
	record.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(context.Background(), record))

	_, err = store.Load(context.Background(), record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, record.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("  ")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storeContract(t, store)

	record := NewRecord(handshake.NewIdentity("grace"), time.Minute)
	require.NoError(t, store.Save(context.Background(), record))
	assert.True(t, mr.Exists(redisKeyPrefix+record.ID))
	assert.Greater(t, mr.TTL(redisKeyPrefix+record.ID), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(context.Background(), record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSkipsExpiredRecord(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	record := NewRecord(handshake.NewIdentity("heidi"), time.Hour)
	record.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, store.Save(context.Background(), record))
	assert.False(t, mr.Exists(redisKeyPrefix+record.ID))
}

func TestNewRedisStoreErrors(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(context.Background(), "")
	assert.Error(t, err)
	_, err = NewRedisStore(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNormalizePostgresConfig(t *testing.T) {
	t.Parallel()

	_, err := normalizePostgresConfig(PostgresStoreConfig{DSN: "  "})
	assert.Error(t, err)

	cfg, err := normalizePostgresConfig(PostgresStoreConfig{DSN: " postgres://localhost/db ", Schema: " auth "})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", cfg.DSN)
	assert.Equal(t, defaultSessionTable, cfg.Table)
	assert.Equal(t, `"auth"."session_store"`, qualifiedTableName(cfg.Schema, cfg.Table))
	assert.Equal(t, `"we""ird"`, qualifiedTableName("", `we"ird`))
}

func TestNormalizeObjectConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ObjectStoreConfig
		wantErr bool
	}{
		{"missing endpoint", ObjectStoreConfig{Bucket: "b", AccessKey: "a", SecretKey: "s"}, true},
		{"missing bucket", ObjectStoreConfig{Endpoint: "e", AccessKey: "a", SecretKey: "s"}, true},
		{"missing access key", ObjectStoreConfig{Endpoint: "e", Bucket: "b", SecretKey: "s"}, true},
		{"missing secret key", ObjectStoreConfig{Endpoint: "e", Bucket: "b", AccessKey: "a"}, true},
		{"complete", ObjectStoreConfig{Endpoint: "e", Bucket: "b", AccessKey: "a", SecretKey: "s", Prefix: "/team/"}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := normalizeObjectConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "team", cfg.Prefix)
		})
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	store := &ObjectStore{cfg: ObjectStoreConfig{Prefix: "team"}}
	assert.Equal(t, "team/sessions/abc.json", store.objectKey("abc"))
	store.cfg.Prefix = ""
	assert.Equal(t, "sessions/abc.json", store.objectKey("abc"))
}

func TestSettingsFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"PGSTORE_DSN":          "postgres://db",
		"objectstore_endpoint": "http://minio.local:9000/",
		"OBJECTSTORE_BUCKET":   "sessions",
		"REDISSTORE_URL":       "  ",
	}
	settings := SettingsFromEnv(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})

	assert.Equal(t, "postgres://db", settings.Postgres.DSN)
	assert.Equal(t, "minio.local:9000", settings.Object.Endpoint)
	assert.False(t, settings.Object.UseSSL)
	assert.True(t, settings.Object.PathStyle)
	assert.Equal(t, "sessions", settings.Object.Bucket)
	assert.Empty(t, settings.RedisURL)
}

func TestBackendPrecedence(t *testing.T) {
	t.Parallel()

	fileCfg := config.SessionConfig{Backend: "file"}
	tests := []struct {
		name     string
		env      EnvSettings
		cfg      config.SessionConfig
		expected string
	}{
		{"postgres wins", EnvSettings{Postgres: PostgresStoreConfig{DSN: "x"}, Object: ObjectStoreConfig{Endpoint: "y"}, RedisURL: "z"}, fileCfg, BackendPostgres},
		{"object before redis", EnvSettings{Object: ObjectStoreConfig{Endpoint: "y"}, RedisURL: "z"}, fileCfg, BackendObject},
		{"redis before config", EnvSettings{RedisURL: "z"}, fileCfg, BackendRedis},
		{"config file", EnvSettings{}, fileCfg, BackendFile},
		{"default memory", EnvSettings{}, config.SessionConfig{}, BackendMemory},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.env.Backend(tt.cfg))
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	opened, err := Open(context.Background(), EnvSettings{}, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, opened.Backend)
	assert.IsType(t, &MemoryStore{}, opened.Store)
	assert.NoError(t, opened.Close())

	cfg.Session.Backend = config.SessionBackendFile
	authDir := t.TempDir()
	opened, err = Open(context.Background(), EnvSettings{}, cfg, authDir)
	require.NoError(t, err)
	fileStore, ok := opened.Store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(authDir, "sessions"), fileStore.BaseDir())

	_, err = Open(context.Background(), EnvSettings{}, cfg, "")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	opened, err = Open(context.Background(), EnvSettings{RedisURL: "redis://" + mr.Addr()}, cfg, authDir)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, opened.Backend)
	assert.NoError(t, opened.Close())
}
