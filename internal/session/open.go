package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/googler-dev/googler-web/internal/config"
	log "github.com/sirupsen/logrus"
)

// Backend names reported by Open.
const (
	BackendPostgres = "postgres"
	BackendObject   = "object"
	BackendRedis    = "redis"
	BackendFile     = config.SessionBackendFile
	BackendMemory   = config.SessionBackendMemory
)

// EnvSettings holds the environment-selected store configuration.
type EnvSettings struct {
	Postgres PostgresStoreConfig
	Object   ObjectStoreConfig
	RedisURL string
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// SettingsFromEnv reads PGSTORE_*, OBJECTSTORE_* and REDISSTORE_URL. Lowercase variants are
// accepted as well.
func SettingsFromEnv(lookup LookupFunc) EnvSettings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		for _, candidate := range []string{key, strings.ToLower(key)} {
			if value, ok := lookup(candidate); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed
				}
			}
		}
		return ""
	}

	settings := EnvSettings{
		Postgres: PostgresStoreConfig{
			DSN:    get("PGSTORE_DSN"),
			Schema: get("PGSTORE_SCHEMA"),
			Table:  get("PGSTORE_TABLE"),
		},
		Object: ObjectStoreConfig{
			Endpoint:  get("OBJECTSTORE_ENDPOINT"),
			Bucket:    get("OBJECTSTORE_BUCKET"),
			AccessKey: get("OBJECTSTORE_ACCESS_KEY"),
			SecretKey: get("OBJECTSTORE_SECRET_KEY"),
			Region:    get("OBJECTSTORE_REGION"),
			Prefix:    get("OBJECTSTORE_PREFIX"),
		},
		RedisURL: get("REDISSTORE_URL"),
	}

	endpoint := settings.Object.Endpoint
	useSSL := true
	if raw := get("OBJECTSTORE_USE_SSL"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			useSSL = parsed
		} else {
			log.Warnf("session: ignoring invalid OBJECTSTORE_USE_SSL value %q", raw)
		}
	}
	if strings.Contains(endpoint, "://") {
		lower := strings.ToLower(endpoint)
		switch {
		case strings.HasPrefix(lower, "http://"):
			useSSL = false
		case strings.HasPrefix(lower, "https://"):
			useSSL = true
		}
		endpoint = endpoint[strings.Index(endpoint, "://")+3:]
	}
	settings.Object.Endpoint = strings.TrimRight(endpoint, "/")
	settings.Object.UseSSL = useSSL
	settings.Object.PathStyle = true
	return settings
}

// Backend returns the backend the settings select, falling back to the configured one.
func (e EnvSettings) Backend(cfg config.SessionConfig) string {
	switch {
	case e.Postgres.DSN != "":
		return BackendPostgres
	case e.Object.Endpoint != "":
		return BackendObject
	case e.RedisURL != "":
		return BackendRedis
	case strings.EqualFold(strings.TrimSpace(cfg.Backend), config.SessionBackendFile):
		return BackendFile
	default:
		return BackendMemory
	}
}

// Opened is a ready store together with its release function.
type Opened struct {
	Store   Store
	Backend string
	Close   func() error
}

// Open creates the store selected by env and cfg. File sessions live in <authDir>/sessions.
func Open(ctx context.Context, env EnvSettings, cfg *config.Config, authDir string) (*Opened, error) {
	noop := func() error { return nil }
	backend := env.Backend(cfg.Session)
	switch backend {
	case BackendPostgres:
		store, err := NewPostgresStore(ctx, env.Postgres)
		if err != nil {
			return nil, err
		}
		if err = store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return &Opened{Store: store, Backend: backend, Close: store.Close}, nil
	case BackendObject:
		store, err := NewObjectStore(env.Object)
		if err != nil {
			return nil, err
		}
		if err = store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return &Opened{Store: store, Backend: backend, Close: noop}, nil
	case BackendRedis:
		store, err := NewRedisStore(ctx, env.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: store, Backend: backend, Close: store.Close}, nil
	case BackendFile:
		if strings.TrimSpace(authDir) == "" {
			return nil, fmt.Errorf("session: auth-dir is required for the file backend")
		}
		store, err := NewFileStore(filepath.Join(authDir, "sessions"))
		if err != nil {
			return nil, err
		}
		return &Opened{Store: store, Backend: backend, Close: noop}, nil
	default:
		return &Opened{Store: NewMemoryStore(), Backend: BackendMemory, Close: noop}, nil
	}
}
