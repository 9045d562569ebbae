package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort             = 3000
	DefaultExchangeEndpoint = "http://localhost:8000/api/google/callback"
	DefaultAuthorizeURL     = "http://localhost:8000/api/google/login"
	DefaultExchangeTimeout  = 15
	DefaultMaxBodyBytes     = 1 << 20
	DefaultCallbackRoute    = "/google/callback"
	DefaultLandingRoute     = "/"
	DefaultLoginRoute       = "/login"
	DefaultCookieName       = "googler_session"
	DefaultSessionTTL       = 24 * 60
	DefaultAuthDir          = "~/.googler"

	SessionBackendMemory = "memory"
	SessionBackendFile   = "file"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Host is the network host/interface on which the server binds.
	// Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the network port on which the server listens.
	Port int `yaml:"port" json:"port"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// When exceeded, the oldest log files are deleted until within the limit. Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// AuthDir is the directory where CLI sessions and, as a fallback, logs are stored.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// Exchange configures the backend token-exchange endpoint.
	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`

	// Routes are the navigation targets of the callback handler.
	Routes RoutesConfig `yaml:"routes" json:"routes"`

	// Login configures the re-authentication entry point.
	Login LoginConfig `yaml:"login" json:"login"`

	// Session configures how authenticated identities are kept.
	Session SessionConfig `yaml:"session" json:"session"`
}

// ExchangeConfig describes the backend token-exchange endpoint.
type ExchangeConfig struct {
	// Endpoint receives the POSTed {code, state} payload.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// TimeoutSeconds bounds a single exchange attempt, including reading the body.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds"`

	// MaxBodyBytes caps how much of the response body is read.
	MaxBodyBytes int64 `yaml:"max-body-bytes" json:"max-body-bytes"`
}

// Timeout returns the exchange timeout as a duration.
func (e ExchangeConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return DefaultExchangeTimeout * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// RoutesConfig holds the paths served by the web host.
type RoutesConfig struct {
	Callback string `yaml:"callback" json:"callback"`
	Landing  string `yaml:"landing" json:"landing"`
	Login    string `yaml:"login" json:"login"`
}

// LoginConfig points at the page that starts a new authorization flow.
type LoginConfig struct {
	AuthorizeURL string `yaml:"authorize-url" json:"authorize-url"`
}

// SessionConfig controls the session cookie and the default store.
type SessionConfig struct {
	// Backend selects the store when no environment-configured store is present.
	Backend      string `yaml:"backend" json:"backend"`
	CookieName   string `yaml:"cookie-name" json:"cookie-name"`
	TTLMinutes   int    `yaml:"ttl-minutes" json:"ttl-minutes"`
	SecureCookie bool   `yaml:"secure-cookie" json:"secure-cookie"`
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return DefaultSessionTTL * time.Minute
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// Default returns a configuration populated with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if strings.TrimSpace(c.AuthDir) == "" {
		c.AuthDir = DefaultAuthDir
	}
	if strings.TrimSpace(c.Exchange.Endpoint) == "" {
		c.Exchange.Endpoint = DefaultExchangeEndpoint
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = DefaultExchangeTimeout
	}
	if c.Exchange.MaxBodyBytes <= 0 {
		c.Exchange.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if strings.TrimSpace(c.Routes.Callback) == "" {
		c.Routes.Callback = DefaultCallbackRoute
	}
	if strings.TrimSpace(c.Routes.Landing) == "" {
		c.Routes.Landing = DefaultLandingRoute
	}
	if strings.TrimSpace(c.Routes.Login) == "" {
		c.Routes.Login = DefaultLoginRoute
	}
	if strings.TrimSpace(c.Login.AuthorizeURL) == "" {
		c.Login.AuthorizeURL = DefaultAuthorizeURL
	}
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendMemory
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = DefaultSessionTTL
	}
}

// Validate reports the first configuration problem that would prevent the server from working.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil configuration")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if err := validateAbsoluteURL("exchange.endpoint", c.Exchange.Endpoint); err != nil {
		return err
	}
	if err := validateAbsoluteURL("login.authorize-url", c.Login.AuthorizeURL); err != nil {
		return err
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: exchange.timeout-seconds must be positive")
	}
	routes := map[string]string{
		"routes.callback": c.Routes.Callback,
		"routes.landing":  c.Routes.Landing,
		"routes.login":    c.Routes.Login,
	}
	seen := make(map[string]string, len(routes))
	for key, route := range routes {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("config: %s must be an absolute path, got %q", key, route)
		}
		if other, ok := seen[route]; ok {
			return fmt.Errorf("config: %s and %s share the path %q", key, other, route)
		}
		seen[route] = key
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendFile:
	default:
		return fmt.Errorf("config: unsupported session.backend %q", c.Session.Backend)
	}
	return nil
}

func validateAbsoluteURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: %s must use http or https, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("config: %s is missing a host", key)
	}
	return nil
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, applies defaults and validates it.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the default configuration.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (errors.Is(err, os.ErrNotExist) || strings.TrimSpace(configFile) == "") {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		if optional {
			return Default(), nil
		}
		return nil, fmt.Errorf("config file %s is empty", configFile)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
