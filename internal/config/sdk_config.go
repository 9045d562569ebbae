// Package config provides configuration management for the googler callback server.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the listen address, the token-exchange
// endpoint, the navigation routes, session storage and logging.
package config

// SDKConfig holds the settings shared by every outbound HTTP client of the application.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`
}
