package config

import (
	"crypto/tls"
	"time"
)

// BaseHTTPConfig holds common HTTP client configuration settings.
type BaseHTTPConfig struct {
	RetryCount       int           // Number of retries for failed requests
	RetryWaitTime    time.Duration // Wait time between retries
	RetryMaxWaitTime time.Duration // Maximum wait time for retries
	Timeout          time.Duration // Timeout for requests
	TLSClientConfig  *tls.Config   // TLS configuration
	Proxy            string        // Proxy address
}

// RestyHTTPClientConfig holds additional configuration settings for the Resty HTTP client.
type RestyHTTPClientConfig struct {
	BaseHTTPConfig
	Debug bool // Flag to enable Resty debug mode
}

// DefaultHTTPConfig returns a base configuration for HTTP clients with default values.
// API sources do not retry unless configured to.
func DefaultHTTPConfig() BaseHTTPConfig {
	return BaseHTTPConfig{
		RetryCount:       0,
		RetryWaitTime:    1 * time.Second,
		RetryMaxWaitTime: 5 * time.Second,
		Timeout:          30 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: false,
		},
		Proxy: "",
	}
}

// DefaultRestyConfig returns a default configuration for the Resty HTTP client, extending the base HTTP configuration.
func DefaultRestyConfig() RestyHTTPClientConfig {
	baseConfig := DefaultHTTPConfig()
	return RestyHTTPClientConfig{
		BaseHTTPConfig: baseConfig,
		Debug:          false,
	}
}

// SonarQube API defaults.
const (
	DefaultSonarQubePageSize       = 100
	DefaultSonarQubeSnippetContext = 3
	MaxSonarQubePageSize           = 500
)

// SonarQubeSettings returns the SonarQube settings with defaults applied.
func (c *Config) SonarQubeSettings() SonarQube {
	if c == nil {
		return SonarQube{PageSize: DefaultSonarQubePageSize, SnippetContext: DefaultSonarQubeSnippetContext}
	}
	return SonarQube{
		PageSize:       SetThen(c.SonarQube.PageSize, DefaultSonarQubePageSize),
		SnippetContext: SetThen(c.SonarQube.SnippetContext, DefaultSonarQubeSnippetContext),
	}
}
