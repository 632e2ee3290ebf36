package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/scan-io-git/hdf-tools/pkg/shared/files"
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateSonarQubeConfig(&cfg.SonarQube); err != nil {
		return fmt.Errorf("YAML global config: sonarqube directive is invalid: %w", err)
	}
	if err := ValidateMappings(cfg.Mappings); err != nil {
		return fmt.Errorf("YAML global config: mappings directive is invalid: %w", err)
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
		"Timeout":          httpConfig.Timeout,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}

	if err := validateProxy(&httpConfig.Proxy); err != nil {
		return err
	}

	return nil
}

// ValidateSonarQubeConfig checks the SonarQube paging settings. Zero values select the defaults.
func ValidateSonarQubeConfig(sonarConfig *SonarQube) error {
	if sonarConfig == nil {
		return fmt.Errorf("sonarqube configuration is nil")
	}
	if sonarConfig.PageSize < 0 || sonarConfig.PageSize > MaxSonarQubePageSize {
		return fmt.Errorf("page_size must be between 1 and %d, or 0 for the default: %d", MaxSonarQubePageSize, sonarConfig.PageSize)
	}
	if sonarConfig.SnippetContext < 0 {
		return fmt.Errorf("snippet_context cannot be negative: %d", sonarConfig.SnippetContext)
	}
	return nil
}

// ValidateMappings checks that every mapping override file exists. Paths starting with ~ are expanded in place.
func ValidateMappings(mappings map[string]Mapping) error {
	for scanner, m := range mappings {
		var err error
		if m.File, err = validateMappingFile(m.File); err != nil {
			return fmt.Errorf("%s: mapping file is invalid: %w", scanner, err)
		}
		if m.OWASPFile, err = validateMappingFile(m.OWASPFile); err != nil {
			return fmt.Errorf("%s: owasp mapping file is invalid: %w", scanner, err)
		}
		mappings[scanner] = m
	}
	return nil
}

func validateMappingFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := files.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	if err := files.ValidatePath(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	if err := validatePort(proxy.Port); err != nil {
		return err
	}

	return nil
}

// validateHost checks if the host part of the proxy configuration is valid.
// It ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
