package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
logger:
  level: debug
  json_format: true
http_client:
  retry_count: 2
  timeout: 10s
  tls_client_config:
    verify: false
  proxy:
    host: proxy.local
    port: 3128
sonarqube:
  page_size: 250
mappings:
  nessus:
    default_tags: ["RA-5", "Rev_4"]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	path := writeFile(t, "config.yml", sampleConfig)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, GetBoolValue(cfg, "Logger.JSONFormat", false))
	assert.True(t, GetBoolValue(cfg, "Logger.DisableTime", true), "unset pointer falls back to the default")
	assert.Equal(t, 2, cfg.HTTPClient.RetryCount)
	assert.Equal(t, 10*time.Second, cfg.HTTPClient.Timeout)
	assert.False(t, GetBoolValue(cfg.HTTPClient.TLSClientConfig, "Verify", true))
	assert.Equal(t, "http://proxy.local", cfg.HTTPClient.Proxy.Host)
	assert.Equal(t, []string{"RA-5", "Rev_4"}, cfg.Mapping("nessus").DefaultTags)
	assert.Empty(t, cfg.Mapping("zap").DefaultTags)

	sonar := cfg.SonarQubeSettings()
	assert.Equal(t, 250, sonar.PageSize)
	assert.Equal(t, DefaultSonarQubeSnippetContext, sonar.SnippetContext)
}

func TestNewConfigOptional(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := NewConfig("")
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, DefaultSonarQubePageSize, cfg.SonarQubeSettings().PageSize)

	path := writeFile(t, "from-env.yml", "logger:\n  level: warn\n")
	t.Setenv(EnvConfigPath, path)
	cfg, err = NewConfig("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestNewConfigErrors(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = NewConfig(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")

	_, err = NewConfig(writeFile(t, "bad.yml", "logger: [unclosed"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	mappingFile := writeFile(t, "cwe.csv", "CWE-ID,NIST-ID,Rev\n79,SI-10,4\n")

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil", cfg: nil, wantErr: "configuration object is nil"},
		{name: "empty", cfg: &Config{}},
		{name: "retry too high", cfg: &Config{HTTPClient: HTTPClient{RetryCount: 21}}, wantErr: "retry_count"},
		{name: "negative timeout", cfg: &Config{HTTPClient: HTTPClient{Timeout: -time.Second}}, wantErr: "cannot be negative"},
		{name: "timeout too long", cfg: &Config{HTTPClient: HTTPClient{Timeout: time.Hour}}, wantErr: "too long"},
		{name: "bad proxy port", cfg: &Config{HTTPClient: HTTPClient{Proxy: Proxy{Host: "p", Port: 70000}}}, wantErr: "port must be"},
		{name: "page size too large", cfg: &Config{SonarQube: SonarQube{PageSize: 501}}, wantErr: "page_size"},
		{name: "negative context", cfg: &Config{SonarQube: SonarQube{SnippetContext: -1}}, wantErr: "snippet_context"},
		{name: "mapping file exists", cfg: &Config{Mappings: map[string]Mapping{"zap": {File: mappingFile}}}},
		{name: "owasp mapping file exists", cfg: &Config{Mappings: map[string]Mapping{"netsparker": {OWASPFile: mappingFile}}}},
		{
			name:    "owasp mapping file missing",
			cfg:     &Config{Mappings: map[string]Mapping{"sonarqube": {OWASPFile: mappingFile + ".missing"}}},
			wantErr: "sonarqube: owasp mapping file is invalid",
		},
		{
			name:    "mapping file missing",
			cfg:     &Config{Mappings: map[string]Mapping{"zap": {File: mappingFile + ".missing"}}},
			wantErr: "zap: mapping file is invalid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSetThen(t *testing.T) {
	assert.Equal(t, 5, SetThen(0, 5))
	assert.Equal(t, 3, SetThen(3, 5))
	assert.Equal(t, "x", SetThen("", "x"))
	assert.Equal(t, time.Second, SetThen(time.Duration(0), time.Second))
}
