package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "HDFTOOLS_CONFIG"

type Config struct {
	Logger     Logger             `yaml:"logger"`
	HTTPClient HTTPClient         `yaml:"http_client"`
	SonarQube  SonarQube          `yaml:"sonarqube"`
	AWSConfig  AWSConfig          `yaml:"aws_config"`
	Mappings   map[string]Mapping `yaml:"mappings"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SonarQube holds the settings of the SonarQube API source.
type SonarQube struct {
	PageSize       int `yaml:"page_size"`
	SnippetContext int `yaml:"snippet_context"`
}

// AWSConfig selects the AWS credentials used by the AWS Config source.
// Empty values fall back to the SDK's environment and shared config resolution.
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// Mapping overrides the compliance mapping of one scanner.
type Mapping struct {
	DefaultTags []string `yaml:"default_tags"`
	File        string   `yaml:"file"`
	OWASPFile   string   `yaml:"owasp_file"`
}

// ValidateConfigPath checks that path names an existing regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// NewConfig loads the configuration from configPath, falling back to HDFTOOLS_CONFIG.
// The config file is optional: with neither set an empty configuration is returned.
func NewConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		return config, nil
	}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	return config, nil
}

// Mapping returns the mapping override configured for scanner.
func (c *Config) Mapping(scanner string) Mapping {
	if c == nil || c.Mappings == nil {
		return Mapping{}
	}
	return c.Mappings[scanner]
}
