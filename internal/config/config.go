package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ConfigPath is where the synthesized engine config is written.
	ConfigPath string `yaml:"config_path"`
	LogLevel   string `yaml:"log_level"`

	Engine   EngineConfig   `yaml:"engine"`
	Inbounds InboundsConfig `yaml:"inbounds"`
	Probe    ProbeConfig    `yaml:"probe"`
	Storage  StorageConfig  `yaml:"storage"`
	GeoIP    GeoIPConfig    `yaml:"geoip"`
}

type EngineConfig struct {
	Binary     string `yaml:"binary"`
	Repo       string `yaml:"repo"` // GitHub owner/name used for downloads
	InstallDir string `yaml:"install_dir"`
}

type InboundsConfig struct {
	SocksPort int `yaml:"socks_port"`
	HTTPPort  int `yaml:"http_port"`
}

type ProbeConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	TestURL        string `yaml:"test_url"`
	Concurrency    int    `yaml:"concurrency"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type GeoIPConfig struct {
	ASNPath     string `yaml:"asn_path"`
	CountryPath string `yaml:"country_path"`
}

// Timeout returns the probe timeout as a duration.
func (p ProbeConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Load reads the client configuration. A missing file is not an error;
// the defaults describe a fully working local setup.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := Config{
		ConfigPath: "config.json",
		LogLevel:   "debug",
		Engine: EngineConfig{
			Binary:     "bin/v2ray",
			Repo:       "v2fly/v2ray-core",
			InstallDir: "bin",
		},
		Inbounds: InboundsConfig{
			SocksPort: 1080,
			HTTPPort:  1081,
		},
		Probe: ProbeConfig{
			TimeoutSeconds: 10,
			TestURL:        "https://www.google.com/generate_204",
			Concurrency:    8,
		},
		Storage: StorageConfig{
			Path: "profiles.db",
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if cfg.Probe.Concurrency <= 0 {
		cfg.Probe.Concurrency = 8
	}
	if cfg.Probe.TimeoutSeconds <= 0 {
		cfg.Probe.TimeoutSeconds = 10
	}

	return &cfg, nil
}
