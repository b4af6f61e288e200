package v2ray

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the document as indented JSON, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads a previously saved document.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &c, nil
}

// Summary condenses the document for display.
type Summary struct {
	Inbounds  int
	Outbounds int
	LogLevel  string
	Proxy     *ProxySummary
}

// ProxySummary identifies the active proxy endpoint.
type ProxySummary struct {
	Protocol string
	Address  string
	Port     int
}

// Summarize reports listener and dialer counts plus the active proxy
// endpoint, when one is set.
func (c *Config) Summarize() Summary {
	s := Summary{
		Inbounds:  len(c.Inbounds),
		Outbounds: len(c.Outbounds),
	}
	if c.Log != nil {
		s.LogLevel = c.Log.Loglevel
	}

	for _, ob := range c.Outbounds {
		if ob.Tag != proxyTag {
			continue
		}
		proxy := &ProxySummary{Protocol: ob.Protocol}
		var settings VnextSettings
		if err := json.Unmarshal(ob.Settings, &settings); err == nil && len(settings.Vnext) > 0 {
			proxy.Address = settings.Vnext[0].Address
			proxy.Port = settings.Vnext[0].Port
		}
		s.Proxy = proxy
		break
	}
	return s
}
