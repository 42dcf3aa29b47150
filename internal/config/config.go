// Package config loads the server's startup configuration: an
// optional YAML file layered under CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the fields captured at startup, read once at
// startup and treated as read-only thereafter.
type Config struct {
	Dir        string `yaml:"dir"`
	DBFilename string `yaml:"dbfilename"`
	Port       int    `yaml:"port"`
	ReplicaOf  string `yaml:"replicaof"` // "host port"; empty means primary
}

const defaultPort = 6379

// ValidationError aggregates every problem Validate finds, in the
// teacher's style of collecting all issues rather than failing fast
// on the first one.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration:")
	for _, err := range e.Errors {
		b.WriteString("\n - ")
		b.WriteString(err)
	}
	return b.String()
}

// LoadFile reads a YAML configuration file. A missing path is not an
// error: it returns a Config populated only with defaults, so that
// flag overrides can still fill it in.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{Port: defaultPort}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	return cfg, nil
}

// PrimaryAddr splits ReplicaOf ("host port") into a dial address
// ("host:port") and reports whether this config describes a replica
// at all.
func (c *Config) PrimaryAddr() (addr string, isReplica bool) {
	if c.ReplicaOf == "" {
		return "", false
	}
	fields := strings.Fields(c.ReplicaOf)
	if len(fields) != 2 {
		return c.ReplicaOf, true
	}
	return fields[0] + ":" + fields[1], true
}

// Validate checks the config is internally consistent, collecting
// every problem rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d is out of range", c.Port))
	}
	if c.ReplicaOf != "" && len(strings.Fields(c.ReplicaOf)) != 2 {
		errs = append(errs, fmt.Sprintf("replicaof %q must be \"host port\"", c.ReplicaOf))
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
