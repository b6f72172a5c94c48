// Package config holds the configuration surface integrators use to wire
// the migration manager to Elasticsearch and Redis.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that marshals as a string like "30m0s"
// and unmarshals from any form time.ParseDuration accepts, such as "30m".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ElasticsearchConfig locates the cluster hosting the state index.
type ElasticsearchConfig struct {
	Addresses []string `json:"addresses" yaml:"addresses"`
	Username  string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty"`
}

// RedisConfig locates the Redis instance backing the lock provider.
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// Config is the full configuration for a migration manager deployment.
type Config struct {
	IndexName          string              `json:"indexName" yaml:"indexName"`
	Elasticsearch      ElasticsearchConfig `json:"elasticsearch" yaml:"elasticsearch"`
	Redis              RedisConfig         `json:"redis" yaml:"redis"`
	LockAcquireTimeout Duration            `json:"lockAcquireTimeout" yaml:"lockAcquireTimeout"`
	LockLeaseTimeout   Duration            `json:"lockLeaseTimeout" yaml:"lockLeaseTimeout"`
}

// Default returns the default configuration: the "migrations" state index,
// a local cluster and 30-minute lock windows.
func Default() Config {
	return Config{
		IndexName: "migrations",
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		LockAcquireTimeout: Duration(30 * time.Minute),
		LockLeaseTimeout:   Duration(30 * time.Minute),
	}
}

// LoadFromFile loads a configuration from a YAML file, applied on top of
// the defaults.
func LoadFromFile(filepath string) (Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the manager cannot work
// with.
func (c Config) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("config: indexName must not be empty")
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("config: at least one elasticsearch address is required")
	}
	if c.LockAcquireTimeout <= 0 {
		return fmt.Errorf("config: lockAcquireTimeout must be positive")
	}
	if c.LockLeaseTimeout <= 0 {
		return fmt.Errorf("config: lockLeaseTimeout must be positive")
	}
	return nil
}
