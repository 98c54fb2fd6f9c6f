// Package config handles application configuration.
//
// Values are layered with koanf, later sources winning:
//   - built-in defaults
//   - a YAML file named by -config (or RADIOTHERM_CONFIG)
//   - RADIOTHERM_* environment variables
//   - command-line flags
//
// Environment keys map onto the YAML keys: RADIOTHERM_POLL_INTERVAL is
// poll_interval and RADIOTHERM_MQTT_BROKER_URL is mqtt.broker_url.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RADIOTHERM_"

// Config holds the application configuration
type Config struct {
	// Thermostats to poll, as host or host:port
	Hosts []string `koanf:"hosts"`

	// HTTP server
	Port int `koanf:"port"`

	// Polling
	PollInterval   time.Duration `koanf:"poll_interval"`
	RefreshDelay   time.Duration `koanf:"refresh_delay"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	SyncTime       bool          `koanf:"sync_time"`

	Breaker BreakerConfig `koanf:"breaker"`
	MQTT    MQTTConfig    `koanf:"mqtt"`
	Log     LogConfig     `koanf:"log"`
}

type BreakerConfig struct {
	Failures uint32        `koanf:"failures"`
	Timeout  time.Duration `koanf:"timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BrokerURL   string `koanf:"broker_url"`
	ClientID    string `koanf:"client_id"`
	TopicPrefix string `koanf:"topic_prefix"`
	QoS         byte   `koanf:"qos"`
	Retain      bool   `koanf:"retain"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           9100,
		PollInterval:   15 * time.Second,
		RefreshDelay:   3 * time.Second,
		RequestTimeout: 10 * time.Second,
		Breaker: BreakerConfig{
			Failures: 5,
			Timeout:  30 * time.Second,
		},
		MQTT: MQTTConfig{
			BrokerURL:   "tcp://localhost:1883",
			TopicPrefix: "radiotherm",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// flagKeys maps command-line flags onto koanf keys.
var flagKeys = map[string]string{
	"hosts":           "hosts",
	"port":            "port",
	"poll-interval":   "poll_interval",
	"refresh-delay":   "refresh_delay",
	"request-timeout": "request_timeout",
	"sync-time":       "sync_time",
	"mqtt-enabled":    "mqtt.enabled",
	"mqtt-broker":     "mqtt.broker_url",
	"mqtt-prefix":     "mqtt.topic_prefix",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// Load reads configuration from os.Args and the process environment.
func Load() (*Config, error) {
	return LoadWithArgs(os.Args[1:], os.Environ)
}

// LoadWithArgs loads configuration with explicit arguments and environment (useful for testing)
func LoadWithArgs(args []string, environ func() []string) (*Config, error) {
	defaults := Default()

	fs := flag.NewFlagSet("radiotherm-coordinator", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a YAML config file (env: RADIOTHERM_CONFIG)")
	fs.String("hosts", "", "Comma-separated thermostat hosts (env: RADIOTHERM_HOSTS)")
	fs.Int("port", defaults.Port, "HTTP server listen port (env: RADIOTHERM_PORT)")
	fs.Duration("poll-interval", defaults.PollInterval, "Time between polls (env: RADIOTHERM_POLL_INTERVAL)")
	fs.Duration("refresh-delay", defaults.RefreshDelay, "Delay before refreshing after a write (env: RADIOTHERM_REFRESH_DELAY)")
	fs.Duration("request-timeout", defaults.RequestTimeout, "Timeout for one device request (env: RADIOTHERM_REQUEST_TIMEOUT)")
	fs.Bool("sync-time", false, "Set the thermostat clock during setup (env: RADIOTHERM_SYNC_TIME)")
	fs.Bool("mqtt-enabled", false, "Mirror thermostats to MQTT (env: RADIOTHERM_MQTT_ENABLED)")
	fs.String("mqtt-broker", defaults.MQTT.BrokerURL, "MQTT broker URL (env: RADIOTHERM_MQTT_BROKER_URL)")
	fs.String("mqtt-prefix", defaults.MQTT.TopicPrefix, "MQTT topic prefix (env: RADIOTHERM_MQTT_TOPIC_PREFIX)")
	fs.String("log-level", defaults.Log.Level, "Logging verbosity: debug, info, warn, error (env: RADIOTHERM_LOG_LEVEL)")
	fs.String("log-format", defaults.Log.Format, "Log format: text or json (env: RADIOTHERM_LOG_FORMAT)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := *configPath
	if path == "" {
		path = lookupEnv(environ, envPrefix+"CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// only flags given explicitly override the lower layers
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		var value any = f.Value.String()
		if key == "hosts" {
			value = splitList(f.Value.String())
		}
		if err := k.Set(key, value); err != nil && setErr == nil {
			setErr = err
		}
	})
	if setErr != nil {
		return nil, fmt.Errorf("apply flags: %w", setErr)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func envTransform(key, value string) (string, any) {
	key = envKeyTransform(strings.TrimPrefix(key, envPrefix))
	switch key {
	case "", "config":
		return "", nil
	case "hosts":
		return key, splitList(value)
	}
	return key, value
}

// envKeyTransform maps POLL_INTERVAL to poll_interval and MQTT_BROKER_URL
// to mqtt.broker_url. Only the section prefix becomes a delimiter.
func envKeyTransform(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, section := range []string{"breaker", "mqtt", "log"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok && rest != "" {
			return section + "." + rest
		}
	}
	return key
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookupEnv(environ func() []string, name string) string {
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Hosts) == 0 {
		errs = append(errs, errors.New("at least one host is required (use -hosts flag or RADIOTHERM_HOSTS env var)"))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d (must be between 1 and 65535)", c.Port))
	}

	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("invalid poll-interval: %s (must be at least 1s)", c.PollInterval))
	}
	if c.RefreshDelay < 0 {
		errs = append(errs, fmt.Errorf("invalid refresh-delay: %s", c.RefreshDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid request-timeout: %s", c.RequestTimeout))
	}
	if c.Breaker.Failures == 0 {
		errs = append(errs, errors.New("invalid breaker.failures: must be at least 1"))
	}

	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			errs = append(errs, errors.New("mqtt.broker_url is required when mqtt is enabled"))
		}
		if c.MQTT.QoS > 1 {
			errs = append(errs, fmt.Errorf("invalid mqtt.qos: %d (must be 0 or 1)", c.MQTT.QoS))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("invalid log-level: %s (must be one of: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid log-format: %s (must be text or json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	mqtt := "disabled"
	if c.MQTT.Enabled {
		mqtt = c.MQTT.BrokerURL
	}
	return fmt.Sprintf("Config{Hosts: %v, Port: %d, PollInterval: %s, RefreshDelay: %s, RequestTimeout: %s, SyncTime: %t, MQTT: %s, LogLevel: %s}",
		c.Hosts, c.Port, c.PollInterval, c.RefreshDelay, c.RequestTimeout, c.SyncTime, mqtt, c.Log.Level)
}
