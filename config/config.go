// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the SmartThings TV bridge.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soothill/smartthings-tv-bridge/mapping"
)

// Config represents the application configuration
type Config struct {
	SmartThings    SmartThingsConfig   `yaml:"smartthings"`
	Bridge         BridgeConfig        `yaml:"bridge"`
	DeviceMappings []mapping.Mapping   `yaml:"device_mappings"`
	Monitoring     MonitoringConfig    `yaml:"monitoring"`
	InfluxDB       InfluxDBConfig      `yaml:"influxdb"`
	Notifications  NotificationsConfig `yaml:"notifications"`
	Logging        LoggingConfig       `yaml:"logging"`
}

// SmartThingsConfig holds SmartThings API settings. An absent token is not a
// load error: the coordinator degrades to an inert terminal state instead.
type SmartThingsConfig struct {
	Token   string        `yaml:"token"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// BridgeConfig holds HomeKit bridge settings
type BridgeConfig struct {
	Name              string `yaml:"name"`
	Pin               string `yaml:"pin"`
	StateDirectory    string `yaml:"state_directory"`
	CapabilityLogging bool   `yaml:"capability_logging"`
}

// MonitoringConfig holds device status polling settings. A zero poll
// interval disables polling.
type MonitoringConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// InfluxDBConfig holds optional InfluxDB telemetry settings. An empty URL
// disables the status recorder.
type InfluxDBConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if token := os.Getenv("SMARTTHINGS_TOKEN"); token != "" {
		c.SmartThings.Token = token
	}
	if apiURL := os.Getenv("SMARTTHINGS_API_URL"); apiURL != "" {
		c.SmartThings.APIURL = apiURL
	}
	if pin := os.Getenv("BRIDGE_PIN"); pin != "" {
		c.Bridge.Pin = pin
	}
	if url := os.Getenv("INFLUXDB_URL"); url != "" {
		c.InfluxDB.URL = url
	}
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		c.InfluxDB.Token = token
	}
	if org := os.Getenv("INFLUXDB_ORG"); org != "" {
		c.InfluxDB.Organization = org
	}
	if bucket := os.Getenv("INFLUXDB_BUCKET"); bucket != "" {
		c.InfluxDB.Bucket = bucket
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if interval := os.Getenv("MONITOR_POLL_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Monitoring.PollInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse MONITOR_POLL_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.SmartThings.APIURL == "" {
		c.SmartThings.APIURL = "https://api.smartthings.com/v1"
	}
	if c.SmartThings.Timeout == 0 {
		c.SmartThings.Timeout = 15 * time.Second
	}
	if c.Bridge.Name == "" {
		c.Bridge.Name = "SmartThings TV Bridge"
	}
	if c.Bridge.Pin == "" {
		c.Bridge.Pin = "00102003"
	}
	if c.Bridge.StateDirectory == "" {
		c.Bridge.StateDirectory = "/var/lib/smartthings-tv-bridge"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if validateErr := c.validateSmartThings(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateBridge(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateDeviceMappings(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateMonitoring(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateInfluxDB(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateLogging(); validateErr != nil {
		return validateErr
	}

	return nil
}

// validateSmartThings validates the SmartThings configuration. The token is
// deliberately not required here: a missing token is a runtime-visible
// degradation handled by the coordinator, not a config load failure.
func (c *Config) validateSmartThings() error {
	parsedURL, parseErr := url.Parse(c.SmartThings.APIURL)
	if parseErr != nil {
		return fmt.Errorf("smartthings.api_url is not a valid URL: %w", parseErr)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("smartthings.api_url must be an absolute URL")
	}

	if securityErr := validateURLSecurity("smartthings.api_url", parsedURL); securityErr != nil {
		return securityErr
	}

	if c.SmartThings.Timeout < time.Second {
		return fmt.Errorf("smartthings.timeout must be at least 1 second")
	}
	if c.SmartThings.Timeout > time.Minute {
		return fmt.Errorf("smartthings.timeout must not exceed 1 minute")
	}

	return nil
}

// validateBridge validates the HomeKit bridge configuration
func (c *Config) validateBridge() error {
	if len(c.Bridge.Pin) != 8 {
		return fmt.Errorf("bridge.pin must be exactly 8 digits")
	}
	for _, r := range c.Bridge.Pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("bridge.pin must contain only digits")
		}
	}

	if c.Bridge.StateDirectory == "" {
		return fmt.Errorf("bridge.state_directory is required")
	}

	return nil
}

// validateDeviceMappings validates the device mapping table. Only the device
// identifier is checked; MAC and IP formats are passed through unvalidated
// and the consuming adapter handles malformed addresses.
func (c *Config) validateDeviceMappings() error {
	seen := make(map[string]bool, len(c.DeviceMappings))
	for i, m := range c.DeviceMappings {
		if m.DeviceID == "" {
			return fmt.Errorf("device_mappings[%d].device_id is required", i)
		}
		if seen[m.DeviceID] {
			return fmt.Errorf("device_mappings[%d].device_id %q is duplicated", i, m.DeviceID)
		}
		seen[m.DeviceID] = true
	}
	return nil
}

// validateMonitoring validates the status polling configuration
func (c *Config) validateMonitoring() error {
	if c.Monitoring.PollInterval == 0 {
		return nil // polling disabled
	}
	if c.Monitoring.PollInterval < time.Second {
		return fmt.Errorf("monitoring.poll_interval must be at least 1 second")
	}
	if c.Monitoring.PollInterval > time.Hour {
		return fmt.Errorf("monitoring.poll_interval must not exceed 1 hour")
	}
	return nil
}

// validateInfluxDB validates the optional InfluxDB configuration
func (c *Config) validateInfluxDB() error {
	if c.InfluxDB.URL == "" {
		return nil // telemetry disabled
	}

	parsedURL, parseErr := url.Parse(c.InfluxDB.URL)
	if parseErr != nil {
		return fmt.Errorf("influxdb.url is not a valid URL: %w", parseErr)
	}

	if securityErr := validateURLSecurity("influxdb.url", parsedURL); securityErr != nil {
		return securityErr
	}

	if c.InfluxDB.Token == "" {
		return fmt.Errorf("influxdb.token is required when influxdb.url is set")
	}
	if len(c.InfluxDB.Token) < 8 {
		return fmt.Errorf("influxdb.token must be at least 8 characters long")
	}
	if c.InfluxDB.Organization == "" {
		return fmt.Errorf("influxdb.organization is required when influxdb.url is set")
	}
	if c.InfluxDB.Bucket == "" {
		return fmt.Errorf("influxdb.bucket is required when influxdb.url is set")
	}

	return nil
}

// validateURLSecurity checks if the URL uses HTTPS for non-local connections
func validateURLSecurity(field string, parsedURL *url.URL) error {
	if parsedURL.Scheme != "http" {
		return nil
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	isLocal := hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		strings.HasPrefix(hostname, "172.")

	if !isLocal {
		return fmt.Errorf("%s must use HTTPS for non-local connections (got %s). Using HTTP transmits credentials in plaintext and is a security risk", field, parsedURL.Scheme)
	}

	return nil
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true,
		"warning": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, fatal, panic")
	}

	return nil
}
