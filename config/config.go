// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// Package config loads the configuration of the modem, the MQTT session and
// logging.
//
// The configuration is read from a YAML file, if one is provided, over a set
// of defaults. Environment variables of the form ATMQTT_SECTION_KEY override
// the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/atmqtt/mqtt"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration.
type Config struct {
	Modem   ModemConfig   `yaml:"modem"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModemConfig describes the modem and its serial link.
type ModemConfig struct {
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	Dialect        string        `yaml:"dialect"`
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// Trace logs all traffic to and from the modem.
	Trace bool `yaml:"trace"`
}

// MQTTConfig describes the MQTT session.
type MQTTConfig struct {
	SessionID      int           `yaml:"session_id"`
	Broker         BrokerConfig  `yaml:"broker"`
	Auth           AuthConfig    `yaml:"auth"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QoS            int           `yaml:"qos"`
}

// BrokerConfig identifies the broker, and the client to the broker.
type BrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ClientID may be empty, in which case the caller generates one.
	ClientID string `yaml:"client_id"`
}

// AuthConfig holds the optional broker credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig controls the log level, format and destination.
type LoggingConfig struct {
	Level string `yaml:"level"`

	// Format is either "console" or "json".
	Format string `yaml:"format"`

	// File, if set, is the path of a rotated log file used instead of
	// stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Modem: ModemConfig{
			Device:         "/dev/ttyUSB2",
			Baud:           115200,
			Dialect:        "a76xx",
			CommandTimeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: BrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			QoS:            1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the configuration file, if path is not empty, applies any
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv applies the ATMQTT_* environment variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := []struct {
		key string
		val *string
	}{
		{"ATMQTT_MODEM_DEVICE", &c.Modem.Device},
		{"ATMQTT_MODEM_DIALECT", &c.Modem.Dialect},
		{"ATMQTT_MQTT_HOST", &c.MQTT.Broker.Host},
		{"ATMQTT_MQTT_CLIENT_ID", &c.MQTT.Broker.ClientID},
		{"ATMQTT_MQTT_USERNAME", &c.MQTT.Auth.Username},
		{"ATMQTT_MQTT_PASSWORD", &c.MQTT.Auth.Password},
		{"ATMQTT_LOG_LEVEL", &c.Logging.Level},
		{"ATMQTT_LOG_FILE", &c.Logging.File},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.val = v
		}
	}
	ints := []struct {
		key string
		val *int
	}{
		{"ATMQTT_MODEM_BAUD", &c.Modem.Baud},
		{"ATMQTT_MQTT_PORT", &c.MQTT.Broker.Port},
		{"ATMQTT_MQTT_SESSION_ID", &c.MQTT.SessionID},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", i.key)
		}
		*i.val = n
	}
	return nil
}

// Validate checks the configuration for values the modem would reject.
func (c *Config) Validate() error {
	var errs []string
	if c.Modem.Device == "" {
		errs = append(errs, "modem.device is required")
	}
	if c.Modem.Baud <= 0 {
		errs = append(errs, "modem.baud must be positive")
	}
	if _, ok := mqtt.LookupDialect(c.Modem.Dialect); !ok {
		errs = append(errs, fmt.Sprintf("modem.dialect %q is not supported", c.Modem.Dialect))
	}
	if c.Modem.CommandTimeout <= 0 {
		errs = append(errs, "modem.command_timeout must be positive")
	}
	if c.MQTT.SessionID < 0 {
		errs = append(errs, "mqtt.session_id must not be negative")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.KeepAlive < time.Second {
		errs = append(errs, "mqtt.keep_alive must be at least 1s")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if len(errs) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Dialect returns the configured modem dialect.
//
// The configuration must have been validated.
func (c *Config) Dialect() mqtt.Dialect {
	d, _ := mqtt.LookupDialect(c.Modem.Dialect)
	return d
}

// Credentials returns the broker credentials for a connect.
func (c *Config) Credentials() mqtt.Credentials {
	return mqtt.Credentials{
		Host:     c.MQTT.Broker.Host,
		Port:     c.MQTT.Broker.Port,
		ClientID: c.MQTT.Broker.ClientID,
		Username: c.MQTT.Auth.Username,
		Password: c.MQTT.Auth.Password,
	}
}
