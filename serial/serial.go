// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial opens the serial port connecting to the modem.
package serial

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Config is the configuration of the serial port.
type Config struct {
	port        string
	baud        int
	readTimeout time.Duration
}

// Option modifies the Config used to open the port.
type Option func(*Config)

// New opens the serial port, with the platform default port and a baud rate
// of 115200 unless overridden by options.
func New(options ...Option) (*serial.Port, error) {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	config := &serial.Config{
		Name:        cfg.port,
		Baud:        cfg.baud,
		ReadTimeout: cfg.readTimeout,
	}
	p, err := serial.OpenPort(config)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.port)
	}
	return p, nil
}

// WithPort sets the device path, or COM port on Windows.
func WithPort(port string) Option {
	return func(c *Config) {
		c.port = port
	}
}

// WithBaud sets the baud rate.
func WithBaud(baud int) Option {
	return func(c *Config) {
		c.baud = baud
	}
}

// WithReadTimeout sets the period a read waits for data.
//
// The default of zero blocks until data arrives, which is what the AT
// pipeline expects.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.readTimeout = d
	}
}
