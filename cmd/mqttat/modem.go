// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warthog618/atmqtt/at"
	"github.com/warthog618/atmqtt/config"
	"github.com/warthog618/atmqtt/mqtt"
	"github.com/warthog618/atmqtt/serial"
	"github.com/warthog618/atmqtt/trace"
)

// modem is the AT modem, and the MQTT client on it.
type modem struct {
	port   io.Closer
	at     *at.AT
	client *mqtt.Client
	log    zerolog.Logger
}

// openModem opens and initialises the modem.
func openModem(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*modem, error) {
	p, err := serial.New(serial.WithPort(cfg.Modem.Device), serial.WithBaud(cfg.Modem.Baud))
	if err != nil {
		return nil, err
	}
	var mio io.ReadWriter = p
	if cfg.Modem.Trace {
		tl := log.With().Str("module", "trace").Logger()
		mio = trace.New(p, trace.WithLogger(&tl))
	}
	a := at.New(mio)
	client, err := mqtt.New(a,
		mqtt.WithDialect(cfg.Dialect()),
		mqtt.WithLogger(log.With().Str("module", "mqtt").Logger()))
	if err != nil {
		p.Close()
		return nil, err
	}
	m := &modem{port: p, at: a, client: client, log: log}
	ictx, cancel := context.WithTimeout(ctx, 3*cfg.Modem.CommandTimeout)
	defer cancel()
	if err := client.Init(ictx); err != nil {
		m.Close()
		return nil, errors.Wrap(err, "init modem")
	}
	return m, nil
}

// connect creates the configured session and connects it to the broker.
func (m *modem) connect(ctx context.Context, cfg *config.Config, options ...mqtt.SessionOption) (*mqtt.Session, error) {
	options = append([]mqtt.SessionOption{
		mqtt.WithKeepAlive(cfg.MQTT.KeepAlive),
		mqtt.WithConnectTimeout(cfg.MQTT.ConnectTimeout),
		mqtt.WithCommandTimeout(cfg.Modem.CommandTimeout),
	}, options...)
	s, err := m.client.NewSession(cfg.MQTT.SessionID, options...)
	if err != nil {
		return nil, err
	}
	creds := cfg.Credentials()
	if creds.ClientID == "" {
		creds.ClientID = "atmqtt-" + uuid.NewString()
	}
	m.log.Info().
		Str("host", creds.Host).
		Int("port", creds.Port).
		Str("client_id", creds.ClientID).
		Msg("connecting")
	if err := s.Connect(ctx, creds); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// disconnect disconnects the session, if still connected, and closes it.
//
// Runs even if ctx has been cancelled.
func (m *modem) disconnect(ctx context.Context, s *mqtt.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Disconnect(ctx); err != nil {
		m.log.Warn().Err(err).Msg("disconnect failed")
	}
	s.Close()
}

func (m *modem) Close() {
	m.client.Close()
	m.port.Close()
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
