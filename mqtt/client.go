// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// Package mqtt provides an MQTT client for modems that implement MQTT in
// firmware and expose it through AT commands.
//
// A Client binds to the AT modem and routes the MQTT URCs emitted by the
// modem to the Sessions created on it. Each Session is one MQTT client
// connection, identified to the modem by a small integer id.
package mqtt

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warthog618/atmqtt/at"
	"github.com/warthog618/atmqtt/info"
)

// Commander issues commands to the modem.
type Commander interface {
	Command(ctx context.Context, cmd string) ([]string, error)
	PayloadCommand(ctx context.Context, cmd string, payload []byte, options ...at.PayloadOption) ([]string, error)
}

// Modem is the AT modem the Client issues commands to and receives URCs
// from.
type Modem interface {
	Commander
	Init(ctx context.Context, cmds ...string) error
	AddIndication(prefix string, handler at.InfoHandler, options ...at.IndicationOption) error
	CancelIndication(prefix string)
}

// Client routes MQTT URCs from a modem to the Sessions sharing the modem.
type Client struct {
	modem   Modem
	dialect Dialect
	log     zerolog.Logger

	// covers sessions and closed
	mu       sync.RWMutex
	sessions map[int]*Session
	closed   bool
}

// Option is a construction option for a Client.
type Option func(*Client)

// WithDialect sets the MQTT command dialect spoken by the modem.
//
// The default is A76xx.
func WithDialect(d Dialect) Option {
	return func(c *Client) {
		c.dialect = d
	}
}

// WithLogger sets the logger used by the Client and its Sessions.
//
// By default nothing is logged.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a Client on the modem.
//
// The Client registers indications for the dialect's URCs, so only one
// Client may be created per modem.
func New(m Modem, options ...Option) (*Client, error) {
	c := &Client{
		modem:    m,
		dialect:  A76xx{},
		log:      zerolog.Nop(),
		sessions: make(map[int]*Session),
	}
	for _, option := range options {
		option(c)
	}
	c.log = c.log.With().Str("dialect", c.dialect.Name()).Logger()
	prefixes := c.dialect.Prefixes()
	for i, prefix := range prefixes {
		if err := m.AddIndication(prefix, c.handleURC); err != nil {
			for _, p := range prefixes[:i] {
				m.CancelIndication(p)
			}
			return nil, errors.Wrapf(err, "add indication %s", prefix)
		}
	}
	return c, nil
}

// Init initialises the modem.
//
// This resets the modem to factory defaults, disables echo and enables
// textual errors.
func (c *Client) Init(ctx context.Context) error {
	return c.modem.Init(ctx, "Z", "E0", "+CMEE=2")
}

// Dialect returns the dialect spoken by the modem.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// NewSession creates a Session with the given id.
//
// Only one Session may exist for a given id.
func (c *Client) NewSession(id int, options ...SessionOption) (*Session, error) {
	if id < 0 {
		return nil, ErrInvalidSession
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s := newSession(c, id, options...)
	c.sessions[id] = s
	return s, nil
}

// Close cancels the URC indications and closes all Sessions.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()
	for _, prefix := range c.dialect.Prefixes() {
		c.modem.CancelIndication(prefix)
	}
	for _, s := range sessions {
		s.Close()
	}
}

// detach removes the session from the registry.
func (c *Client) detach(s *Session) {
	c.mu.Lock()
	if c.sessions[s.id] == s {
		delete(c.sessions, s.id)
	}
	c.mu.Unlock()
}

// handleURC decodes a URC and forwards it to the addressed sessions.
//
// Called from the modem's indication goroutine.
func (c *Client) handleURC(lines []string) {
	tag, _ := info.SplitN(lines[0], 0)
	_, args := info.SplitN(lines[0], c.dialect.Fields(tag))
	ev, ok := c.dialect.Decode(tag, args)
	if !ok {
		c.log.Info().Str("urc", lines[0]).Msg("unhandled URC")
		return
	}
	c.route(ev)
}

func (c *Client) route(ev Event) {
	c.mu.RLock()
	if ev.Session == AllSessions {
		sessions := make([]*Session, 0, len(c.sessions))
		for _, s := range c.sessions {
			sessions = append(sessions, s)
		}
		c.mu.RUnlock()
		for _, s := range sessions {
			s.handle(ev)
		}
		return
	}
	s := c.sessions[ev.Session]
	c.mu.RUnlock()
	if s == nil {
		c.log.Debug().
			Int("session", ev.Session).
			Stringer("event", ev.Kind).
			Msg("event for unknown session")
		return
	}
	s.handle(ev)
}

var (
	// ErrClosed indicates the Client or Session has been closed.
	ErrClosed = errors.New("mqtt: closed")

	// ErrConnectRejected indicates the broker, or the modem, refused the
	// connection.
	ErrConnectRejected = errors.New("mqtt: connect rejected")

	// ErrConnectTimeout indicates the modem did not report the result of a
	// connect within the connect timeout.
	ErrConnectTimeout = errors.New("mqtt: connect timeout")

	// ErrDisconnectTimeout indicates an existing connection was not closed
	// within the disconnect timeout.
	ErrDisconnectTimeout = errors.New("mqtt: disconnect timeout")

	// ErrInvalidQoS indicates a QoS other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidSession indicates a negative session id.
	ErrInvalidSession = errors.New("mqtt: invalid session id")

	// ErrInvalidTopic indicates an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrNotConnected indicates an operation that requires a connection was
	// attempted on a disconnected session.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrSessionExists indicates a Session already exists for an id.
	ErrSessionExists = errors.New("mqtt: session exists")

	// ErrStateTimeout indicates the modem did not report the session state.
	ErrStateTimeout = errors.New("mqtt: state timeout")
)
