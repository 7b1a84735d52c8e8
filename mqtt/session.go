// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warthog618/atmqtt/at"
)

// MessageHandler receives messages published to subscribed topics.
type MessageHandler func(topic string, payload []byte)

// Session is one MQTT client connection multiplexed over the modem.
//
// The connection state is driven by the URCs reported by the modem, so the
// Session may become disconnected at any time.
//
// Callbacks are called in order from a goroutine owned by the Session.
// A callback may issue commands on the Session, but must not Close it.
//
// Operations on a Session must not be called concurrently.
type Session struct {
	id      int
	client  *Client
	cmdr    Commander
	dialect Dialect
	log     zerolog.Logger

	connected atomic.Bool

	// set while a state query is outstanding
	querying atomic.Bool

	// covers stage, creds, pending and the handlers
	mu             sync.Mutex
	stage          Stage
	creds          Credentials
	pending        []byte
	pendingTopic   string
	onConnected    func()
	onDisconnected func()
	onMessage      MessageHandler

	events   *events
	dispatch *dispatcher

	keepAlive         time.Duration
	connectTimeout    time.Duration
	disconnectTimeout time.Duration
	commandTimeout    time.Duration
	promptTimeout     time.Duration
	completionTimeout time.Duration
	queueSize         int

	closeOnce sync.Once
}

// SessionOption is a construction option for a Session.
type SessionOption func(*Session)

// WithKeepAlive sets the keep-alive interval requested from the broker.
//
// The default is 60s.
func WithKeepAlive(d time.Duration) SessionOption {
	return func(s *Session) {
		s.keepAlive = d
	}
}

// WithConnectTimeout sets the period Connect waits for the modem to report
// the connect result.
//
// The default is 10s.
func WithConnectTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.connectTimeout = d
	}
}

// WithDisconnectTimeout sets the period Connect waits for an existing
// connection to close.
//
// The default is 10s.
func WithDisconnectTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.disconnectTimeout = d
	}
}

// WithCommandTimeout sets the period to wait for the modem to respond to a
// command.
//
// The default is 5s.
func WithCommandTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.commandTimeout = d
	}
}

// WithPublishTimeouts sets the periods Publish waits for the payload prompt
// and for the publish to complete.
//
// The defaults are 2s and 3s.
func WithPublishTimeouts(prompt, completion time.Duration) SessionOption {
	return func(s *Session) {
		s.promptTimeout = prompt
		s.completionTimeout = completion
	}
}

// WithCallbackQueue sets the number of callbacks that may be queued before
// URC processing is held up by slow callbacks.
//
// The default is 16.
func WithCallbackQueue(size int) SessionOption {
	return func(s *Session) {
		s.queueSize = size
	}
}

// WithConnectHandler sets the callback called when the session connects.
func WithConnectHandler(h func()) SessionOption {
	return func(s *Session) {
		s.onConnected = h
	}
}

// WithDisconnectHandler sets the callback called when the session
// disconnects, or fails to connect.
func WithDisconnectHandler(h func()) SessionOption {
	return func(s *Session) {
		s.onDisconnected = h
	}
}

// WithMessageHandler sets the callback called for received messages.
func WithMessageHandler(h MessageHandler) SessionOption {
	return func(s *Session) {
		s.onMessage = h
	}
}

func newSession(c *Client, id int, options ...SessionOption) *Session {
	s := &Session{
		id:                id,
		client:            c,
		cmdr:              c.modem,
		dialect:           c.dialect,
		log:               c.log.With().Int("session", id).Logger(),
		events:            newEvents(),
		keepAlive:         60 * time.Second,
		connectTimeout:    10 * time.Second,
		disconnectTimeout: 10 * time.Second,
		commandTimeout:    5 * time.Second,
		promptTimeout:     2 * time.Second,
		completionTimeout: 3 * time.Second,
		queueSize:         16,
	}
	for _, option := range options {
		option(s)
	}
	s.dispatch = newDispatcher(s.queueSize, s.log)
	return s
}

// ID returns the session id.
func (s *Session) ID() int {
	return s.id
}

// IsConnected returns true if the session is connected to the broker.
func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

// Stage returns the progress of the most recent connect.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Credentials returns the credentials provided to the most recent Connect.
func (s *Session) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// OnConnected sets the callback called when the session connects.
func (s *Session) OnConnected(h func()) {
	s.mu.Lock()
	s.onConnected = h
	s.mu.Unlock()
}

// OnDisconnected sets the callback called when the session disconnects, or
// fails to connect.
func (s *Session) OnDisconnected(h func()) {
	s.mu.Lock()
	s.onDisconnected = h
	s.mu.Unlock()
}

// OnMessage sets the callback called for received messages.
func (s *Session) OnMessage(h MessageHandler) {
	s.mu.Lock()
	s.onMessage = h
	s.mu.Unlock()
}

// Connect connects the session to the broker.
//
// If the session is already connected it is first disconnected, and
// Connect fails if the disconnect is not confirmed within the disconnect
// timeout.
//
// If any step of the connect fails, the steps already completed are undone,
// as far as the modem allows.
func (s *Session) Connect(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	if s.IsConnected() {
		s.events.clear(eventDisconnected)
		if err := s.Disconnect(ctx); err != nil {
			return err
		}
		if s.events.wait(ctx, eventDisconnected, s.disconnectTimeout) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error().Msg("previous connection did not disconnect")
			return ErrDisconnectTimeout
		}
	}

	s.events.clear(eventConnected | eventDisconnected)
	var done []Step
	for _, step := range s.dialect.ConnectSteps(s.id, creds, s.keepAlive) {
		s.setStage(step.Stage)
		if err := s.command(ctx, step.Cmd, step.Timeout); err != nil {
			s.abort(done)
			return err
		}
		done = append(done, step)
	}

	got := s.events.wait(ctx, eventConnected|eventDisconnected, s.connectTimeout)
	if got&eventConnected == 0 {
		if got&eventDisconnected != 0 {
			// the modem has reported the connect failed so there is no
			// connection to undo
			done = done[:len(done)-1]
		}
		s.abort(done)
		if got == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error().Str("host", creds.Host).Int("port", creds.Port).Msg("connect timeout")
			return ErrConnectTimeout
		}
		s.log.Error().Str("host", creds.Host).Int("port", creds.Port).Msg("connect failed")
		return ErrConnectRejected
	}
	s.connected.Store(true)
	s.setStage(StageConnected)
	s.log.Info().Str("host", creds.Host).Int("port", creds.Port).Msg("connected")
	return nil
}

// abort marks the connect as failed and undoes the completed steps, in
// reverse order.
func (s *Session) abort(done []Step) {
	s.setStage(StageFailed)
	ctx := context.Background()
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Undo == "" {
			continue
		}
		if err := s.command(ctx, done[i].Undo, 0); err != nil {
			s.log.Warn().Err(err).Msg("connect step not undone")
		}
	}
}

// Disconnect requests the session disconnect from the broker.
//
// Disconnect does nothing if the session is not connected.
//
// The session remains connected until the modem reports the disconnect.
func (s *Session) Disconnect(ctx context.Context) error {
	if !s.IsConnected() {
		return nil
	}
	return s.command(ctx, s.dialect.Disconnect(s.id), 0)
}

// Publish publishes the payload to the topic.
//
// Publish returns once the modem has accepted the message, which for QoS 0
// is before the message is delivered to the broker.
func (s *Session) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if err := validate(topic, qos); err != nil {
		return err
	}
	pc := s.dialect.Publish(s.id, topic, qos, payload)
	if !pc.Streamed() {
		return s.command(ctx, pc.Cmd, 0)
	}
	_, err := s.cmdr.PayloadCommand(ctx, pc.Cmd, pc.Payload,
		at.WithPromptTimeout(s.promptTimeout),
		at.WithCompletionTimeout(s.completionTimeout))
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("publish failed")
		return errors.Wrapf(err, "AT%s", cmdName(pc.Cmd))
	}
	s.log.Debug().Str("topic", topic).Int("len", len(payload)).Msg("published")
	return nil
}

// Subscribe subscribes the session to the topic.
func (s *Session) Subscribe(ctx context.Context, topic string, qos byte) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if err := validate(topic, qos); err != nil {
		return err
	}
	return s.command(ctx, s.dialect.Subscribe(s.id, topic, qos), 0)
}

// Unsubscribe unsubscribes the session from the topic.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if err := validate(topic, 0); err != nil {
		return err
	}
	return s.command(ctx, s.dialect.Unsubscribe(s.id, topic), 0)
}

// Refresh queries the modem for the session state, if the dialect supports
// it, and returns the connection state.
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	cmd, ok := s.dialect.StateQuery(s.id)
	if !ok {
		return s.IsConnected(), nil
	}
	s.events.clear(eventInitialized)
	s.querying.Store(true)
	defer s.querying.Store(false)
	if err := s.command(ctx, cmd, 0); err != nil {
		return false, err
	}
	if s.events.wait(ctx, eventInitialized, s.commandTimeout) == 0 {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, ErrStateTimeout
	}
	return s.IsConnected(), nil
}

// Close detaches the session from the Client and stops the callbacks.
//
// Close does not disconnect the session from the broker.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.client.detach(s)
		s.events.close()
		s.dispatch.close()
	})
}

// handle applies an event reported by the modem.
//
// Called from the modem's indication goroutine.
func (s *Session) handle(ev Event) {
	switch ev.Kind {
	case EventMessage:
		s.handleMessage(ev)
	case EventConnect:
		s.log.Info().Stringer("result", ev.Result).Msg("connect result")
		if ev.Result != ResultSuccess {
			s.disconnected()
			return
		}
		if s.connected.CompareAndSwap(false, true) {
			s.post(s.connectHandler())
		}
		s.setStage(StageConnected)
		s.events.set(eventConnected)
	case EventDisconnect, EventConnectionLost:
		s.log.Info().Stringer("event", ev.Kind).Stringer("result", ev.Result).Msg("disconnected")
		s.disconnected()
	case EventPublishAck:
		if ev.Result != ResultSuccess {
			s.log.Warn().Int("code", int(ev.Result)).Msg("publish failed")
			return
		}
		s.log.Debug().Msg("publish acknowledged")
	case EventSubscribeAck:
		s.log.Debug().Int("code", int(ev.Result)).Msg("subscribe acknowledged")
	case EventState:
		if !s.querying.Load() {
			return
		}
		s.connected.Store(ev.Connected)
		s.events.set(eventInitialized)
	default:
		s.log.Info().Stringer("event", ev.Kind).Msg("unhandled event")
	}
}

func (s *Session) disconnected() {
	s.connected.Store(false)
	s.events.set(eventDisconnected)
	s.post(s.disconnectHandler())
}

// handleMessage delivers a message, after reassembling any fragments.
func (s *Session) handleMessage(ev Event) {
	payload := ev.Payload
	s.mu.Lock()
	if len(s.pending) > 0 && (ev.Total <= len(ev.Payload) || ev.Topic != s.pendingTopic) {
		s.log.Warn().Str("topic", s.pendingTopic).Int("len", len(s.pending)).Msg("incomplete message dropped")
		s.pending = nil
	}
	if ev.Total > len(ev.Payload) || len(s.pending) > 0 {
		s.pending = append(s.pending, ev.Payload...)
		s.pendingTopic = ev.Topic
		if len(s.pending) < ev.Total {
			s.mu.Unlock()
			return
		}
		payload = s.pending
		s.pending = nil
	}
	h := s.onMessage
	s.mu.Unlock()
	if h == nil {
		return
	}
	topic := ev.Topic
	s.post(func() { h(topic, payload) })
}

func (s *Session) post(f func()) {
	if f == nil {
		return
	}
	s.dispatch.post(f)
}

func (s *Session) connectHandler() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onConnected
}

func (s *Session) disconnectHandler() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDisconnected
}

func (s *Session) setStage(st Stage) {
	s.mu.Lock()
	s.stage = st
	s.mu.Unlock()
}

// command issues a command to the modem, with a timeout.
func (s *Session) command(ctx context.Context, cmd string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = s.commandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := s.cmdr.Command(ctx, cmd); err != nil {
		// only the name is logged as commands may contain credentials
		s.log.Error().Err(err).Str("cmd", cmdName(cmd)).Msg("command failed")
		return errors.Wrapf(err, "AT%s", cmdName(cmd))
	}
	return nil
}

// cmdName returns the command without its arguments.
func cmdName(cmd string) string {
	if idx := strings.IndexAny(cmd, "=?"); idx != -1 {
		return cmd[:idx]
	}
	return cmd
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > 2 {
		return ErrInvalidQoS
	}
	return nil
}
