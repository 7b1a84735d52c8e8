// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"time"

	"github.com/warthog618/atmqtt/info"
)

// Dialect is the AT command set a modem firmware uses for its MQTT client.
//
// The Dialect translates session operations into command lines, without the
// AT prefix, and decodes the unsolicited result codes the firmware emits into
// Events.
type Dialect interface {
	// Name identifies the dialect in logs and configuration.
	Name() string

	// Prefixes are the URC line prefixes the dialect decodes.
	Prefixes() []string

	// ConnectSteps returns the commands that connect the session, in order.
	ConnectSteps(id int, c Credentials, keepAlive time.Duration) []Step

	Disconnect(id int) string
	Publish(id int, topic string, qos byte, payload []byte) PublishCommand
	Subscribe(id int, topic string, qos byte) string
	Unsubscribe(id int, topic string) string

	// StateQuery returns the command requesting the session state, if the
	// firmware supports one.
	StateQuery(id int) (string, bool)

	// Fields returns the number of arguments a URC with the tag is split
	// into, or -1 for no limit.
	//
	// The last argument takes the remainder of the line, so payloads may
	// contain quotes and commas.
	Fields(tag string) int

	// Decode converts a tokenized URC into an Event.
	//
	// Returns false if the URC is not recognised.
	Decode(tag string, args []info.Value) (Event, bool)
}

// Step is one command in a connect sequence.
type Step struct {
	// Stage is the connect stage entered when the command is issued.
	Stage Stage

	Cmd string

	// Timeout overrides the session command timeout, if non-zero.
	Timeout time.Duration

	// Undo, if not empty, is the command that reverses the effect of Cmd
	// should a later step fail.
	Undo string
}

// PublishCommand is the command, and optional streamed payload, that
// publishes a message.
type PublishCommand struct {
	Cmd string

	// Payload is written after the modem prompts for it.
	// If nil the payload is inline in Cmd.
	Payload []byte
}

// Streamed returns true if the payload follows the command.
func (p PublishCommand) Streamed() bool {
	return p.Payload != nil
}

// Credentials identify the broker and the client to the broker.
type Credentials struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string
}

// EventKind identifies the type of event reported by the modem.
type EventKind int

const (
	// EventMessage is a message received on a subscribed topic.
	EventMessage EventKind = iota + 1

	// EventConnect is the result of a connect request.
	EventConnect

	// EventDisconnect is the acknowledgement of a disconnect request.
	EventDisconnect

	// EventConnectionLost indicates the link to the broker has dropped.
	EventConnectionLost

	// EventPublishAck is the result of a publish.
	EventPublishAck

	// EventSubscribeAck is the result of a subscribe or unsubscribe.
	EventSubscribeAck

	// EventState is a report of the session state in response to a state
	// query.
	EventState
)

var eventKindNames = map[EventKind]string{
	EventMessage:        "message",
	EventConnect:        "connect",
	EventDisconnect:     "disconnect",
	EventConnectionLost: "connection lost",
	EventPublishAck:     "publish ack",
	EventSubscribeAck:   "subscribe ack",
	EventState:          "state",
}

func (k EventKind) String() string {
	if n, ok := eventKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// AllSessions is the Event session for events that carry no session id.
const AllSessions = -1

// Event is a decoded unsolicited result code.
type Event struct {
	Kind EventKind

	// Session is the id of the session the event applies to, or AllSessions.
	Session int

	Result Result

	Topic   string
	Payload []byte

	// Total is the full length of a message payload that is delivered in
	// fragments. Equal to len(Payload) for complete messages.
	Total int

	// Connected is the session state reported by an EventState.
	Connected bool
}

var dialects = map[string]Dialect{
	A76xx{}.Name(): A76xx{},
	ML307{}.Name(): ML307{},
}

// LookupDialect returns the dialect with the given name.
func LookupDialect(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}
