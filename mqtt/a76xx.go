// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"fmt"
	"time"

	"github.com/warthog618/atmqtt/info"
)

// A76xx is the dialect of the SIMCom A76xx series (+CMQTT commands).
//
// Payloads are streamed after a prompt, so they may contain binary data.
type A76xx struct{}

const (
	// the recommended linger period for a graceful disconnect, in seconds.
	a76xxDisconnectLinger = 30

	a76xxSlowTimeout = 5 * time.Second
)

// Name returns the name of the dialect.
func (A76xx) Name() string {
	return "a76xx"
}

// Prefixes returns the prefix of all the A76xx MQTT URCs.
func (A76xx) Prefixes() []string {
	return []string{"+CMQTT"}
}

// ConnectSteps starts the MQTT service, acquires the client, configures
// topic and payload length reporting, then connects.
//
// The MQTT service is shared by all sessions so is never stopped.
func (A76xx) ConnectSteps(id int, c Credentials, keepAlive time.Duration) []Step {
	scheme := "tcp"
	if c.Port == 8883 {
		scheme = "ssl"
	}
	uri := fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
	conn := fmt.Sprintf("+CMQTTCONNECT=%d,\"%s\",%d,0", id, uri, int(keepAlive/time.Second))
	if c.Username != "" {
		conn += fmt.Sprintf(",\"%s\",\"%s\"", c.Username, c.Password)
	}
	return []Step{
		{
			Stage:   StageStartSent,
			Cmd:     "+CMQTTSTART",
			Timeout: a76xxSlowTimeout,
		},
		{
			Stage: StageAccqSent,
			Cmd:   fmt.Sprintf("+CMQTTACCQ=%d,\"%s\"", id, c.ClientID),
			Undo:  fmt.Sprintf("+CMQTTREL=%d", id),
		},
		{
			Stage: StageCfgSent,
			Cmd:   fmt.Sprintf("+CMQTTCFG=\"argtopic\",%d,1,1", id),
		},
		{
			Stage:   StageConnectSent,
			Cmd:     conn,
			Timeout: a76xxSlowTimeout,
			Undo:    A76xx{}.Disconnect(id),
		},
	}
}

// Disconnect returns the command that disconnects the session from the
// broker.
func (A76xx) Disconnect(id int) string {
	return fmt.Sprintf("+CMQTTDISC=%d,%d", id, a76xxDisconnectLinger)
}

// Publish returns the command declaring the payload length, with the payload
// to be streamed after the prompt.
func (A76xx) Publish(id int, topic string, qos byte, payload []byte) PublishCommand {
	if payload == nil {
		payload = []byte{}
	}
	return PublishCommand{
		Cmd:     fmt.Sprintf("+CMQTTPUB=%d,\"%s\",%d,%d,0", id, topic, qos, len(payload)),
		Payload: payload,
	}
}

// Subscribe returns the subscribe command, with URC reporting enabled.
func (A76xx) Subscribe(id int, topic string, qos byte) string {
	return fmt.Sprintf("+CMQTTSUB=%d,\"%s\",%d,1", id, topic, qos)
}

// Unsubscribe returns the unsubscribe command, with URC reporting enabled.
func (A76xx) Unsubscribe(id int, topic string) string {
	return fmt.Sprintf("+CMQTTUNSUB=%d,\"%s\",1", id, topic)
}

// StateQuery is not supported by the A76xx.
func (A76xx) StateQuery(id int) (string, bool) {
	return "", false
}

// Fields limits CMQTTRECV to the four arguments preceding and including
// the payload.
func (A76xx) Fields(tag string) int {
	if tag == "CMQTTRECV" {
		return 4
	}
	return -1
}

// Decode decodes the A76xx MQTT URCs.
func (A76xx) Decode(tag string, args []info.Value) (Event, bool) {
	switch tag {
	case "CMQTTRECV":
		// <id>,"<topic>",<qos>,"<payload>"
		if len(args) < 4 || !args[0].IsInt {
			return Event{}, false
		}
		payload := []byte(args[3].Str)
		return Event{
			Kind:    EventMessage,
			Session: args[0].Int,
			Topic:   args[1].Str,
			Payload: payload,
			Total:   len(payload),
		}, true
	case "CMQTTCONNECT":
		return decodeResult(EventConnect, args)
	case "CMQTTDISC":
		return decodeResult(EventDisconnect, args)
	case "CMQTTPUB":
		return decodeResult(EventPublishAck, args)
	case "CMQTTSUB", "CMQTTUNSUB":
		return decodeResult(EventSubscribeAck, args)
	case "CMQTTCONNLOST":
		ev := Event{Kind: EventConnectionLost, Session: AllSessions, Result: ResultUnknown}
		if len(args) > 0 && args[0].IsInt {
			ev.Session = args[0].Int
		}
		if len(args) > 1 && args[1].IsInt {
			ev.Result = Result(args[1].Int)
		}
		return ev, true
	}
	return Event{}, false
}

// decodeResult decodes the common <id>,<result> URC form.
func decodeResult(kind EventKind, args []info.Value) (Event, bool) {
	if len(args) < 2 || !args[0].IsInt || !args[1].IsInt {
		return Event{}, false
	}
	return Event{
		Kind:    kind,
		Session: args[0].Int,
		Result:  Result(args[1].Int),
	}, true
}

var _ Dialect = A76xx{}
