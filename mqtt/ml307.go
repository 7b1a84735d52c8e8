// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warthog618/atmqtt/info"
)

// ML307 is the dialect of the ML307 series (+MQTT commands).
//
// Payloads are hex encoded inline in the publish command, and received
// payloads may be split across several URCs.
type ML307 struct{}

// the state reported by +MQTTSTATE for a disconnected session.
const ml307StateDisconnected = 3

// Name returns the name of the dialect.
func (ML307) Name() string {
	return "ml307"
}

// Prefixes returns the prefixes of the ML307 MQTT URCs.
func (ML307) Prefixes() []string {
	return []string{"+MQTTURC:", "+MQTTSTATE:"}
}

// ConnectSteps configures the session then connects.
//
// The configuration is held per session, so there is nothing to undo.
func (ML307) ConnectSteps(id int, c Credentials, keepAlive time.Duration) []Step {
	var steps []Step
	if c.Port == 8883 {
		steps = append(steps, Step{
			Stage: StageCfgSent,
			Cmd:   fmt.Sprintf("+MQTTCFG=\"ssl\",%d,1", id),
		})
	}
	steps = append(steps,
		Step{
			Stage: StageCfgSent,
			Cmd:   fmt.Sprintf("+MQTTCFG=\"clean\",%d,1", id),
		},
		Step{
			Stage: StageCfgSent,
			Cmd:   fmt.Sprintf("+MQTTCFG=\"pingreq\",%d,%d", id, int(keepAlive/time.Second)),
		},
		Step{
			Stage: StageCfgSent,
			Cmd:   fmt.Sprintf("+MQTTCFG=\"encoding\",%d,1,1", id),
		},
		Step{
			Stage: StageConnectSent,
			Cmd: fmt.Sprintf("+MQTTCONN=%d,\"%s\",%d,\"%s\",\"%s\",\"%s\"",
				id, c.Host, c.Port, c.ClientID, c.Username, c.Password),
			Undo: ML307{}.Disconnect(id),
		})
	return steps
}

// Disconnect returns the command that disconnects the session from the
// broker.
func (ML307) Disconnect(id int) string {
	return fmt.Sprintf("+MQTTDISC=%d", id)
}

// Publish returns the publish command with the payload hex encoded inline.
func (ML307) Publish(id int, topic string, qos byte, payload []byte) PublishCommand {
	return PublishCommand{
		Cmd: fmt.Sprintf("+MQTTPUB=%d,\"%s\",%d,0,0,%d,%s",
			id, topic, qos, len(payload), strings.ToUpper(hex.EncodeToString(payload))),
	}
}

// Subscribe returns the subscribe command.
func (ML307) Subscribe(id int, topic string, qos byte) string {
	return fmt.Sprintf("+MQTTSUB=%d,\"%s\",%d", id, topic, qos)
}

// Unsubscribe returns the unsubscribe command.
func (ML307) Unsubscribe(id int, topic string) string {
	return fmt.Sprintf("+MQTTUNSUB=%d,\"%s\"", id, topic)
}

// StateQuery returns the command requesting the session state.
func (ML307) StateQuery(id int) (string, bool) {
	return fmt.Sprintf("+MQTTSTATE=%d", id), true
}

// Fields limits MQTTURC to the seven arguments of the publish report.
func (ML307) Fields(tag string) int {
	if tag == "MQTTURC" {
		return 7
	}
	return -1
}

// Decode decodes the ML307 MQTT URCs.
//
// The state report carries no session id so is addressed to AllSessions.
func (ML307) Decode(tag string, args []info.Value) (Event, bool) {
	switch tag {
	case "MQTTSTATE":
		if len(args) < 1 || !args[0].IsInt {
			return Event{}, false
		}
		return Event{
			Kind:      EventState,
			Session:   AllSessions,
			Connected: args[0].Int != ml307StateDisconnected,
		}, true
	case "MQTTURC":
		if len(args) < 2 || !args[1].IsInt {
			return Event{}, false
		}
		id := args[1].Int
		switch args[0].Str {
		case "conn":
			// "conn",<id>,<result>
			if len(args) < 3 {
				return Event{}, false
			}
			return Event{Kind: EventConnect, Session: id, Result: parseResult(args[2])}, true
		case "suback", "unsuback":
			return Event{Kind: EventSubscribeAck, Session: id}, true
		case "puback":
			return Event{Kind: EventPublishAck, Session: id}, true
		case "publish":
			// "publish",<id>,<msgid>,"<topic>",<total_len>,<len>,"<hex>"
			if len(args) < 7 || !args[4].IsInt {
				return Event{}, false
			}
			payload, err := hex.DecodeString(args[6].Str)
			if err != nil {
				return Event{}, false
			}
			return Event{
				Kind:    EventMessage,
				Session: id,
				Topic:   args[3].Str,
				Payload: payload,
				Total:   args[4].Int,
			}, true
		}
	}
	return Event{}, false
}

// parseResult converts a result argument that may be numeric or a numeric
// string.
func parseResult(v info.Value) Result {
	if v.IsInt {
		return Result(v.Int)
	}
	if i, err := strconv.Atoi(v.Str); err == nil {
		return Result(i)
	}
	return ResultUnknown
}

var _ Dialect = ML307{}
