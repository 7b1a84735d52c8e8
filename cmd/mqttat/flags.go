// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

var FlagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to YAML config file",
	EnvVars: []string{"ATMQTT_CONFIG"},
}

var FlagLogLevel = &cli.StringFlag{
	Name:  "log-level",
	Usage: "one of: [trace, debug, info, warn, error]",
}

var FlagLogFormat = &cli.StringFlag{
	Name:  "log-format",
	Usage: "one of: [console, json]",
}

var FlagDevice = &cli.StringFlag{
	Name:    "device",
	Aliases: []string{"d"},
	Usage:   "path to modem device",
}

var FlagBaud = &cli.IntFlag{
	Name:    "baud",
	Aliases: []string{"b"},
	Usage:   "baud rate",
}

var FlagDialect = &cli.StringFlag{
	Name:  "dialect",
	Usage: "one of: [a76xx, ml307]",
}

var FlagTrace = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Usage:   "log modem interactions",
}

var FlagHost = &cli.StringFlag{
	Name:  "host",
	Usage: "broker host",
}

var FlagPort = &cli.IntFlag{
	Name:  "port",
	Usage: "broker port, 8883 for TLS",
}

var FlagClientID = &cli.StringFlag{
	Name:  "client-id",
	Usage: "MQTT client id (default atmqtt-<uuid>)",
}

var FlagUsername = &cli.StringFlag{
	Name:  "username",
	Usage: "broker username",
}

var FlagPassword = &cli.StringFlag{
	Name:  "password",
	Usage: "broker password",
}

var FlagSession = &cli.IntFlag{
	Name:  "session",
	Usage: "modem MQTT session id",
}

var FlagTopic = &cli.StringFlag{
	Name:     "topic",
	Aliases:  []string{"t"},
	Required: true,
}

var FlagTopics = &cli.StringSliceFlag{
	Name:     "topic",
	Aliases:  []string{"t"},
	Usage:    "topic to subscribe to, may be repeated",
	Required: true,
}

var FlagQoS = &cli.IntFlag{
	Name:    "qos",
	Aliases: []string{"q"},
	Usage:   "QoS level, overriding the config",
	Value:   -1,
}

var FlagMessage = &cli.StringFlag{
	Name:    "message",
	Aliases: []string{"m"},
	Value:   "hello from atmqtt",
}

var FlagCount = &cli.IntFlag{
	Name:  "count",
	Usage: "number of messages to publish",
	Value: 1,
}

var FlagRate = &cli.Float64Flag{
	Name:  "rate",
	Usage: "messages per second",
	Value: 1,
}

var FlagPeriod = &cli.DurationFlag{
	Name:  "period",
	Usage: "time to listen for, or 0 to listen until interrupted",
}

var FlagPoll = &cli.DurationFlag{
	Name:  "poll",
	Usage: "period between signal quality reports",
	Value: 30 * time.Second,
}
