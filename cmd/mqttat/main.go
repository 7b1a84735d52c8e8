// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// mqttat publishes and subscribes to an MQTT broker using the MQTT client
// built into a cellular modem.
//
// This serves as an example of how to use the mqtt package, as well as
// providing information which may be useful for debugging.
package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/warthog618/atmqtt/config"
)

var version = "undefined"

var Flags = []cli.Flag{
	FlagConfig,
	FlagLogLevel,
	FlagLogFormat,
	FlagDevice,
	FlagBaud,
	FlagDialect,
	FlagTrace,
	FlagHost,
	FlagPort,
	FlagClientID,
	FlagUsername,
	FlagPassword,
	FlagSession,
}

// env is the state shared by the commands, built before any command runs.
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

func main() {
	e := &env{log: zerolog.New(os.Stderr).With().Timestamp().Logger()}
	app := cli.App{
		Name:    "mqttat",
		Usage:   "MQTT over a modem's AT command interface",
		Version: version,
		Flags:   Flags,
		Before:  e.before,
		After:   e.after,
		Commands: []*cli.Command{
			pubCommand(e),
			subCommand(e),
			infoCommand(e),
		},
	}
	if err := app.Run(os.Args); err != nil {
		e.log.Err(err).Msg("mqttat failed")
		os.Exit(1)
	}
}

// before loads the config, overrides it with any flags, and builds the
// logger.
func (e *env) before(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(FlagConfig.Name))
	if err != nil {
		return err
	}
	applyFlags(ctx, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closer, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = log
	e.closer = closer
	return nil
}

func (e *env) after(ctx *cli.Context) error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

func applyFlags(ctx *cli.Context, cfg *config.Config) {
	if ctx.IsSet(FlagLogLevel.Name) {
		cfg.Logging.Level = ctx.String(FlagLogLevel.Name)
	}
	if ctx.IsSet(FlagLogFormat.Name) {
		cfg.Logging.Format = ctx.String(FlagLogFormat.Name)
	}
	if ctx.IsSet(FlagDevice.Name) {
		cfg.Modem.Device = ctx.String(FlagDevice.Name)
	}
	if ctx.IsSet(FlagBaud.Name) {
		cfg.Modem.Baud = ctx.Int(FlagBaud.Name)
	}
	if ctx.IsSet(FlagDialect.Name) {
		cfg.Modem.Dialect = ctx.String(FlagDialect.Name)
	}
	if ctx.IsSet(FlagTrace.Name) {
		cfg.Modem.Trace = ctx.Bool(FlagTrace.Name)
	}
	if ctx.IsSet(FlagHost.Name) {
		cfg.MQTT.Broker.Host = ctx.String(FlagHost.Name)
	}
	if ctx.IsSet(FlagPort.Name) {
		cfg.MQTT.Broker.Port = ctx.Int(FlagPort.Name)
	}
	if ctx.IsSet(FlagClientID.Name) {
		cfg.MQTT.Broker.ClientID = ctx.String(FlagClientID.Name)
	}
	if ctx.IsSet(FlagUsername.Name) {
		cfg.MQTT.Auth.Username = ctx.String(FlagUsername.Name)
	}
	if ctx.IsSet(FlagPassword.Name) {
		cfg.MQTT.Auth.Password = ctx.String(FlagPassword.Name)
	}
	if ctx.IsSet(FlagSession.Name) {
		cfg.MQTT.SessionID = ctx.Int(FlagSession.Name)
	}
}
