// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// commands reporting the modem identity and network registration, on which
// the MQTT client depends.
var infoCmds = []string{
	"I",
	"+GCAP",
	"+CGMI",
	"+CGMM",
	"+CGMR",
	"+CGSN",
	"+CSQ",
	"+CIMI",
	"+CPIN?",
	"+CREG?",
	"+CEREG?",
	"+CGATT?",
	"+CGPADDR",
	"+CCLK?",
}

// and the MQTT state for each dialect.
var dialectInfoCmds = map[string][]string{
	"a76xx": {"+CMQTTDISC?"},
	"ml307": {"+MQTTCFG?"},
}

func infoCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "display information about the modem and its MQTT state",
		Action: e.info,
	}
}

func (e *env) info(cctx *cli.Context) error {
	ctx, cancel := signalContext(cctx.Context)
	defer cancel()
	m, err := openModem(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer m.Close()
	cmds := append(infoCmds, dialectInfoCmds[e.cfg.Modem.Dialect]...)
	for _, cmd := range cmds {
		cmdCtx, cancel := context.WithTimeout(ctx, e.cfg.Modem.CommandTimeout)
		info, err := m.at.Command(cmdCtx, cmd)
		cancel()
		fmt.Println("AT" + cmd)
		if err != nil {
			fmt.Printf(" %s\n", err)
			continue
		}
		for _, l := range info {
			fmt.Printf(" %s\n", l)
		}
	}
	return nil
}
