// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func pubCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "pub",
		Usage: "publish messages to a topic",
		Flags: []cli.Flag{
			FlagTopic,
			FlagMessage,
			FlagQoS,
			FlagCount,
			FlagRate,
		},
		Action: e.pub,
	}
}

func (e *env) pub(cctx *cli.Context) error {
	ctx, cancel := signalContext(cctx.Context)
	defer cancel()
	qos := e.cfg.MQTT.QoS
	if q := cctx.Int(FlagQoS.Name); q >= 0 {
		qos = q
	}
	if qos > 2 {
		return errors.Errorf("invalid qos %d", qos)
	}
	count := cctx.Int(FlagCount.Name)
	topic := cctx.String(FlagTopic.Name)
	msg := cctx.String(FlagMessage.Name)

	m, err := openModem(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer m.Close()
	s, err := m.connect(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, s)

	limiter := rate.NewLimiter(rate.Limit(cctx.Float64(FlagRate.Name)), 1)
	for i := 0; i < count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		payload := msg
		if count > 1 {
			payload = fmt.Sprintf("%s %d", msg, i+1)
		}
		if err := s.Publish(ctx, topic, byte(qos), []byte(payload)); err != nil {
			return err
		}
		e.log.Info().Str("topic", topic).Int("seq", i+1).Msg("published")
	}
	return nil
}
