// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/warthog618/atmqtt/info"
	"github.com/warthog618/atmqtt/mqtt"
	"golang.org/x/sync/errgroup"
)

var errConnectionLost = errors.New("connection lost")

func subCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sub",
		Usage: "subscribe to topics and print received messages",
		Flags: []cli.Flag{
			FlagTopics,
			FlagQoS,
			FlagPeriod,
			FlagPoll,
		},
		Action: e.sub,
	}
}

func (e *env) sub(cctx *cli.Context) error {
	ctx, cancel := signalContext(cctx.Context)
	defer cancel()
	if period := cctx.Duration(FlagPeriod.Name); period > 0 {
		ctx, cancel = context.WithTimeout(ctx, period)
		defer cancel()
	}
	qos := e.cfg.MQTT.QoS
	if q := cctx.Int(FlagQoS.Name); q >= 0 {
		qos = q
	}

	m, err := openModem(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer m.Close()

	lost := make(chan struct{})
	topicColor := color.New(color.FgCyan).SprintFunc()
	s, err := m.connect(ctx, e.cfg,
		mqtt.WithMessageHandler(func(topic string, payload []byte) {
			fmt.Printf("%s %s\n", topicColor(topic), payload)
		}),
		mqtt.WithDisconnectHandler(func() {
			select {
			case <-lost:
			default:
				close(lost)
			}
		}))
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, s)

	for _, topic := range cctx.StringSlice(FlagTopics.Name) {
		if err := s.Subscribe(ctx, topic, byte(qos)); err != nil {
			return err
		}
		e.log.Info().Str("topic", topic).Int("qos", qos).Msg("subscribed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-lost:
			return errConnectionLost
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		return m.pollSignal(gctx, cctx.Duration(FlagPoll.Name))
	})
	return g.Wait()
}

// pollSignal periodically logs the signal quality until ctx is done.
func (m *modem) pollSignal(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return nil
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rssi, err := m.signalQuality(ctx)
			if err != nil {
				m.log.Warn().Err(err).Msg("signal quality unavailable")
				continue
			}
			m.log.Info().Int("rssi", rssi).Msg("signal quality")
		}
	}
}

// signalQuality returns the RSSI index reported by +CSQ, where 99 is
// unknown.
func (m *modem) signalQuality(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	lines, err := m.at.Command(ctx, "+CSQ")
	if err != nil {
		return 0, err
	}
	for _, l := range lines {
		if !info.HasPrefix(l, "+CSQ") {
			continue
		}
		_, args := info.Split(l)
		if len(args) > 0 && args[0].IsInt {
			return args[0].Int, nil
		}
	}
	return 0, errors.New("malformed +CSQ response")
}
