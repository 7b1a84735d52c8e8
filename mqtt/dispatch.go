// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// dispatcher calls session callbacks, in order, from its own goroutine so
// that a slow callback does not stall the processing of URCs.
//
// The queue is bounded, so once full a slow callback does hold up URC
// processing.
type dispatcher struct {
	queue chan func()
	done  chan struct{}
	wg    conc.WaitGroup
	log   zerolog.Logger
}

func newDispatcher(size int, log zerolog.Logger) *dispatcher {
	d := &dispatcher{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
		log:   log,
	}
	d.wg.Go(d.run)
	return d
}

func (d *dispatcher) run() {
	for {
		select {
		case f := <-d.queue:
			d.call(f)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) call(f func()) {
	var pc panics.Catcher
	pc.Try(f)
	if r := pc.Recovered(); r != nil {
		d.log.Error().Str("panic", fmt.Sprint(r.Value)).Msg("callback panicked")
	}
}

// post queues f to be called.
//
// Returns false if the dispatcher is closed.
func (d *dispatcher) post(f func()) bool {
	select {
	case <-d.done:
		return false
	case d.queue <- f:
		return true
	}
}

// close stops the dispatcher, discarding any queued callbacks, and waits for
// any callback in progress to return.
func (d *dispatcher) close() {
	close(d.done)
	d.wg.Wait()
}
