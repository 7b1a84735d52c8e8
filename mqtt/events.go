// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import (
	"context"
	"sync"
	"time"
)

// eventBits is a set of session events.
type eventBits uint32

const (
	eventInitialized eventBits = 1 << iota
	eventConnected
	eventDisconnected
)

// events is a set of event bits that may be waited on.
//
// Bits are set from the URC handler and consumed by the waiter.
// Once closed, the events can no longer be set and all waits fail.
type events struct {
	mu      sync.Mutex
	bits    eventBits
	changed chan struct{} // closed and replaced whenever bits are set
	closed  bool
}

func newEvents() *events {
	return &events{changed: make(chan struct{})}
}

func (e *events) set(b eventBits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.bits |= b
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *events) clear(b eventBits) {
	e.mu.Lock()
	e.bits &^= b
	e.mu.Unlock()
}

// wait waits for any of the bits in mask to be set.
//
// The bits that were set are cleared and returned.
// Returns 0 if the timeout expires, the ctx is done, or the events are closed.
func (e *events) wait(ctx context.Context, mask eventBits, timeout time.Duration) eventBits {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		e.mu.Lock()
		if got := e.bits & mask; got != 0 {
			e.bits &^= got
			e.mu.Unlock()
			return got
		}
		if e.closed {
			e.mu.Unlock()
			return 0
		}
		changed := e.changed
		e.mu.Unlock()
		select {
		case <-changed:
		case <-timer.C:
			return 0
		case <-ctx.Done():
			return 0
		}
	}
}

func (e *events) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.changed)
}
