// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

// Package offline tracks network reachability as a two-state signal.
//
// # Architecture
//
// The browser original derived this from connectivity events. The Go core
// has two inputs instead: an embedding UI may drive [Detector.SetState]
// directly, and an optional prober pings the remote service health endpoint
// on an interval. Consumers subscribe for change notifications and read the
// current state; they never mutate it.
package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the two-valued reachability signal.
type State int

const (
	// Online means the remote service is assumed reachable.
	Online State = iota
	// Offline means server reachability is assumed absent. Task mutations
	// are gated on this value.
	Offline
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

// Pinger is the minimal health probe the detector needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Detector owns the reachability state and fans out change notifications.
//
// # Concurrency
//
// Safe for concurrent use. Subscriber callbacks are invoked synchronously on
// the goroutine that flips the state, one transition at a time.
type Detector struct {
	mu          sync.Mutex
	state       State
	subscribers []func(State)
	log         *slog.Logger
}

// NewDetector creates a detector that starts Online.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{state: Online, log: logger}
}

// State returns the current reachability state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Offline reports whether the current state is [Offline].
func (d *Detector) Offline() bool {
	return d.State() == Offline
}

// Subscribe registers a callback invoked on every state transition.
// Callbacks are not invoked for the initial state.
func (d *Detector) Subscribe(fn func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// SetState flips the reachability state. Setting the current state again is
// a no-op; subscribers only hear transitions.
func (d *Detector) SetState(next State) {
	d.mu.Lock()
	if d.state == next {
		d.mu.Unlock()
		return
	}
	d.state = next
	subscribers := make([]func(State), len(d.subscribers))
	copy(subscribers, d.subscribers)
	d.mu.Unlock()

	d.log.Info("connectivity_changed", slog.String("state", next.String()))

	for _, fn := range subscribers {
		fn(next)
	}
}

// Probe pings the remote service on the given interval and flips the state
// according to the result. It blocks until ctx is cancelled, so it is
// usually run on its own goroutine.
func (d *Detector) Probe(ctx context.Context, pinger Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pinger.Ping(ctx); err != nil {
				d.SetState(Offline)
			} else {
				d.SetState(Online)
			}
		}
	}
}
