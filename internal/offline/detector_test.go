// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package offline_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nesttask/client/internal/offline"
)

func newDetector() *offline.Detector {
	return offline.NewDetector(slog.Default())
}

/*
TestDetector_StartsOnline verifies the initial state.
*/
func TestDetector_StartsOnline(t *testing.T) {
	d := newDetector()
	assert.Equal(t, offline.Online, d.State())
	assert.False(t, d.Offline())
}

/*
TestDetector_TransitionsNotifySubscribers verifies that subscribers hear
each transition exactly once and that repeated sets are suppressed.
*/
func TestDetector_TransitionsNotifySubscribers(t *testing.T) {
	d := newDetector()

	var seen []offline.State
	d.Subscribe(func(s offline.State) { seen = append(seen, s) })

	d.SetState(offline.Offline)
	d.SetState(offline.Offline) // duplicate, must not notify
	d.SetState(offline.Online)

	assert.Equal(t, []offline.State{offline.Offline, offline.Online}, seen)
	assert.Equal(t, offline.Online, d.State())
}
