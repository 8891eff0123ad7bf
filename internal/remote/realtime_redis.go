// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package remote

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nesttask/client/internal/platform/constants"
)

// RedisRealtime implements [Realtime] over Redis Pub/Sub.
//
// The backend publishes one message per committed task change on a channel
// scoped to the owning user. Messages carry only the identity of the change
// (table, owner, kind); subscribers are expected to reload, never to patch
// local state from the payload.
type RedisRealtime struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisRealtime wraps an existing Redis client for change subscriptions.
func NewRedisRealtime(client *redis.Client, logger *slog.Logger) *RedisRealtime {
	return &RedisRealtime{client: client, log: logger}
}

// SubscribeTasks implements [Realtime].
//
// ctx bounds the subscription setup only. Delivery runs on a dedicated
// goroutine that outlives the caller's context and ends only through the
// returned cancel function, so a short-lived setup context never kills a
// long-lived subscription. Malformed payloads are logged and skipped; a
// closed subscription channel ends delivery silently.
func (r *RedisRealtime) SubscribeTasks(ctx context.Context, userID string, fn func(ChangeEvent)) (func(), error) {
	channel := constants.RealtimeTaskChannelPrefix + userID

	pubsub := r.client.Subscribe(ctx, channel)

	// Force the subscription onto the wire before returning, so callers
	// never miss events published right after SubscribeTasks returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())

	go func() {
		defer func() { _ = pubsub.Close() }()
		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
					r.log.Warn("realtime_malformed_event",
						slog.String("channel", channel),
						slog.Any("error", err),
					)
					continue
				}
				fn(event)
			}
		}
	}()

	r.log.Info("realtime_subscribed", slog.String("channel", channel))
	return cancel, nil
}
