package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/core"
)

// DefaultChannel is the pub/sub channel shared by all web instances.
const DefaultChannel = "fintrack:changes"

// RedisBridge relays change events between web instances. Local writes are
// published with this instance's id as origin; events from other instances
// are handed to the local notifier (hub and cache invalidation).
type RedisBridge struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	local      core.Notifier
	logger     *slog.Logger
}

var _ core.Notifier = (*RedisBridge)(nil)

func NewRedisBridge(client redis.UniversalClient, channel, instanceID string, local core.Notifier, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		local:      local,
		logger:     logger,
	}
}

// Notify publishes ev for the other instances.
func (b *RedisBridge) Notify(ctx context.Context, ev core.ChangeEvent) error {
	ev.Origin = b.instanceID
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and blocks until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("Listening for remote change events", "channel", b.channel, "instance_id", b.instanceID)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, payload string) {
	var ev core.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("Discarding malformed change event", "error", err)
		return
	}
	if ev.Origin == b.instanceID || ev.OwnerID == "" {
		return
	}
	if err := b.local.Notify(ctx, ev); err != nil {
		b.logger.Warn("Local delivery of remote change failed", "error", err, "owner_id", ev.OwnerID)
	}
}
