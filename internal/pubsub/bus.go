package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionChannel is the channel events of one form session are published on
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

type Bus struct {
	rdb     *redis.Client
	log     *zap.Logger
	ctx     context.Context
	wsHub   WSHub
	streams *Streams
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, journalTTL time.Duration, log *zap.Logger) *Bus {
	return &Bus{
		rdb:     rdb,
		log:     log,
		ctx:     context.Background(),
		streams: NewStreams(rdb, journalTTL, log),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the journal used for replay
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// PublishSession publishes an event to a form session's channel
func (b *Bus) PublishSession(sessionID string, event map[string]interface{}) error {
	return b.Publish(SessionChannel(sessionID), event)
}

// Publish sends event to Redis subscribers, the replay journal and local WebSocket
// subscribers. A journal failure is logged and the event is still delivered.
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	seq, err := b.streams.PublishEvent(b.ctx, channel, event)
	if err != nil {
		b.log.Warn("Failed to publish to stream", zap.String("channel", channel), zap.Error(err))
	}

	out := make(map[string]interface{}, len(event)+2)
	for k, v := range event {
		out[k] = v
	}
	out["channel"] = channel
	if seq > 0 {
		out["seq"] = seq
	}

	if b.wsHub != nil {
		b.wsHub.Publish(channel, out)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.Int64("seq", seq))
	return nil
}
