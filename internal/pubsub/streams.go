package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fmconsole/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Journal bounds
const (
	DefaultJournalTTL = 24 * time.Hour
	journalMaxLen     = 500
	replayLimit       = 100
)

// Streams keeps a short per-channel journal in Redis Streams so a reconnecting
// console can replay what it missed.
type Streams struct {
	rdb *redis.Client
	log *zap.Logger
	ttl time.Duration
}

func NewStreams(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Streams {
	if ttl <= 0 {
		ttl = DefaultJournalTTL
	}
	return &Streams{rdb: rdb, log: log, ttl: ttl}
}

func streamKey(channel string) string { return "stream:" + channel }
func seqKey(channel string) string    { return "seq:" + channel }
func ackKey(channel, conn string) string {
	return fmt.Sprintf("ack:%s:%s", channel, conn)
}

// PublishEvent appends event to the channel journal and returns its sequence number.
// Sequence numbers start at 1 and increase by one per channel.
func (s *Streams) PublishEvent(ctx context.Context, channel string, event map[string]interface{}) (int64, error) {
	seq, err := s.rdb.Incr(ctx, seqKey(channel)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(channel),
		MaxLen: journalMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"seq":  seq,
			"ts":   time.Now().UTC().Format(time.RFC3339Nano),
			"data": string(data),
		},
	})
	pipe.Expire(ctx, streamKey(channel), s.ttl)
	pipe.Expire(ctx, seqKey(channel), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add to stream: %w", err)
	}

	s.log.Debug("Journaled event", zap.String("channel", channel), zap.Int64("sequence", seq))
	return seq, nil
}

// GetLastSequence returns the last sequence a connection acknowledged on channel
func (s *Streams) GetLastSequence(channel, connectionID string) (int64, error) {
	seqStr, err := s.rdb.Get(context.Background(), ackKey(channel, connectionID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last sequence: %w", err)
	}
	return strconv.ParseInt(seqStr, 10, 64)
}

// AcknowledgeSequence records the last sequence a connection has seen
func (s *Streams) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	if err := s.rdb.Set(context.Background(), ackKey(channel, connectionID), sequence, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge sequence: %w", err)
	}
	return nil
}

// ReplayEvents returns journaled events with a sequence above sinceSeq, oldest first.
func (s *Streams) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]ws.StreamEvent, error) {
	if limit <= 0 || limit > replayLimit {
		limit = replayLimit
	}
	msgs, err := s.rdb.XRange(context.Background(), streamKey(channel), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := make([]ws.StreamEvent, 0)
	for _, msg := range msgs {
		ev, ok := decodeMessage(channel, msg.Values)
		if !ok {
			s.log.Warn("Skipping malformed journal entry", zap.String("channel", channel), zap.String("id", msg.ID))
			continue
		}
		if ev.Sequence <= sinceSeq {
			continue
		}
		events = append(events, ev)
		if int64(len(events)) == limit {
			break
		}
	}
	return events, nil
}

func decodeMessage(channel string, values map[string]interface{}) (ws.StreamEvent, bool) {
	raw, _ := values["data"].(string)
	seqStr, _ := values["seq"].(string)
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil || raw == "" {
		return ws.StreamEvent{}, false
	}
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return ws.StreamEvent{}, false
	}
	ts, _ := values["ts"].(string)
	at, _ := time.Parse(time.RFC3339Nano, ts)
	return ws.StreamEvent{Channel: channel, Sequence: seq, Event: event, Timestamp: at}, true
}
