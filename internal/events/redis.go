package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes call events on Redis pub/sub so every API instance
// can serve event streams for any appointment.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, prefix: "calls:appointment:", log: log}
}

func (b *RedisBus) channel(appointmentID int64) string {
	return fmt.Sprintf("%s%d", b.prefix, appointmentID)
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(e.AppointmentID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, appointmentID int64) (<-chan Event, func(), error) {
	ps := b.rdb.Subscribe(ctx, b.channel(appointmentID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.log.Warn("drop malformed call event", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}
