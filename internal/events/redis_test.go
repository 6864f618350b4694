package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBus(t *testing.T) *RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisBus(rdb, nil)
}

func TestRedisBus_SubscriberReceivesPublishedEvent(t *testing.T) {
	bus := newRedisBus(t)
	ctx := context.Background()

	sub, cancel, err := bus.Subscribe(ctx, 100)
	require.NoError(t, err)
	defer cancel()

	other, cancelOther, err := bus.Subscribe(ctx, 200)
	require.NoError(t, err)
	defer cancelOther()

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, bus.Publish(ctx, Event{
		Type:          TypeCallStarted,
		AppointmentID: 100,
		CallID:        1,
		Status:        "ongoing",
		ActorRole:     "doctor",
		OccurredAt:    at,
	}))

	select {
	case e := <-sub:
		assert.Equal(t, TypeCallStarted, e.Type)
		assert.Equal(t, int64(1), e.CallID)
		assert.Equal(t, "doctor", e.ActorRole)
		assert.True(t, at.Equal(e.OccurredAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case e := <-other:
		t.Fatalf("event leaked to another appointment: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisBus_CancelClosesChannel(t *testing.T) {
	bus := newRedisBus(t)

	sub, cancel, err := bus.Subscribe(context.Background(), 100)
	require.NoError(t, err)
	cancel()
	cancel()

	select {
	case _, open := <-sub:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
