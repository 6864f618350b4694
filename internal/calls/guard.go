package calls

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telehealth-calls/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CreateGuard serializes room creation per appointment across API instances.
// Acquire returns ErrCreateInProgress when another create holds the guard.
type CreateGuard interface {
	Acquire(ctx context.Context, appointmentID int64) (release func(), err error)
}

// RedisGuard holds a short Redis lease for the duration of one create.
// The lease TTL covers a crashed holder; the database index still backs it.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, log: log}
}

func (g *RedisGuard) Acquire(ctx context.Context, appointmentID int64) (func(), error) {
	key := fmt.Sprintf("calls:create:%d", appointmentID)
	owner := uuid.NewString()

	ok, err := utils.AcquireLease(ctx, g.rdb, key, owner, g.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCreateInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseLease(ctx, g.rdb, key, owner); err != nil {
			g.log.Warn("release create guard", "appointment_id", appointmentID, "err", err)
		}
	}, nil
}

type noopGuard struct{}

func (noopGuard) Acquire(ctx context.Context, appointmentID int64) (func(), error) {
	return func() {}, nil
}
