package holds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

const holdKeyPrefix = "slot-hold:"

// acquireScript claims KEYS[1] for ARGV[1] unless another owner holds it.
// A confirmed hold is left untouched.
var acquireScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner')
if owner and owner ~= ARGV[1] then
  return 0
end
if redis.call('HGET', KEYS[1], 'status') == 'confirmed' then
  return 1
end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'status', 'pending', 'start', ARGV[2], 'end', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

var confirmScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner')
if owner and owner ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'status', 'confirmed', 'start', ARGV[2], 'end', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'owner') == ARGV[1] and redis.call('HGET', KEYS[1], 'status') ~= 'confirmed' then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore shares holds between API replicas.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	loc    *time.Location
	now    func() time.Time
}

// NewRedisStore returns nil when client is nil so callers can fall back.
func NewRedisStore(client *redis.Client, loc *time.Location) *RedisStore {
	if client == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("booking.internal.holds"),
		loc:    loc,
		now:    time.Now,
	}
}

func (s *RedisStore) key(h Hold) string {
	return holdKeyPrefix + slots.DayKey(h.Start, s.loc) + ":" + h.SlotID
}

func (s *RedisStore) args(h Hold, ttl time.Duration) []any {
	return []any{
		h.Owner,
		strconv.FormatInt(h.Start.Unix(), 10),
		strconv.FormatInt(h.End.Unix(), 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	}
}

func (s *RedisStore) Acquire(ctx context.Context, h Hold, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "holds.acquire")
	defer span.End()

	ok, err := acquireScript.Run(ctx, s.redis, []string{s.key(h)}, s.args(h, ttl)...).Int()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("holds: acquire %s: %w", h.SlotID, err)
	}
	if ok == 0 {
		return ErrHeld
	}
	return nil
}

func (s *RedisStore) Confirm(ctx context.Context, h Hold) error {
	ctx, span := s.tracer.Start(ctx, "holds.confirm")
	defer span.End()

	ok, err := confirmScript.Run(ctx, s.redis, []string{s.key(h)}, s.args(h, confirmTTL(h, s.now()))...).Int()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("holds: confirm %s: %w", h.SlotID, err)
	}
	if ok == 0 {
		return ErrHeld
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, h Hold) error {
	ctx, span := s.tracer.Start(ctx, "holds.release")
	defer span.End()

	if err := releaseScript.Run(ctx, s.redis, []string{s.key(h)}, h.Owner).Err(); err != nil && err != redis.Nil {
		span.RecordError(err)
		return fmt.Errorf("holds: release %s: %w", h.SlotID, err)
	}
	return nil
}

func (s *RedisStore) Busy(ctx context.Context, day time.Time, exceptOwner string) ([]slots.BusyInterval, error) {
	ctx, span := s.tracer.Start(ctx, "holds.busy")
	defer span.End()

	pattern := holdKeyPrefix + slots.DayKey(day, s.loc) + ":*"
	var out []slots.BusyInterval
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		fields, err := s.redis.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("holds: read %s: %w", iter.Val(), err)
		}
		if len(fields) == 0 {
			// expired between SCAN and HGETALL
			continue
		}
		if exceptOwner != "" && fields["owner"] == exceptOwner {
			continue
		}
		start, errStart := strconv.ParseInt(fields["start"], 10, 64)
		end, errEnd := strconv.ParseInt(fields["end"], 10, 64)
		if errStart != nil || errEnd != nil {
			continue
		}
		out = append(out, slots.BusyInterval{Start: time.Unix(start, 0).In(s.loc), End: time.Unix(end, 0).In(s.loc)})
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("holds: scan %s: %w", pattern, err)
	}
	return out, nil
}
