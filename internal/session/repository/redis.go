package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sessionguard/internal/platform/storage"
	"sessionguard/internal/session/domain"
)

// Key layout under the prefix:
//
//	tok:<token>   hash {u: user id, d: device id, e: expiration unix ms}, expires with the session
//	user:<user>   hash device id -> current token (one field per slot; "" is the default slot)
//	dev:<device>  set of user ids with a session bound to the device
//
// The two index keys expire at the latest expiration of the sessions they point to.
//
// Every mutation runs as a Lua script so it is atomic on the server.

var upsertScript = redis.NewScript(`
local function extend(key, at)
  local ttl = redis.call('PTTL', key)
  if ttl < 0 then
    redis.call('PEXPIREAT', key, at)
    return
  end
  local t = redis.call('TIME')
  local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
  if now + ttl < tonumber(at) then
    redis.call('PEXPIREAT', key, at)
  end
end
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old then
  redis.call('DEL', ARGV[5] .. 'tok:' .. old)
end
redis.call('HSET', KEYS[2], 'u', ARGV[3], 'd', ARGV[1], 'e', ARGV[4])
redis.call('PEXPIREAT', KEYS[2], ARGV[4])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
extend(KEYS[1], ARGV[4])
if ARGV[1] ~= '' then
  redis.call('SADD', KEYS[3], ARGV[3])
  extend(KEYS[3], ARGV[4])
end
return 1
`)

var deleteTokenScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'u', 'd', 'e')
if not v[1] then
  return false
end
redis.call('DEL', KEYS[1])
local uk = ARGV[1] .. 'user:' .. v[1]
if redis.call('HGET', uk, v[2]) == ARGV[2] then
  redis.call('HDEL', uk, v[2])
end
return v
`)

var deleteUserScript = redis.NewScript(`
local m = redis.call('HGETALL', KEYS[1])
local n = 0
for i = 1, #m, 2 do
  n = n + redis.call('DEL', ARGV[1] .. 'tok:' .. m[i + 1])
  if m[i] ~= '' then
    redis.call('SREM', ARGV[1] .. 'dev:' .. m[i], ARGV[2])
  end
end
redis.call('DEL', KEYS[1])
return n
`)

var deleteDeviceScript = redis.NewScript(`
local users = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, u in ipairs(users) do
  local uk = ARGV[1] .. 'user:' .. u
  local t = redis.call('HGET', uk, ARGV[2])
  if t then
    n = n + redis.call('DEL', ARGV[1] .. 'tok:' .. t)
    redis.call('HDEL', uk, ARGV[2])
  end
end
redis.call('DEL', KEYS[1])
return n
`)

// RedisRepository stores sessions in Redis. Token keys carry a PEXPIREAT so Redis purges them itself.
// The scripts touch keys derived inside Lua, so the repository needs a single-node (or single-slot) deployment.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a session repository on client. prefix namespaces every key (e.g. "sessionguard:").
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) tokenKey(token string) string { return r.prefix + "tok:" + token }
func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }
func (r *RedisRepository) deviceKey(deviceID string) string {
	return r.prefix + "dev:" + deviceID
}

// GetByToken returns the session for token, or nil if not found.
func (r *RedisRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, storage.Unavailable("sessions.get", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return sessionFromFields(token, fields["u"], fields["d"], fields["e"])
}

// Upsert replaces the slot's token and expiry atomically.
func (r *RedisRepository) Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	expMs := s.ExpirationDate.UnixMilli()
	keys := []string{r.userKey(s.UserID), r.tokenKey(s.Token), r.deviceKey(s.DeviceID)}
	if err := upsertScript.Run(ctx, r.client, keys, s.DeviceID, s.Token, s.UserID, expMs, r.prefix).Err(); err != nil {
		return nil, storage.Unavailable("sessions.upsert", err)
	}
	stored := *s
	stored.ExpirationDate = time.UnixMilli(expMs).UTC()
	return &stored, nil
}

// DeleteByToken removes the session and its slot pointer, returning the removed session or nil.
func (r *RedisRepository) DeleteByToken(ctx context.Context, token string) (*domain.Session, error) {
	vals, err := deleteTokenScript.Run(ctx, r.client, []string{r.tokenKey(token)}, r.prefix, token).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storage.Unavailable("sessions.delete", err)
	}
	if len(vals) != 3 {
		return nil, storage.Unavailable("sessions.delete", errors.New("unexpected script reply"))
	}
	return sessionFromFields(token, vals[0], vals[1], vals[2])
}

// DeleteByUser removes every session of userID. Only sessions whose token key still existed are counted.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	n, err := deleteUserScript.Run(ctx, r.client, []string{r.userKey(userID)}, r.prefix, userID).Int()
	if err != nil {
		return 0, storage.Unavailable("sessions.delete_by_user", err)
	}
	return n, nil
}

// DeleteByDevice removes every session bound to deviceID.
func (r *RedisRepository) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	n, err := deleteDeviceScript.Run(ctx, r.client, []string{r.deviceKey(deviceID)}, r.prefix, deviceID).Int()
	if err != nil {
		return 0, storage.Unavailable("sessions.delete_by_device", err)
	}
	return n, nil
}

// DeleteExpired is a no-op: token keys expire in Redis at their expiration instant.
func (r *RedisRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func sessionFromFields(token, userID, deviceID, expMs string) (*domain.Session, error) {
	ms, err := strconv.ParseInt(expMs, 10, 64)
	if err != nil {
		return nil, storage.Unavailable("sessions.decode", err)
	}
	return &domain.Session{
		Token:          token,
		UserID:         userID,
		DeviceID:       deviceID,
		ExpirationDate: time.UnixMilli(ms).UTC(),
	}, nil
}
