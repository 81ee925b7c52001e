package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch is returned by RotateRefreshHash when the
// presented hash does not match the stored one. The session has already
// been revoked by the time the caller sees this error.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable wraps transport-level Redis failures so callers can
// distinguish infrastructure faults from token outcomes.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no record exists for a session ID.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when the record exists but its expiry has
// passed. The record is deleted as a side effect.
var ErrSessionExpired = errors.New("session expired")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const (
	fieldUserID      = "uid"
	fieldEmail       = "email"
	fieldRefreshHash = "rh"
	fieldCreatedAt   = "ca"
	fieldExpiresAt   = "ea"
)

// rotateRefreshScript performs the compare-and-swap at the heart of
// refresh rotation. Exactly one concurrent caller presenting the current
// hash observes status 3; every other caller gets a terminal status and,
// on mismatch or expiry, finds the record already deleted.
const rotateRefreshScript = `
local session_key = KEYS[1]
local session_id = ARGV[1]
local user_prefix = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local fields = redis.call("HMGET", session_key, "uid", "email", "rh", "ca", "ea")
local user_id = fields[1]
if not user_id then
  return {0}
end

local user_key = user_prefix .. user_id
local expires_at = tonumber(fields[5])

if expires_at <= now_unix then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {1}
end

if fields[3] ~= provided_hash then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {2}
end

local ttl = redis.call("PTTL", session_key)
if ttl <= 0 then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {1}
end

redis.call("HSET", session_key, "rh", next_hash)
return {3, user_id, fields[2], fields[4], fields[5]}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

const deleteSessionScript = `
local fields = redis.call("HMGET", KEYS[1], "uid")
local user_id = fields[1]
if not user_id then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. user_id, ARGV[1])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists refresh sessions in Redis hashes and maintains a
// per-user index set so all of a user's sessions can be revoked at once.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a [Store] backed by the given Redis client. prefix
// namespaces the session keys; now supplies the clock used for expiry
// decisions and defaults to time.Now when nil.
func NewStore(client redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Save persists the session with the given TTL and adds it to the user's
// session index.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	key := s.key(sess.SessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, sess.UserID,
			fieldEmail, sess.Email,
			fieldRefreshHash, string(sess.RefreshHash[:]),
			fieldCreatedAt, sess.CreatedAt,
			fieldExpiresAt, sess.ExpiresAt,
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by ID. Expired records are deleted on read and
// reported as ErrSessionExpired.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HMGet(ctx, s.key(sessionID),
		fieldUserID, fieldEmail, fieldRefreshHash, fieldCreatedAt, fieldExpiresAt,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := sessionFromFields(sessionID, fields)
	if err != nil {
		return nil, err
	}

	if sess.ExpiresAt <= s.now().Unix() {
		if err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		sessionID,
		s.userPrefix(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session tracked for the user.
//
// The read and delete phases are separate commands, so a session created
// between them survives this call. It will be caught by its natural
// expiry or by the next DeleteAllForUser.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns the tracked session IDs for a user.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// RotateRefreshHash atomically swaps the stored refresh hash using a Lua
// compare-and-swap. On success it returns the session as it was before
// rotation, with the new hash installed. On mismatch or expiry the record
// has been deleted and the matching sentinel error is returned.
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		sessionID,
		s.userPrefix(),
		providedHash[:],
		nextHash[:],
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrSessionNotFound
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) != 5 {
			return nil, fmt.Errorf("%w: short rotate script response", ErrRedisUnavailable)
		}

		sess := &Session{SessionID: sessionID, RefreshHash: nextHash}
		var convErr error
		if sess.UserID, convErr = scriptString(parts[1]); convErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, convErr)
		}
		if sess.Email, convErr = scriptString(parts[2]); convErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, convErr)
		}
		if sess.CreatedAt, convErr = scriptInt64(parts[3]); convErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, convErr)
		}
		if sess.ExpiresAt, convErr = scriptInt64(parts[4]); convErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, convErr)
		}
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, code)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func sessionFromFields(sessionID string, fields []interface{}) (*Session, error) {
	if len(fields) != 5 || fields[0] == nil {
		return nil, ErrSessionNotFound
	}

	sess := &Session{SessionID: sessionID}
	var err error
	if sess.UserID, err = scriptString(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if sess.Email, err = scriptString(fields[1]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rawHash, err := scriptString(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(rawHash) != len(sess.RefreshHash) {
		return nil, fmt.Errorf("%w: malformed refresh hash field", ErrRedisUnavailable)
	}
	copy(sess.RefreshHash[:], rawHash)

	if sess.CreatedAt, err = scriptInt64(fields[3]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if sess.ExpiresAt, err = scriptInt64(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

func scriptString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("unexpected reply type %T", v)
	}
}

func scriptInt64(v interface{}) (int64, error) {
	str, err := scriptString(v)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected numeric reply %q", str)
	}
	return n, nil
}
