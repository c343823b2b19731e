// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// RedisSessionStore implements [SessionStore] using Redis.
//
// # Key Layout
//
//   - auth:session:<id>           JSON [Session], key TTL = sliding window
//   - auth:user_sessions:<userID> SET of session ids, for revoke-all
//
// The per-user set may briefly list ids whose record already expired;
// DestroyUser deletes them anyway, which is harmless.
type RedisSessionStore struct {
	client   *redis.Client
	timeouts dberr.Timeouts
}

// NewRedisSessionStore creates a new Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client, timeouts dberr.Timeouts) *RedisSessionStore {
	return &RedisSessionStore{client: client, timeouts: timeouts}
}

// refreshScript rewrites the record only while it still exists (SET XX) and
// re-links it to its user in the same server-side step.
//
// KEYS[1] session key, KEYS[2] user index key.
// ARGV[1] payload, ARGV[2] ttl in milliseconds, ARGV[3] session id.
var refreshScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'XX', 'PX', ARGV[2]) then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[2])
return 1
`)

func sessionKey(id string) string {
	return constants.RedisPrefixSession + id
}

func userSessionsKey(userID string) string {
	return constants.RedisPrefixUserSessions + userID
}

/*
Get retrieves a session record.

Returns:
  - *Session: decoded record
  - error: [ErrSessionNotFound] if the key is absent or expired
*/
func (store *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	callCtx, cancel := store.timeouts.Read(ctx)
	defer cancel()

	payload, err := store.client.Get(callCtx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, dberr.Wrap(err, "redis_session_get")
	}

	session := &Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("redis_session_decode_failed: %w", err)
	}
	return session, nil
}

/*
Set writes the record and indexes it under its user in one MULTI/EXEC.
*/
func (store *RedisSessionStore) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_session_encode_failed: %w", err)
	}

	callCtx, cancel := store.timeouts.Write(ctx)
	defer cancel()

	userKey := userSessionsKey(session.UserID)
	_, err = store.client.TxPipelined(callCtx, func(pipe redis.Pipeliner) error {
		pipe.Set(callCtx, sessionKey(session.ID), payload, ttl)
		pipe.SAdd(callCtx, userKey, session.ID)
		pipe.Expire(callCtx, userKey, ttl)
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, "redis_session_set")
	}
	return nil
}

/*
Refresh slides an existing record. A record deleted by Destroy or DestroyUser
stays deleted: the script writes nothing and [ErrSessionNotFound] is returned.
*/
func (store *RedisSessionStore) Refresh(ctx context.Context, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_session_encode_failed: %w", err)
	}

	callCtx, cancel := store.timeouts.Write(ctx)
	defer cancel()

	keys := []string{sessionKey(session.ID), userSessionsKey(session.UserID)}
	refreshed, err := refreshScript.Run(callCtx, store.client, keys, payload, ttl.Milliseconds(), session.ID).Int()
	if err != nil {
		return dberr.Wrap(err, "redis_session_refresh")
	}
	if refreshed == 0 {
		return ErrSessionNotFound
	}
	return nil
}

/*
Destroy deletes a session and unlinks it from its user's index.
*/
func (store *RedisSessionStore) Destroy(ctx context.Context, id string) error {
	session, err := store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	callCtx, cancel := store.timeouts.Write(ctx)
	defer cancel()

	_, err = store.client.TxPipelined(callCtx, func(pipe redis.Pipeliner) error {
		pipe.Del(callCtx, sessionKey(id))
		pipe.SRem(callCtx, userSessionsKey(session.UserID), id)
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, "redis_session_destroy")
	}
	return nil
}

/*
DestroyUser deletes every session listed in the user's index, then the index.
*/
func (store *RedisSessionStore) DestroyUser(ctx context.Context, userID string) error {
	callCtx, cancel := store.timeouts.Write(ctx)
	defer cancel()

	userKey := userSessionsKey(userID)
	ids, err := store.client.SMembers(callCtx, userKey).Result()
	if err != nil {
		return dberr.Wrap(err, "redis_session_list_user")
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userKey)

	if err := store.client.Del(callCtx, keys...).Err(); err != nil {
		return dberr.Wrap(err, "redis_session_destroy_user")
	}
	return nil
}
