package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix  = "credara:session:"
	userSessionPrefix = "credara:user_sessions:"
)

// RedisSessions is the production session store. Sessions live under a TTL
// matching their expiry, so Redis evicts dead sessions on its own; a per-user
// set backs bulk revocation on password change.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (s *RedisSessions) Create(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrInvalidState
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.ID.String(), payload, ttl)
	pipe.SAdd(ctx, userSessionPrefix+sess.UserID.String(), sess.ID.String())
	pipe.Expire(ctx, userSessionPrefix+sess.UserID.String(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Find(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return &sess, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, sessionID id.SessionID) error {
	sess, err := s.Find(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID.String())
	pipe.SRem(ctx, userSessionPrefix+sess.UserID.String(), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisSessions) RevokeAllForUser(ctx context.Context, userID id.ProfileID) error {
	setKey := userSessionPrefix + userID.String()
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, member := range members {
		pipe.Del(ctx, sessionKeyPrefix+member)
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}
