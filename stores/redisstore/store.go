// Package redisstore keeps refresh token ids in Redis so several processes
// can share them.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-jwtauth"
)

const defaultPrefix = "jwtauth"

// Store is an auth.RefreshStore backed by Redis. Each token id is a key
// holding its subject and expiring with the token. A set per subject tracks
// the ids issued to it.
type Store struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

var _ auth.RefreshStore = (*Store)(nil)

// New returns a store using client. An empty prefix defaults to "jwtauth".
func New(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source used to compute key TTLs.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) tokenKey(tokenID string) string {
	return s.prefix + ":refresh:" + tokenID
}

func (s *Store) subjectKey(subject string) string {
	return s.prefix + ":subject:" + subject
}

// Store records tokenID for subject until expiresAt.
func (s *Store) Store(ctx context.Context, subject, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(tokenID), subject, ttl)
		pipe.SAdd(ctx, s.subjectKey(subject), tokenID)
		pipe.Expire(ctx, s.subjectKey(subject), ttl)
		return nil
	})
	return err
}

// Exists reports whether tokenID is stored for subject.
func (s *Store) Exists(ctx context.Context, subject, tokenID string) (bool, error) {
	stored, err := s.client.Get(ctx, s.tokenKey(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == subject, nil
}

// Revoke deletes tokenID when it belongs to subject.
func (s *Store) Revoke(ctx context.Context, subject, tokenID string) error {
	ok, err := s.Exists(ctx, subject, tokenID)
	if err != nil || !ok {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tokenKey(tokenID))
		pipe.SRem(ctx, s.subjectKey(subject), tokenID)
		return nil
	})
	return err
}

// RevokeSubject deletes every refresh token issued to subject, e.g. after a
// password change.
func (s *Store) RevokeSubject(ctx context.Context, subject string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.tokenKey(id))
	}
	keys = append(keys, s.subjectKey(subject))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(ids), nil
}
