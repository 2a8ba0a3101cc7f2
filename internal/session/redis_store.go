package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON under sess:<id> with the session TTL.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: "sess:",
	}
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return errors.New("session id is required")
	}
	if s.rdb == nil {
		return errors.New("redis session store not configured")
	}

	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.rdb.Set(ctx, s.prefix+sess.ID, val, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if s.rdb == nil {
		return nil, errors.New("redis session store not configured")
	}

	val, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		// corrupt entry, treat as gone
		_ = s.rdb.Del(ctx, s.prefix+id).Err()
		return nil, ErrNotFound
	}
	sess.ID = id
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if s.rdb == nil {
		return errors.New("redis session store not configured")
	}
	return s.rdb.Del(ctx, s.prefix+id).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if s.rdb == nil {
		return errors.New("redis session store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}
