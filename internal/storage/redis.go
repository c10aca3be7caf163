package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ashish9731/email-responder/internal/models"
)

const (
	redisPrefix        = "responder:"
	redisCaseKey       = redisPrefix + "case:"
	redisCaseIndex     = redisPrefix + "cases"
	redisCaseByNumber  = redisPrefix + "cases:by_number"
	redisCaseSeq       = redisPrefix + "cases:seq"
	redisKeywordKey    = redisPrefix + "keyword:"
	redisKeywordIndex  = redisPrefix + "keywords"
	redisKeywordByText = redisPrefix + "keywords:by_text"
	redisConfigKey     = redisPrefix + "configuration"
	redisStatusKey     = redisPrefix + "status"
	maxWatchRetries    = 5
)

// RedisStore implements Store on a Redis server. Each record is a JSON value;
// sorted sets keep creation order and hashes index the unique fields.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the server at url (redis://...)
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (*T, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &v, nil
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	return string(raw), nil
}

// watch runs fn in an optimistic transaction on keys, retrying on conflicts
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, redis.TxFailedErr)
}

func (s *RedisStore) CreateCase(ctx context.Context, nc models.NewCase) (*models.Case, error) {
	seq, err := s.client.Incr(ctx, redisCaseSeq).Result()
	if err != nil {
		return nil, fmt.Errorf("allocating case sequence: %w", err)
	}

	c := newCaseRecord(nc, int(seq), now())
	value, err := marshal(c)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisCaseKey+c.ID, value, 0)
		p.ZAdd(ctx, redisCaseIndex, redis.Z{Score: float64(seq), Member: c.ID})
		p.HSet(ctx, redisCaseByNumber, c.CaseNumber, c.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating case: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) GetCase(ctx context.Context, id string) (*models.Case, error) {
	return getJSON[models.Case](ctx, s.client, redisCaseKey+id)
}

func (s *RedisStore) GetCaseByNumber(ctx context.Context, number string) (*models.Case, error) {
	id, err := s.client.HGet(ctx, redisCaseByNumber, number).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up case %s: %w", number, err)
	}
	return s.GetCase(ctx, id)
}

func (s *RedisStore) ListCases(ctx context.Context) ([]models.Case, error) {
	ids, err := s.client.ZRevRange(ctx, redisCaseIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	cases := make([]models.Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCase(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, nil
}

func (s *RedisStore) UpdateCase(ctx context.Context, id string, u models.CaseUpdate) (*models.Case, error) {
	key := redisCaseKey + id
	var updated *models.Case
	err := s.watch(ctx, func(tx *redis.Tx) error {
		c, err := getJSON[models.Case](ctx, tx, key)
		if err != nil {
			return err
		}
		if err := applyCaseUpdate(c, u, now()); err != nil {
			return err
		}
		value, err := marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, value, 0)
			return nil
		})
		updated = c
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisStore) AddKeyword(ctx context.Context, text string, active bool) (*models.Keyword, error) {
	k, err := newKeywordRecord(text, active, now())
	if err != nil {
		return nil, err
	}

	claimed, err := s.client.HSetNX(ctx, redisKeywordByText, k.Keyword, k.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming keyword: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicate
	}

	value, err := marshal(k)
	if err != nil {
		return nil, err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeywordKey+k.ID, value, 0)
		p.ZAdd(ctx, redisKeywordIndex, redis.Z{Score: float64(k.CreatedAt.UnixNano()), Member: k.ID})
		return nil
	})
	if err != nil {
		s.client.HDel(ctx, redisKeywordByText, k.Keyword)
		return nil, fmt.Errorf("creating keyword: %w", err)
	}
	return &k, nil
}

func (s *RedisStore) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	ids, err := s.client.ZRevRange(ctx, redisKeywordIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing keywords: %w", err)
	}
	keywords := make([]models.Keyword, 0, len(ids))
	for _, id := range ids {
		k, err := getJSON[models.Keyword](ctx, s.client, redisKeywordKey+id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *k)
	}
	return keywords, nil
}

func (s *RedisStore) GetKeywordByText(ctx context.Context, text string) (*models.Keyword, error) {
	id, err := s.client.HGet(ctx, redisKeywordByText, text).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up keyword: %w", err)
	}
	return getJSON[models.Keyword](ctx, s.client, redisKeywordKey+id)
}

func (s *RedisStore) UpdateKeyword(ctx context.Context, id string, active bool) (*models.Keyword, error) {
	key := redisKeywordKey + id
	var updated *models.Keyword
	err := s.watch(ctx, func(tx *redis.Tx) error {
		k, err := getJSON[models.Keyword](ctx, tx, key)
		if err != nil {
			return err
		}
		k.IsActive = active
		value, err := marshal(k)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, value, 0)
			return nil
		})
		updated = k
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisStore) RemoveKeyword(ctx context.Context, id string) error {
	key := redisKeywordKey + id
	return s.watch(ctx, func(tx *redis.Tx) error {
		k, err := getJSON[models.Keyword](ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.ZRem(ctx, redisKeywordIndex, id)
			p.HDel(ctx, redisKeywordByText, k.Keyword)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) GetActiveKeywordTexts(ctx context.Context) ([]string, error) {
	keywords, err := s.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, k := range keywords {
		if k.IsActive {
			texts = append(texts, k.Keyword)
		}
	}
	return texts, nil
}

func (s *RedisStore) GetConfiguration(ctx context.Context) (*models.Configuration, error) {
	return getJSON[models.Configuration](ctx, s.client, redisConfigKey)
}

func (s *RedisStore) SaveConfiguration(ctx context.Context, c models.Configuration) (*models.Configuration, error) {
	var saved models.Configuration
	err := s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := getJSON[models.Configuration](ctx, tx, redisConfigKey)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		saved = prepareConfiguration(prev, c)
		value, err := marshal(saved)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, redisConfigKey, value, 0)
			return nil
		})
		return err
	}, redisConfigKey)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *RedisStore) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	st, err := getJSON[models.SystemStatus](ctx, s.client, redisStatusKey)
	if errors.Is(err, ErrNotFound) {
		return s.UpdateSystemStatus(ctx, models.StatusUpdate{})
	}
	return st, err
}

func (s *RedisStore) UpdateSystemStatus(ctx context.Context, u models.StatusUpdate) (*models.SystemStatus, error) {
	var st *models.SystemStatus
	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, err := getJSON[models.SystemStatus](ctx, tx, redisStatusKey)
		switch {
		case errors.Is(err, ErrNotFound):
			def := models.DefaultSystemStatus()
			current = &def
		case err != nil:
			return err
		}
		u.Apply(current)
		current.LastUpdated = now()
		value, err := marshal(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, redisStatusKey, value, 0)
			return nil
		})
		st = current
		return err
	}, redisStatusKey)
	if err != nil {
		return nil, err
	}
	return st, nil
}
