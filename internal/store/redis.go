package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "replypipe:"
	// DefaultDedupTTL bounds how long a processed message ID is remembered in Redis.
	DefaultDedupTTL = 24 * time.Hour
)

// RedisStore keeps conversation state in Redis so several replicas can share it.
// Tasks are JSON strings and reminders are JSON entries of a list. Dedup records are
// plain keys expiring after DefaultDedupTTL.
type RedisStore struct {
	client *redis.Client
}

var (
	_ ConversationStore = (*RedisStore)(nil)
	_ DedupRepo         = (*RedisStore)(nil)
)

// NewRedisStore connects to the Redis server named by the configured URL.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("redis URL not set")
	}
	ropts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Debug("RedisStore connected", "addr", ropts.Addr, "db", ropts.DB)
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func taskKey(chatID string) string      { return redisKeyPrefix + "task:" + chatID }
func remindersKey(chatID string) string { return redisKeyPrefix + "reminders:" + chatID }
func dedupKey(messageID string) string  { return redisKeyPrefix + "dedup:" + messageID }

func (s *RedisStore) GetTask(ctx context.Context, chatID string) (models.Task, error) {
	raw, err := s.client.Get(ctx, taskKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Task{}, nil
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get task for %s: %w", chatID, err)
	}
	var t models.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode task for %s: %w", chatID, err)
	}
	return t, nil
}

func (s *RedisStore) SetTask(ctx context.Context, chatID string, task models.Task) error {
	if task.IsNone() {
		return s.ClearTask(ctx, chatID)
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(chatID), raw, 0).Err(); err != nil {
		slog.Error("RedisStore.SetTask failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to set task for %s: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) ClearTask(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, taskKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to clear task for %s: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) ListReminders(ctx context.Context, chatID string) ([]models.Reminder, error) {
	return listReminders(ctx, s.client, chatID)
}

func listReminders(ctx context.Context, c redis.Cmdable, chatID string) ([]models.Reminder, error) {
	raws, err := c.LRange(ctx, remindersKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	items := make([]models.Reminder, 0, len(raws))
	for _, raw := range raws {
		var r models.Reminder
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to decode reminder: %w", err)
		}
		items = append(items, r)
	}
	return items, nil
}

func (s *RedisStore) AddReminder(ctx context.Context, chatID string, r models.Reminder) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}
	key := remindersKey(chatID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to count reminders: %w", err)
		}
		if n >= models.MaxReminders {
			return ErrReminderLimit
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, raw)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) RemoveReminder(ctx context.Context, chatID string, index int) (models.Reminder, error) {
	if index < 0 {
		return models.Reminder{}, ErrReminderNotFound
	}
	key := remindersKey(chatID)
	var removed models.Reminder
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.LIndex(ctx, key, int64(index)).Result()
		if errors.Is(err, redis.Nil) {
			return ErrReminderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read reminder: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &removed); err != nil {
			return fmt.Errorf("failed to decode reminder: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, key, 1, raw)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return models.Reminder{}, err
	}
	return removed, nil
}

func (s *RedisStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	n, err := s.client.Exists(ctx, dedupKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) RecordInbound(ctx context.Context, messageID, chatID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, dedupKey(messageID), chatID, DefaultDedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return ok, nil
}

// MarkProcessed is a no-op beyond refreshing the TTL; Redis records only need to exist.
func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string) error {
	if err := s.client.Expire(ctx, dedupKey(messageID), DefaultDedupTTL).Err(); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// PruneInbound relies on key expiry and always reports zero removals.
func (s *RedisStore) PruneInbound(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
