package errlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventpass/internal/pkg/logger"
)

// Redis keeps the log in a capped Redis list so the status API of any
// instance sees errors recorded by the active poller.
type Redis struct {
	client   *redis.Client
	key      string
	capacity int64
	log      *logger.Logger
}

// NewRedis creates a Redis-backed log under key holding at most capacity entries.
func NewRedis(client *redis.Client, key string, capacity int) *Redis {
	if capacity <= 0 {
		capacity = 100
	}
	return &Redis{client: client, key: key, capacity: int64(capacity), log: logger.With("errlog")}
}

func (r *Redis) Add(ctx context.Context, source, message string) {
	data, err := json.Marshal(Entry{Time: time.Now().UTC(), Source: source, Message: message})
	if err != nil {
		r.log.Warn("encode error entry", "error", err)
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		// the entry still reaches the structured log
		r.log.Warn("record error entry", "error", err, "source", source, "message", message)
	}
}

func (r *Redis) Recent(ctx context.Context) ([]Entry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, r.capacity-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading error log: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
