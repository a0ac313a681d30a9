package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cimillas/storefront-core/internal/domain"
)

const defaultStreamMaxLen = 100_000

// RedisStream appends events to a Redis stream for an out-of-process sender to
// consume. The stream is trimmed approximately to maxLen entries.
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisStream(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStream) Notify(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":        string(ev.Kind),
			"subject_id":  ev.SubjectID,
			"order_id":    ev.OrderID,
			"payload":     string(payload),
			"occurred_at": ev.OccurredAt.UTC().Format(timeLayout),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
