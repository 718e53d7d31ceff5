package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"ms-registration/internal/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "events_register:"

// Store keeps one hash per partition. Each field is a sort key and each value
// is the JSON encoded item.
type Store struct {
	Client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

func partitionKey(partition string) string {
	return keyPrefix + partition
}

func (s *Store) Get(ctx context.Context, partition, sortKey string) (*models.Item, error) {
	raw, err := s.Client.HGet(ctx, partitionKey(partition), sortKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", partition, sortKey, err)
	}
	var item models.Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %v: %w", partition, sortKey, err, models.ErrSerialization)
	}
	return &item, nil
}

func (s *Store) Put(ctx context.Context, item models.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v: %w", item.EventName, item.SortKey, err, models.ErrSerialization)
	}
	if err := s.Client.HSet(ctx, partitionKey(item.EventName), item.SortKey, raw).Err(); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", item.EventName, item.SortKey, err)
	}
	return nil
}

// Update is a whole-item write; HSET already creates missing fields.
func (s *Store) Update(ctx context.Context, item models.Item) error {
	return s.Put(ctx, item)
}

func (s *Store) Scan(ctx context.Context, partition string) ([]models.Item, error) {
	fields, err := s.Client.HGetAll(ctx, partitionKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", partition, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]models.Item, 0, len(keys))
	for _, k := range keys {
		var item models.Item
		if err := json.Unmarshal([]byte(fields[k]), &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %v: %w", partition, k, err, models.ErrSerialization)
		}
		items = append(items, item)
	}
	return items, nil
}
