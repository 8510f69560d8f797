package redis

import (
	"context"
	"errors"
	"fmt"

	"scrapechat/internal/storage"
)

// StateBackend stores client state without expiry.
type StateBackend struct {
	client *Client
}

func NewStateBackend(client *Client) *StateBackend {
	return &StateBackend{client: client}
}

// Get maps a cache miss to storage.ErrNotFound.
func (b *StateBackend) Get(ctx context.Context, name string) (string, error) {
	val, err := b.client.Get(ctx, name)
	if errors.Is(err, ErrCacheMiss) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", name, err)
	}
	return val, nil
}

func (b *StateBackend) Set(ctx context.Context, name, payload string) error {
	if err := b.client.Set(ctx, name, payload, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (b *StateBackend) Delete(ctx context.Context, name string) error {
	if err := b.client.Del(ctx, name); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}
