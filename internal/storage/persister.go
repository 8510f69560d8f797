package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"scrapechat/internal/models"
)

// ConversationsKey is the durable key holding the serialized collection.
const ConversationsKey = "conversations"

// Backend is the key/value surface a ConversationPersister writes through.
type Backend interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, payload string) error
	Delete(ctx context.Context, name string) error
}

// ConversationPersister stores the whole conversation collection as one JSON array.
type ConversationPersister struct {
	backend Backend
	key     string
}

// NewConversationPersister persists under key, or ConversationsKey when key is empty.
func NewConversationPersister(backend Backend, key string) *ConversationPersister {
	if key == "" {
		key = ConversationsKey
	}
	return &ConversationPersister{backend: backend, key: key}
}

// Load returns the saved collection. A missing key yields an empty collection.
func (p *ConversationPersister) Load(ctx context.Context) ([]*models.Conversation, error) {
	payload, err := p.backend.Get(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var conversations []*models.Conversation
	if err := json.Unmarshal([]byte(payload), &conversations); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return conversations, nil
}

// Save overwrites the stored collection.
func (p *ConversationPersister) Save(ctx context.Context, conversations []*models.Conversation) error {
	if conversations == nil {
		conversations = []*models.Conversation{}
	}
	data, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	return p.backend.Set(ctx, p.key, string(data))
}

// Clear removes the stored collection so the next Load starts empty.
func (p *ConversationPersister) Clear(ctx context.Context) error {
	if err := p.backend.Delete(ctx, p.key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
