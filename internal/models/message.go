package models

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Metadata is attached to the system message produced by a successful scrape.
type Metadata struct {
	URL            string `json:"url"`
	ScrapedContent string `json:"scrapedContent"`
}

// Message is one entry of a conversation. Messages are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// HasScrapedContent reports whether the message carries page text usable as context.
func (m *Message) HasScrapedContent() bool {
	return m != nil && m.Metadata != nil && m.Metadata.ScrapedContent != ""
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Metadata != nil {
		meta := *m.Metadata
		c.Metadata = &meta
	}
	return &c
}
