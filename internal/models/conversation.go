package models

import "time"

// Conversation groups an ordered thread of messages tied to one scraping session.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	Timestamp time.Time  `json:"timestamp"`
}

// LatestScrapedContent returns the scraped text of the most recently appended
// message carrying one.
func (c *Conversation) LatestScrapedContent() (string, bool) {
	if c == nil {
		return "", false
	}
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].HasScrapedContent() {
			return c.Messages[i].Metadata.ScrapedContent, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the conversation and its messages.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]*Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		cp.Messages = append(cp.Messages, m.Clone())
	}
	return &cp
}
