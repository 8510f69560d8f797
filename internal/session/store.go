package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scrapechat/internal/models"
)

const (
	// SummarizePrompt is sent to the model together with freshly scraped text.
	SummarizePrompt = "Summarize the main points from this content. Be ready to answer questions about it."
	// ScrapeFirstMessage answers a question asked before any page was scraped.
	ScrapeFirstMessage = "Please provide a URL to scrape first before asking questions."

	scrapeErrorPrefix = "Error: Could not process the URL. "
	modelErrorPrefix  = "Error: Could not get AI response. "
	titlePrefix       = "Scraped: "
	emptyPageMessage  = "the page has no readable content"
)

// ErrBusy is returned by Send while another send is still in flight.
var ErrBusy = errors.New("a message is already being processed")

// Scraper fetches the text of a web page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// Querier asks a language model about a piece of content.
type Querier interface {
	Query(ctx context.Context, model, content, prompt string) (string, error)
}

// Persister is the durable load/save boundary for the conversation collection.
type Persister interface {
	Load(ctx context.Context) ([]*models.Conversation, error)
	Save(ctx context.Context, conversations []*models.Conversation) error
	Clear(ctx context.Context) error
}

// Options configures a Store.
type Options struct {
	Scraper   Scraper
	Querier   Querier
	Persister Persister
	Model     string
	// OnStatus receives progress text during a send and "" once it completes.
	OnStatus func(string)
	Now      func() time.Time
	NewID    func() string
}

// Store holds the ordered conversation collection and the active selection.
// Newest conversations come first.
type Store struct {
	mu            sync.Mutex
	conversations []*models.Conversation
	activeID      string
	busy          bool
	model         string
	version       uint64 // bumped on every mutation

	saveMu sync.Mutex
	saved  uint64 // version of the last snapshot written

	scraper   Scraper
	querier   Querier
	persister Persister
	onStatus  func(string)
	now       func() time.Time
	newID     func() string
}

// NewStore builds an empty store. Call Load to rehydrate persisted state.
func NewStore(opts Options) *Store {
	s := &Store{
		model:     opts.Model,
		scraper:   opts.Scraper,
		querier:   opts.Querier,
		persister: opts.Persister,
		onStatus:  opts.OnStatus,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Load replaces the collection with the persisted one. The active selection is cleared.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	conversations, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = s.conversations[:0]
	seen := make(map[string]struct{}, len(conversations))
	for _, c := range conversations {
		if c == nil {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			log.Printf("skip duplicate conversation %s", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		s.conversations = append(s.conversations, c.Clone())
	}
	s.activeID = ""
	return nil
}

// Model returns the model name used for queries.
func (s *Store) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the model name used for subsequent queries.
func (s *Store) SetModel(model string) {
	s.mu.Lock()
	s.model = strings.TrimSpace(model)
	s.mu.Unlock()
}

// Busy reports whether a send is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Conversations returns copies of all conversations, newest first.
func (s *Store) Conversations() []*models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	return out
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked().Clone()
}

// CreateConversation inserts an empty conversation at the front and makes it active.
func (s *Store) CreateConversation(ctx context.Context) *models.Conversation {
	s.mu.Lock()
	c := s.createLocked()
	out := c.Clone()
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, version)
	return out
}

// Select makes the conversation with the given id active. It reports false
// and leaves the selection unchanged when no conversation matches.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false
	}
	s.activeID = id
	return true
}

// Delete removes the conversation with the given id. When it was active, the
// first remaining conversation becomes active, or none.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
		}
	}
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, version)
	return true
}

// Reset drops every conversation and clears the persisted collection. A send
// still in flight finishes without effect.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.conversations = nil
	s.activeID = ""
	_, version := s.snapshotLocked()
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.saved = version
	if err := s.persister.Clear(ctx); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return nil
}

// Send appends a user message to the active conversation (creating one when
// none is active) and then resolves it. With isURL the text is scraped and
// summarized; otherwise it is asked against the latest scraped context.
// Collaborator failures are recorded as system messages, not returned.
// Empty text is ignored.
func (s *Store) Send(ctx context.Context, text string, isURL bool) error {
	p, err := s.begin(ctx, text, isURL)
	if err != nil || p == nil {
		return err
	}
	res := s.run(ctx, p)
	s.finish(ctx, p, res)
	return nil
}

// pending is a user event already applied to the store, waiting for its result.
type pending struct {
	conversationID string
	text           string
	isURL          bool
	model          string
	context        string
	hasContext     bool
}

type result struct {
	message *models.Message
	title   string
}

func (s *Store) begin(ctx context.Context, text string, isURL bool) (*pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	active := s.activeLocked()
	if active == nil {
		active = s.createLocked()
	}
	p := &pending{
		conversationID: active.ID,
		text:           text,
		isURL:          isURL,
		model:          s.model,
	}
	if !isURL {
		p.context, p.hasContext = active.LatestScrapedContent()
	}
	active.Messages = append(active.Messages, s.newMessage(models.SenderUser, text, nil))
	s.busy = true
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, version)
	return p, nil
}

func (s *Store) run(ctx context.Context, p *pending) result {
	if p.isURL {
		return s.runScrape(ctx, p)
	}
	if !p.hasContext {
		return result{message: s.newMessage(models.SenderSystem, ScrapeFirstMessage, nil)}
	}
	answer, err := s.query(ctx, p.model, p.context, p.text)
	if err != nil {
		log.Printf("query model: %v", err)
		return result{message: s.newMessage(models.SenderSystem, modelErrorPrefix+err.Error(), nil)}
	}
	return result{message: s.newMessage(models.SenderSystem, answer, nil)}
}

func (s *Store) runScrape(ctx context.Context, p *pending) result {
	s.status("Starting web scraping...")
	s.status("Scraping website content...")
	content, err := s.scrape(ctx, p.text)
	if err != nil {
		log.Printf("scrape %s: %v", p.text, err)
		return result{message: s.newMessage(models.SenderSystem, scrapeErrorPrefix+err.Error(), nil)}
	}
	if strings.TrimSpace(content) == "" {
		log.Printf("scrape %s: empty content", p.text)
		return result{message: s.newMessage(models.SenderSystem, scrapeErrorPrefix+emptyPageMessage, nil)}
	}
	s.status("Processing with " + p.model + "...")
	summary, err := s.query(ctx, p.model, content, SummarizePrompt)
	if err != nil {
		log.Printf("summarize %s: %v", p.text, err)
		return result{message: s.newMessage(models.SenderSystem, scrapeErrorPrefix+err.Error(), nil)}
	}
	meta := &models.Metadata{URL: p.text, ScrapedContent: content}
	return result{
		message: s.newMessage(models.SenderSystem, summary, meta),
		title:   titlePrefix + hostname(p.text),
	}
}

func (s *Store) finish(ctx context.Context, p *pending, res result) {
	s.mu.Lock()
	s.busy = false
	idx := s.indexLocked(p.conversationID)
	if idx < 0 {
		// deleted while the request was in flight
		s.mu.Unlock()
		s.status("")
		return
	}
	c := s.conversations[idx]
	c.Messages = append(c.Messages, res.message)
	if res.title != "" {
		c.Title = res.title
	}
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, version)
	s.status("")
}

func (s *Store) scrape(ctx context.Context, pageURL string) (string, error) {
	if s.scraper == nil {
		return "", errors.New("scraper not configured")
	}
	return s.scraper.Scrape(ctx, pageURL)
}

func (s *Store) query(ctx context.Context, model, content, prompt string) (string, error) {
	if s.querier == nil {
		return "", errors.New("model service not configured")
	}
	return s.querier.Query(ctx, model, content, prompt)
}

func (s *Store) createLocked() *models.Conversation {
	c := &models.Conversation{
		ID:        s.newID(),
		Title:     fmt.Sprintf("New Conversation %d", len(s.conversations)+1),
		Messages:  make([]*models.Message, 0),
		Timestamp: s.now(),
	}
	s.conversations = append([]*models.Conversation{c}, s.conversations...)
	s.activeID = c.ID
	return c
}

func (s *Store) newMessage(sender models.Sender, content string, meta *models.Metadata) *models.Message {
	return &models.Message{
		ID:        s.newID(),
		Sender:    sender,
		Content:   content,
		Timestamp: s.now(),
		Metadata:  meta,
	}
}

func (s *Store) activeLocked() *models.Conversation {
	if s.activeID == "" {
		return nil
	}
	if idx := s.indexLocked(s.activeID); idx >= 0 {
		return s.conversations[idx]
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() ([]*models.Conversation, uint64) {
	s.version++
	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	return out, s.version
}

// persist saves a snapshot taken at version. Saves are serialized and a
// snapshot older than the last one written is skipped. An empty collection is
// never written so a fresh start cannot overwrite previously saved conversations.
func (s *Store) persist(ctx context.Context, snapshot []*models.Conversation, version uint64) {
	if s.persister == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if version <= s.saved {
		return
	}
	s.saved = version
	if len(snapshot) == 0 {
		return
	}
	if err := s.persister.Save(ctx, snapshot); err != nil {
		log.Printf("save conversations: %v", err)
	}
}

func (s *Store) status(text string) {
	if s.onStatus != nil {
		s.onStatus(text)
	}
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
