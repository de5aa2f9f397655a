// Package store keeps conversation history in memory with bounded growth.
// Conversations are capped in number and in messages per conversation, and
// a background sweeper retires conversations by age and by least recent use.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Role values for stored messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn entry in a conversation.
type Message struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is an ordered message history with activity bookkeeping.
// CapabilitySnapshot holds the tool names visible at the most recent turn.
type Conversation struct {
	ID                 string    `json:"id"`
	Messages           []Message `json:"messages"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivity       time.Time `json:"last_activity"`
	CapabilitySnapshot []string  `json:"capability_snapshot,omitempty"`
}

// Summary is the listing view of a conversation, without its messages.
type Summary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Preview      string    `json:"preview,omitempty"`
}

// Stats reports the store's current footprint and lifetime eviction counts.
type Stats struct {
	Conversations     int   `json:"conversations"`
	Messages          int   `json:"messages"`
	ActiveLastHour    int   `json:"active_last_hour"`
	EvictedByAge      int64 `json:"evicted_by_age"`
	EvictedByCapacity int64 `json:"evicted_by_capacity"`
	TruncatedMessages int64 `json:"truncated_messages"`
}

// Config bounds the store. Zero values fall back to defaults.
type Config struct {
	MaxConversations           int
	MaxMessagesPerConversation int
	MaxAge                     time.Duration
	SweepInterval              time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxConversations <= 0 {
		c.MaxConversations = 1000
	}
	if c.MaxMessagesPerConversation <= 0 {
		c.MaxMessagesPerConversation = 100
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// Store is a bounded in-memory conversation store. All methods are safe for
// concurrent use.
type Store struct {
	cfg Config

	mu            sync.RWMutex
	conversations map[string]*Conversation

	evictedByAge      int64
	evictedByCapacity int64
	truncatedMessages int64

	stop chan struct{}
	done chan struct{}
}

// New creates a store with the given bounds.
func New(cfg Config) *Store {
	cfg.setDefaults()
	return &Store{
		cfg:           cfg,
		conversations: make(map[string]*Conversation),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the background sweeper. Close stops it.
func (s *Store) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.Sweep(time.Now()); removed > 0 {
					log.Debug().Int("removed", removed).Msg("conversation sweep")
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the background sweeper and waits for it to exit.
func (s *Store) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

// GetOrCreate returns the conversation with the given id, creating it if it
// does not exist. An empty id creates a conversation with a fresh id.
func (s *Store) GetOrCreate(id string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(id, time.Now())
	return snapshot(c)
}

// Append adds a message to a conversation, creating the conversation if
// needed. The oldest messages are dropped once the per-conversation cap is
// exceeded. Returns the stored message (with id and timestamp filled in) and
// the conversation id.
func (s *Store) Append(conversationID string, msg Message) (Message, string) {
	now := time.Now()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(conversationID, now)
	c.Messages = append(c.Messages, msg)
	if over := len(c.Messages) - s.cfg.MaxMessagesPerConversation; over > 0 {
		c.Messages = c.Messages[over:]
		s.truncatedMessages += int64(over)
	}
	c.LastActivity = now
	return msg, c.ID
}

func (s *Store) getOrCreateLocked(id string, now time.Time) *Conversation {
	if id != "" {
		if c, ok := s.conversations[id]; ok {
			c.LastActivity = now
			return c
		}
	} else {
		id = uuid.New().String()
	}
	c := &Conversation{ID: id, CreatedAt: now, LastActivity: now}
	s.conversations[id] = c
	s.evictOverCapacityLocked()
	return c
}

// evictOverCapacityLocked drops least recently active conversations until the
// count is back within MaxConversations. Caller holds s.mu.
func (s *Store) evictOverCapacityLocked() {
	for len(s.conversations) > s.cfg.MaxConversations {
		var victim *Conversation
		for _, c := range s.conversations {
			if victim == nil || c.LastActivity.Before(victim.LastActivity) {
				victim = c
			}
		}
		delete(s.conversations, victim.ID)
		s.evictedByCapacity++
		log.Debug().Str("conversation_id", victim.ID).Msg("evicted conversation over capacity")
	}
}

// Get returns a copy of a conversation.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return snapshot(c), true
}

// SetCapabilitySnapshot records the tool names visible at a conversation's
// most recent turn. Unknown ids are ignored.
func (s *Store) SetCapabilitySnapshot(id string, tools []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return
	}
	c.CapabilitySnapshot = append([]string(nil), tools...)
}

// Delete removes a conversation. Returns whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	delete(s.conversations, id)
	return true
}

// Sweep removes conversations older than MaxAge (by last activity), then
// evicts least recently active conversations until the count is within
// MaxConversations. Returns the total number removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := now.Add(-s.cfg.MaxAge)
	for id, c := range s.conversations {
		if c.LastActivity.Before(cutoff) {
			delete(s.conversations, id)
			s.evictedByAge++
			removed++
		}
	}

	before := len(s.conversations)
	s.evictOverCapacityLocked()
	removed += before - len(s.conversations)
	return removed
}

// List returns summaries of all conversations, most recently active first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, summarize(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Search returns summaries of conversations whose message content contains
// the query, case-insensitively, most recently active first.
func (s *Store) Search(query string) []Summary {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Summary
	for _, c := range s.conversations {
		for _, m := range c.Messages {
			if strings.Contains(strings.ToLower(m.Content), q) {
				out = append(out, summarize(c))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Stats reports current counts and lifetime evictions.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := 0
	active := 0
	cutoff := time.Now().Add(-time.Hour)
	for _, c := range s.conversations {
		messages += len(c.Messages)
		if c.LastActivity.After(cutoff) {
			active++
		}
	}
	return Stats{
		Conversations:     len(s.conversations),
		Messages:          messages,
		ActiveLastHour:    active,
		EvictedByAge:      s.evictedByAge,
		EvictedByCapacity: s.evictedByCapacity,
		TruncatedMessages: s.truncatedMessages,
	}
}

func snapshot(c *Conversation) Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	if c.CapabilitySnapshot != nil {
		out.CapabilitySnapshot = append([]string(nil), c.CapabilitySnapshot...)
	}
	return out
}

func summarize(c *Conversation) Summary {
	sum := Summary{
		ID:           c.ID,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		LastActivity: c.LastActivity,
	}
	if len(c.Messages) > 0 {
		preview := c.Messages[0].Content
		if len(preview) > 120 {
			preview = preview[:120]
		}
		sum.Preview = preview
	}
	return sum
}
