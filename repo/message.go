package repo

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one stored message between two users.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// ListMessagesFilter narrows and pages a message listing. UserContext,
// when set, restricts results to messages the user sent or received.
type ListMessagesFilter struct {
	UserContext       string
	CreatedRangeStart *time.Time
	CreatedRangeEnd   *time.Time
	From              string
	To                string
	Search            string
	Limit             int
	Offset            int
}

// MessageRepo is an in-memory message store. Messages are kept in
// insertion order so pagination is stable.
type MessageRepo struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMessageRepo creates an empty message repo.
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{}
}

// Create stores a message and returns it with its assigned ID.
func (r *MessageRepo) Create(from, to, text string) Message {
	msg := Message{
		ID:      uuid.New().String(),
		From:    from,
		To:      to,
		Message: text,
		Created: time.Now(),
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	return msg
}

// Get returns the message with the given ID, or nil.
func (r *MessageRepo) Get(id string) *Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			m := r.messages[i]
			return &m
		}
	}
	return nil
}

// List returns one page of messages matching the filter.
func (r *MessageRepo) List(filter ListMessagesFilter) Paged[Message] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		if filter.UserContext != "" && m.From != filter.UserContext && m.To != filter.UserContext {
			continue
		}
		if filter.CreatedRangeStart != nil && m.Created.Before(*filter.CreatedRangeStart) {
			continue
		}
		if filter.CreatedRangeEnd != nil && m.Created.After(*filter.CreatedRangeEnd) {
			continue
		}
		if filter.From != "" && m.From != filter.From {
			continue
		}
		if filter.To != "" && m.To != filter.To {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(m.Message), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, m)
	}

	return page(matched, filter.Limit, filter.Offset)
}
