package history

import (
	"errors"
	"time"
)

// DefaultCapacity is the number of conversations a Store keeps when no
// capacity is configured.
const DefaultCapacity = 20

var (
	// ErrConversationNotFound is returned when a requested conversation cannot be found.
	ErrConversationNotFound = errors.New("history: conversation not found")

	// ErrEmptyConversation is returned by Save when no user or assistant
	// message remains to persist.
	ErrEmptyConversation = errors.New("history: conversation has no messages to save")

	// ErrEmptyTitle is returned by Rename for a blank title.
	ErrEmptyTitle = errors.New("history: title is empty")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn of a conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Conversation is a persisted record: an ordered list of user and assistant
// messages plus its title and timestamps.
type Conversation struct {
	ID            string
	Title         string
	Messages      []Message
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// Summary holds the listing information about a conversation.
type Summary struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	MessageCount  int
}

func (c *Conversation) summary() Summary {
	return Summary{
		ID:            c.ID,
		Title:         c.Title,
		CreatedAt:     c.CreatedAt,
		LastUpdatedAt: c.LastUpdatedAt,
		MessageCount:  len(c.Messages),
	}
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}

// persistable returns the messages that may be stored, dropping system notices.
func persistable(messages []Message) []Message {
	kept := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
