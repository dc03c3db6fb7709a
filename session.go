// Package localchat is a chat client core: a Session streams replies from a
// TextSource, renders them with package markup as they grow and keeps the
// conversation in a history.Store.
package localchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhamidi/localchat/history"
	"github.com/dhamidi/localchat/markup"
)

// Session is one chat: the messages on screen, the id they are saved under
// and the collaborators that produce, show and persist them. A Session is
// not safe for concurrent use.
type Session struct {
	store   *history.Store
	source  TextSource
	display Display
	logger  *slog.Logger
	now     func() time.Time

	id       string
	messages []history.Message
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session's logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithSessionClock replaces time.Now for message timestamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns a Session with an empty, unsaved conversation.
func NewSession(store *history.Store, source TextSource, display Display, opts ...SessionOption) *Session {
	s := &Session{
		store:   store,
		source:  source,
		display: display,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConversationID returns the id the conversation is saved under, or "" before the first save.
func (s *Session) ConversationID() string {
	return s.id
}

// Messages returns a copy of the conversation, notices included.
func (s *Session) Messages() []history.Message {
	return append([]history.Message(nil), s.messages...)
}

// Usage reports the source's input window usage.
func (s *Session) Usage() Usage {
	return s.source.Usage()
}

// Summaries lists the stored conversations, most recent first.
func (s *Session) Summaries() []history.Summary {
	return s.store.ListSummaries()
}

func (s *Session) notice(text string) {
	s.messages = append(s.messages, history.Message{Role: history.RoleSystem, Content: text, Timestamp: s.now()})
	s.display.ShowNotice(text)
}

// Send adds prompt to the conversation and streams the reply. The reply is
// re-rendered from the start after every fragment. A turn that fails before
// any reply text arrives is dropped; a reply cut short is kept as it stands.
// The conversation is saved after every reply.
func (s *Session) Send(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}

	turnStart := len(s.messages)
	s.messages = append(s.messages, history.Message{Role: history.RoleUser, Content: prompt, Timestamp: s.now()})
	s.display.ShowMessage(history.RoleUser, prompt, markup.Render(prompt))

	var raw strings.Builder
	var streamErr error
	for fragment, err := range s.source.Stream(ctx, prompt) {
		if err != nil {
			streamErr = err
			break
		}
		raw.WriteString(fragment)
		text := raw.String()
		s.display.ShowPartial(text, markup.Render(text))
	}

	if raw.Len() == 0 {
		s.messages = s.messages[:turnStart]
		switch {
		case errors.Is(streamErr, ErrSourceUnavailable):
			s.logger.Warn("model source unavailable", "error", streamErr)
			s.notice("Sorry, the model could not be reached. Please try again.")
			return streamErr
		case streamErr != nil:
			s.display.ShowError("%v", streamErr)
			return fmt.Errorf("reply failed: %w", streamErr)
		default:
			s.display.ShowError("empty response received")
			return nil
		}
	}

	reply := raw.String()
	s.messages = append(s.messages, history.Message{Role: history.RoleAssistant, Content: reply, Timestamp: s.now()})
	s.display.FinishPartial(reply, markup.Render(reply))
	if streamErr != nil {
		s.display.ShowError("reply interrupted: %v", streamErr)
	}
	s.display.ShowUsage(s.source.Usage())
	s.autoSave()

	if streamErr != nil {
		return fmt.Errorf("reply interrupted: %w", streamErr)
	}
	return nil
}

// autoSave persists the conversation once it holds more than one message.
func (s *Session) autoSave() {
	if len(s.messages) <= 1 {
		return
	}
	id, err := s.store.Save(s.id, s.messages, "")
	if errors.Is(err, history.ErrEmptyConversation) {
		return
	}
	if err != nil {
		s.logger.Error("auto-save failed", "id", s.id, "error", err)
		s.notice(fmt.Sprintf("Failed to save conversation: %v", err))
		return
	}
	s.id = id
	s.logger.Debug("conversation saved", "id", id, "messages", len(s.messages))
}

// SaveManually saves the conversation, replacing its title when title is not empty.
func (s *Session) SaveManually(title string) (string, error) {
	id, err := s.store.Save(s.id, s.messages, title)
	if errors.Is(err, history.ErrEmptyConversation) {
		s.notice("Nothing to save yet.")
		return "", err
	}
	if err != nil {
		s.logger.Error("save failed", "id", s.id, "error", err)
		s.notice(fmt.Sprintf("Failed to save conversation: %v", err))
		return "", err
	}
	s.id = id
	s.notice("Conversation saved.")
	return id, nil
}

// Load replaces the current conversation with the stored one and replays it.
func (s *Session) Load(id string) error {
	conv, err := s.store.Load(id)
	if err != nil {
		s.notice(fmt.Sprintf("Failed to load conversation %s.", id))
		return err
	}
	s.id = conv.ID
	s.messages = append([]history.Message(nil), conv.Messages...)
	s.source.Restore(conv.Messages)
	for _, m := range conv.Messages {
		s.display.ShowMessage(m.Role, m.Content, markup.Render(m.Content))
	}
	s.notice(fmt.Sprintf("Loaded conversation: %s", conv.Title))
	return nil
}

func (s *Session) reset() {
	s.id = ""
	s.messages = nil
	s.source.Reset()
}

// NewConversation saves the current conversation and starts an empty one.
func (s *Session) NewConversation() {
	s.autoSave()
	s.reset()
	s.notice("Started a new conversation.")
}

// Clear discards the current conversation without saving it.
func (s *Session) Clear() {
	s.reset()
	s.notice("Chat cleared.")
}

// Delete removes a stored conversation. Deleting the current conversation
// also clears the chat.
func (s *Session) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		s.notice(fmt.Sprintf("Failed to delete conversation: %v", err))
		return err
	}
	if id == s.id {
		s.reset()
	}
	s.notice(fmt.Sprintf("Deleted conversation %s.", id))
	return nil
}

// Rename changes the title of a stored conversation.
func (s *Session) Rename(id, title string) error {
	if err := s.store.Rename(id, title); err != nil {
		s.notice(fmt.Sprintf("Failed to rename conversation: %v", err))
		return err
	}
	s.notice(fmt.Sprintf("Renamed conversation %s to %q.", id, strings.TrimSpace(title)))
	return nil
}
