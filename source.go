package localchat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dhamidi/localchat/history"
)

// ErrSourceUnavailable reports that a reply could not be started at all.
var ErrSourceUnavailable = errors.New("model source unavailable")

// Usage reports how much of the model's input window the conversation uses.
type Usage struct {
	InputUsage int
	InputQuota int
}

// Percent returns InputUsage as a whole percentage of InputQuota.
func (u Usage) Percent() int {
	if u.InputQuota <= 0 {
		return 0
	}
	return u.InputUsage * 100 / u.InputQuota
}

func (u Usage) String() string {
	return fmt.Sprintf("Token Usage: Prompt=%d/%d (%d%%)", u.InputUsage, u.InputQuota, u.Percent())
}

// TextSource produces an assistant reply as a sequence of text fragments.
// The source keeps its own view of the conversation: a prompt and the reply
// streamed for it are remembered once the stream yields any text.
type TextSource interface {
	// Stream yields reply fragments for prompt. A failure to start the reply
	// is yielded as an error wrapping ErrSourceUnavailable before any text.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
	Usage() Usage
	// Reset forgets the conversation.
	Reset()
	// Restore replaces the conversation with messages.
	Restore(messages []history.Message)
}

// ScriptedSource replies with canned text, split into word fragments. Once
// the replies run out it echoes the prompt back.
type ScriptedSource struct {
	// Delay is waited between fragments.
	Delay time.Duration

	mu       sync.Mutex
	replies  []string
	next     int
	messages []history.Message
}

// NewScriptedSource returns a source that answers with replies in turn.
func NewScriptedSource(replies ...string) *ScriptedSource {
	return &ScriptedSource{replies: replies}
}

// scriptedQuota mirrors the input window reported by GeminiSource.
const scriptedQuota = 1048576

func (s *ScriptedSource) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		reply := "You said: " + prompt
		if s.next < len(s.replies) {
			reply = s.replies[s.next]
			s.next++
		}
		s.mu.Unlock()

		var sent strings.Builder
		defer func() {
			if sent.Len() > 0 {
				s.remember(prompt, sent.String())
			}
		}()
		for _, fragment := range strings.SplitAfter(reply, " ") {
			if fragment == "" {
				continue
			}
			if s.Delay > 0 {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(s.Delay):
				}
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			sent.WriteString(fragment)
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

func (s *ScriptedSource) remember(prompt, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.messages = append(s.messages,
		history.Message{Role: history.RoleUser, Content: prompt, Timestamp: now},
		history.Message{Role: history.RoleAssistant, Content: reply, Timestamp: now},
	)
}

// Usage estimates four characters per token.
func (s *ScriptedSource) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	chars := 0
	for _, m := range s.messages {
		chars += utf8.RuneCountInString(m.Content)
	}
	return Usage{InputUsage: chars / 4, InputQuota: scriptedQuota}
}

func (s *ScriptedSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

func (s *ScriptedSource) Restore(messages []history.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	for _, m := range messages {
		if m.Role != history.RoleSystem {
			s.messages = append(s.messages, m)
		}
	}
}
