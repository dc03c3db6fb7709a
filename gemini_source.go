package localchat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/dhamidi/localchat/history"
)

// geminiInputLimit is the prompt token limit of the Gemini models.
const geminiInputLimit = 1048576

// defaultRetryDelays is the wait before each retry of a failed request.
// Attempts beyond the list reuse the last delay.
var defaultRetryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second, 30 * time.Second}

const defaultMaxAttempts = 5

// GeminiSource streams replies from a Gemini model and keeps the model-side
// conversation history.
type GeminiSource struct {
	client            *genai.Client
	modelName         string
	systemInstruction string
	logger            *slog.Logger

	retryDelays []time.Duration
	maxAttempts int

	mu      sync.Mutex
	history []*genai.Content
	usage   Usage
}

// NewGeminiSource creates a client for the Gemini API.
func NewGeminiSource(ctx context.Context, apiKey, modelName, systemInstruction string, logger *slog.Logger) (*GeminiSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrSourceUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiSource{
		client:            client,
		modelName:         modelName,
		systemInstruction: systemInstruction,
		logger:            logger,
		retryDelays:       defaultRetryDelays,
		maxAttempts:       defaultMaxAttempts,
		usage:             Usage{InputQuota: geminiInputLimit},
	}, nil
}

// ModelName returns the model replies are requested from.
func (g *GeminiSource) ModelName() string {
	return g.modelName
}

func (g *GeminiSource) systemPrompt() *genai.Content {
	if strings.TrimSpace(g.systemInstruction) == "" {
		return nil
	}
	return genai.NewContentFromText(g.systemInstruction, genai.RoleUser)
}

func (g *GeminiSource) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		g.mu.Lock()
		conversation := append(append([]*genai.Content(nil), g.history...), genai.NewContentFromText(prompt, genai.RoleUser))
		g.mu.Unlock()

		config := &genai.GenerateContentConfig{
			MaxOutputTokens:   4 * 1024,
			SystemInstruction: g.systemPrompt(),
		}

		var reply strings.Builder
		defer func() {
			if reply.Len() > 0 {
				g.commit(prompt, reply.String())
			}
		}()

		for attempt := 0; attempt < g.maxAttempts; attempt++ {
			var streamErr error
			for response, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, conversation, config) {
				if err != nil {
					streamErr = err
					break
				}
				g.recordUsage(response.UsageMetadata)
				text := responseText(response)
				if text == "" {
					continue
				}
				reply.WriteString(text)
				if !yield(text, nil) {
					return
				}
			}
			if streamErr == nil {
				return
			}
			if reply.Len() > 0 {
				yield("", fmt.Errorf("reply interrupted: %w", streamErr))
				return
			}
			if !isRetryable(streamErr) || attempt == g.maxAttempts-1 {
				yield("", fmt.Errorf("%w: after %d attempts, last error: %w", ErrSourceUnavailable, attempt+1, streamErr))
				return
			}

			delay := g.retryDelay(attempt)
			g.logger.Warn("model request failed, retrying",
				"attempt", attempt+1, "max_attempts", g.maxAttempts, "delay", delay, "error", streamErr)
			select {
			case <-ctx.Done():
				yield("", fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err()))
				return
			case <-time.After(delay):
			}
		}
	}
}

func (g *GeminiSource) retryDelay(attempt int) time.Duration {
	if len(g.retryDelays) == 0 {
		return 0
	}
	if attempt < len(g.retryDelays) {
		return g.retryDelays[attempt]
	}
	return g.retryDelays[len(g.retryDelays)-1]
}

// isRetryable reports whether err looks like a transient server error.
func isRetryable(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"An internal error has occurred", "server error", "UNAVAILABLE", "Error 500", "Error 503"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// responseText concatenates the text parts of the first candidate.
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (g *GeminiSource) recordUsage(metadata *genai.GenerateContentResponseUsageMetadata) {
	if metadata == nil || metadata.PromptTokenCount == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage.InputUsage = int(metadata.PromptTokenCount)
}

func (g *GeminiSource) commit(prompt, reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history,
		genai.NewContentFromText(prompt, genai.RoleUser),
		genai.NewContentFromText(reply, genai.RoleModel),
	)
}

func (g *GeminiSource) Usage() Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

func (g *GeminiSource) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = nil
	g.usage = Usage{InputQuota: geminiInputLimit}
}

func (g *GeminiSource) Restore(messages []history.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = contentsFromMessages(messages)
	g.usage = Usage{InputQuota: geminiInputLimit}
}

// contentsFromMessages converts stored messages into model history.
func contentsFromMessages(messages []history.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case history.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case history.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	return contents
}
