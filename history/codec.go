package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// collection is the decoded blob: records keyed by id, in the order the
// keys appear in the persisted object.
type collection struct {
	order   []string
	records map[string]*Conversation
}

func newCollection() *collection {
	return &collection{records: make(map[string]*Conversation)}
}

func (c *collection) put(rec *Conversation) {
	if _, ok := c.records[rec.ID]; !ok {
		c.order = append(c.order, rec.ID)
	}
	c.records[rec.ID] = rec
}

func (c *collection) remove(id string) {
	delete(c.records, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// timestamp accepts RFC 3339 strings as well as the millisecond numbers
// found in older blobs, and always writes RFC 3339 with nanoseconds.
type timestamp struct {
	time.Time
}

func (ts timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	switch {
	case raw == "null":
		ts.Time = time.Time{}
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		ts.Time = t
	default:
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts.Time = time.UnixMilli(ms)
			return nil
		}
		ms, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse timestamp %s: %w", raw, err)
		}
		ts.Time = time.Unix(0, int64(ms*float64(time.Millisecond)))
	}
	return nil
}

type storedMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp timestamp `json:"timestamp"`
}

type storedRecord struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Messages      []storedMessage `json:"messages"`
	CreatedAt     *timestamp      `json:"createdAt,omitempty"`
	LastUpdatedAt *timestamp      `json:"lastUpdatedAt,omitempty"`

	// Field names used by older blobs.
	LegacyCreated *timestamp `json:"timestamp,omitempty"`
	LegacyUpdated *timestamp `json:"lastUpdated,omitempty"`
}

func firstTime(candidates ...*timestamp) time.Time {
	for _, ts := range candidates {
		if ts != nil && !ts.IsZero() {
			return ts.Time
		}
	}
	return time.Time{}
}

// decodeRecord turns one stored record into a Conversation. The object key
// stands in for a missing id and a missing title is inferred again.
func decodeRecord(key string, raw json.RawMessage) (*Conversation, error) {
	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	conv := &Conversation{
		ID:            rec.ID,
		Title:         rec.Title,
		Messages:      make([]Message, 0, len(rec.Messages)),
		CreatedAt:     firstTime(rec.CreatedAt, rec.LegacyCreated, rec.LastUpdatedAt, rec.LegacyUpdated),
		LastUpdatedAt: firstTime(rec.LastUpdatedAt, rec.LegacyUpdated, rec.CreatedAt, rec.LegacyCreated),
	}
	if conv.ID == "" {
		conv.ID = key
	}
	if conv.ID != key {
		return nil, fmt.Errorf("record id %q does not match key", conv.ID)
	}
	for _, m := range rec.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
			conv.Messages = append(conv.Messages, Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp.Time})
		case RoleSystem:
			// never persisted
		default:
			return nil, fmt.Errorf("unknown role %q", m.Role)
		}
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("record has no messages")
	}
	if conv.Title == "" {
		conv.Title = InferTitle(conv.Messages)
	}
	return conv, nil
}

// decodeCollection parses a blob. A blob that is not a JSON object fails as
// a whole; a record that cannot be decoded is skipped and logged.
func decodeCollection(blob string, logger *slog.Logger) (*collection, error) {
	c := newCollection()
	dec := json.NewDecoder(strings.NewReader(blob))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, found %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, found %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		conv, err := decodeRecord(key, raw)
		if err != nil {
			logger.Warn("skipping unreadable conversation", "id", key, "error", err)
			continue
		}
		c.put(conv)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeRecord(conv *Conversation) ([]byte, error) {
	rec := storedRecord{
		ID:            conv.ID,
		Title:         conv.Title,
		Messages:      make([]storedMessage, 0, len(conv.Messages)),
		CreatedAt:     &timestamp{conv.CreatedAt},
		LastUpdatedAt: &timestamp{conv.LastUpdatedAt},
	}
	for _, m := range conv.Messages {
		rec.Messages = append(rec.Messages, storedMessage{Role: m.Role, Content: m.Content, Timestamp: timestamp{m.Timestamp}})
	}
	return json.Marshal(rec)
}

// encode writes the collection as one JSON object, keys in order.
func (c *collection) encode() (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return "", err
		}
		rec, err := encodeRecord(c.records[id])
		if err != nil {
			return "", fmt.Errorf("encode conversation %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(rec)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
