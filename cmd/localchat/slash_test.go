package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/localchat"
	"github.com/dhamidi/localchat/history"
)

func TestParseSlashCommand(t *testing.T) {
	tests := []struct {
		line string
		want slashCommand
		ok   bool
	}{
		{"/save", slashCommand{name: "save", args: []string{}, rest: ""}, true},
		{"  /SAVE  Trip plans  ", slashCommand{name: "save", args: []string{"Trip", "plans"}, rest: "Trip plans"}, true},
		{"/rename conv_1_a New title", slashCommand{name: "rename", args: []string{"conv_1_a", "New", "title"}, rest: "conv_1_a New title"}, true},
		{"/", slashCommand{}, false},
		{"hello /save", slashCommand{}, false},
		{"", slashCommand{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got, ok := parseSlashCommand(tc.line)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func newSlashTestSession(t *testing.T) (*localchat.Session, *history.Store, *bytes.Buffer, localchat.Display) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := history.NewStore(history.NewMemorySurface(), history.WithLogger(logger))
	var out bytes.Buffer
	display := localchat.NewRawTextDisplay(&out)
	session := localchat.NewSession(store, localchat.NewScriptedSource("Sure thing."), display, localchat.WithSessionLogger(logger))
	return session, store, &out, display
}

func run(t *testing.T, session *localchat.Session, display localchat.Display, line string) bool {
	t.Helper()
	cmd, ok := parseSlashCommand(line)
	require.True(t, ok, line)
	return runSlashCommand(session, display, cmd)
}

func TestRunSlashCommand(t *testing.T) {
	session, store, out, display := newSlashTestSession(t)
	require.NoError(t, session.Send(context.Background(), "plan a trip"))
	id := session.ConversationID()

	assert.False(t, run(t, session, display, "/save Holiday"))
	conv, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "Holiday", conv.Title)

	out.Reset()
	run(t, session, display, "/history")
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), `"Holiday" (2 messages)`)

	run(t, session, display, "/rename "+id+" Summer holiday")
	conv, err = store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "Summer holiday", conv.Title)

	out.Reset()
	run(t, session, display, "/rename "+id)
	assert.Contains(t, out.String(), "usage: /rename ID TITLE")

	run(t, session, display, "/clear")
	assert.Empty(t, session.ConversationID())
	run(t, session, display, "/load "+id)
	assert.Equal(t, id, session.ConversationID())

	out.Reset()
	run(t, session, display, "/usage")
	assert.Contains(t, out.String(), "Token Usage")

	run(t, session, display, "/delete "+id)
	assert.Empty(t, store.ListSummaries())

	out.Reset()
	run(t, session, display, "/bogus")
	assert.Contains(t, out.String(), "unknown command /bogus")

	assert.True(t, run(t, session, display, "/quit"))
	assert.True(t, run(t, session, display, "/exit"))
}
