package localchat

import (
	"fmt"
	"html"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/dhamidi/localchat/history"
)

const transcriptHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>localchat transcript</title>
</head>
<body>
`

const transcriptTail = `</body>
</html>
`

// HTMLTranscript keeps an HTML document with the rendered markup of every
// completed message. The file is rewritten after each message.
type HTMLTranscript struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries []string
	err     error
}

// NewHTMLTranscript returns a transcript written to path on fsys.
func NewHTMLTranscript(fsys afero.Fs, path string, logger *slog.Logger) *HTMLTranscript {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLTranscript{fs: fsys, path: path, logger: logger}
}

// Err returns the most recent write error.
func (t *HTMLTranscript) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *HTMLTranscript) add(class, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, fmt.Sprintf("<div class=\"message %s\">%s</div>\n", class, body))

	var doc strings.Builder
	doc.WriteString(transcriptHead)
	for _, entry := range t.entries {
		doc.WriteString(entry)
	}
	doc.WriteString(transcriptTail)
	err := t.fs.MkdirAll(filepath.Dir(t.path), 0755)
	if err == nil {
		err = afero.WriteFile(t.fs, t.path, []byte(doc.String()), 0644)
	}
	if err != nil {
		t.logger.Error("writing transcript failed", "path", t.path, "error", err)
		t.err = err
	}
}

func (t *HTMLTranscript) ShowMessage(role history.Role, raw, markup string) {
	t.add(string(role), markup)
}

func (t *HTMLTranscript) ShowPartial(raw, markup string) {}

func (t *HTMLTranscript) FinishPartial(raw, markup string) {
	t.add(string(history.RoleAssistant), markup)
}

func (t *HTMLTranscript) ShowNotice(text string) {
	t.add(string(history.RoleSystem), html.EscapeString(text))
}

func (t *HTMLTranscript) ShowError(format string, args ...any) {
	t.add("error", html.EscapeString(fmt.Sprintf(format, args...)))
}

func (t *HTMLTranscript) ShowUsage(usage Usage) {}
