package localchat

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/dhamidi/localchat/history"
)

// Display receives everything a session wants to show. raw is the message
// text as written; markup is its rendering from markup.Render.
type Display interface {
	ShowMessage(role history.Role, raw, markup string)
	// ShowPartial is called with the accumulated reply after every fragment.
	ShowPartial(raw, markup string)
	// FinishPartial closes the reply started by ShowPartial.
	FinishPartial(raw, markup string)
	ShowNotice(text string)
	ShowError(format string, args ...any)
	ShowUsage(usage Usage)
}

var roleLabels = map[history.Role]struct{ label, color string }{
	history.RoleUser:      {"You", "94"},
	history.RoleAssistant: {"Assistant", "93"},
	history.RoleSystem:    {"System", "90"},
}

func rolePrefix(role history.Role) string {
	l, ok := roleLabels[role]
	if !ok {
		l = roleLabels[history.RoleSystem]
	}
	return fmt.Sprintf("\u001b[%sm%s\u001b[0m: ", l.color, l.label)
}

// RawTextDisplay prints messages as plain text and streams replies as they
// arrive.
type RawTextDisplay struct {
	Out io.Writer

	printed int
}

// NewRawTextDisplay returns a RawTextDisplay writing to out, or stdout when out is nil.
func NewRawTextDisplay(out io.Writer) *RawTextDisplay {
	if out == nil {
		out = os.Stdout
	}
	return &RawTextDisplay{Out: out}
}

func (r *RawTextDisplay) ShowMessage(role history.Role, raw, markup string) {
	fmt.Fprintf(r.Out, "%s%s\n", rolePrefix(role), raw)
}

// ShowPartial prints only the text added since the previous call.
func (r *RawTextDisplay) ShowPartial(raw, markup string) {
	if r.printed == 0 {
		fmt.Fprint(r.Out, rolePrefix(history.RoleAssistant))
	}
	if len(raw) > r.printed {
		fmt.Fprint(r.Out, raw[r.printed:])
		r.printed = len(raw)
	}
}

func (r *RawTextDisplay) FinishPartial(raw, markup string) {
	r.ShowPartial(raw, markup)
	fmt.Fprintln(r.Out)
	r.printed = 0
}

func (r *RawTextDisplay) ShowNotice(text string) {
	fmt.Fprintf(r.Out, "\u001b[90m%s\u001b[0m\n", text)
}

// ShowError prints a formatted error message with red color.
func (r *RawTextDisplay) ShowError(format string, args ...any) {
	fmt.Fprintf(r.Out, "\u001b[91mError\u001b[0m: %s\n", fmt.Sprintf(format, args...))
}

func (r *RawTextDisplay) ShowUsage(usage Usage) {
	fmt.Fprintf(r.Out, "\u001b[90m%s\u001b[0m\n", usage)
}

// GlamourousTextDisplay renders complete messages with glamour, falling back
// to RawTextDisplay. Replies are shown once they are complete.
type GlamourousTextDisplay struct {
	RawTextDisplay

	Logger *slog.Logger
}

// NewGlamourousTextDisplay returns a GlamourousTextDisplay writing to out, or stdout when out is nil.
func NewGlamourousTextDisplay(out io.Writer, logger *slog.Logger) *GlamourousTextDisplay {
	if logger == nil {
		logger = slog.Default()
	}
	return &GlamourousTextDisplay{RawTextDisplay: *NewRawTextDisplay(out), Logger: logger}
}

// ShowMessage attempts to render the message content using glamour. The
// role prefix is printed raw on its own line.
func (g *GlamourousTextDisplay) ShowMessage(role history.Role, raw, markup string) {
	if role != history.RoleAssistant {
		g.RawTextDisplay.ShowMessage(role, raw, markup)
		return
	}
	prettyOutput, err := glamour.RenderWithEnvironmentConfig(raw)
	if err != nil {
		g.Logger.Warn("glamour rendering failed, falling back to raw display", "error", err)
		g.RawTextDisplay.ShowMessage(role, raw, markup)
		return
	}
	fmt.Fprintln(g.Out, rolePrefix(role))
	fmt.Fprint(g.Out, strings.TrimRight(prettyOutput, "\n")+"\n")
}

func (g *GlamourousTextDisplay) ShowPartial(raw, markup string) {}

func (g *GlamourousTextDisplay) FinishPartial(raw, markup string) {
	g.ShowMessage(history.RoleAssistant, raw, markup)
}

// MultiDisplay forwards every call to each of its displays in order.
type MultiDisplay []Display

func (m MultiDisplay) ShowMessage(role history.Role, raw, markup string) {
	for _, d := range m {
		d.ShowMessage(role, raw, markup)
	}
}

func (m MultiDisplay) ShowPartial(raw, markup string) {
	for _, d := range m {
		d.ShowPartial(raw, markup)
	}
}

func (m MultiDisplay) FinishPartial(raw, markup string) {
	for _, d := range m {
		d.FinishPartial(raw, markup)
	}
}

func (m MultiDisplay) ShowNotice(text string) {
	for _, d := range m {
		d.ShowNotice(text)
	}
}

func (m MultiDisplay) ShowError(format string, args ...any) {
	for _, d := range m {
		d.ShowError(format, args...)
	}
}

func (m MultiDisplay) ShowUsage(usage Usage) {
	for _, d := range m {
		d.ShowUsage(usage)
	}
}
