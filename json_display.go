package localchat

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dhamidi/localchat/history"
)

// displayEvent is one line of JSONLinesDisplay output.
type displayEvent struct {
	Type       string `json:"type"`
	Raw        string `json:"raw,omitempty"`
	Markup     string `json:"markup,omitempty"`
	Text       string `json:"text,omitempty"`
	InputUsage int    `json:"input_usage,omitempty"`
	InputQuota int    `json:"input_quota,omitempty"`
}

// JSONLinesDisplay writes every event as a JSON object on its own line, for
// consumption by other programs.
type JSONLinesDisplay struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesDisplay returns a JSONLinesDisplay writing to out, or stdout when out is nil.
func NewJSONLinesDisplay(out io.Writer) *JSONLinesDisplay {
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &JSONLinesDisplay{enc: enc}
}

func (j *JSONLinesDisplay) writeEvent(event displayEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s event: %v\n", event.Type, err)
	}
}

func (j *JSONLinesDisplay) ShowMessage(role history.Role, raw, markup string) {
	j.writeEvent(displayEvent{Type: string(role), Raw: raw, Markup: markup})
}

func (j *JSONLinesDisplay) ShowPartial(raw, markup string) {
	j.writeEvent(displayEvent{Type: "partial", Raw: raw, Markup: markup})
}

func (j *JSONLinesDisplay) FinishPartial(raw, markup string) {
	j.writeEvent(displayEvent{Type: string(history.RoleAssistant), Raw: raw, Markup: markup})
}

func (j *JSONLinesDisplay) ShowNotice(text string) {
	j.writeEvent(displayEvent{Type: string(history.RoleSystem), Text: text})
}

func (j *JSONLinesDisplay) ShowError(format string, args ...any) {
	j.writeEvent(displayEvent{Type: "error", Text: fmt.Sprintf(format, args...)})
}

func (j *JSONLinesDisplay) ShowUsage(usage Usage) {
	j.writeEvent(displayEvent{Type: "usage", InputUsage: usage.InputUsage, InputQuota: usage.InputQuota})
}
