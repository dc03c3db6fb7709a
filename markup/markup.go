// Package markup turns model output written in a small markdown dialect into
// HTML that is safe to insert as live content.
//
// Render is pure: it holds no state between calls, so a caller streaming a
// reply can re-render the accumulated text after every fragment and always
// ends with the same markup it would get from rendering the whole text once.
package markup

import (
	"regexp"
	"strconv"
	"strings"
)

// marker delimits a protected span reference in the working text. The escape
// stage entity-encodes any occurrence of it in the input, so every marker
// seen by later stages was put there by the renderer itself.
const marker = '\uE000'

var spanRef = regexp.MustCompile("\uE000([0-9]+)\uE000")

// document is the value threaded through the pipeline. Spans hold finished
// markup that later stages must not rewrite; text refers to them by index.
type document struct {
	text  string
	spans []string
}

// protect stores markup aside and returns the reference to splice into text.
func (d *document) protect(markup string) string {
	d.spans = append(d.spans, markup)
	return string(marker) + strconv.Itoa(len(d.spans)-1) + string(marker)
}

// expand replaces span references in s with their markup, recursively.
func (d *document) expand(s string) string {
	if !strings.ContainsRune(s, marker) {
		return s
	}
	return spanRef.ReplaceAllStringFunc(s, func(ref string) string {
		i, err := strconv.Atoi(strings.Trim(ref, string(marker)))
		if err != nil || i < 0 || i >= len(d.spans) {
			return ""
		}
		return d.expand(d.spans[i])
	})
}

// stage is one text-to-text pass of the pipeline.
type stage func(d *document)

// pipeline is the fixed processing order. Each stage depends on the output
// of the ones before it: escaping happens once before any tag exists, bold
// runs before italics, and lists are grouped before newlines are replaced.
var pipeline = []stage{
	escapeStage,
	fenceStage,
	inlineCodeStage,
	linkStage,
	headingStage,
	emphasisStage,
	listStage,
	lineBreakStage,
}

// Render converts text to markup. It never fails: malformed or partial
// markdown, such as an unclosed fence in the middle of a stream, renders as
// literal text.
func Render(text string) string {
	if text == "" {
		return ""
	}
	d := &document{text: text}
	for _, run := range pipeline {
		run(d)
	}
	return d.expand(d.text)
}
