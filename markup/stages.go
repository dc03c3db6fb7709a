package markup

import (
	"html"
	"regexp"
	"strings"
)

var (
	fencePattern      = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	linkPattern       = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\n]+)\)`)
	bulletPattern     = regexp.MustCompile(`^\s*[-*]\s+`)

	// Checked from six down to one so "###" is never taken by the "#" rule.
	headingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^######[ \t]*(.*)$`),
		regexp.MustCompile(`(?m)^#####[ \t]*(.*)$`),
		regexp.MustCompile(`(?m)^####[ \t]*(.*)$`),
		regexp.MustCompile(`(?m)^###[ \t]*(.*)$`),
		regexp.MustCompile(`(?m)^##[ \t]*(.*)$`),
		regexp.MustCompile(`(?m)^#[ \t]*(.*)$`),
	}
	headingTags = []string{"h6", "h5", "h4", "h3", "h2", "h1"}

	// Bold first: the single-marker italic rules would otherwise split "**".
	// Spans never cross a line, and an italic asterisk must be followed by a
	// non-space so "* item" bullets survive for the list stage.
	emphasisRules = []struct {
		pattern *regexp.Regexp
		tag     string
	}{
		{regexp.MustCompile(`\*\*([^*\n]+)\*\*`), "strong"},
		{regexp.MustCompile(`__([^_\n]+)__`), "strong"},
		{regexp.MustCompile(`\*([^*\s][^*\n]*)\*`), "em"},
		{regexp.MustCompile(`_([^_\n]+)_`), "em"},
	}

	unsafeSchemes = []string{"javascript:", "vbscript:", "data:"}
)

// escape entity-encodes the HTML-significant characters and the span marker.
func escape(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), string(marker), "&#57344;")
}

func escapeStage(d *document) {
	d.text = escape(d.text)
}

// fenceStage moves fenced code blocks out of reach of every later stage.
// The block content is already escaped and is restored verbatim.
func fenceStage(d *document) {
	d.text = replaceSubmatch(fencePattern, d.text, func(m []string) string {
		return d.protect("<pre><code>" + m[1] + "</code></pre>")
	})
}

func inlineCodeStage(d *document) {
	d.text = replaceSubmatch(inlineCodePattern, d.text, func(m []string) string {
		return d.protect("<code>" + strings.ReplaceAll(m[1], "\n", "<br>") + "</code>")
	})
}

// linkStage emits anchors that open in a new browsing context without an
// opener or referrer. The URL is escaped a second time on its way into the
// attribute. Script-capable schemes are left as literal text.
//
// The link text gets its emphasis here and the whole anchor becomes one
// span, so an emphasis marker outside the link never pairs with one inside.
func linkStage(d *document) {
	d.text = replaceSubmatch(linkPattern, d.text, func(m []string) string {
		url := d.expand(m[2])
		if !safeURL(url) {
			return m[0]
		}
		return d.protect(`<a href="` + escape(url) + `" target="_blank" rel="noopener noreferrer">` +
			emphasize(m[1]) + "</a>")
	})
}

func safeURL(url string) bool {
	normalized := strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, strings.ToLower(url))
	for _, scheme := range unsafeSchemes {
		if strings.HasPrefix(normalized, scheme) {
			return false
		}
	}
	return true
}

func headingStage(d *document) {
	for i, pattern := range headingPatterns {
		tag := headingTags[i]
		d.text = pattern.ReplaceAllString(d.text, "<"+tag+">${1}</"+tag+">")
	}
}

func emphasisStage(d *document) {
	d.text = emphasize(d.text)
}

func emphasize(s string) string {
	for _, rule := range emphasisRules {
		s = rule.pattern.ReplaceAllString(s, "<"+rule.tag+">${1}</"+rule.tag+">")
	}
	return s
}

// listStage wraps each run of bullet lines in a single <ul>. The lines of a
// run are joined without newlines so they do not turn into breaks later.
func listStage(d *document) {
	lines := strings.Split(d.text, "\n")
	out := make([]string, 0, len(lines))
	var list strings.Builder
	inList := false
	for _, line := range lines {
		if loc := bulletPattern.FindStringIndex(line); loc != nil {
			if !inList {
				inList = true
				list.Reset()
				list.WriteString("<ul>")
			}
			list.WriteString("<li>" + line[loc[1]:] + "</li>")
			continue
		}
		if inList {
			inList = false
			list.WriteString("</ul>")
			out = append(out, list.String())
		}
		out = append(out, line)
	}
	if inList {
		list.WriteString("</ul>")
		out = append(out, list.String())
	}
	d.text = strings.Join(out, "\n")
}

func lineBreakStage(d *document) {
	d.text = strings.ReplaceAll(d.text, "\n", "<br>")
}

// replaceSubmatch is ReplaceAllStringFunc with access to capture groups.
func replaceSubmatch(re *regexp.Regexp, s string, fn func(m []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range matches {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
