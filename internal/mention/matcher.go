// Package mention detects and renders @username references in note text.
//
// WasMentioned accepts '@username' anywhere, followed by a non-word character
// or the end of the text. Highlight and Mentioned additionally require the '@'
// to start a word, so "bob@example.com" style addresses stay plain text.
// Matching is case-insensitive and usernames are always matched literally.
package mention

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"candidate-collab/internal/model"
)

// Marker renders a single matched mention, '@' included.
type Marker func(mention string) string

// HTMLMarker wraps the mention in a <mark> element.
func HTMLMarker(mention string) string {
	return `<mark class="mention">` + html.EscapeString(mention) + `</mark>`
}

type Option func(*Matcher)

// WithMarker replaces the default HTML marker.
func WithMarker(marker Marker) Option {
	return func(m *Matcher) { m.marker = marker }
}

// WithTextEscaper controls how text between mentions is written out.
// The default HTML-escapes it; pass an identity func for plain-text output.
func WithTextEscaper(escape func(string) string) Option {
	return func(m *Matcher) { m.escape = escape }
}

type pattern struct {
	entry model.DirectoryEntry
	re    *regexp.Regexp
}

// Matcher holds compiled patterns for a fixed user set.
// Patterns are ordered longest username first, then lexicographically,
// so the first pattern that matches at a position is the longest match.
type Matcher struct {
	patterns []pattern
	marker   Marker
	escape   func(string) string
}

func NewMatcher(users []model.DirectoryEntry, opts ...Option) *Matcher {
	m := &Matcher{
		marker: HTMLMarker,
		escape: html.EscapeString,
	}
	for _, opt := range opts {
		opt(m)
	}

	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		if _, dup := seen[u.Username]; dup {
			continue
		}
		seen[u.Username] = struct{}{}
		m.patterns = append(m.patterns, pattern{entry: u, re: compile(u.Username)})
	}

	sort.SliceStable(m.patterns, func(i, j int) bool {
		a, b := m.patterns[i].entry.Username, m.patterns[j].entry.Username
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return m
}

// compile builds the anchored pattern for one username. Group 1 is the mention itself.
func compile(username string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(@` + regexp.QuoteMeta(username) + `)(?:\W|$)`)
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

// mentionStarts yields the byte offsets of every '@' that begins a word.
func mentionStarts(content string) []int {
	var starts []int
	for i := 0; i < len(content); i++ {
		if content[i] != '@' {
			continue
		}
		if i > 0 && isWordByte(content[i-1]) {
			continue
		}
		starts = append(starts, i)
	}
	return starts
}

// matchAt returns the pattern matching at offset i and the end of the mention.
func (m *Matcher) matchAt(content string, i int) (*pattern, int, bool) {
	for idx := range m.patterns {
		p := &m.patterns[idx]
		loc := p.re.FindStringSubmatchIndex(content[i:])
		if loc != nil {
			return p, i + loc[3], true
		}
	}
	return nil, 0, false
}

// Highlight wraps every mention of a known user. It is not idempotent:
// call it once on raw content per render.
func (m *Matcher) Highlight(content string) string {
	var b strings.Builder
	last := 0
	for _, i := range mentionStarts(content) {
		if i < last {
			continue
		}
		_, end, ok := m.matchAt(content, i)
		if !ok {
			continue
		}
		b.WriteString(m.escape(content[last:i]))
		b.WriteString(m.marker(content[i:end]))
		last = end
	}
	b.WriteString(m.escape(content[last:]))
	return b.String()
}

// Mentioned lists the users mentioned in content, in order of first appearance.
func (m *Matcher) Mentioned(content string) []model.DirectoryEntry {
	var found []model.DirectoryEntry
	seen := make(map[string]struct{})
	last := 0
	for _, i := range mentionStarts(content) {
		if i < last {
			continue
		}
		p, end, ok := m.matchAt(content, i)
		if !ok {
			continue
		}
		last = end
		if _, dup := seen[p.entry.Username]; dup {
			continue
		}
		seen[p.entry.Username] = struct{}{}
		found = append(found, p.entry)
	}
	return found
}

// WasMentioned reports whether content contains @username followed by a
// non-word character or the end of the text.
func WasMentioned(content, username string) bool {
	if username == "" {
		return false
	}
	return regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username) + `(?:\W|$)`).MatchString(content)
}

// Highlight is a one-shot NewMatcher(users).Highlight(content).
func Highlight(content string, users []model.DirectoryEntry) string {
	return NewMatcher(users).Highlight(content)
}
