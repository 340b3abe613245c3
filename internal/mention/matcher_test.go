package mention

import (
	"testing"

	"candidate-collab/internal/model"

	"github.com/stretchr/testify/assert"
)

func users(names ...string) []model.DirectoryEntry {
	out := make([]model.DirectoryEntry, 0, len(names))
	for _, n := range names {
		out = append(out, model.DirectoryEntry{ID: "id-" + n, Username: n})
	}
	return out
}

func TestWasMentioned(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		username string
		want     bool
	}{
		{name: "followed by punctuation", content: "hi @bob!", username: "bob", want: true},
		{name: "longer username", content: "hi @bobby!", username: "bob", want: false},
		{name: "digit suffix", content: "ping @bob2", username: "bob", want: false},
		{name: "end of text", content: "thanks @bob", username: "bob", want: true},
		{name: "case insensitive", content: "ask @BoB about it", username: "bob", want: true},
		{name: "start of text", content: "@bob look", username: "bob", want: true},
		{name: "inside a word", content: "ping x@bob now", username: "bob", want: true},
		{name: "address-like text", content: "mail me at x@bob.com", username: "bob", want: true},
		{name: "address with longer domain", content: "mail me at x@bobcorp.com", username: "bob", want: false},
		{name: "no at sign", content: "bob said hi", username: "bob", want: false},
		{name: "metacharacters are literal", content: "hey @aXb", username: "a.b", want: false},
		{name: "metacharacters match themselves", content: "hey @a.b, ok", username: "a.b", want: true},
		{name: "empty username", content: "hey @", username: "", want: false},
		{name: "second occurrence", content: "@bobby and @bob", username: "bob", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WasMentioned(tt.content, tt.username); got != tt.want {
				t.Errorf("WasMentioned(%q, %q) = %v, want %v", tt.content, tt.username, got, tt.want)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		users   []model.DirectoryEntry
		want    string
	}{
		{
			name:    "single mention",
			content: "hi @bob!",
			users:   users("bob"),
			want:    `hi <mark class="mention">@bob</mark>!`,
		},
		{
			name:    "prefix user does not claim longer name",
			content: "@bobby and @bob",
			users:   users("bob", "bobby"),
			want:    `<mark class="mention">@bobby</mark> and <mark class="mention">@bob</mark>`,
		},
		{
			name:    "only shorter user known",
			content: "@bobby and @bob",
			users:   users("bob"),
			want:    `@bobby and <mark class="mention">@bob</mark>`,
		},
		{
			name:    "longest match wins across punctuation",
			content: "cc @a.b",
			users:   users("a", "a.b"),
			want:    `cc <mark class="mention">@a.b</mark>`,
		},
		{
			name:    "escaped metacharacters",
			content: "cc @aXb and @a.b",
			users:   users("a.b"),
			want:    `cc @aXb and <mark class="mention">@a.b</mark>`,
		},
		{
			name:    "surrounding text is escaped",
			content: "<b>@bob</b>",
			users:   users("bob"),
			want:    `&lt;b&gt;<mark class="mention">@bob</mark>&lt;/b&gt;`,
		},
		{
			name:    "original casing kept",
			content: "@Bob",
			users:   users("bob"),
			want:    `<mark class="mention">@Bob</mark>`,
		},
		{
			name:    "no users",
			content: "@bob",
			users:   nil,
			want:    "@bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.content, tt.users))
		})
	}
}

func TestHighlightIsOrderIndependent(t *testing.T) {
	content := "@al @alice @alicia @al.ice done"
	a := Highlight(content, users("al", "alice", "alicia", "al.ice"))
	b := Highlight(content, users("al.ice", "alicia", "al", "alice"))
	assert.Equal(t, a, b)
}

func TestMatcherWithPlainMarker(t *testing.T) {
	m := NewMatcher(users("bob"),
		WithMarker(func(s string) string { return "[" + s + "]" }),
		WithTextEscaper(func(s string) string { return s }),
	)
	assert.Equal(t, "<hi> [@bob]", m.Highlight("<hi> @bob"))
}

func TestMentioned(t *testing.T) {
	m := NewMatcher(users("bob", "bobby", "carol"))

	got := m.Mentioned("@bobby, @carol and @bobby again; not x@bob")

	assert.Equal(t, []model.DirectoryEntry{
		{ID: "id-bobby", Username: "bobby"},
		{ID: "id-carol", Username: "carol"},
	}, got)
	assert.Empty(t, m.Mentioned("nobody here"))
}
