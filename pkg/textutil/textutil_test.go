package textutil

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello\n\tworld ", "hello world"},
		{"markup", "<p>New <b>model</b> released</p><p>today</p>", "New model released today"},
		{"entities", "Q&amp;A with <i>researchers</i>", "Q&A with researchers"},
		{"list items", "<ul><li>faster</li><li>cheaper</li></ul>", "faster cheaper"},
		{"line break", "first line<br>second line", "first line second line"},
		{"inline kept whole", "state-of-the-<em>art</em> results", "state-of-the-art results"},
		{"script dropped", "<div>keep<script>var x = 1;</script></div>", "keep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExcerptCountsRunes(t *testing.T) {
	if got := Excerpt("héllo wörld", 5); got != "héllo" {
		t.Fatalf("Excerpt = %q", got)
	}
	if got := Excerpt("short", 300); got != "short" {
		t.Fatalf("Excerpt = %q", got)
	}
	if got := Excerpt("x", 0); got != "" {
		t.Fatalf("Excerpt = %q", got)
	}
}
