package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lexer  string
		want   []string
	}{
		{"yaml", "services:\n  app:\n    image: nginx\n", yamlLexer, []string{"services:", "image: nginx"}},
		{"env", "A=1\n# comment\nB=\"two\"\n", envLexer, []string{"A=1", "# comment", `B="two"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highlight(tt.source, tt.lexer, NewStyles("mocha").SyntaxTheme())
			if !strings.Contains(got, "\x1b[38;5;") {
				t.Errorf("highlight(%q) has no colour: %q", tt.source, got)
			}
			plain := ansi.Strip(got)
			for _, want := range tt.want {
				if !strings.Contains(plain, want) {
					t.Errorf("highlighted text %q missing %q", plain, want)
				}
			}
		})
	}
}

func TestHighlightBlock(t *testing.T) {
	styles := NewStyles("latte")
	block := highlightBlock("services:\n  app:\n    image: nginx-with-a-long-name\n", yamlLexer, styles, 20, 5)

	lines := strings.Split(block, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		if w := ansi.StringWidth(line); w > 20 {
			t.Errorf("line %d is %d wide, want <= 20", i, w)
		}
	}
	if got := ansi.Strip(lines[0]); got != "  1 services:" {
		t.Errorf("line 0 = %q, want %q", got, "  1 services:")
	}
	if got := ansi.Strip(lines[2]); got != "  3     image: nginx" {
		t.Errorf("line 2 = %q, want %q", got, "  3     image: nginx")
	}
	if got := strings.TrimSpace(ansi.Strip(lines[4])); got != "5" {
		t.Errorf("line 4 = %q, want only the gutter", got)
	}
}

func TestSyntaxTheme(t *testing.T) {
	if got := NewStyles("frappe").SyntaxTheme(); got != "catppuccin-frappe" {
		t.Errorf("SyntaxTheme() = %q, want catppuccin-frappe", got)
	}
	if got := NewStyles("unknown").SyntaxTheme(); got != "catppuccin-mocha" {
		t.Errorf("SyntaxTheme() = %q, want catppuccin-mocha", got)
	}
}
