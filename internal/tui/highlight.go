// pattern: Functional Core

package tui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/x/ansi"
)

// Lexers for the two definition files.
const (
	yamlLexer = "yaml"
	envLexer  = "bash"
)

// highlight colours source for a 256-colour terminal. On a lexer error
// source is returned unchanged.
func highlight(source, lexer, style string) string {
	var b strings.Builder
	if err := quick.Highlight(&b, source, lexer, "terminal256", style); err != nil {
		return source
	}
	return b.String()
}

// highlightBlock renders source highlighted and numbered like the editor,
// cut to width columns and padded or cut to height rows.
func highlightBlock(source, lexer string, styles *Styles, width, height int) string {
	lines := strings.Split(highlight(source, lexer, styles.SyntaxTheme()), "\n")
	out := make([]string, height)
	for i := range out {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		gutter := styles.HelpStyle().Render(fmt.Sprintf("%3d ", i+1))
		out[i] = ansi.Truncate(gutter+line, width, "")
	}
	return strings.Join(out, "\n")
}
