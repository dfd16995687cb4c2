// pattern: Functional Core

package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Terminal is a fixed cols x rows character grid fed with raw shell
// output. Control characters and the cursor movement and erase CSI
// sequences are applied; colours, titles and mode changes are dropped.
// Output past the last row scrolls.
type Terminal struct {
	cols, rows int
	cells      [][]rune
	row, col   int

	// parser keeps its state between writes, so sequences and runes split
	// across reads are completed by the next write.
	parser *ansi.Parser
}

// NewTerminal returns a blank grid. Non-positive sizes default to 80x24.
func NewTerminal(cols, rows int) *Terminal {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	t := &Terminal{cols: cols, rows: rows, cells: make([][]rune, rows)}
	for i := range t.cells {
		t.cells[i] = blankRow(cols)
	}
	t.parser = ansi.NewParser()
	t.parser.SetHandler(ansi.Handler{
		Print:     t.print,
		Execute:   t.execute,
		HandleCsi: t.csi,
	})
	return t
}

// Size returns the grid dimensions.
func (t *Terminal) Size() (cols, rows int) {
	return t.cols, t.rows
}

// Cursor returns the zero-based cursor position.
func (t *Terminal) Cursor() (row, col int) {
	return t.row, t.col
}

// Write feeds raw output into the grid.
func (t *Terminal) Write(p []byte) {
	for _, b := range p {
		t.parser.Advance(b)
	}
}

func (t *Terminal) print(r rune) {
	if t.col >= t.cols {
		t.col = 0
		t.lineFeed()
	}
	t.cells[t.row][t.col] = r
	t.col++
}

func (t *Terminal) execute(b byte) {
	switch b {
	case '\r':
		t.col = 0
	case '\n', '\v', '\f':
		t.lineFeed()
	case '\b':
		if t.col >= t.cols {
			t.col = t.cols - 1
		}
		if t.col > 0 {
			t.col--
		}
	case '\t':
		next := (t.col/8 + 1) * 8
		if next >= t.cols {
			next = t.cols - 1
		}
		t.col = next
	}
}

func (t *Terminal) csi(cmd ansi.Cmd, params ansi.Params) {
	if cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return
	}
	// count returns a movement parameter, where a missing or zero value
	// means one.
	count := func(i int) int {
		n, _, _ := params.Param(i, 1)
		return max(n, 1)
	}
	switch cmd.Final() {
	case 'A':
		t.moveTo(t.row-count(0), t.col)
	case 'B':
		t.moveTo(t.row+count(0), t.col)
	case 'C':
		t.moveTo(t.row, t.col+count(0))
	case 'D':
		t.moveTo(t.row, min(t.col, t.cols-1)-count(0))
	case 'G':
		t.moveTo(t.row, count(0)-1)
	case 'd':
		t.moveTo(count(0)-1, t.col)
	case 'H', 'f':
		t.moveTo(count(0)-1, count(1)-1)
	case 'K':
		mode, _, _ := params.Param(0, 0)
		t.eraseLine(t.row, mode)
	case 'J':
		mode, _, _ := params.Param(0, 0)
		t.eraseDisplay(mode)
	}
}

func (t *Terminal) moveTo(row, col int) {
	t.row = min(max(row, 0), t.rows-1)
	t.col = min(max(col, 0), t.cols-1)
}

// eraseLine blanks part of a row: 0 from the cursor to the end, 1 from
// the start through the cursor, 2 the whole row.
func (t *Terminal) eraseLine(row, mode int) {
	from, to := 0, t.cols
	switch mode {
	case 0:
		from = min(t.col, t.cols)
	case 1:
		to = min(t.col+1, t.cols)
	case 2:
	default:
		return
	}
	for i := from; i < to; i++ {
		t.cells[row][i] = ' '
	}
}

// eraseDisplay is eraseLine for the whole grid: 0 below the cursor, 1
// above it, 2 and 3 everything.
func (t *Terminal) eraseDisplay(mode int) {
	switch mode {
	case 0:
		t.eraseLine(t.row, 0)
		for i := t.row + 1; i < t.rows; i++ {
			t.cells[i] = blankRow(t.cols)
		}
	case 1:
		for i := 0; i < t.row; i++ {
			t.cells[i] = blankRow(t.cols)
		}
		t.eraseLine(t.row, 1)
	case 2, 3:
		for i := range t.cells {
			t.cells[i] = blankRow(t.cols)
		}
	}
}

func (t *Terminal) lineFeed() {
	if t.row < t.rows-1 {
		t.row++
		return
	}
	copy(t.cells, t.cells[1:])
	t.cells[t.rows-1] = blankRow(t.cols)
}

// Lines returns the grid rows with trailing blanks trimmed.
func (t *Terminal) Lines() []string {
	out := make([]string, t.rows)
	for i, row := range t.cells {
		out[i] = strings.TrimRight(string(row), " ")
	}
	return out
}

// String renders the grid as newline separated rows.
func (t *Terminal) String() string {
	return strings.Join(t.Lines(), "\n")
}

func blankRow(cols int) []rune {
	row := make([]rune, cols)
	for i := range row {
		row[i] = ' '
	}
	return row
}
