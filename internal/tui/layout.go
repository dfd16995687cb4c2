// pattern: Functional Core

package tui

// Region defines a rectangular area within the terminal.
type Region struct {
	X      int // Left position (0-indexed)
	Y      int // Top position (0-indexed)
	Width  int // Width in cells
	Height int // Height in lines
}

// Layout holds computed regions for all UI components.
type Layout struct {
	Sidebar   Region // Stack list (left column, full height above the status bar)
	Header    Region // Stack title, status and toggle
	Tabs      Region // Tab bar (1 line)
	Content   Region // Active tab
	StatusBar Region // Status bar (1 line)
}

// Fixed sizes for chrome elements
const (
	headerHeight    = 2 // Title + status line
	tabsHeight      = 1
	statusBarHeight = 1
	sidebarMin      = 18
	sidebarMax      = 32
)

// ComputeLayout calculates regions based on terminal dimensions.
// The sidebar takes a quarter of the width, clamped to [18, 32].
func ComputeLayout(width, height int) Layout {
	sidebarWidth := width / 4
	if sidebarWidth < sidebarMin {
		sidebarWidth = sidebarMin
	}
	if sidebarWidth > sidebarMax {
		sidebarWidth = sidebarMax
	}
	if sidebarWidth > width {
		sidebarWidth = width
	}

	bodyHeight := height - statusBarHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	mainX := sidebarWidth
	mainWidth := width - sidebarWidth
	if mainWidth < 0 {
		mainWidth = 0
	}

	contentHeight := bodyHeight - headerHeight - tabsHeight
	// Ensure minimum usable height
	if contentHeight < 3 {
		contentHeight = 3
	}

	y := 0
	header := Region{X: mainX, Y: y, Width: mainWidth, Height: headerHeight}
	y += headerHeight
	tabs := Region{X: mainX, Y: y, Width: mainWidth, Height: tabsHeight}
	y += tabsHeight
	content := Region{X: mainX, Y: y, Width: mainWidth, Height: contentHeight}

	return Layout{
		Sidebar:   Region{X: 0, Y: 0, Width: sidebarWidth, Height: bodyHeight},
		Header:    header,
		Tabs:      tabs,
		Content:   content,
		StatusBar: Region{X: 0, Y: bodyHeight, Width: width, Height: statusBarHeight},
	}
}

// EditorHeight returns the height of each definition editor. The two
// editors split the content area, leaving room for their labels and the
// check summary.
func (l Layout) EditorHeight() int {
	h := (l.Content.Height - 4) / 2
	if h < 1 {
		h = 1
	}
	return h
}

// LogHeight returns the log viewport height below the container selector.
func (l Layout) LogHeight() int {
	h := l.Content.Height - 1
	if h < 1 {
		h = 1
	}
	return h
}

// ListHeight returns the height available for the stack list after the
// sidebar title.
func (l Layout) ListHeight() int {
	h := l.Sidebar.Height - 2
	if h < 1 {
		h = 1
	}
	return h
}
