// viewport.go provides a reusable scrollable viewport component
// with vertical and horizontal scrolling, paging and text wrapping.
//
// Content lines may carry lipgloss styling; cutting and wrapping are
// done on display cells, not bytes, so escape sequences stay intact.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Viewport is a scrollable text area.
type Viewport struct {
	width    int
	height   int
	content  []string
	scrollY  int
	scrollX  int
	wrapText bool
	// follow keeps the view pinned to the last line as content grows,
	// until the user scrolls up.
	follow bool
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{width: width, height: height}
}

// SetContent replaces the viewport content.
func (v *Viewport) SetContent(content string) {
	v.SetContentLines(strings.Split(content, "\n"))
}

// SetContentLines replaces the viewport content with pre-split lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = lines
	if v.follow {
		v.scrollY = v.maxScrollY()
	}
	v.clampScroll()
}

// SetFollow turns bottom pinning on or off.
func (v *Viewport) SetFollow(on bool) {
	v.follow = on
	if on {
		v.End()
	}
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// Height is the number of content rows.
func (v *Viewport) Height() int { return v.height }

// ToggleWrap toggles text wrapping.
func (v *Viewport) ToggleWrap() {
	v.wrapText = !v.wrapText
	v.scrollX = 0
	v.clampScroll()
}

// ScrollUp moves the viewport up by n lines.
func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.clampScroll()
	if v.scrollY < v.maxScrollY() {
		v.follow = false
	}
}

// ScrollDown moves the viewport down by n lines.
func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
}

// ScrollLeft moves the viewport left.
func (v *Viewport) ScrollLeft(n int) {
	if !v.wrapText {
		v.scrollX -= n
		if v.scrollX < 0 {
			v.scrollX = 0
		}
	}
}

// ScrollRight moves the viewport right.
func (v *Viewport) ScrollRight(n int) {
	if !v.wrapText {
		v.scrollX += n
	}
}

// PageUp scrolls up by one page.
func (v *Viewport) PageUp() { v.ScrollUp(v.height) }

// PageDown scrolls down by one page.
func (v *Viewport) PageDown() { v.ScrollDown(v.height) }

// Home scrolls to the top.
func (v *Viewport) Home() {
	v.scrollY = 0
	v.scrollX = 0
	v.follow = false
}

// End scrolls to the bottom.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
}

// ScrollKey applies the shared scroll bindings and reports whether key
// was one of them.
func (v *Viewport) ScrollKey(key string) bool {
	switch key {
	case "pgup":
		v.PageUp()
	case "pgdown":
		v.PageDown()
	case "ctrl+k":
		v.ScrollUp(1)
	case "ctrl+j":
		v.ScrollDown(1)
	case "ctrl+h":
		v.ScrollLeft(4)
	case "ctrl+l":
		v.ScrollRight(4)
	case "ctrl+w":
		v.ToggleWrap()
	case "home":
		v.Home()
	case "end":
		v.End()
	default:
		return false
	}
	return true
}

// Render returns the visible portion of the content.
func (v *Viewport) Render() string {
	if len(v.content) == 0 {
		return ""
	}

	lines := v.lines()
	end := v.scrollY + v.height
	if end > len(lines) {
		end = len(lines)
	}
	var visible []string
	if v.scrollY < end {
		visible = append(visible, lines[v.scrollY:end]...)
	}
	if !v.wrapText {
		for i, line := range visible {
			visible[i] = ansi.Cut(line, v.scrollX, v.scrollX+v.width)
		}
	}
	for len(visible) < v.height {
		visible = append(visible, "")
	}

	content := strings.Join(visible, "\n")
	if indicator := v.scrollIndicator(len(lines)); indicator != "" {
		return lipgloss.JoinVertical(lipgloss.Left, content, indicator)
	}
	return content
}

// lines returns the content as displayed, wrapped when wrapping is on.
func (v *Viewport) lines() []string {
	if !v.wrapText || v.width <= 0 {
		return v.content
	}
	var wrapped []string
	for _, line := range v.content {
		wrapped = append(wrapped, strings.Split(ansi.Hardwrap(line, v.width, true), "\n")...)
	}
	return wrapped
}

func (v *Viewport) clampScroll() {
	maxY := v.maxScrollY()
	if v.scrollY > maxY {
		v.scrollY = maxY
	}
	if v.scrollY < 0 {
		v.scrollY = 0
	}
}

func (v *Viewport) maxScrollY() int {
	max := len(v.lines()) - v.height
	if max < 0 {
		return 0
	}
	return max
}

func (v *Viewport) scrollIndicator(total int) string {
	if total <= v.height || v.width < 24 {
		return ""
	}
	pct := (v.scrollY + v.height) * 100 / total
	if pct > 100 {
		pct = 100
	}
	label := fmt.Sprintf(" %d%% (%d/%d)", pct, v.scrollY+1, total)
	fill := v.width - lipgloss.Width(label)
	if fill < 0 {
		fill = 0
	}
	return StyleDimmed.Render(strings.Repeat("─", fill) + label)
}
