package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Status is the recording state shown in the frame.
type Status int

const (
	StatusRecording Status = iota
	StatusStopped
)

func (s Status) label() string {
	if s == StatusStopped {
		return "Stopped"
	}
	return "Recording"
}

// Frame contains the rendered terminal lines for one draw.
type Frame struct {
	Lines []string
}

const (
	barRune        = '█'
	horizontalRune = '─'
	verticalRune   = '│'

	legendText = " space Stop · q Quit "

	// Bars start two cells in from the left edge and repeat every two
	// cells: one glyph, one gap.
	barOriginX = 2
	barPeriod  = 2

	// ANSI 256 grayscale ramp, dim to bright.
	grayLo = 236
	grayHi = 255
)

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// Renderer converts bar values into bordered terminal frames.
type Renderer struct {
	width   int
	height  int
	useANSI bool
}

// New creates a Renderer. useANSI=false emits plain glyphs, which keeps
// test output comparable.
func New(width, height int, useANSI bool) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	return &Renderer{width: width, height: height, useANSI: useANSI}, nil
}

// Resize updates the frame dimensions.
func (r *Renderer) Resize(width, height int) {
	if width > 0 {
		r.width = width
	}
	if height > 0 {
		r.height = height
	}
}

// Width returns the current frame width.
func (r *Renderer) Width() int { return r.width }

// Render draws one frame: border, one vertical bar per value on a 2-cell
// period, bar height and brightness proportional to the value, status
// label bottom-left and keybinding legend bottom-right. note lands in the
// top border (device name, drop count).
func (r *Renderer) Render(values []float64, status Status, note string) Frame {
	if r.width < 4 || r.height < 3 {
		return Frame{Lines: []string{status.label()}}
	}

	innerW := r.width - 2
	innerH := r.height - 2

	lines := make([]string, 0, r.height)
	lines = append(lines, borderLine('┌', '┐', r.width, " micbar ", note))

	heights := barHeights(values, innerH)
	colors := barColors(values)

	var builder strings.Builder
	for row := 0; row < innerH; row++ {
		builder.Reset()
		builder.WriteRune(verticalRune)
		col := 0
		for bar := 0; bar < len(heights); bar++ {
			x := barOriginX - 1 + bar*barPeriod
			if x >= innerW {
				break
			}
			for ; col < x; col++ {
				builder.WriteByte(' ')
			}
			if barCovers(heights[bar], innerH, row) {
				if r.useANSI {
					builder.WriteString(colors[bar])
				}
				builder.WriteRune(barRune)
				if r.useANSI {
					builder.WriteString(resetANSI)
				}
			} else {
				builder.WriteByte(' ')
			}
			col++
		}
		for ; col < innerW; col++ {
			builder.WriteByte(' ')
		}
		builder.WriteRune(verticalRune)
		lines = append(lines, builder.String())
	}

	lines = append(lines, borderLine('└', '┘', r.width, " "+status.label()+" ", legendText))
	return Frame{Lines: lines}
}

// barHeights maps values to cell heights. Non-zero values always get at
// least one cell so quiet input still flickers.
func barHeights(values []float64, innerH int) []int {
	heights := make([]int, len(values))
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		h := int(math.Round(v * float64(innerH)))
		if h == 0 && v > 0.01 {
			h = 1
		}
		if h > innerH {
			h = innerH
		}
		heights[i] = h
	}
	return heights
}

func barColors(values []float64) []string {
	colors := make([]string, len(values))
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		idx := grayLo + int(v*float64(grayHi-grayLo))
		colors[i] = precomputedANSI[idx]
	}
	return colors
}

// barCovers reports whether a bar of height h, vertically centered in
// innerH rows, covers the given row.
func barCovers(h, innerH, row int) bool {
	if h <= 0 {
		return false
	}
	top := (innerH - h) / 2
	return row >= top && row < top+h
}

// borderLine builds a horizontal border with left-aligned and
// right-aligned text embedded in the rule.
func borderLine(left, right rune, width int, leftText, rightText string) string {
	inner := make([]rune, width-2)
	for i := range inner {
		inner[i] = horizontalRune
	}

	overlay(inner, []rune(leftText), 1)
	rightRunes := []rune(rightText)
	overlay(inner, rightRunes, len(inner)-len(rightRunes)-1)

	var builder strings.Builder
	builder.WriteRune(left)
	builder.WriteString(string(inner))
	builder.WriteRune(right)
	return builder.String()
}

func overlay(dst, src []rune, at int) {
	if at < 0 {
		at = 0
	}
	for i, r := range src {
		if at+i >= len(dst) {
			return
		}
		dst[at+i] = r
	}
}
