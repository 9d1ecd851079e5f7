package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

type styledText struct {
	text  string
	style tcell.Style
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawBox(screen tcell.Screen, x, y, width, height int, style tcell.Style) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', style)
	setCell(screen, right, y, '+', style)
	setCell(screen, x, bottom, '+', style)
	setCell(screen, right, bottom, '+', style)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', style)
		setCell(screen, col, bottom, '-', style)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', style)
		setCell(screen, right, row, '|', style)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}}, style)
}

// drawTitle writes text over a box border without blanking the rest of it.
func drawTitle(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	runes := []rune(text)
	drawText(screen, x, y, min(len(runes), width), text, style)
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune, fill tcell.Style) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', fill)
		col++
	}
}

func flattenStyledText(parts []styledText, width int) []styledRune {
	result := make([]styledRune, 0, len(parts))
	used := 0
	for _, part := range parts {
		runes := []rune(part.text)
		if used+len(runes) > width {
			runes = runes[:max(0, width-used)]
		}
		result = append(result, styledRune{r: runes, style: part.style})
		used += len(runes)
		if used >= width {
			break
		}
	}
	return result
}

func styledString(parts []styledRune) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(string(part.r))
	}
	return b.String()
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}
