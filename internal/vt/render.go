package vt

import (
	"strings"

	"github.com/vito/midterm"

	"ragts/internal/snapshot"
)

// renderRow walks one row's format regions the same way RenderLineFrom
// does for a live display, but captures styled Span values instead of
// ANSI bytes, merging adjacent regions that share a pen into one Span.
func renderRow(t *midterm.Terminal, row int) snapshot.Line {
	if row < 0 || row >= len(t.Content) {
		return snapshot.Line{}
	}
	line := t.Content[row]

	var spans []snapshot.Span
	var pos int
	var lastFormat midterm.Format
	haveLast := false

	for region := range t.Format.Regions(row) {
		f := region.F
		end := pos + region.Size
		contentEnd := end
		if contentEnd > len(line) {
			contentEnd = len(line)
		}
		var text string
		if pos < len(line) {
			text = string(line[pos:contentEnd])
		}
		pos = end

		if haveLast && f == lastFormat && len(spans) > 0 {
			spans[len(spans)-1].Text += text
			continue
		}
		spans = append(spans, spanFromFormat(f, text))
		lastFormat = f
		haveLast = true
	}
	return snapshot.Line{Spans: spans}
}

func spanFromFormat(f midterm.Format, text string) snapshot.Span {
	var p pen
	applySGR(&p, f.Render())
	return spanFromPen(p, text)
}

func spanFromPen(p pen, text string) snapshot.Span {
	return snapshot.Span{
		Text:          text,
		FG:            p.fg,
		BG:            p.bg,
		Bold:          p.bold,
		Faint:         p.faint,
		Italic:        p.italic,
		Underline:     p.underline,
		Strikethrough: p.strikethrough,
		Blink:         p.blink,
		Inverse:       p.inverse,
	}
}

// parseANSILine splits an already-rendered ANSI row (as produced by
// midterm.Line.Display, SGR sequences interleaved with text) back into
// styled Spans, merging consecutive runs sharing the same pen.
func parseANSILine(s string) snapshot.Line {
	var spans []snapshot.Span
	var p pen
	var buf strings.Builder

	emit := func() {
		if buf.Len() > 0 {
			spans = append(spans, spanFromPen(p, buf.String()))
			buf.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			if end := strings.IndexByte(s[i:], 'm'); end >= 0 {
				emit()
				applySGRParams(&p, s[i+2:i+end])
				i += end + 1
				continue
			}
		}
		buf.WriteByte(s[i])
		i++
	}
	emit()
	return snapshot.Line{Spans: spans}
}
