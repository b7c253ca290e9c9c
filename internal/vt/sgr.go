package vt

import (
	"strconv"
	"strings"

	"ragts/internal/snapshot"
)

// pen is the accumulated SGR state of one cell run: the colors and
// boolean attributes a terminal cell carries at a point in time.
type pen struct {
	fg, bg                                                        snapshot.Color
	bold, faint, italic, underline, strikethrough, blink, inverse bool
}

// applySGR updates pen in place from the CSI ... m sequences found in seq.
// seq may contain other escape sequences interleaved (Format.Render tends
// to emit only SGR, but this tolerates extras by skipping anything that
// isn't an "m"-terminated CSI sequence).
func applySGR(p *pen, seq string) {
	for {
		start := strings.IndexByte(seq, 0x1b)
		if start < 0 || start+1 >= len(seq) {
			return
		}
		if seq[start+1] != '[' {
			seq = seq[start+1:]
			continue
		}
		rest := seq[start+2:]
		end := 0
		for end < len(rest) && (rest[end] >= '0' && rest[end] <= '9' || rest[end] == ';') {
			end++
		}
		if end >= len(rest) {
			return
		}
		if rest[end] == 'm' {
			applySGRParams(p, rest[:end])
		}
		seq = rest[end+1:]
	}
}

func applySGRParams(p *pen, params string) {
	codes := splitCodes(params)
	for i := 0; i < len(codes); i++ {
		c := codes[i]
		switch {
		case c == 0:
			*p = pen{}
		case c == 1:
			p.bold = true
		case c == 2:
			p.faint = true
		case c == 3:
			p.italic = true
		case c == 4:
			p.underline = true
		case c == 5:
			p.blink = true
		case c == 7:
			p.inverse = true
		case c == 9:
			p.strikethrough = true
		case c == 22:
			p.bold, p.faint = false, false
		case c == 23:
			p.italic = false
		case c == 24:
			p.underline = false
		case c == 25:
			p.blink = false
		case c == 27:
			p.inverse = false
		case c == 29:
			p.strikethrough = false
		case c == 39:
			p.fg = snapshot.DefaultColor
		case c == 49:
			p.bg = snapshot.DefaultColor
		case c >= 30 && c <= 37:
			p.fg = snapshot.PaletteColor(uint8(c - 30))
		case c >= 90 && c <= 97:
			p.fg = snapshot.PaletteColor(uint8(c-90) + 8)
		case c >= 40 && c <= 47:
			p.bg = snapshot.PaletteColor(uint8(c - 40))
		case c >= 100 && c <= 107:
			p.bg = snapshot.PaletteColor(uint8(c-100) + 8)
		case c == 38 || c == 48:
			consumed, col := parseExtendedColor(codes[i+1:])
			if consumed == 0 {
				continue
			}
			if c == 38 {
				p.fg = col
			} else {
				p.bg = col
			}
			i += consumed
		}
	}
}

// parseExtendedColor parses the tail of a 38/48 sequence: either
// "5;n" (palette) or "2;r;g;b" (truecolor). Returns how many codes were
// consumed from rest and the resulting color.
func parseExtendedColor(rest []int) (int, snapshot.Color) {
	if len(rest) == 0 {
		return 0, snapshot.DefaultColor
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return 1, snapshot.DefaultColor
		}
		return 2, snapshot.PaletteColor(uint8(rest[1]))
	case 2:
		if len(rest) < 4 {
			return len(rest), snapshot.DefaultColor
		}
		return 4, snapshot.RGBColor(uint8(rest[1]), uint8(rest[2]), uint8(rest[3]))
	default:
		return 1, snapshot.DefaultColor
	}
}

func splitCodes(params string) []int {
	if params == "" {
		return []int{0}
	}
	parts := strings.Split(params, ";")
	codes := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			codes = append(codes, 0)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		codes = append(codes, n)
	}
	return codes
}
