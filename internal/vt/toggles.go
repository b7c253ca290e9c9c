package vt

import "bytes"

// The exact sequence set below is the heuristic named in the design notes:
// matched verbatim, not a general CSI parse. ESC[3J additionally gets
// stripped from the bytes that reach the terminal, since it would erase
// scrollback the deduplicator still needs to see.
var (
	seqAltEnter   = []byte("\x1b[?1049h")
	seqAltExit    = []byte("\x1b[?1049l")
	seqClear2J    = []byte("\x1b[2J")
	seqClear3J    = []byte("\x1b[3J")
	seqHomeErase  = []byte("\x1b[H\x1b[J")
	seqCursorHide = []byte("\x1b[?25l")
	seqCursorShow = []byte("\x1b[?25h")
)

// scanToggles inspects one Output event's payload for alt-screen
// enter/exit, cursor visibility toggles, and, while not in the alt
// screen, a primary-buffer clear sequence. It returns the bytes to
// actually feed the VT (ESC[3J stripped) along with the updated
// alt-screen/cursor state and whether a qualifying clear was seen.
//
// Sequences are matched left to right in the order they occur, so a
// chunk that both exits the alt screen and then clears the primary
// buffer is handled correctly in one pass.
func scanToggles(data []byte, inAltScreen, cursorVisible bool) (stripped []byte, altScreen, visible bool, sawClear bool) {
	altScreen = inAltScreen
	visible = cursorVisible
	out := make([]byte, 0, len(data))

	for i := 0; i < len(data); {
		switch {
		case bytes.HasPrefix(data[i:], seqAltEnter):
			altScreen = true
			out = append(out, seqAltEnter...)
			i += len(seqAltEnter)
		case bytes.HasPrefix(data[i:], seqAltExit):
			altScreen = false
			out = append(out, seqAltExit...)
			i += len(seqAltExit)
		case bytes.HasPrefix(data[i:], seqCursorHide):
			visible = false
			out = append(out, seqCursorHide...)
			i += len(seqCursorHide)
		case bytes.HasPrefix(data[i:], seqCursorShow):
			visible = true
			out = append(out, seqCursorShow...)
			i += len(seqCursorShow)
		case bytes.HasPrefix(data[i:], seqClear3J):
			if !altScreen {
				sawClear = true
			}
			i += len(seqClear3J) // stripped: do not forward to the VT
		case !altScreen && bytes.HasPrefix(data[i:], seqHomeErase):
			sawClear = true
			out = append(out, seqHomeErase...)
			i += len(seqHomeErase)
		case !altScreen && bytes.HasPrefix(data[i:], seqClear2J):
			sawClear = true
			out = append(out, seqClear2J...)
			i += len(seqClear2J)
		default:
			out = append(out, data[i])
			i++
		}
	}
	return out, altScreen, visible, sawClear
}
