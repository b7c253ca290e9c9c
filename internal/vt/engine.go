// Package vt wraps midterm.Terminal into the replay engine the pipeline
// needs: a live viewport plus a capped, monotonically-accounted
// scrollback history, fed from already-decoded asciicast Output/Resize
// events rather than a live PTY.
package vt

import (
	"github.com/vito/midterm"

	"ragts/internal/perror"
	"ragts/internal/snapshot"
)

// DefaultScrollbackLimit is the cap the pipeline uses; 0 passed to Create
// means unlimited.
const DefaultScrollbackLimit = 200_000

// Engine is a single-session, single-threaded VT100/ANSI replay engine.
// It is not safe for concurrent use; the orchestrator owns one Engine
// exclusively for the duration of a pipeline run.
type Engine struct {
	term       *midterm.Terminal
	cols, rows int

	scrollbackLimit int
	history         []snapshot.Line // capped, oldest first
	everAppended    int             // monotonic count of lines ever evicted into history

	inAltScreen   bool
	cursorVisible bool
}

// Create builds an Engine at the given viewport size. scrollbackLimit = 0
// means unlimited (history grows without bound).
func Create(cols, rows, scrollbackLimit int) *Engine {
	e := &Engine{
		term:            midterm.NewTerminal(rows, cols),
		cols:            cols,
		rows:            rows,
		scrollbackLimit: scrollbackLimit,
		cursorVisible:   true,
	}
	e.term.OnScrollback(func(line midterm.Line) {
		e.history = append(e.history, lineFromMidterm(line))
		e.everAppended++
		if e.scrollbackLimit > 0 && len(e.history) > e.scrollbackLimit {
			trim := len(e.history) - e.scrollbackLimit
			e.history = e.history[trim:]
		}
	})
	return e
}

// Feed scans data for alt-screen/cursor toggles and, outside the alt
// screen, a primary-buffer clear, then writes the (possibly ESC[3J
// stripped) bytes into the terminal. It returns whether a primary-buffer
// clear was observed, for the orchestrator to record an epoch boundary.
func (e *Engine) Feed(data []byte) (sawClear bool, err error) {
	stripped, altScreen, visible, clear := scanToggles(data, e.inAltScreen, e.cursorVisible)
	e.inAltScreen = altScreen
	e.cursorVisible = visible

	if len(stripped) > 0 {
		if _, werr := e.term.Write(stripped); werr != nil {
			return false, perror.Wrap(perror.VtFailure, werr)
		}
	}
	return clear, nil
}

// Resize changes the viewport size of the live terminal. Lines already in
// history are not re-wrapped; they keep the width they were captured at.
func (e *Engine) Resize(cols, rows int) {
	e.cols, e.rows = cols, rows
	e.term.Resize(rows, cols)
}

// GetView returns the live viewport: exactly as many lines as the
// viewport has rows (see GetSize).
func (e *Engine) GetView() *snapshot.Snapshot {
	cols, rows := e.GetSize()
	s := snapshot.NewSnapshot(cols, rows)
	for r := 0; r < rows; r++ {
		s.Append(renderRow(e.term, r))
	}
	return s
}

// GetAllLines returns the capped scrollback history followed by the
// current viewport. Its length is RawLineCount() - EvictedPrefix() at
// this instant.
func (e *Engine) GetAllLines() *snapshot.Snapshot {
	cols, rows := e.GetSize()
	s := snapshot.NewSnapshot(cols, rows)
	s.Append(e.history...)
	for r := 0; r < rows; r++ {
		s.Append(renderRow(e.term, r))
	}
	return s
}

// RawLineCount is the monotonic line count used for epoch boundaries:
// every line ever evicted into history, plus the current viewport's row
// count. It never decreases except across a downward Resize.
func (e *Engine) RawLineCount() int {
	_, rows := e.GetSize()
	return e.everAppended + rows
}

// EvictedPrefix reports how many of the lines ever appended to history
// have since been trimmed by the scrollback cap.
func (e *Engine) EvictedPrefix() int {
	return e.everAppended - len(e.history)
}

// GetCursor returns the cursor's (col, row) and whether it is currently
// visible. Coordinates are 0-indexed.
func (e *Engine) GetCursor() (col, row int, visible bool) {
	return e.term.Cursor.X, e.term.Cursor.Y, e.cursorVisible
}

// GetSize returns the current viewport dimensions.
func (e *Engine) GetSize() (cols, rows int) {
	return e.cols, e.rows
}

// InAltScreen reports whether the alt screen is currently active, as
// tracked from scanned Output payloads.
func (e *Engine) InAltScreen() bool {
	return e.inAltScreen
}

func lineFromMidterm(line midterm.Line) snapshot.Line {
	return parseANSILine(line.Display())
}
