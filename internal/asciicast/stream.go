// Package asciicast parses the asciicast v3 NDJSON wire format: a header
// line followed by one JSON-array event per line. Parsing is line-at-a-time
// and best-effort on events — a malformed event line is skipped and
// counted rather than aborting the whole recording, since recordings can
// arrive truncated.
package asciicast

import (
	"bufio"
	"bytes"
	"io"

	"ragts/internal/perror"
)

// Stream reads header and events from an asciicast v3 byte source.
// Construct with Open; call Header once, then Next repeatedly.
type Stream struct {
	scanner   *bufio.Scanner
	header    Header
	lineNo    int
	malformed int
	exhausted bool
}

// Open reads and validates the header from r, then returns a Stream ready
// to yield events via Next. It fails fast per the wire contract: empty
// input, a non-version-3 header, or a header missing both cols/rows forms.
func Open(r io.Reader) (*Stream, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	s := &Stream{scanner: scanner}

	var headerLine []byte
	for {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, perror.Wrap(perror.InvalidFormat, err)
			}
			return nil, perror.New(perror.InvalidFormat, "empty input")
		}
		s.lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		headerLine = append([]byte(nil), line...)
		break
	}

	header, err := normalizeHeader(headerLine)
	if err != nil {
		return nil, perror.WrapLine(perror.InvalidFormat, s.lineNo, err)
	}
	if header.Version != 3 {
		return nil, perror.WrapLine(perror.InvalidVersion, s.lineNo, errVersion(header.Version))
	}
	if header.Cols <= 0 || header.Rows <= 0 {
		return nil, perror.WrapLine(perror.InvalidHeader, s.lineNo, errDimensions)
	}

	s.header = header
	return s, nil
}

// Header returns the normalized header. Valid for the lifetime of the Stream.
func (s *Stream) Header() Header {
	return s.header
}

// Next returns the next event, or io.EOF once the stream is exhausted.
// Malformed lines are skipped silently; use Malformed to see the count.
func (s *Stream) Next() (Event, error) {
	if s.exhausted {
		return Event{}, io.EOF
	}
	for s.scanner.Scan() {
		s.lineNo++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := parseEvent(line)
		if err != nil {
			s.malformed++
			continue
		}
		return ev, nil
	}
	s.exhausted = true
	if err := s.scanner.Err(); err != nil {
		return Event{}, perror.WrapLine(perror.InvalidFormat, s.lineNo, err)
	}
	return Event{}, io.EOF
}

// Malformed reports how many event lines were skipped so far because they
// failed to parse.
func (s *Stream) Malformed() int {
	return s.malformed
}

// LineNo reports the 1-based line number of the most recently read line.
func (s *Stream) LineNo() int {
	return s.lineNo
}
