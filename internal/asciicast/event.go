package asciicast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the one-character asciicast event tag.
type Kind string

const (
	Output Kind = "o"
	Input  Kind = "i"
	Marker Kind = "m"
	Resize Kind = "r"
	Exit   Kind = "x"
)

// Event is one parsed `[time, kind, payload]` line. Time is the raw delta
// from the previous event, exactly as it appeared on the wire — the
// caller decides whether and how to accumulate it.
type Event struct {
	DeltaTime float64
	Kind      Kind
	Payload   string
}

// ParseResize decodes a Resize event's "COLSxROWS" payload.
func ParseResize(payload string) (cols, rows int, err error) {
	i := strings.IndexByte(payload, 'x')
	if i < 0 {
		return 0, 0, fmt.Errorf("malformed resize payload %q: missing 'x'", payload)
	}
	cols, err = strconv.Atoi(payload[:i])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed resize payload %q: %w", payload, err)
	}
	rows, err = strconv.Atoi(payload[i+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed resize payload %q: %w", payload, err)
	}
	if cols <= 0 || rows <= 0 {
		return 0, 0, fmt.Errorf("malformed resize payload %q: non-positive dimension", payload)
	}
	return cols, rows, nil
}

// Recognized reports whether Kind is one this package understands.
// Unrecognized kinds are parsed (so line numbers stay aligned) but the
// caller is expected to skip them per the wire contract.
func (k Kind) Recognized() bool {
	switch k {
	case Output, Input, Marker, Resize, Exit:
		return true
	default:
		return false
	}
}

// parseEvent decodes one NDJSON event line: a 3-element JSON array of
// [time, kind, payload]. payload is almost always a string; Exit may send
// its code as a bare number, which is normalized to its decimal string.
func parseEvent(line []byte) (Event, error) {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("decode event array: %w", err)
	}

	var dt float64
	if err := json.Unmarshal(raw[0], &dt); err != nil {
		return Event{}, fmt.Errorf("decode event time: %w", err)
	}

	var kind string
	if err := json.Unmarshal(raw[1], &kind); err != nil {
		return Event{}, fmt.Errorf("decode event kind: %w", err)
	}

	payload, err := decodePayload(raw[2])
	if err != nil {
		return Event{}, fmt.Errorf("decode event payload: %w", err)
	}

	return Event{DeltaTime: dt, Kind: Kind(kind), Payload: payload}, nil
}

func decodePayload(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("payload is neither string nor number: %s", raw)
}
