package asciicast

import "encoding/json"

// Header is the normalized asciicast v3 header: a required version,
// positive cols/rows (accepted from either the v3 term block or the
// legacy top-level width/height fields), and passthrough metadata.
type Header struct {
	Version int    `json:"version"`
	Cols    int    `json:"cols"`
	Rows    int    `json:"rows"`
	Meta    Meta   `json:"-"`
	Raw     []byte `json:"-"`
}

// Meta carries the optional, opaque header fields the core never
// interprets itself.
type Meta struct {
	Title   string            `json:"title,omitempty"`
	Command string            `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// wireHeader mirrors the two header shapes a recording may use on the
// wire: the v3 "term" block, or the legacy flat width/height fields.
type wireHeader struct {
	Version int `json:"version"`
	Term    *struct {
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
		Type string `json:"type,omitempty"`
	} `json:"term,omitempty"`
	Width   int               `json:"width,omitempty"`
	Height  int               `json:"height,omitempty"`
	Title   string            `json:"title,omitempty"`
	Command string            `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// normalizeHeader decodes a raw header line into a Header, preferring
// term.cols/term.rows over width/height when both are present.
func normalizeHeader(line []byte) (Header, error) {
	var w wireHeader
	if err := json.Unmarshal(line, &w); err != nil {
		return Header{}, err
	}
	h := Header{
		Version: w.Version,
		Raw:     append([]byte(nil), line...),
		Meta: Meta{
			Title:   w.Title,
			Command: w.Command,
			Env:     w.Env,
		},
	}
	if w.Term != nil && w.Term.Cols > 0 && w.Term.Rows > 0 {
		h.Cols, h.Rows = w.Term.Cols, w.Term.Rows
	} else {
		h.Cols, h.Rows = w.Width, w.Height
	}
	return h, nil
}
