package asciicast

import (
	"io"
	"strings"
	"testing"

	"ragts/internal/perror"
)

func TestOpenValidHeaderTermForm(t *testing.T) {
	input := `{"version":3,"term":{"cols":80,"rows":24}}` + "\n" +
		`[0.1,"o","hello"]` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := s.Header()
	if h.Cols != 80 || h.Rows != 24 || h.Version != 3 {
		t.Fatalf("Header = %+v, want cols=80 rows=24 version=3", h)
	}
}

func TestOpenLegacyWidthHeightForm(t *testing.T) {
	input := `{"version":3,"width":100,"height":40}` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := s.Header()
	if h.Cols != 100 || h.Rows != 40 {
		t.Fatalf("Header = %+v, want cols=100 rows=40", h)
	}
}

func TestOpenPrefersTermOverLegacy(t *testing.T) {
	input := `{"version":3,"term":{"cols":80,"rows":24},"width":10,"height":10}` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := s.Header()
	if h.Cols != 80 || h.Rows != 24 {
		t.Fatalf("Header = %+v, want term values preferred", h)
	}
}

func TestOpenEmptyInput(t *testing.T) {
	_, err := Open(strings.NewReader(""))
	if !perror.Is(err, perror.InvalidFormat) {
		t.Fatalf("Open(empty) err = %v, want InvalidFormat", err)
	}
}

func TestOpenWrongVersion(t *testing.T) {
	_, err := Open(strings.NewReader(`{"version":2,"width":80,"height":24}` + "\n"))
	if !perror.Is(err, perror.InvalidVersion) {
		t.Fatalf("Open(v2) err = %v, want InvalidVersion", err)
	}
}

func TestOpenMissingDimensions(t *testing.T) {
	_, err := Open(strings.NewReader(`{"version":3}` + "\n"))
	if !perror.Is(err, perror.InvalidHeader) {
		t.Fatalf("Open(no dims) err = %v, want InvalidHeader", err)
	}
}

func TestOpenSkipsLeadingBlankLines(t *testing.T) {
	input := "\n\n" + `{"version":3,"width":80,"height":24}` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Header().Cols != 80 {
		t.Fatalf("Header = %+v", s.Header())
	}
}

func TestNextSkipsMalformedLines(t *testing.T) {
	input := `{"version":3,"width":80,"height":24}` + "\n" +
		`[0.1,"o","first"]` + "\n" +
		`not json at all` + "\n" +
		`[0.2,"o","second"]` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ev1, err := s.Next()
	if err != nil || ev1.Payload != "first" {
		t.Fatalf("Next() = %+v, %v, want first event", ev1, err)
	}
	ev2, err := s.Next()
	if err != nil || ev2.Payload != "second" {
		t.Fatalf("Next() = %+v, %v, want second event (malformed skipped)", ev2, err)
	}
	if s.Malformed() != 1 {
		t.Fatalf("Malformed() = %d, want 1", s.Malformed())
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("Next() at end = %v, want io.EOF", err)
	}
}

func TestNextDecodesAllKinds(t *testing.T) {
	input := `{"version":3,"width":80,"height":24}` + "\n" +
		`[0.0,"o","out"]` + "\n" +
		`[0.0,"i","in"]` + "\n" +
		`[0.0,"m","checkpoint"]` + "\n" +
		`[0.0,"r","120x40"]` + "\n" +
		`[0.0,"x",0]` + "\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := []struct {
		kind    Kind
		payload string
	}{
		{Output, "out"},
		{Input, "in"},
		{Marker, "checkpoint"},
		{Resize, "120x40"},
		{Exit, "0"},
	}
	for i, w := range want {
		ev, err := s.Next()
		if err != nil {
			t.Fatalf("Next() #%d: %v", i, err)
		}
		if ev.Kind != w.kind || ev.Payload != w.payload {
			t.Errorf("Next() #%d = %+v, want kind=%s payload=%s", i, ev, w.kind, w.payload)
		}
	}
}

func TestNextSkipsBlankEventLines(t *testing.T) {
	input := `{"version":3,"width":80,"height":24}` + "\n" +
		"\n" +
		`[0.1,"o","only"]` + "\n" +
		"\n"
	s, err := Open(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ev, err := s.Next()
	if err != nil || ev.Payload != "only" {
		t.Fatalf("Next() = %+v, %v", ev, err)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("Next() at end = %v, want io.EOF", err)
	}
}

func TestUnrecognizedKindNotRecognized(t *testing.T) {
	if Kind("z").Recognized() {
		t.Fatalf("Kind(z).Recognized() = true, want false")
	}
	if !Output.Recognized() {
		t.Fatalf("Output.Recognized() = false, want true")
	}
}
