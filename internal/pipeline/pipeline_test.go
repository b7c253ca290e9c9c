package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"ragts/internal/repository"
	"ragts/internal/repository/memory"
)

// cast builds a minimal asciicast v3 NDJSON recording: a header sized
// cols x rows, followed by one `[delta, kind, payload]` line per event.
func cast(cols, rows int, events [][3]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"version":3,"term":{"cols":%d,"rows":%d}}`+"\n", cols, rows)
	for _, ev := range events {
		fmt.Fprintf(&b, `[%s,"%s",%s]`+"\n", ev[0], ev[1], strconv.Quote(ev[2]))
	}
	return b.String()
}

func setup(t *testing.T) (context.Context, repository.Store) {
	t.Helper()
	return context.Background(), memory.New()
}

func run(t *testing.T, store repository.Store, recording string) *Result {
	t.Helper()
	ctx := context.Background()
	id := "sess"
	if err := store.CreateSession(ctx, id, 0, 0); err != nil {
		t.Fatalf("create session: %v", err)
	}
	result, err := Run(ctx, id, strings.NewReader(recording), store, DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func TestPureCLISession(t *testing.T) {
	_, store := setup(t)
	rec := cast(80, 24, [][3]string{
		{"0.1", "o", "line one\r\n"},
		{"0.1", "o", "line two\r\n"},
	})

	result := run(t, store, rec)
	if result.EventCount != 2 {
		t.Errorf("event count = %d, want 2", result.EventCount)
	}
	if result.Snapshot == nil || result.Snapshot.LineCount() == 0 {
		t.Fatalf("expected a non-empty snapshot")
	}
}

func TestMarkerAlwaysProducesASection(t *testing.T) {
	_, store := setup(t)
	events := make([][3]string, 0, 150)
	for i := 0; i < 120; i++ {
		events = append(events, [3]string{"0.01", "o", "x\r\n"})
	}
	events = append(events, [3]string{"0.01", "m", "checkpoint"})
	for i := 0; i < 20; i++ {
		events = append(events, [3]string{"0.01", "o", "y\r\n"})
	}
	rec := cast(80, 24, events)

	result := run(t, store, rec)

	var sawMarker bool
	for _, sec := range result.Sections {
		if sec.Type == repository.SectionMarker && sec.Label == "checkpoint" {
			sawMarker = true
		}
	}
	if !sawMarker {
		t.Errorf("expected a marker section labeled %q, got %+v", "checkpoint", result.Sections)
	}
}

func TestResizeMidSession(t *testing.T) {
	_, store := setup(t)
	rec := cast(80, 24, [][3]string{
		{"0.1", "o", "before\r\n"},
		{"0.1", "r", "100x30"},
		{"0.1", "o", "after\r\n"},
	})

	result := run(t, store, rec)
	if result.EventCount != 3 {
		t.Errorf("event count = %d, want 3", result.EventCount)
	}
}

func TestMalformedResizeIsRecoveredLocally(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()
	id := "sess"
	if err := store.CreateSession(ctx, id, 0, 0); err != nil {
		t.Fatalf("create session: %v", err)
	}
	recording := `{"version":3,"term":{"cols":80,"rows":24}}
[0.1,"o","hi\r\n"]
[0.1,"r","not-a-size"]
[0.1,"o","still going\r\n"]
`
	result, err := Run(ctx, id, strings.NewReader(recording), store, DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.EventCount != 3 {
		t.Errorf("event count = %d, want 3 (malformed resize recovered, not dropped)", result.EventCount)
	}
}

func TestFailedParseMarksSessionFailed(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()
	id := "sess"
	if err := store.CreateSession(ctx, id, 0, 0); err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err := Run(ctx, id, strings.NewReader("not json at all"), store, DefaultOptions())
	if err == nil {
		t.Fatal("expected an error for an invalid header")
	}

	sess, serr := store.Session(ctx, id)
	if serr != nil {
		t.Fatalf("session: %v", serr)
	}
	if sess.Status != repository.Failed {
		t.Errorf("status = %q, want %q", sess.Status, repository.Failed)
	}
}

func TestCommitNeverLeavesPartialSections(t *testing.T) {
	_, store := setup(t)
	rec := cast(80, 24, [][3]string{
		{"0.1", "o", "hello\r\n"},
	})
	result := run(t, store, rec)

	sections, err := store.SectionsFor(context.Background(), "sess")
	if err != nil {
		t.Fatalf("sections for: %v", err)
	}
	if len(sections) != len(result.Sections) {
		t.Errorf("committed %d sections, pipeline returned %d", len(sections), len(result.Sections))
	}
}
