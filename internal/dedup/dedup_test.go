package dedup

import (
	"testing"

	"ragts/internal/snapshot"
)

func linesOf(texts ...string) []snapshot.Line {
	lines := make([]snapshot.Line, len(texts))
	for i, t := range texts {
		lines[i] = snapshot.Line{Spans: []snapshot.Span{{Text: t}}}
	}
	return lines
}

func rawSnapshot(texts ...string) *snapshot.Snapshot {
	s := snapshot.NewSnapshot(80, 24)
	s.Append(linesOf(texts...)...)
	return s
}

func textsOf(s *snapshot.Snapshot) []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = l.Text()
	}
	return out
}

func assertTexts(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRunZeroEpochsIsIdentity(t *testing.T) {
	raw := rawSnapshot("a", "b", "a", "b", "c")
	r := Run(raw, nil)
	assertTexts(t, textsOf(r.Clean), "a", "b", "a", "b", "c")
	for i := range raw.Lines {
		if r.RawToClean(i) != i {
			t.Fatalf("RawToClean(%d) = %d, want %d (identity)", i, r.RawToClean(i), i)
		}
	}
}

func TestRunThreeEpochRerenderMatches(t *testing.T) {
	// First epoch renders a menu; the next two epochs re-render the exact
	// same three lines after a clear, which should fold back onto the
	// original copy since the run length meets MinMatch.
	raw := rawSnapshot(
		"line1", "line2", "line3",
		"line1", "line2", "line3",
		"line1", "line2", "line3",
	)
	r := Run(raw, []int{3, 6})
	assertTexts(t, textsOf(r.Clean), "line1", "line2", "line3")
	for _, epochStart := range []int{0, 3, 6} {
		for j := 0; j < 3; j++ {
			if got := r.RawToClean(epochStart + j); got != j {
				t.Fatalf("RawToClean(%d) = %d, want %d", epochStart+j, got, j)
			}
		}
	}
}

func TestRunBelowMinMatchThresholdAppendsSeparately(t *testing.T) {
	// Only a 2-line match (below MinMatch=3) across the epoch boundary:
	// both copies must be kept distinct.
	raw := rawSnapshot("x", "y", "z", "x", "y")
	r := Run(raw, []int{3})
	if len(r.Clean.Lines) != 5 {
		t.Fatalf("len(clean) = %d, want 5 (no fold below MinMatch)", len(r.Clean.Lines))
	}
}

func TestRunStutterRemoval(t *testing.T) {
	raw := rawSnapshot("Hdr", "", "Hdr", "Body")
	r := Run(raw, []int{4})
	assertTexts(t, textsOf(r.Clean), "Hdr", "Body")
	if got := r.RawToClean(2); got != 0 {
		t.Fatalf("RawToClean(2) = %d, want 0 (surviving copy)", got)
	}
	if got := r.RawToClean(0); got != 0 {
		t.Fatalf("RawToClean(0) = %d, want 0 (forward probe to surviving copy)", got)
	}
	if got := r.RawToClean(1); got != 0 {
		t.Fatalf("RawToClean(1) = %d, want 0 (forward probe past trivial line)", got)
	}
	if got := r.RawToClean(3); got != 1 {
		t.Fatalf("RawToClean(3) = %d, want 1", got)
	}
}

func TestRunStutterToleratesTwoTrivialLines(t *testing.T) {
	raw := rawSnapshot("Hdr", "", " ", "Hdr", "Body")
	r := Run(raw, []int{5})
	assertTexts(t, textsOf(r.Clean), "Hdr", "Body")
}

func TestRunStutterRejectsThreeTrivialLines(t *testing.T) {
	// Three trivial lines between K and K' exceeds the tolerance, so no
	// stutter should be recognized and all distinct appended lines survive.
	raw := rawSnapshot("Hdr", "", "", "", "Hdr")
	r := Run(raw, []int{5})
	if len(r.Clean.Lines) != 5 {
		t.Fatalf("len(clean) = %d, want 5 (stutter tolerance exceeded)", len(r.Clean.Lines))
	}
}

func TestRunEmptyEpochHandledGracefully(t *testing.T) {
	raw := rawSnapshot("a", "b", "c")
	// Two boundaries at the same raw index: a zero-length epoch in between.
	r := Run(raw, []int{2, 2})
	assertTexts(t, textsOf(r.Clean), "a", "b", "c")
}

func TestRawLineCountToCleanBounds(t *testing.T) {
	raw := rawSnapshot("a", "b", "c")
	r := Run(raw, []int{2})
	if got := r.RawLineCountToClean(0); got != 0 {
		t.Fatalf("RawLineCountToClean(0) = %d, want 0", got)
	}
	if got := r.RawLineCountToClean(100); got != len(r.Clean.Lines) {
		t.Fatalf("RawLineCountToClean(overflow) = %d, want %d", got, len(r.Clean.Lines))
	}
}

func TestRunPreservesStylingOfSurvivingLine(t *testing.T) {
	raw := snapshot.NewSnapshot(80, 24)
	raw.Append(
		snapshot.Line{Spans: []snapshot.Span{{Text: "Hdr", Bold: true}}},
		snapshot.Line{Spans: []snapshot.Span{{Text: ""}}},
		snapshot.Line{Spans: []snapshot.Span{{Text: "Hdr", Bold: true}}},
	)
	r := Run(raw, []int{3})
	if len(r.Clean.Lines) != 1 {
		t.Fatalf("len(clean) = %d, want 1", len(r.Clean.Lines))
	}
	if !r.Clean.Lines[0].Spans[0].Bold {
		t.Fatalf("expected surviving line to keep its styling")
	}
}
