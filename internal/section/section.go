// Package section detects the fold-anchor boundaries within a terminal
// recording's event stream: screen clears, alt-screen exits, long pauses,
// sudden bursts of output, and explicit markers. It never looks at
// terminal content directly; the orchestrator hands it a lightweight,
// already-derived record per event.
package section

import (
	"math"
	"strconv"

	"ragts/internal/asciicast"
)

// Signal identifies one kind of evidence that a boundary belongs at a
// given event.
type Signal string

const (
	SignalTimingGap     Signal = "timing_gap"
	SignalScreenClear   Signal = "screen_clear"
	SignalAltScreenExit Signal = "alt_screen_exit"
	SignalVolumeBurst   Signal = "volume_burst"
	SignalMarker        Signal = "marker"
)

// signalPriority orders signals for label selection and, when multiple
// signals land on the same merged boundary, for choosing the event_index
// and raw_line_count the boundary is anchored to.
var signalPriority = map[Signal]int{
	SignalMarker:        0,
	SignalAltScreenExit: 1,
	SignalScreenClear:   2,
	SignalTimingGap:     3,
	SignalVolumeBurst:   4,
}

// Thresholds are the detector's tunable constants. DefaultThresholds
// returns spec's empirical defaults.
type Thresholds struct {
	TimingGapSeconds  float64
	BurstQuietSeconds float64
	BurstMinBytes     int
	MergeWindowEvents int
	MaxBoundaries     int
	MinSessionEvents  int
}

// DefaultThresholds returns the detector's design defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimingGapSeconds:  5.0,
		BurstQuietSeconds: 1.0,
		BurstMinBytes:     4096,
		MergeWindowEvents: 16,
		MaxBoundaries:     50,
		MinSessionEvents:  100,
	}
}

// EventRecord is the minimal per-event information the detector needs.
// The orchestrator derives SawClear/EnteredAltScreen/ExitedAltScreen from
// the same byte scan it already runs to feed the VT, so the detector
// never re-parses payload bytes itself.
type EventRecord struct {
	Index            int
	CumulativeTime   float64
	Kind             asciicast.Kind
	PayloadSize      int
	SawClear         bool
	EnteredAltScreen bool
	ExitedAltScreen  bool
	MarkerText       string
}

// Boundary is one detected or explicit fold-anchor point.
type Boundary struct {
	EventIndex   int
	RawLineCount int
	Signals      []Signal
	Score        float64
	Label        string
}

type candidate struct {
	eventIndex int
	signals    map[Signal]bool
	score      float64
	markerText string
	gapSeconds float64
	burstBytes int
}

// Detector is a small per-event state machine, grounded on the same
// shape as a mutable struct fed one event at a time and queried for
// derived state afterward.
type Detector struct {
	thresholds Thresholds

	inAltScreen    bool
	haveLastOutput bool
	lastOutputTime float64

	byIndex map[int]*candidate
	order   []*candidate
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{
		thresholds: t,
		byIndex:    make(map[int]*candidate),
	}
}

// Feed processes one event in stream order.
func (d *Detector) Feed(rec EventRecord) {
	switch rec.Kind {
	case asciicast.Output:
		d.feedOutput(rec)
	case asciicast.Marker:
		d.add(rec.Index, SignalMarker, math.Inf(1), func(c *candidate) {
			c.markerText = rec.MarkerText
		})
	}
}

func (d *Detector) feedOutput(rec EventRecord) {
	if rec.EnteredAltScreen {
		d.inAltScreen = true
	}
	if rec.ExitedAltScreen {
		d.inAltScreen = false
		d.add(rec.Index, SignalAltScreenExit, 10, nil)
	}
	if rec.SawClear {
		d.add(rec.Index, SignalScreenClear, 10, nil)
	}

	if d.haveLastOutput {
		gap := rec.CumulativeTime - d.lastOutputTime
		if gap >= d.thresholds.TimingGapSeconds {
			d.add(rec.Index, SignalTimingGap, gap, func(c *candidate) {
				c.gapSeconds = gap
			})
		}
		if gap >= d.thresholds.BurstQuietSeconds && rec.PayloadSize >= d.thresholds.BurstMinBytes {
			score := float64(rec.PayloadSize) / 1024
			d.add(rec.Index, SignalVolumeBurst, score, func(c *candidate) {
				c.burstBytes = rec.PayloadSize
			})
		}
	}
	d.lastOutputTime = rec.CumulativeTime
	d.haveLastOutput = true
}

func (d *Detector) add(idx int, sig Signal, score float64, apply func(*candidate)) {
	c := d.byIndex[idx]
	if c == nil {
		c = &candidate{eventIndex: idx, signals: map[Signal]bool{}}
		d.byIndex[idx] = c
		d.order = append(d.order, c)
	}
	c.signals[sig] = true
	if score > c.score {
		c.score = score
	}
	if apply != nil {
		apply(c)
	}
}

// Finalize applies the minimum-session-size filter, the merge window, and
// the 50-boundary cap, returning boundaries in event_index order.
// rawLineCountAt resolves an event index to the VT's raw line count at
// that point in the first pass.
func (d *Detector) Finalize(eventCount int, rawLineCountAt func(eventIndex int) int) []Boundary {
	candidates := d.order
	if eventCount < d.thresholds.MinSessionEvents {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if c.signals[SignalMarker] {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	clusters := mergeClusters(candidates, d.thresholds.MergeWindowEvents)
	boundaries := make([]Boundary, 0, len(clusters))
	for _, cl := range clusters {
		boundaries = append(boundaries, buildBoundary(cl, rawLineCountAt))
	}

	return capBoundaries(boundaries, d.thresholds.MaxBoundaries)
}

// Detect is a convenience wrapper that feeds every record in order and
// finalizes in one call.
func Detect(records []EventRecord, rawLineCountAt func(eventIndex int) int, t Thresholds) []Boundary {
	d := NewDetector(t)
	for _, rec := range records {
		d.Feed(rec)
	}
	return d.Finalize(len(records), rawLineCountAt)
}

// mergeClusters collapses candidates whose event_index falls within
// window events of the preceding member of the same cluster (chained, so
// a long run of closely-spaced candidates collapses into one boundary).
func mergeClusters(candidates []*candidate, window int) [][]*candidate {
	var clusters [][]*candidate
	for _, c := range candidates {
		if len(clusters) > 0 {
			last := clusters[len(clusters)-1]
			tail := last[len(last)-1]
			if c.eventIndex-tail.eventIndex <= window {
				clusters[len(clusters)-1] = append(last, c)
				continue
			}
		}
		clusters = append(clusters, []*candidate{c})
	}
	return clusters
}

func buildBoundary(cluster []*candidate, rawLineCountAt func(int) int) Boundary {
	rep := representative(cluster)

	signalSet := map[Signal]bool{}
	var score float64
	for _, c := range cluster {
		for sig := range c.signals {
			signalSet[sig] = true
		}
		if c.score > score {
			score = c.score
		}
	}
	signals := orderedSignals(signalSet)

	return Boundary{
		EventIndex:   rep.eventIndex,
		RawLineCount: rawLineCountAt(rep.eventIndex),
		Signals:      signals,
		Score:        score,
		Label:        label(rep),
	}
}

// representative picks the candidate whose highest-priority signal wins
// the label/anchor for the merged cluster, breaking ties by score then by
// earliest event_index.
func representative(cluster []*candidate) *candidate {
	best := cluster[0]
	bestPriority := dominantPriority(best)
	for _, c := range cluster[1:] {
		p := dominantPriority(c)
		switch {
		case p < bestPriority:
			best, bestPriority = c, p
		case p == bestPriority && c.score > best.score:
			best = c
		case p == bestPriority && c.score == best.score && c.eventIndex < best.eventIndex:
			best = c
		}
	}
	return best
}

func dominantPriority(c *candidate) int {
	best := math.MaxInt32
	for sig := range c.signals {
		if p := signalPriority[sig]; p < best {
			best = p
		}
	}
	return best
}

func orderedSignals(set map[Signal]bool) []Signal {
	ordered := []Signal{SignalMarker, SignalAltScreenExit, SignalScreenClear, SignalTimingGap, SignalVolumeBurst}
	out := make([]Signal, 0, len(set))
	for _, s := range ordered {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func label(c *candidate) string {
	switch {
	case c.signals[SignalMarker]:
		return c.markerText
	case c.signals[SignalAltScreenExit]:
		return "TUI exit"
	case c.signals[SignalScreenClear]:
		return "Screen refresh"
	case c.signals[SignalTimingGap]:
		return gapLabel(c.gapSeconds)
	case c.signals[SignalVolumeBurst]:
		return "Large output burst"
	default:
		return ""
	}
}

func gapLabel(seconds float64) string {
	secs := int(math.Round(seconds))
	return "After " + strconv.Itoa(secs) + "s pause"
}

// capBoundaries enforces the hard cap, always keeping marker boundaries
// and filling remaining slots by score, ties broken by earliest
// event_index, then re-sorting the result by event_index.
func capBoundaries(boundaries []Boundary, max int) []Boundary {
	if len(boundaries) <= max {
		return boundaries
	}

	var markers, rest []Boundary
	for _, b := range boundaries {
		if hasSignal(b.Signals, SignalMarker) {
			markers = append(markers, b)
		} else {
			rest = append(rest, b)
		}
	}

	slots := max - len(markers)
	if slots < 0 {
		slots = 0
	}
	sortByScoreDesc(rest)
	if slots < len(rest) {
		rest = rest[:slots]
	}

	kept := append(markers, rest...)
	sortByEventIndex(kept)
	return kept
}

func hasSignal(signals []Signal, want Signal) bool {
	for _, s := range signals {
		if s == want {
			return true
		}
	}
	return false
}

func sortByScoreDesc(b []Boundary) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && less(b[j], b[j-1]); j-- {
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}

// less orders by score descending, ties broken by earliest event_index.
func less(a, b Boundary) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.EventIndex < b.EventIndex
}

func sortByEventIndex(b []Boundary) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j].EventIndex < b[j-1].EventIndex; j-- {
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}
