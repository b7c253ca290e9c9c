// Package pipeline drives the single-pass orchestration described in the
// spec: parse the recording, replay it through the VT engine while
// recording epoch boundaries and per-event detector signals, then
// deduplicate the scrollback and detect section boundaries, and finally
// publish the result through a repository.Store as one atomic batch.
//
// Grounded on the teacher's session-orchestration shape (construct
// collaborators, loop over one input source, delegate, persist via an
// explicit terminal step) and its activitylog usage for run telemetry.
package pipeline

import (
	"context"
	"io"

	"ragts/internal/activitylog"
	"ragts/internal/asciicast"
	"ragts/internal/dedup"
	"ragts/internal/perror"
	"ragts/internal/repository"
	"ragts/internal/section"
	"ragts/internal/snapshot"
	"ragts/internal/vt"
)

// Options configures one pipeline run. Thresholds and ScrollbackLimit are
// the spec's tunable design defaults (§9); callers may override either
// without changing the core contract.
type Options struct {
	ScrollbackLimit int
	Thresholds      section.Thresholds
	Logger          *activitylog.Logger
}

// DefaultOptions returns the spec's design defaults.
func DefaultOptions() Options {
	return Options{
		ScrollbackLimit: vt.DefaultScrollbackLimit,
		Thresholds:      section.DefaultThresholds(),
		Logger:          activitylog.Nop(),
	}
}

// Result is what one pipeline run produces, mirroring what gets
// published to the repository.
type Result struct {
	EventCount int
	Malformed  int
	Snapshot   *snapshot.Snapshot
	Sections   []repository.Section
}

// Run executes the full pipeline for one recording and publishes the
// result through store. sessionID must already exist in store, in
// Pending status (session lifecycle is created externally, per spec
// §1/§6). On any fatal error, the session is transitioned to Failed and
// no sections become visible; Run returns the wrapped *perror.Error, or
// ctx.Err() unwrapped when the context is cancelled.
func Run(ctx context.Context, sessionID string, r io.Reader, store repository.Store, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = activitylog.Nop()
	}

	stream, err := asciicast.Open(r)
	if err != nil {
		fail(ctx, store, sessionID, log, repository.Pending, err)
		return nil, err
	}

	header := stream.Header()
	engine := vt.Create(header.Cols, header.Rows, opts.ScrollbackLimit)

	if err := store.MarkProcessing(ctx, sessionID, header.Cols, header.Rows); err != nil {
		perr := perror.Wrap(perror.RepositoryFailure, err)
		fail(ctx, store, sessionID, log, repository.Pending, perr)
		return nil, perr
	}
	log.StateChange(string(repository.Pending), string(repository.Processing))

	run := &runState{
		engine:     engine,
		detector:   section.NewDetector(opts.Thresholds),
		viewportAt: make(map[int]*snapshot.Snapshot),
		log:        log,
	}

	prevMalformed := stream.Malformed()
	for {
		if err := ctx.Err(); err != nil {
			fail(ctx, store, sessionID, log, repository.Processing, err)
			return nil, err
		}

		ev, err := stream.Next()
		if m := stream.Malformed(); m > prevMalformed {
			log.MalformedLine(stream.LineNo(), m-prevMalformed)
			prevMalformed = m
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			perr := perror.Wrap(perror.InvalidFormat, err)
			fail(ctx, store, sessionID, log, repository.Processing, perr)
			return nil, perr
		}
		if !ev.Kind.Recognized() {
			continue
		}
		if err := run.feed(ev); err != nil {
			fail(ctx, store, sessionID, log, repository.Processing, err)
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		fail(ctx, store, sessionID, log, repository.Processing, err)
		return nil, err
	}

	result := run.finish(header)
	result.Malformed = stream.Malformed()

	if err := store.Commit(ctx, sessionID, repository.Result{
		Snapshot:   result.Snapshot,
		Sections:   result.Sections,
		EventCount: result.EventCount,
	}); err != nil {
		perr := perror.Wrap(perror.RepositoryFailure, err)
		fail(ctx, store, sessionID, log, repository.Processing, perr)
		return nil, perr
	}
	log.StateChange(string(repository.Processing), string(repository.Completed))

	return result, nil
}

func fail(ctx context.Context, store repository.Store, sessionID string, log *activitylog.Logger, from repository.Status, cause error) {
	_ = store.MarkFailed(ctx, sessionID, cause)
	log.StateChange(string(from), string(repository.Failed))
}

// runState carries everything accumulated during the single forward pass
// over the event stream: epoch boundaries, per-event detector feed, the
// derived arrays the final section-building step needs, and a full replay
// log used only for the rare evicted-epoch fallback snapshot.
type runState struct {
	engine   *vt.Engine
	detector *section.Detector
	log      *activitylog.Logger

	eventIndex int
	events     []asciicast.Event // full replay log; see replayViewAt

	epochBoundaries []int // raw line counts at each primary-buffer clear, collapsed
	rawLineCountAt  []int // per event index, engine.RawLineCount() after processing it
	altScreenAt     []bool

	records    []section.EventRecord
	viewportAt map[int]*snapshot.Snapshot
}

func (r *runState) feed(ev asciicast.Event) error {
	idx := r.eventIndex
	rec := section.EventRecord{
		Index:       idx,
		Kind:        ev.Kind,
		PayloadSize: len(ev.Payload),
	}
	if len(r.records) > 0 {
		rec.CumulativeTime = r.records[len(r.records)-1].CumulativeTime + ev.DeltaTime
	} else {
		rec.CumulativeTime = ev.DeltaTime
	}

	switch ev.Kind {
	case asciicast.Output:
		before := r.engine.InAltScreen()
		sawClear, err := r.engine.Feed([]byte(ev.Payload))
		if err != nil {
			return err
		}
		after := r.engine.InAltScreen()
		rec.SawClear = sawClear
		rec.EnteredAltScreen = !before && after
		rec.ExitedAltScreen = before && !after
		if sawClear {
			r.recordEpochBoundary(r.engine.RawLineCount())
		}
	case asciicast.Resize:
		if cols, rows, err := asciicast.ParseResize(ev.Payload); err == nil {
			r.engine.Resize(cols, rows)
		}
		// A malformed resize payload is recovered locally: the resize is
		// skipped and the session keeps its current dimensions, matching
		// the wire format's best-effort resilience for event lines.
	case asciicast.Marker:
		rec.MarkerText = ev.Payload
	}

	r.events = append(r.events, ev)
	r.records = append(r.records, rec)
	r.detector.Feed(rec)
	r.rawLineCountAt = append(r.rawLineCountAt, r.engine.RawLineCount())
	r.altScreenAt = append(r.altScreenAt, r.engine.InAltScreen())

	if r.engine.InAltScreen() {
		r.viewportAt[idx] = r.engine.GetView()
	}

	r.eventIndex++
	return nil
}

func (r *runState) recordEpochBoundary(rawLineCount int) {
	if n := len(r.epochBoundaries); n > 0 && r.epochBoundaries[n-1] == rawLineCount {
		return
	}
	r.epochBoundaries = append(r.epochBoundaries, rawLineCount)
	r.log.EpochBoundary(r.eventIndex, rawLineCount)
}

func (r *runState) finish(header asciicast.Header) *Result {
	rawAll := r.engine.GetAllLines()
	finalEvicted := r.engine.EvictedPrefix()
	finalLen := rawAll.LineCount()
	if finalEvicted > 0 {
		r.log.ScrollbackEviction(finalEvicted)
	}

	dedupBoundaries := translateEpochBoundaries(r.epochBoundaries, finalEvicted, finalLen)
	dd := dedup.Run(rawAll, dedupBoundaries)

	boundaries := r.detector.Finalize(len(r.records), func(eventIndex int) int {
		return r.rawLineCountAt[eventIndex]
	})

	sections := make([]repository.Section, 0, len(boundaries))
	for i, b := range boundaries {
		signals := make([]string, len(b.Signals))
		for j, sig := range b.Signals {
			signals[j] = string(sig)
		}
		r.log.SectionDetected(b.Label, signals, b.EventIndex)
		sections = append(sections, r.buildSection(b, i, boundaries, dd, finalEvicted, header))
	}

	return &Result{
		EventCount: len(r.records),
		Malformed:  0,
		Snapshot:   dd.Clean,
		Sections:   sections,
	}
}

func (r *runState) buildSection(b section.Boundary, idx int, all []section.Boundary, dd *dedup.Result, finalEvicted int, header asciicast.Header) repository.Section {
	endEvent := len(r.records) - 1
	if idx+1 < len(all) {
		if next := all[idx+1].EventIndex - 1; next >= b.EventIndex {
			endEvent = next
		}
	}

	sectType := repository.SectionDetected
	for _, sig := range b.Signals {
		if sig == section.SignalMarker {
			sectType = repository.SectionMarker
			break
		}
	}

	startRaw := r.rawLineCountAt[b.EventIndex]
	endRaw := r.rawLineCountAt[endEvent]
	inAlt := r.altScreenAt[b.EventIndex]
	evicted := startRaw <= finalEvicted || endRaw <= finalEvicted

	sec := repository.Section{
		Type:       sectType,
		Label:      b.Label,
		StartEvent: b.EventIndex,
		EndEvent:   intPtr(endEvent),
	}

	if !inAlt && !evicted {
		startLine := dd.RawLineCountToClean(startRaw - finalEvicted)
		endLine := dd.RawLineCountToClean(endRaw - finalEvicted)
		sec.StartLine = intPtr(startLine)
		sec.EndLine = intPtr(endLine)
		return sec
	}

	vp := r.viewportAt[b.EventIndex]
	if vp == nil {
		vp = r.replayViewAt(header, b.EventIndex)
	}
	sec.Snapshot = vp
	return sec
}

// replayViewAt handles the rare case where a CLI-mode (non-alt-screen)
// boundary's epoch was evicted from scrollback before the run finished,
// and so has no live-captured viewport. It re-runs a fresh engine over
// the retained event log up to and including eventIndex, per the spec's
// "replay fallback" for degraded TUI-mode sections.
func (r *runState) replayViewAt(header asciicast.Header, eventIndex int) *snapshot.Snapshot {
	e := vt.Create(header.Cols, header.Rows, 0)
	for i := 0; i <= eventIndex && i < len(r.events); i++ {
		ev := r.events[i]
		switch ev.Kind {
		case asciicast.Output:
			_, _ = e.Feed([]byte(ev.Payload))
		case asciicast.Resize:
			if cols, rows, err := asciicast.ParseResize(ev.Payload); err == nil {
				e.Resize(cols, rows)
			}
		}
	}
	return e.GetView()
}

// translateEpochBoundaries maps the cumulative raw-line-count epoch
// boundaries recorded during replay into cut-point indices for the final
// (possibly eviction-trimmed) raw snapshot. A boundary entirely inside
// the evicted prefix no longer has a valid cut point and is dropped.
func translateEpochBoundaries(boundaries []int, finalEvicted, finalLen int) []int {
	var out []int
	for _, rlc := range boundaries {
		if rlc <= finalEvicted {
			continue
		}
		idx := rlc - finalEvicted
		if idx > finalLen {
			idx = finalLen
		}
		if n := len(out); n > 0 && out[n-1] == idx {
			continue
		}
		out = append(out, idx)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
