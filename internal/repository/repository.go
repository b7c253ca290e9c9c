// Package repository defines the persistence abstraction the pipeline
// orchestrator writes through. The orchestrator never assumes a specific
// backing store; internal/repository/memory and internal/repository/sqlite
// are the two concrete implementations this repo ships.
package repository

import (
	"context"
	"errors"

	"ragts/internal/snapshot"
)

// Status is a session's detection lifecycle state. The core transitions a
// session from Pending to Processing to exactly one of Completed or Failed.
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// SectionType distinguishes an explicit marker section from one the
// detector inferred.
type SectionType string

const (
	SectionMarker   SectionType = "marker"
	SectionDetected SectionType = "detected"
)

// Section is the persisted, final form of a fold-anchor range: either a
// line range into the session's clean document (CLI-mode) or an inline
// viewport snapshot (TUI-mode), never both.
type Section struct {
	Type       SectionType
	Label      string
	StartEvent int
	EndEvent   *int
	StartLine  *int
	EndLine    *int
	Snapshot   *snapshot.Snapshot
}

// Session is the persisted session record the repository tracks.
type Session struct {
	ID           string
	Cols         int
	Rows         int
	EventCount   int
	SectionCount int
	Status       Status
	Snapshot     *snapshot.Snapshot
}

// Result bundles the pipeline's output for one atomic publish: the clean
// snapshot and the ordered sections. Commit must make both visible
// together or neither.
type Result struct {
	Snapshot   *snapshot.Snapshot
	Sections   []Section
	EventCount int
}

// ErrNotFound is returned by lookups for an unknown session ID.
var ErrNotFound = errors.New("repository: session not found")

// Store is the persistence interface the pipeline orchestrator depends on.
// Implementations must serialize their own writes (spec: "the repository
// is the only shared resource and MUST serialize its own writes").
type Store interface {
	// CreateSession registers a new session in Pending status. Session
	// lifecycle is created externally to the core (e.g. by the CLI or an
	// upload handler); the core itself only ever transitions an existing
	// session's status.
	CreateSession(ctx context.Context, sessionID string, cols, rows int) error

	// MarkProcessing transitions a session from Pending to Processing and
	// records the header dimensions, known only once the orchestrator has
	// parsed the recording's header.
	MarkProcessing(ctx context.Context, sessionID string, cols, rows int) error

	// Commit publishes result.Snapshot and result.Sections as one atomic
	// batch, sets event_count/section_count, and transitions the session
	// to Completed. No partial state is ever visible to readers.
	Commit(ctx context.Context, sessionID string, result Result) error

	// MarkFailed transitions a session to Failed. No sections become
	// visible for a failed session, whether or not Commit was attempted.
	MarkFailed(ctx context.Context, sessionID string, cause error) error

	// Session returns the session record, or ErrNotFound.
	Session(ctx context.Context, sessionID string) (*Session, error)

	// SectionsFor returns a session's sections ordered by start_event
	// ascending, per the repository contract.
	SectionsFor(ctx context.Context, sessionID string) ([]Section, error)
}
