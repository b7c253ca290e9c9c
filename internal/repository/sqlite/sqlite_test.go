package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ragts/internal/repository"
	"ragts/internal/snapshot"
)

func open(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragts.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsCreateUsableSchema(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "sess-1", 80, 24); err != nil {
		t.Fatalf("create session: %v", err)
	}
	sess, err := s.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.Status != repository.Pending {
		t.Errorf("status = %q, want %q", sess.Status, repository.Pending)
	}
}

func TestCommitPersistsSnapshotAndSections(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateSession(ctx, "sess-1", 80, 24); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := s.MarkProcessing(ctx, "sess-1", 80, 24); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	snap := snapshot.NewSnapshot(80, 24)
	snap.Append(snapshot.Line{Spans: []snapshot.Span{{Text: "hello world"}}})
	end := 3
	sections := []repository.Section{
		{Type: repository.SectionDetected, Label: "first", StartEvent: 0, EndEvent: &end},
	}

	if err := s.Commit(ctx, "sess-1", repository.Result{Snapshot: snap, Sections: sections, EventCount: 4}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sess, err := s.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.Status != repository.Completed {
		t.Errorf("status = %q, want %q", sess.Status, repository.Completed)
	}
	if sess.Snapshot == nil || sess.Snapshot.LineCount() != 1 {
		t.Fatalf("expected a persisted 1-line snapshot, got %+v", sess.Snapshot)
	}

	got, err := s.SectionsFor(ctx, "sess-1")
	if err != nil {
		t.Fatalf("sections for: %v", err)
	}
	if len(got) != 1 || got[0].Label != "first" || got[0].EndEvent == nil || *got[0].EndEvent != 3 {
		t.Errorf("sections = %+v", got)
	}
}

func TestCommitReplacesStaleSections(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateSession(ctx, "sess-1", 80, 24); err != nil {
		t.Fatalf("create session: %v", err)
	}

	snap := snapshot.NewSnapshot(80, 24)
	first := repository.Result{Snapshot: snap, Sections: []repository.Section{{Label: "old"}}, EventCount: 1}
	if err := s.Commit(ctx, "sess-1", first); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	second := repository.Result{Snapshot: snap, Sections: []repository.Section{{Label: "new-a"}, {Label: "new-b"}}, EventCount: 2}
	if err := s.Commit(ctx, "sess-1", second); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	got, err := s.SectionsFor(ctx, "sess-1")
	if err != nil {
		t.Fatalf("sections for: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sections after re-commit, got %d: %+v", len(got), got)
	}
}

func TestSessionNotFound(t *testing.T) {
	s := open(t)
	if _, err := s.Session(context.Background(), "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkProcessingUnknownSession(t *testing.T) {
	s := open(t)
	if err := s.MarkProcessing(context.Background(), "nope", 80, 24); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
