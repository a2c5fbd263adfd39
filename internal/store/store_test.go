package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opswatch/coalmine/internal/canary"
)

func newCanary(id, slug string, deadline time.Time, hasDeadline bool) *canary.Canary {
	return &canary.Canary{
		ID:          id,
		Name:        slug,
		Slug:        slug,
		Periodicity: "60",
		Paused:      !hasDeadline,
		Deadline:    deadline,
		HasDeadline: hasDeadline,
		History:     []canary.HistoryEntry{{When: deadline, Comment: "created"}},
	}
}

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := newCanary("aaaaaaaa", "quickie", now.Add(time.Minute), true)
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, c); err != ErrCollision {
		t.Fatalf("Create duplicate id: got %v, want ErrCollision", err)
	}

	dup := newCanary("bbbbbbbb", "quickie", now.Add(time.Minute), true)
	if err := s.Create(ctx, dup); err != ErrCollision {
		t.Fatalf("Create duplicate slug: got %v, want ErrCollision", err)
	}

	got, err := s.Get(ctx, "aaaaaaaa")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Slug != "quickie" || !got.HasDeadline {
		t.Fatalf("Get returned unexpected canary: %+v", got)
	}
	got.Slug = "mutated"
	if reGot, _ := s.Get(ctx, "aaaaaaaa"); reGot.Slug != "quickie" {
		t.Fatal("Get must return a defensive copy")
	}

	if err := s.Update(ctx, "aaaaaaaa", canary.Patch{Late: canary.SetField(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.Get(ctx, "aaaaaaaa")
	if !got.Late {
		t.Fatal("Update did not persist Late")
	}

	if err := s.Update(ctx, "aaaaaaaa", canary.Patch{Deadline: canary.ClearField[time.Time]()}); err != nil {
		t.Fatalf("Update clear deadline: %v", err)
	}
	got, _ = s.Get(ctx, "aaaaaaaa")
	if got.HasDeadline {
		t.Fatal("Clear did not remove deadline")
	}

	if err := s.Update(ctx, "nonexistent", canary.Patch{}); err != ErrNotFound {
		t.Fatalf("Update missing id: got %v, want ErrNotFound", err)
	}

	id, err := s.FindIdentifier(ctx, "quickie")
	if err != nil || id != "aaaaaaaa" {
		t.Fatalf("FindIdentifier: got (%q, %v)", id, err)
	}

	second := newCanary("cccccccc", "second", now.Add(2*time.Minute), true)
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}
	upcoming, err := s.UpcomingDeadlines(ctx)
	if err != nil {
		t.Fatalf("UpcomingDeadlines: %v", err)
	}
	// "aaaaaaaa" is late (and has no deadline after the clear above) so it
	// must not appear; only "cccccccc" should.
	if len(upcoming) != 1 || upcoming[0].ID != "cccccccc" {
		t.Fatalf("UpcomingDeadlines = %+v, want only cccccccc", upcoming)
	}

	if err := s.Delete(ctx, "aaaaaaaa"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "aaaaaaaa"); err != ErrNotFound {
		t.Fatalf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "aaaaaaaa"); err != ErrNotFound {
		t.Fatalf("Delete missing id: got %v, want ErrNotFound", err)
	}
}

func TestMemStoreContract(t *testing.T) {
	testStoreContract(t, NewMemStore())
}

func TestSQLStoreContract(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLStore(SQLConfig{Path: filepath.Join(dir, "coalmine.db")})
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestSQLStoreHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLStore(SQLConfig{Path: filepath.Join(dir, "coalmine.db")})
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newCanary("dddddddd", "history", now, true)
	c.History = []canary.HistoryEntry{
		{When: now, Comment: "third"},
		{When: now.Add(-time.Hour), Comment: "second"},
		{When: now.Add(-2 * time.Hour), Comment: "first"},
	}
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, "dddddddd")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.History) != 3 || got.History[0].Comment != "third" || got.History[2].Comment != "first" {
		t.Fatalf("history not preserved in order: %+v", got.History)
	}
}
