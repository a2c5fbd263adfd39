package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/opswatch/coalmine/internal/canary"
	"github.com/opswatch/coalmine/internal/engine"
	"github.com/opswatch/coalmine/internal/notifier"
	"github.com/opswatch/coalmine/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *canary.Canary, notifier.Kind) error {
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(st, noopNotifier{}, log, nil)
	return New(st, eng, noopNotifier{}, log)
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	got, err := s.Create(ctx, CreateParams{Name: "Deploy Pipeline", Periodicity: "60"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Slug != "deploy-pipeline" {
		t.Fatalf("slug = %q", got.Slug)
	}
	if got.Paused || !got.HasDeadline {
		t.Fatalf("fresh canary must have a deadline: %+v", got)
	}

	fetched, err := s.Get(ctx, got.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.ID != got.ID || fetched.Name != got.Name {
		t.Fatalf("create.return != get(id): %+v vs %+v", got, fetched)
	}
}

func TestCreateSlugCollisionIsCaseInsensitive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, CreateParams{Name: "foo", Periodicity: "60"}); err != nil {
		t.Fatalf("Create foo: %v", err)
	}
	_, err := s.Create(ctx, CreateParams{Name: "FOO", Periodicity: "60"})
	var aee *AlreadyExistsError
	if !errors.As(err, &aee) {
		t.Fatalf("Create FOO: got %v, want AlreadyExistsError", err)
	}
}

func TestTriggerClearsLateAndPaused(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	c, err := s.Create(ctx, CreateParams{Name: "x", Periodicity: "60", Paused: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	result, err := s.Trigger(ctx, c.ID, "")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !result.WasPaused {
		t.Fatal("expected WasPaused=true")
	}
	after, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Late || after.Paused {
		t.Fatalf("immediately after trigger, late and paused must both be false: %+v", after)
	}
}

func TestPauseUnpausePauseRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	c, err := s.Create(ctx, CreateParams{Name: "x", Periodicity: "60", Paused: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Unpause(ctx, c.ID, ""); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	final, err := s.Pause(ctx, c.ID, "")
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !final.Paused {
		t.Fatal("expected paused again")
	}
	if len(final.History) != 3 {
		t.Fatalf("expected 3 history entries (created, unpaused, paused), got %d: %+v", len(final.History), final.History)
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	c, err := s.Create(ctx, CreateParams{Name: "x", Periodicity: "60"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = s.Get(ctx, c.ID)
	var nf *CanaryNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Get after delete: got %v, want CanaryNotFoundError", err)
	}
}

func TestUpdateWithNoChangesIsRejected(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	c, err := s.Create(ctx, CreateParams{Name: "x", Periodicity: "60"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = s.Update(ctx, c.ID, UpdateParams{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Update no-op: got %v, want ValidationError", err)
	}
}

func TestUpdateCaseOnlyNameChangeKeepsSlug(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	c, err := s.Create(ctx, CreateParams{Name: "Foo", Periodicity: "60"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	newName := "FOO"
	updated, err := s.Update(ctx, c.ID, UpdateParams{Name: &newName})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != c.Slug {
		t.Fatalf("slug changed on case-only rename: %q vs %q", updated.Slug, c.Slug)
	}
	if updated.Name != "FOO" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
}
