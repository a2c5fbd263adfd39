// Package lifecycle orchestrates the canary state machine: create, update,
// trigger, pause, unpause, delete, get, list, and find. It is the single
// place that composes the cadence evaluator, the store, and the deadline
// engine, exactly as spec.md §4.4 specifies — grounded line-for-line on
// the source's business_logic.py.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/opswatch/coalmine/internal/cadence"
	"github.com/opswatch/coalmine/internal/canary"
	"github.com/opswatch/coalmine/internal/engine"
	"github.com/opswatch/coalmine/internal/notifier"
	"github.com/opswatch/coalmine/internal/store"
)

// Service is the lifecycle orchestrator. It takes its collaborators as
// constructor arguments — no package-level state — per spec.md §9's note
// that the re-architecture passes the logic/auth-key values explicitly
// rather than holding module-level references the way the source's WSGI
// app does.
type Service struct {
	store   store.Store
	engine  *engine.Engine
	notify  notifier.Notifier
	log     *slog.Logger
	stripes idStripes
}

// New constructs a Service.
func New(st store.Store, eng *engine.Engine, n notifier.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, engine: eng, notify: n, log: log}
}

func now() time.Time { return time.Now().UTC() }

// CreateParams carries the validated arguments to Create.
type CreateParams struct {
	Name        string
	Periodicity string
	Description string
	Emails      []string
	Paused      bool
}

// Create validates params, derives the slug, computes the initial
// deadline (unless paused), persists the canary, and rearms the engine.
func (s *Service) Create(ctx context.Context, p CreateParams) (*canary.Canary, error) {
	if p.Name == "" {
		return nil, validationf("name must be non-empty")
	}
	slug := canary.Slug(p.Name)
	if existing, err := s.store.FindIdentifier(ctx, slug); err == nil {
		return nil, &AlreadyExistsError{Slug: slug, Identifier: existing}
	} else if err != store.ErrNotFound {
		return nil, err
	}

	cad, err := cadence.Parse(p.Periodicity)
	if err != nil {
		return nil, validationf("%v", err)
	}

	id, err := generateIdentifier(ctx, s.store)
	if err != nil {
		return nil, err
	}

	created := now()
	c := &canary.Canary{
		ID:          id,
		Name:        p.Name,
		Slug:        slug,
		Description: p.Description,
		Periodicity: p.Periodicity,
		Emails:      append([]string(nil), p.Emails...),
		Paused:      p.Paused,
		History:     []canary.HistoryEntry{{When: created, Comment: "Canary created"}},
	}
	if !p.Paused {
		deadline, err := cad.Next(created)
		if err != nil {
			return nil, validationf("%v", err)
		}
		c.Deadline = deadline
		c.HasDeadline = true
	}

	unlock := s.stripes.lock(id)
	defer unlock()

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("created canary", "canary_id", c.ID, "slug", c.Slug)

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after create failed", "error", err)
	}
	return s.store.Get(ctx, id)
}

// UpdateParams carries optional fields to Update; a nil pointer means "no
// change requested" for that field.
type UpdateParams struct {
	Name        *string
	Periodicity *string
	Description *string
	Emails      *[]string
}

// Update applies every supplied field that differs from the current value,
// re-deriving the slug on a name change and recomputing the deadline on a
// periodicity change, per spec.md §4.4.
func (s *Service) Update(ctx context.Context, identifier string, p UpdateParams) (*canary.Canary, error) {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	unlock := s.stripes.lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &CanaryNotFoundError{Identifier: identifier}
	}

	patch := canary.Patch{}
	notify := false

	if p.Name != nil && *p.Name != c.Name {
		if *p.Name == "" {
			return nil, validationf("name must be non-empty")
		}
		newSlug := canary.Slug(*p.Name)
		if newSlug != c.Slug {
			if conflict, err := s.store.FindIdentifier(ctx, newSlug); err == nil {
				return nil, &AlreadyExistsError{Slug: newSlug, Identifier: conflict}
			} else if err != store.ErrNotFound {
				return nil, err
			}
			patch.Slug = canary.SetField(newSlug)
		}
		patch.Name = canary.SetField(*p.Name)
	}

	if p.Periodicity != nil && *p.Periodicity != c.Periodicity {
		cad, err := cadence.Parse(*p.Periodicity)
		if err != nil {
			return nil, validationf("%v", err)
		}
		patch.Periodicity = canary.SetField(*p.Periodicity)

		if !c.Paused {
			whence := c.History[0].When
			deadline, err := cad.Next(whence)
			if err != nil {
				return nil, validationf("%v", err)
			}
			patch.Deadline = canary.SetField(deadline)
			isLate := deadline.Before(now())
			if isLate != c.Late {
				patch.Late = canary.SetField(isLate)
				notify = true
			}
		}
	}

	if p.Description != nil && *p.Description != c.Description {
		patch.Description = canary.SetField(*p.Description)
	}

	if p.Emails != nil && !sameEmailSet(*p.Emails, c.Emails) {
		patch.Emails = canary.SetField(append([]string(nil), (*p.Emails)...))
	}

	if patch.IsEmpty() {
		return nil, validationf("no updates specified")
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	s.log.Info("updated canary", "canary_id", id, "slug", c.Slug)

	if notify {
		updated, err := s.store.Get(ctx, id)
		if err == nil {
			kind := notifier.Late
			if !updated.Late {
				kind = notifier.Recovered
			}
			if err := s.notify.Notify(ctx, updated, kind); err != nil {
				s.log.Warn("update notification failed", "canary_id", id, "error", err)
			}
		}
	}

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after update failed", "error", err)
	}
	return s.store.Get(ctx, id)
}

func sameEmailSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[string]int{}
	for _, e := range a {
		seen[e]++
	}
	for _, e := range b {
		seen[e]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// TriggerResult reports the canary's state immediately before a trigger,
// useful to external integrations per spec.md §4.4.
type TriggerResult struct {
	WasLate   bool
	WasPaused bool
}

// Trigger prepends a history entry, recomputes the deadline, clears late
// and paused, and — if the canary transitioned from late to not-late —
// sends a recovery notification.
func (s *Service) Trigger(ctx context.Context, identifier string, comment string) (TriggerResult, error) {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return TriggerResult{}, err
	}

	unlock := s.stripes.lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return TriggerResult{}, &CanaryNotFoundError{Identifier: identifier}
	}

	result := TriggerResult{WasLate: c.Late, WasPaused: c.Paused}

	label := "Triggered"
	if comment != "" {
		label = fmt.Sprintf("Triggered (%s)", comment)
	}
	ts := now()
	history := canary.AppendHistory(c.History, canary.HistoryEntry{When: ts, Comment: label}, ts)

	cad, err := cadence.Parse(c.Periodicity)
	if err != nil {
		return TriggerResult{}, validationf("%v", err)
	}
	deadline, err := cad.Next(ts)
	if err != nil {
		return TriggerResult{}, validationf("%v", err)
	}

	patch := canary.Patch{
		History:  canary.SetField(history),
		Deadline: canary.SetField(deadline),
	}
	if c.Late {
		patch.Late = canary.SetField(false)
	}
	if c.Paused {
		patch.Paused = canary.SetField(false)
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return TriggerResult{}, err
	}
	s.log.Info("triggered canary", "canary_id", id, "slug", c.Slug, "comment", comment)

	if c.Late {
		if updated, err := s.store.Get(ctx, id); err == nil {
			if err := s.notify.Notify(ctx, updated, notifier.Recovered); err != nil {
				s.log.Warn("recovery notification failed", "canary_id", id, "error", err)
			}
		}
	}

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after trigger failed", "error", err)
	}
	return result, nil
}

// Pause clears the deadline (and late, if set) and appends a history
// entry. Fails with AlreadyPausedError if already paused.
func (s *Service) Pause(ctx context.Context, identifier string, comment string) (*canary.Canary, error) {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	unlock := s.stripes.lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &CanaryNotFoundError{Identifier: identifier}
	}
	if c.Paused {
		return nil, &AlreadyPausedError{}
	}

	label := "Paused"
	if comment != "" {
		label = fmt.Sprintf("Paused (%s)", comment)
	}
	ts := now()
	history := canary.AppendHistory(c.History, canary.HistoryEntry{When: ts, Comment: label}, ts)

	patch := canary.Patch{
		Paused:   canary.SetField(true),
		History:  canary.SetField(history),
		Deadline: canary.ClearField[time.Time](),
	}
	if c.Late {
		patch.Late = canary.SetField(false)
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	s.log.Info("paused canary", "canary_id", id, "slug", c.Slug)

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after pause failed", "error", err)
	}
	return s.store.Get(ctx, id)
}

// Unpause recomputes the deadline from now and appends a history entry.
// Fails with AlreadyUnpausedError if not paused.
func (s *Service) Unpause(ctx context.Context, identifier string, comment string) (*canary.Canary, error) {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	unlock := s.stripes.lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &CanaryNotFoundError{Identifier: identifier}
	}
	if !c.Paused {
		return nil, &AlreadyUnpausedError{}
	}

	label := "Unpaused"
	if comment != "" {
		label = fmt.Sprintf("Unpaused (%s)", comment)
	}
	ts := now()
	history := canary.AppendHistory(c.History, canary.HistoryEntry{When: ts, Comment: label}, ts)

	cad, err := cadence.Parse(c.Periodicity)
	if err != nil {
		return nil, validationf("%v", err)
	}
	deadline, err := cad.Next(ts)
	if err != nil {
		return nil, validationf("%v", err)
	}

	patch := canary.Patch{
		Paused:   canary.SetField(false),
		History:  canary.SetField(history),
		Deadline: canary.SetField(deadline),
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	s.log.Info("unpaused canary", "canary_id", id, "slug", c.Slug)

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after unpause failed", "error", err)
	}
	return s.store.Get(ctx, id)
}

// Delete removes the canary and rearms the engine in case it held the
// soonest deadline.
func (s *Service) Delete(ctx context.Context, identifier string) error {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return err
	}
	unlock := s.stripes.lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return &CanaryNotFoundError{Identifier: identifier}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("deleted canary", "canary_id", id, "slug", c.Slug)

	if err := s.engine.Rearm(ctx); err != nil {
		s.log.Error("rearm after delete failed", "error", err)
	}
	return nil
}

// Get returns a detached copy of the canary identified by an id or slug
// (see resolve); names are resolved through Find first.
func (s *Service) Get(ctx context.Context, identifier string) (*canary.Canary, error) {
	id, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &CanaryNotFoundError{Identifier: identifier}
	}
	return c, nil
}

// ListParams narrows List.
type ListParams struct {
	Paused *bool
	Late   *bool
	Search *regexp.Regexp
}

// List returns every canary matching every supplied predicate.
func (s *Service) List(ctx context.Context, p ListParams) ([]*canary.Canary, error) {
	return s.store.List(ctx, store.ListFilter{Paused: p.Paused, Late: p.Late, Search: p.Search})
}

// Find resolves exactly one of id/name/slug to a canary id. Name is
// slugified before lookup.
func (s *Service) Find(ctx context.Context, id, name, slug string) (string, error) {
	given := 0
	for _, v := range []string{id, name, slug} {
		if v != "" {
			given++
		}
	}
	if given != 1 {
		return "", validationf("exactly one of id, name, or slug must be given")
	}
	switch {
	case id != "":
		if _, err := s.store.Get(ctx, id); err != nil {
			return "", &CanaryNotFoundError{Identifier: id}
		}
		return id, nil
	case name != "":
		return s.resolveSlug(ctx, canary.Slug(name), name)
	default:
		return s.resolveSlug(ctx, slug, slug)
	}
}

func (s *Service) resolveSlug(ctx context.Context, slug, original string) (string, error) {
	id, err := s.store.FindIdentifier(ctx, slug)
	if err != nil {
		return "", &CanaryNotFoundError{Identifier: original}
	}
	return id, nil
}

// resolve accepts a bare identifier that may be an id or a slug (the HTTP
// layer is responsible for distinguishing id/name/slug query parameters
// and calling Find first when more than one form is possible; callers that
// already know they have an id or slug can call resolve directly).
func (s *Service) resolve(ctx context.Context, identifier string) (string, error) {
	if _, err := s.store.Get(ctx, identifier); err == nil {
		return identifier, nil
	}
	if id, err := s.store.FindIdentifier(ctx, identifier); err == nil {
		return id, nil
	}
	return "", &CanaryNotFoundError{Identifier: identifier}
}
