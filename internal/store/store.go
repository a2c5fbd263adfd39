// Package store defines the canary persistence contract and its two
// implementations: an in-memory map for tests and small deployments, and a
// durable sqlite-backed store for production use.
package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/opswatch/coalmine/internal/canary"
)

// ErrNotFound is returned by Get/Update/Delete/FindIdentifier when the
// requested canary does not exist.
var ErrNotFound = errors.New("store: canary not found")

// ErrCollision is returned by Create/Update when the id or slug is already
// in use by another canary.
var ErrCollision = errors.New("store: id or slug already in use")

// ListFilter narrows List to canaries matching every non-nil predicate.
// Search matches against name, slug, id, and each email.
type ListFilter struct {
	Paused *bool
	Late   *bool
	Search *regexp.Regexp
}

func (f ListFilter) matches(c *canary.Canary) bool {
	if f.Paused != nil && c.Paused != *f.Paused {
		return false
	}
	if f.Late != nil && c.Late != *f.Late {
		return false
	}
	if f.Search != nil {
		if !f.Search.MatchString(c.Name) && !f.Search.MatchString(c.Slug) && !f.Search.MatchString(c.ID) {
			found := false
			for _, e := range c.Emails {
				if f.Search.MatchString(e) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// Store is the canary persistence contract. Every returned *canary.Canary
// is a defensive copy; callers may mutate it freely without affecting the
// store's internal state.
type Store interface {
	// Create inserts c, rejecting a collision on id or slug with
	// ErrCollision.
	Create(ctx context.Context, c *canary.Canary) error
	// Update atomically applies patch to the canary identified by id.
	Update(ctx context.Context, id string, patch canary.Patch) error
	// Get returns a detached copy of the canary identified by id.
	Get(ctx context.Context, id string) (*canary.Canary, error)
	// List returns canaries matching every predicate set in filter.
	List(ctx context.Context, filter ListFilter) ([]*canary.Canary, error)
	// UpcomingDeadlines returns every non-paused, non-late canary ordered
	// by deadline ascending.
	UpcomingDeadlines(ctx context.Context) ([]*canary.Canary, error)
	// Delete removes the canary identified by id.
	Delete(ctx context.Context, id string) error
	// FindIdentifier returns the id of the canary with the given slug.
	FindIdentifier(ctx context.Context, slug string) (string, error)
	// Close releases any underlying resources (connections, file handles).
	Close() error
}
