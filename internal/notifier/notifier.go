// Package notifier formats and dispatches late/recovery messages about a
// canary. Transport errors are always swallowed: a failed notification must
// never roll back the state change that produced it.
package notifier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opswatch/coalmine/internal/canary"
)

// Kind distinguishes a late notification from a recovery notification.
type Kind int

const (
	Late Kind = iota
	Recovered
)

func (k Kind) String() string {
	if k == Late {
		return "late"
	}
	return "recovered"
}

// Notifier hands a formatted message for the given canary/kind to some
// transport. Implementations must not block the caller for long; slow
// transports should be dispatched from a worker goroutine by the caller.
type Notifier interface {
	Notify(ctx context.Context, c *canary.Canary, kind Kind) error
}

const historyLimit = 15

// Subject returns the notification subject line per spec.md §4.5.
func Subject(c *canary.Canary, kind Kind) string {
	if kind == Late {
		return fmt.Sprintf("[LATE] %s has not reported", c.Name)
	}
	return fmt.Sprintf("[RESUMED] %s is reporting again", c.Name)
}

// Body returns the notification body: the canary id, the relevant instant
// (deadline for late, last-trigger time for recovered), the next deadline
// if known, and the 15 most-recent history entries.
func Body(c *canary.Canary, kind Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Canary: %s (%s)\n", c.Name, c.ID)
	if kind == Late {
		fmt.Fprintf(&b, "Deadline missed at: %s\n", formatTime(c.Deadline))
	} else if len(c.History) > 0 {
		fmt.Fprintf(&b, "Last triggered at: %s\n", formatTime(c.History[0].When))
	}
	if c.HasDeadline {
		fmt.Fprintf(&b, "Next deadline: %s\n", formatTime(c.Deadline))
	}
	b.WriteString("\nRecent history:\n")
	n := len(c.History)
	if n > historyLimit {
		n = historyLimit
	}
	for _, h := range c.History[:n] {
		fmt.Fprintf(&b, "  %s  %s\n", formatTime(h.When), h.Comment)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

// Fanout dispatches to every configured Notifier and logs (never
// propagates) each transport's individual error, generalizing spec.md
// §4.5's "transport errors are caught and logged" to more than one
// transport.
type Fanout struct {
	transports []Notifier
	onError    func(transport string, err error)
}

// NewFanout builds a Fanout over transports. onError, if non-nil, is
// invoked with a label and the error for every failed transport; pass nil
// to discard.
func NewFanout(onError func(transport string, err error), transports ...Notifier) *Fanout {
	return &Fanout{transports: transports, onError: onError}
}

func (f *Fanout) Notify(ctx context.Context, c *canary.Canary, kind Kind) error {
	for _, t := range f.transports {
		if err := t.Notify(ctx, c, kind); err != nil && f.onError != nil {
			f.onError(fmt.Sprintf("%T", t), err)
		}
	}
	return nil
}

// sortedEmails is used by transports that need deterministic recipient
// ordering for things like logging, independent of storage order.
func sortedEmails(emails []string) []string {
	out := append([]string(nil), emails...)
	sort.Strings(out)
	return out
}
