package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opswatch/coalmine/internal/canary"
)

func TestSubject(t *testing.T) {
	c := &canary.Canary{Name: "deploy-pipeline"}
	if got := Subject(c, Late); got != "[LATE] deploy-pipeline has not reported" {
		t.Fatalf("Subject(Late) = %q", got)
	}
	if got := Subject(c, Recovered); got != "[RESUMED] deploy-pipeline is reporting again" {
		t.Fatalf("Subject(Recovered) = %q", got)
	}
}

func TestBodyLimitsHistoryTo15(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var h []canary.HistoryEntry
	for i := 0; i < 20; i++ {
		h = append(h, canary.HistoryEntry{When: now, Comment: "tick"})
	}
	c := &canary.Canary{Name: "x", ID: "abcdefgh", History: h}
	body := Body(c, Late)
	if strings.Count(body, "tick") != 15 {
		t.Fatalf("expected 15 history lines, body:\n%s", body)
	}
}

type fakeNotifier struct {
	err error
	got bool
}

func (f *fakeNotifier) Notify(context.Context, *canary.Canary, Kind) error {
	f.got = true
	return f.err
}

func TestFanoutSwallowsErrors(t *testing.T) {
	var loggedErrs []error
	failing := &fakeNotifier{err: errors.New("smtp down")}
	ok := &fakeNotifier{}
	fo := NewFanout(func(transport string, err error) {
		loggedErrs = append(loggedErrs, err)
	}, failing, ok)

	if err := fo.Notify(context.Background(), &canary.Canary{}, Late); err != nil {
		t.Fatalf("Fanout.Notify must never return an error: %v", err)
	}
	if !failing.got || !ok.got {
		t.Fatal("Fanout did not dispatch to every transport")
	}
	if len(loggedErrs) != 1 {
		t.Fatalf("expected exactly one logged error, got %d", len(loggedErrs))
	}
}
