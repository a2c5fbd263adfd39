package canary

import (
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Foo Bar":      "foo-bar",
		"foo___bar":    "foo-bar",
		"foo  -  bar":  "foo-bar",
		"Héllo World!": "hllo-world",
		"already-slug": "already-slug",
	}
	for name, want := range cases {
		if got := Slug(name); got != want {
			t.Errorf("Slug(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSlugIdempotent(t *testing.T) {
	names := []string{"Foo Bar", "héllo World!!", "already-slug", ""}
	for _, n := range names {
		s1 := Slug(n)
		s2 := Slug(s1)
		if s1 != s2 {
			t.Errorf("Slug not idempotent for %q: %q != %q", n, s1, s2)
		}
	}
}

func TestAppendHistoryCapsAt1000(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var h []HistoryEntry
	for i := 0; i < 1005; i++ {
		h = AppendHistory(h, HistoryEntry{When: now, Comment: "tick"}, now)
	}
	if len(h) != maxHistory {
		t.Fatalf("len = %d, want %d", len(h), maxHistory)
	}
}

func TestAppendHistoryTrimsOldTailBelow100Floor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)
	var h []HistoryEntry
	// 150 old entries (older than 7 days), then append one fresh entry.
	for i := 0; i < 150; i++ {
		h = append(h, HistoryEntry{When: old, Comment: "old"})
	}
	h = AppendHistory(h, HistoryEntry{When: now, Comment: "fresh"}, now)
	if len(h) != historyTailFloor {
		t.Fatalf("len = %d, want %d (old tail is trimmed down to the 100 floor)", len(h), historyTailFloor)
	}
}

func TestAppendHistoryKeepsRecentTailAbove100(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var h []HistoryEntry
	for i := 0; i < 150; i++ {
		h = append(h, HistoryEntry{When: now, Comment: "recent"})
	}
	h = AppendHistory(h, HistoryEntry{When: now, Comment: "fresh"}, now)
	if len(h) != 151 {
		t.Fatalf("len = %d, want 151 (recent tail must not be trimmed below 100 floor)", len(h))
	}
}

func TestCloneIsDetached(t *testing.T) {
	c := &Canary{ID: "abc", Emails: []string{"a@x.com"}, History: []HistoryEntry{{Comment: "x"}}}
	c2 := c.Clone()
	c2.Emails[0] = "b@x.com"
	c2.History[0].Comment = "y"
	if c.Emails[0] != "a@x.com" || c.History[0].Comment != "x" {
		t.Fatal("Clone did not detach slices")
	}
}
