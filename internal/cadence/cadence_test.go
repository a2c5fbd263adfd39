package cadence

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, periodicity string) Cadence {
	t.Helper()
	c, err := Parse(periodicity)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", periodicity, err)
	}
	return c
}

func utc(y, m, d, hh, mm, ss int) time.Time {
	return time.Date(y, time.Month(m), d, hh, mm, ss, 0, time.UTC)
}

func TestNumericCadence(t *testing.T) {
	c := mustParse(t, "60")
	whence := utc(2026, 3, 4, 5, 6, 7)
	got, err := c.Next(whence)
	if err != nil {
		t.Fatal(err)
	}
	want := whence.Add(60 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNumericRejectsNonPositive(t *testing.T) {
	for _, p := range []string{"0", "-5", "-0.001"} {
		if _, err := Parse(p); err == nil {
			t.Errorf("Parse(%q) should have failed", p)
		}
	}
}

func TestScheduleCaseC2(t *testing.T) {
	c := mustParse(t, "* 0 * * * 120")
	got, err := c.Next(utc(2016, 6, 30, 1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := utc(2016, 7, 1, 0, 2, 0)
	if !got.Equal(want) {
		t.Fatalf("C2: got %v want %v", got, want)
	}
}

func TestScheduleCaseC3(t *testing.T) {
	c := mustParse(t, "* 0 * * * 120")
	got, err := c.Next(utc(2016, 6, 30, 0, 59, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := utc(2016, 7, 1, 0, 2, 0)
	if !got.Equal(want) {
		t.Fatalf("C3: got %v want %v", got, want)
	}
}

func TestScheduleCaseC4(t *testing.T) {
	c := mustParse(t, "* 0 * * * 120; * 1 * * * 600")
	got, err := c.Next(utc(2016, 6, 30, 0, 59, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := utc(2016, 6, 30, 1, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("C4: got %v want %v", got, want)
	}
}

func TestScheduleRejectsFiveFields(t *testing.T) {
	if _, err := Parse("* * * * 1200"); err == nil {
		t.Fatal("expected rejection of a five-field entry")
	}
}

func TestScheduleAcceptsDisjointWeekdaySplit(t *testing.T) {
	if _, err := Parse("* * * * sat,sun 600; * * * * mon-fri 90"); err != nil {
		t.Fatalf("expected disjoint weekday schedule to be accepted: %v", err)
	}
}

func TestScheduleRejectsOverlap(t *testing.T) {
	// Both entries active every minute of every day: always overlapping.
	if _, err := Parse("* * * * * 60; * * * * * 120"); err == nil {
		t.Fatal("expected overlap rejection")
	}
}

func TestScheduleRejectsNewlineInSingleLineForm(t *testing.T) {
	if _, err := Parse("* 0 * * * 120\n* 1 * * * 600; more"); err == nil {
		t.Fatal("expected rejection of mixed newline/semicolon delimiters")
	}
}

func TestScheduleRejectsNonPositiveCommand(t *testing.T) {
	if _, err := Parse("* 0 * * * 0"); err == nil {
		t.Fatal("expected rejection of non-positive command field")
	}
}
