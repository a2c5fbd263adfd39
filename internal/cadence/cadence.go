// Package cadence parses and evaluates the two cadence forms a canary's
// periodicity can take: a plain number of seconds, or a crontab-derived
// schedule describing continuous activity windows. It answers the single
// question the deadline engine needs: given an instant a canary was last
// triggered, when is its next deadline?
package cadence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Cadence computes the next deadline following whence.
type Cadence interface {
	Next(whence time.Time) (time.Time, error)
}

// Numeric is the simplest cadence: a fixed number of seconds after whence.
type Numeric float64

// Next implements Cadence.
func (n Numeric) Next(whence time.Time) (time.Time, error) {
	return whence.Add(time.Duration(float64(n) * float64(time.Second))), nil
}

// Parse interprets a canary's periodicity string as either a positive
// numeric seconds value or a semicolon/newline-delimited crontab schedule.
func Parse(periodicity string) (Cadence, error) {
	trimmed := strings.TrimSpace(periodicity)
	if trimmed == "" {
		return nil, errors.New("cadence: periodicity must not be empty")
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if v <= 0 {
			return nil, errors.New("cadence: numeric periodicities must be positive")
		}
		return Numeric(v), nil
	}
	return parseSchedule(periodicity)
}

// OverlapError reports that more than one schedule entry is active during
// the same minute, which is disallowed for deadline computation.
type OverlapError struct {
	At time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("cadence: overlapping schedule entries active at %s", e.At.Format(time.RFC3339))
}

type entry struct {
	schedule cron.Schedule
	seconds  float64
	fields   string
}

// Schedule is a parsed multi-entry crontab cadence. Entries must be
// single-active (no two entries may be active during the same minute) for
// Next to be usable; this is validated at parse time.
type Schedule struct {
	entries           []entry
	smallestChangeGap time.Duration
}

const (
	oneMinute   = time.Minute
	oneHour     = time.Hour
	oneDay      = 24 * time.Hour
	likeForever = 31 * 24 * time.Hour
)

var stdParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func parseSchedule(periodicity string) (*Schedule, error) {
	hasNL := strings.Contains(periodicity, "\n")
	hasSemi := strings.Contains(periodicity, ";")
	if hasNL && hasSemi {
		return nil, errors.New("cadence: malformed periodicity: no newlines allowed in a single-line schedule")
	}
	var lines []string
	if hasNL {
		lines = strings.Split(periodicity, "\n")
	} else {
		lines = strings.Split(periodicity, ";")
	}

	s := &Schedule{}
	count := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.addEntry(line); err != nil {
			return nil, err
		}
		count++
	}
	if count == 0 {
		return nil, errors.New("cadence: schedule has no entries")
	}
	if err := s.validateSingleActive(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schedule) addEntry(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return fmt.Errorf("cadence: %q does not have six fields", line)
	}
	head := fields[:5]
	cmd := strings.Join(fields[5:], " ")
	seconds, err := strconv.ParseFloat(cmd, 64)
	if err != nil || seconds <= 0 {
		return errors.New("cadence: malformed periodicity; each crontab schedule command must be a positive number")
	}
	spec := strings.Join(head, " ")
	sch, err := stdParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("cadence: malformed periodicity: %w", err)
	}
	gap := gapFor(head)
	if s.smallestChangeGap == 0 || gap < s.smallestChangeGap {
		s.smallestChangeGap = gap
	}
	s.entries = append(s.entries, entry{schedule: sch, seconds: seconds, fields: spec})
	return nil
}

// gapFor implements the smallest-change-gap optimization: the finest-grained
// field that is non-"*" in a single entry bounds how often the active
// set can possibly change, so window enumeration can skip ahead by that
// much instead of checking every minute.
func gapFor(fields []string) time.Duration {
	if fields[0] != "*" {
		return oneMinute
	}
	if fields[1] != "*" {
		return oneHour
	}
	if fields[2] == "*" && fields[3] == "*" && fields[4] == "*" {
		return likeForever
	}
	return oneDay
}

func (s *Schedule) durationOf(idx int) time.Duration {
	return time.Duration(s.entries[idx].seconds * float64(time.Second))
}

// activeEntries reports which entries are active during the minute that
// starts at minuteStart. With multi=false, more than one match is an
// OverlapError; with multi=true, all matches are returned.
func (s *Schedule) activeEntries(minuteStart time.Time, multi bool) ([]int, error) {
	before := minuteStart.Add(-time.Minute)
	var matches []int
	for i, e := range s.entries {
		if e.schedule.Next(before).Equal(minuteStart) {
			matches = append(matches, i)
		}
	}
	if len(matches) > 1 && !multi {
		return nil, &OverlapError{At: minuteStart}
	}
	return matches, nil
}

func (s *Schedule) roundUp(now time.Time) time.Time {
	switch s.smallestChangeGap {
	case oneMinute:
		return now
	case likeForever:
		return now.Add(likeForever)
	case oneHour:
		return now.Add(time.Duration(60-now.Minute()) * time.Minute)
	case oneDay:
		return now.Add(time.Duration(24-now.Hour())*time.Hour - time.Duration(now.Minute())*time.Minute)
	default:
		return now
	}
}

type window struct {
	start, end time.Time
	entries    []int
}

func canonicalKey(entries []int) string {
	if len(entries) == 0 {
		return "\x00none"
	}
	cp := append([]int(nil), entries...)
	sort.Ints(cp)
	parts := make([]string, 0, len(cp))
	prev := -1
	first := true
	for _, v := range cp {
		if !first && v == prev {
			continue
		}
		parts = append(parts, strconv.Itoa(v))
		prev, first = v, false
	}
	return strings.Join(parts, ",")
}

func truncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

var errStopIteration = errors.New("cadence: stop iteration")

// iterate walks windows of constant active-entry-set starting at start,
// invoking yield for each. If end is non-nil, iteration stops at end
// (a "hard stop"); otherwise it continues, without endless, until every
// entry has been witnessed active at least once or a one-year safety cap
// is reached, or indefinitely if endless is true. yield may return
// errStopIteration to end iteration early without it being treated as a
// real failure.
func (s *Schedule) iterate(start time.Time, end *time.Time, multi bool, endless bool, yield func(window) error) error {
	if end != nil && endless {
		return errors.New("cadence: cannot specify both end and endless")
	}
	start = truncateToMinute(start)
	hardStop := end != nil
	var endTime time.Time
	if hardStop {
		endTime = truncateToMinute(*end)
	}
	capHorizon := start.AddDate(1, 0, 0)

	usedRules := map[int]bool{}
	currentRules := map[int]bool{}
	numRules := len(s.entries)
	currentStart := start

	currentEntries, err := s.activeEntries(currentStart, multi)
	if err != nil {
		return err
	}
	for _, e := range currentEntries {
		currentRules[e] = true
	}
	currentKey := canonicalKey(currentEntries)

	nextStart := s.roundUp(currentStart)

	for {
		var cont bool
		if hardStop {
			cont = nextStart.Before(endTime)
		} else {
			cont = endless || len(usedRules) < numRules
			if cont && !endless && !nextStart.Before(capHorizon) {
				cont = false
			}
		}
		if !cont {
			break
		}

		newEntries, err := s.activeEntries(nextStart, multi)
		if err != nil {
			return err
		}
		newKey := canonicalKey(newEntries)

		if newKey != currentKey || s.smallestChangeGap == likeForever {
			w := window{start: currentStart, end: nextStart.Add(-time.Minute), entries: currentEntries}
			if err := yield(w); err != nil {
				return err
			}
			for r := range currentRules {
				usedRules[r] = true
			}
			currentRules = map[int]bool{}
			for _, e := range newEntries {
				currentRules[e] = true
			}
			currentStart = nextStart
			currentEntries = newEntries
			currentKey = newKey
		} else if len(newEntries) > 0 {
			for _, e := range newEntries {
				currentRules[e] = true
			}
		}

		nextStart = nextStart.Add(s.smallestChangeGap)
	}

	if hardStop && currentStart.Before(endTime) {
		return yield(window{start: currentStart, end: endTime, entries: currentEntries})
	}
	return nil
}

func (s *Schedule) firstWindows(whence time.Time, n int) ([]window, error) {
	var out []window
	err := s.iterate(whence, nil, false, true, func(w window) error {
		out = append(out, w)
		if len(out) >= n {
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, err
	}
	return out, nil
}

func (s *Schedule) validateSingleActive() error {
	start := time.Now().UTC()
	end := start.AddDate(1, 0, 1)
	return s.iterate(start, &end, false, false, func(window) error { return nil })
}

// Next computes the deadline following whence per the four window/position
// cases: C1 (active now, cadence fits before the window ends), C2 (inactive
// now, use the next active window's start), C3 (active now but the cadence
// overflows into a gap, so skip to the active window after that), and C4
// (active now, overflows into another active window — take whichever of
// "one cadence tick after whence" or "start of the new window" is later).
func (s *Schedule) Next(whence time.Time) (time.Time, error) {
	wins, err := s.firstWindows(whence, 3)
	if err != nil {
		return time.Time{}, err
	}
	if len(wins) == 0 {
		return time.Time{}, errors.New("cadence: schedule produced no windows")
	}

	cur := wins[0]
	if len(cur.entries) == 0 {
		// C2: inactive now.
		if len(wins) < 2 {
			return time.Time{}, errors.New("cadence: no upcoming active window")
		}
		nxt := wins[1]
		return nxt.start.Add(s.durationOf(nxt.entries[0])), nil
	}

	td := s.durationOf(cur.entries[0])
	if !whence.Add(td).After(cur.end) {
		// C1: stays within the current window.
		return whence.Add(td), nil
	}

	if len(wins) < 2 {
		return time.Time{}, errors.New("cadence: no window follows the current one")
	}
	nxt := wins[1]
	if len(nxt.entries) == 0 {
		// C3: overflow into a gap, skip to the window after it.
		if len(wins) < 3 {
			return time.Time{}, errors.New("cadence: no active window after the gap")
		}
		that := wins[2]
		return that.start.Add(s.durationOf(that.entries[0])), nil
	}

	// C4: overflow into another active window.
	td2 := s.durationOf(nxt.entries[0])
	candidate := whence.Add(td2)
	if nxt.start.After(candidate) {
		return nxt.start, nil
	}
	return candidate, nil
}

// Window is one maximal run of minutes with a constant active entry, for
// operator-facing display.
type Window struct {
	Start, End time.Time
	Active     bool
	Seconds    float64
}

// Windows enumerates windows between start and end for display purposes.
// Unlike Next, callers needing only a bounded range should use this instead
// of Next's unbounded search.
func (s *Schedule) Windows(start, end time.Time) ([]Window, error) {
	var out []Window
	err := s.iterate(start, &end, false, false, func(w window) error {
		win := Window{Start: w.start, End: w.end}
		if len(w.entries) > 0 {
			win.Active = true
			win.Seconds = s.entries[w.entries[0]].seconds
		}
		out = append(out, win)
		return nil
	})
	return out, err
}
