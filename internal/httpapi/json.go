package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opswatch/coalmine/internal/canary"
)

// isoLayout renders timestamps as ISO-8601 naive UTC, matching
// datetime.isoformat() on a tz-naive datetime: no trailing "Z" or offset.
const isoLayout = "2006-01-02T15:04:05.999999"

type isoTime time.Time

func (t isoTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(isoLayout))
}

type historyEntryJSON struct {
	When    isoTime `json:"when"`
	Comment string  `json:"comment"`
}

// canaryJSON is the full rendering of a Canary, used whenever a single
// canary is returned or a list is requested with verbose=true.
type canaryJSON struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Periodicity string             `json:"periodicity"`
	Emails      []string           `json:"emails"`
	Paused      bool               `json:"paused"`
	Late        bool               `json:"late"`
	Deadline    *isoTime           `json:"deadline,omitempty"`
	History     []historyEntryJSON `json:"history"`
}

func renderCanary(c *canary.Canary) canaryJSON {
	out := canaryJSON{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Periodicity: c.Periodicity,
		Emails:      c.Emails,
		Paused:      c.Paused,
		Late:        c.Late,
		History:     make([]historyEntryJSON, len(c.History)),
	}
	if out.Emails == nil {
		out.Emails = []string{}
	}
	for i, h := range c.History {
		out.History[i] = historyEntryJSON{When: isoTime(h.When), Comment: h.Comment}
	}
	if c.HasDeadline {
		d := isoTime(c.Deadline)
		out.Deadline = &d
	}
	return out
}

// terseCanaryJSON is the abbreviated rendering used by list without
// verbose=true: only id and name. The store always returns full records;
// the projection is applied here.
type terseCanaryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"status": "ok"}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	_ = enc.Encode(body)
}
