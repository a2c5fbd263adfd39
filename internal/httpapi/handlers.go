package httpapi

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/opswatch/coalmine/internal/lifecycle"
	"github.com/opswatch/coalmine/internal/store"
)

type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request)

var handlers = map[string]handlerFunc{
	"create":  handleCreate,
	"delete":  handleDelete,
	"update":  handleUpdate,
	"get":     handleGet,
	"list":    handleList,
	"trigger": handleTrigger,
	"pause":   handlePause,
	"unpause": handleUnpause,
}

// resolveIdentifier resolves id/name/slug query parameters to a canary id,
// mirroring the source's find_identifier(). When nameOK is false only id
// and slug are accepted (used by update, per the source).
func resolveIdentifier(ctx context.Context, s *Server, p *params, nameOK bool) (string, error) {
	id, _ := p.str("id")
	slug, _ := p.str("slug")
	var name string
	if nameOK {
		name, _ = p.str("name")
	}

	if id == "" && slug == "" && name == "" {
		if nameOK {
			return "", paramErrorf("must specify id, slug, or name")
		}
		return "", paramErrorf("must specify id or slug")
	}

	return s.service.Find(ctx, id, name, slug)
}

func handleCreate(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())

	name, err := p.require("name")
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	periodicity, err := p.require("periodicity")
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	description, _ := p.str("description")
	emails, _ := p.strSlice("email")
	paused, _, err := p.boolean("paused")
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}

	c, err := s.service.Create(ctx, lifecycle.CreateParams{
		Name:        name,
		Periodicity: periodicity,
		Description: description,
		Emails:      emails,
		Paused:      paused,
	})
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"canary": renderCanary(c)})
}

func handleDelete(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, true)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	if err := s.service.Delete(ctx, id); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, nil)
}

func handleUpdate(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, false)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}

	var update lifecycle.UpdateParams
	if name, ok := p.str("name"); ok {
		update.Name = &name
	}
	if periodicity, ok := p.str("periodicity"); ok {
		update.Periodicity = &periodicity
	}
	if description, ok := p.str("description"); ok {
		update.Description = &description
	}
	if emails, ok := p.strSlice("email"); ok {
		// "-" erases every existing address; an empty list means no change.
		if len(emails) == 1 && emails[0] == "-" {
			empty := []string{}
			update.Emails = &empty
		} else if len(emails) > 0 {
			update.Emails = &emails
		}
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}

	c, err := s.service.Update(ctx, id, update)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"canary": renderCanary(c)})
}

func handleGet(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, true)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	c, err := s.service.Get(ctx, id)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"canary": renderCanary(c)})
}

func handleList(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())

	verbose, _, err := p.boolean("verbose")
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	var listParams lifecycle.ListParams
	if pausedVal, present, err := p.boolean("paused"); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	} else if present {
		listParams.Paused = &pausedVal
	}
	if lateVal, present, err := p.boolean("late"); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	} else if present {
		listParams.Late = &lateVal
	}
	if search, ok := p.str("search"); ok && search != "" {
		re, err := regexp.Compile(search)
		if err != nil {
			s.writeHandlerError(ctx, w, paramErrorf("bad search regexp: %v", err))
			return
		}
		listParams.Search = re
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}

	canaries, err := s.service.List(ctx, listParams)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	rendered := make([]any, len(canaries))
	for i, c := range canaries {
		if verbose {
			rendered[i] = renderCanary(c)
		} else {
			rendered[i] = terseCanaryJSON{ID: c.ID, Name: c.Name}
		}
	}
	writeOK(w, map[string]any{"canaries": rendered})
}

func handleTrigger(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, true)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	comment, ok := p.str("comment")
	if !ok || comment == "" {
		comment, _ = p.str("m")
	}
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	result, err := s.service.Trigger(ctx, id, comment)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"recovered": result.WasLate, "unpaused": result.WasPaused})
}

func handlePause(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, true)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	comment, _ := p.str("comment")
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	c, err := s.service.Pause(ctx, id, comment)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"canary": renderCanary(c)})
}

func handleUnpause(s *Server, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := newParams(r.URL.Query())
	id, err := resolveIdentifier(ctx, s, p, true)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	comment, _ := p.str("comment")
	if err := p.checkUnexpected(); err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	c, err := s.service.Unpause(ctx, id, comment)
	if err != nil {
		s.writeHandlerError(ctx, w, err)
		return
	}
	writeOK(w, map[string]any{"canary": renderCanary(c)})
}

// writeHandlerError maps a lifecycle or parameter error to its HTTP status
// code and a stable error payload, per spec.md §7's propagation policy. It
// logs the outcome tagged with the request's correlation id so a 404/400
// can be tied back to the access-log line that recorded the same id.
func (s *Server) writeHandlerError(ctx context.Context, w http.ResponseWriter, err error) {
	var notFound *lifecycle.CanaryNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, store.ErrNotFound) {
		s.log.Info("canary not found", "request_id", requestID(ctx))
		writeError(w, http.StatusNotFound, "Canary Not Found")
		return
	}
	s.log.Info("bad request", "request_id", requestID(ctx), "error", err.Error())
	writeError(w, http.StatusBadRequest, err.Error())
}
