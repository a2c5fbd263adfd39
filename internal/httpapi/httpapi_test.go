package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/opswatch/coalmine/internal/canary"
	"github.com/opswatch/coalmine/internal/engine"
	"github.com/opswatch/coalmine/internal/lifecycle"
	"github.com/opswatch/coalmine/internal/notifier"
	"github.com/opswatch/coalmine/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *canary.Canary, notifier.Kind) error { return nil }

func newTestServer(t *testing.T, authKey string) (*Server, *httptest.Server) {
	t.Helper()
	st := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := noopNotifier{}
	eng := engine.New(st, n, log, nil)
	svc := lifecycle.New(st, eng, n, log)
	srv := New(svc, "127.0.0.1:0", authKey, log)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + urlPrefix + "create?name=Deploy&periodicity=60")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	body := decode(t, resp)
	if body["status"] != "ok" {
		t.Fatalf("create failed: %+v", body)
	}
	c := body["canary"].(map[string]any)
	id := c["id"].(string)

	resp2, err := http.Get(ts.URL + urlPrefix + "get?id=" + id)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	body2 := decode(t, resp2)
	if body2["status"] != "ok" {
		t.Fatalf("get failed: %+v", body2)
	}
}

func TestAuthRequiredExceptTrigger(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	resp, err := http.Get(ts.URL + urlPrefix + "list")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth_key, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + urlPrefix + "list?auth_key=secret")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with correct auth_key, got %d", resp2.StatusCode)
	}
}

func TestTriggerShortcutBypassesAuth(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	resp, err := http.Get(ts.URL + urlPrefix + "create?name=x&periodicity=60&auth_key=secret")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	body := decode(t, resp)
	id := body["canary"].(map[string]any)["id"].(string)

	resp2, err := http.Get(ts.URL + "/" + id)
	if err != nil {
		t.Fatalf("shortcut trigger: %v", err)
	}
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected shortcut trigger to bypass auth, got %d", resp2.StatusCode)
	}
}

func TestCreateSlugCollisionCaseInsensitive(t *testing.T) {
	_, ts := newTestServer(t, "")
	if resp, _ := http.Get(ts.URL + urlPrefix + "create?name=foo&periodicity=60"); resp.StatusCode != http.StatusOK {
		t.Fatalf("first create failed: %d", resp.StatusCode)
	}
	resp, err := http.Get(ts.URL + urlPrefix + "create?name=FOO&periodicity=60")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on case-insensitive slug collision, got %d", resp.StatusCode)
	}
}

func TestUpdateNoChangesRejectedButCaseOnlyRenameSucceeds(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, _ := http.Get(ts.URL + urlPrefix + "create?name=Foo&periodicity=60")
	body := decode(t, resp)
	id := body["canary"].(map[string]any)["id"].(string)

	noop, err := http.Get(ts.URL + urlPrefix + "update?id=" + id)
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if noop.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for no-op update, got %d", noop.StatusCode)
	}

	rename, err := http.Get(ts.URL + urlPrefix + "update?id=" + id + "&name=" + url.QueryEscape("FOO"))
	if err != nil {
		t.Fatalf("rename update: %v", err)
	}
	if rename.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for case-only rename, got %d", rename.StatusCode)
	}
}

func TestUnknownCommandIs404(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + urlPrefix + "nonsense")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestBadBooleanIs400(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + urlPrefix + "create?name=x&periodicity=60&paused=maybe")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad boolean, got %d", resp.StatusCode)
	}
}
