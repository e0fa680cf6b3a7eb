package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeCheck is one check held by FakePingdom.
type FakeCheck struct {
	ID       int64
	Name     string
	Hostname string
	Tags     []string
	Form     map[string]string
}

// FakePingdom is an in-memory checks API: POST creates, GET lists by any tag, DELETE removes by id.
// Tags are stored lower-cased like the real service returns them.
type FakePingdom struct {
	Server *httptest.Server

	mu     sync.Mutex
	token  string
	nextID int64
	checks map[int64]FakeCheck
	// FailNames makes POST for these check names answer 400.
	FailNames map[string]bool
}

// NewFakePingdom starts a fake checks API that requires token as bearer.
// Params: test handle and expected token.
// Returns: running fake; closed on test cleanup.
func NewFakePingdom(tb testing.TB, token string) *FakePingdom {
	tb.Helper()

	fake := &FakePingdom{token: token, checks: make(map[int64]FakeCheck), FailNames: make(map[string]bool)}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	tb.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the API base URL.
func (f *FakePingdom) URL() string {
	return f.Server.URL + "/api/3.1"
}

// Checks returns stored checks ordered by id.
func (f *FakePingdom) Checks() []FakeCheck {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCheck, 0, len(f.checks))
	for _, check := range f.checks {
		out = append(out, check)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakePingdom) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"statuscode": 401, "errormessage": "Invalid token"}})
		return
	}
	if r.URL.Path != "/api/3.1/checks" {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPost:
		f.create(w, r)
	case http.MethodGet:
		f.list(w, r)
	case http.MethodDelete:
		f.remove(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakePingdom) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	name := r.PostForm.Get("name")
	if f.FailNames[name] {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"errormessage": "rejected " + name}})
		return
	}
	f.nextID++
	form := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}
	check := FakeCheck{
		ID:       f.nextID,
		Name:     name,
		Hostname: r.PostForm.Get("host"),
		Tags:     splitLower(r.PostForm.Get("tags")),
		Form:     form,
	}
	f.checks[check.ID] = check
	writeJSON(w, http.StatusOK, map[string]any{"check": map[string]any{"id": check.ID, "name": check.Name}})
}

func (f *FakePingdom) list(w http.ResponseWriter, r *http.Request) {
	wanted := splitLower(r.URL.Query().Get("tags"))
	items := make([]map[string]any, 0)
	ids := make([]int64, 0, len(f.checks))
	for id := range f.checks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		check := f.checks[id]
		if len(wanted) > 0 && !anyTag(check.Tags, wanted) {
			continue
		}
		tags := make([]map[string]any, 0, len(check.Tags))
		for _, tag := range check.Tags {
			tags = append(tags, map[string]any{"name": tag, "type": "u", "count": 1})
		}
		items = append(items, map[string]any{"id": check.ID, "name": check.Name, "hostname": check.Hostname, "status": "up", "tags": tags})
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": items})
}

func (f *FakePingdom) remove(w http.ResponseWriter, r *http.Request) {
	for _, raw := range strings.Split(r.URL.Query().Get("delcheckids"), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad id " + raw})
			return
		}
		delete(f.checks, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Deletion of checks was successful!"})
}

func anyTag(have, wanted []string) bool {
	for _, tag := range have {
		for _, want := range wanted {
			if tag == want {
				return true
			}
		}
	}
	return false
}

func splitLower(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
