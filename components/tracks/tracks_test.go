// components/tracks/tracks_test.go
//
// Handler-level scenarios: session redirect, validation re-render,
// successful submit, store rejection, live validation, detail, and API.

package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/track"
	"github.com/yanizio/ingenius/internal/view"
)

var fixedNow = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory track.Store.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	tracks  map[int64]*track.Track
	created []track.Record
	err     error
}

func newMemStore() *memStore {
	return &memStore{nextID: 42, tracks: map[int64]*track.Track{}}
}

func (m *memStore) Create(ctx context.Context, rec track.Record) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, rec)
	if m.err != nil {
		return nil, m.err
	}
	uid, _ := auth.UserID(ctx)
	t := &track.Track{ID: m.nextID, Record: rec, CreatedBy: uid, CreatedAt: fixedNow}
	m.tracks[t.ID] = t
	m.nextID++
	return t, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return nil, track.ErrNotFound
	}
	return t, nil
}

func (m *memStore) Created() []track.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]track.Record(nil), m.created...)
}

type harness struct {
	store  *memStore
	drafts *track.Drafts
	router http.Handler
}

const testToken = "api-token"

func newHarness(t *testing.T, user *auth.User) *harness {
	t.Helper()

	reg := form.NewRegistry()
	if err := reg.LoadFS(Definitions); err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	def, ok := reg.Get(FormID)
	if !ok {
		t.Fatal("tracks/new definition missing")
	}
	v := form.NewValidator(nil)
	clock := func() time.Time { return fixedNow }
	store := newMemStore()
	drafts := track.NewDrafts(16, 4, def, v, store, clock)

	c := New(Deps{
		Def:       def,
		Validator: v,
		Drafts:    drafts,
		Store:     store,
		Reader:    track.NewReader(store),
		CSRF:      form.NewCSRF([]byte(strings.Repeat("c", 32))),
		View:      view.New("", view.CacheDefault),
		APIToken:  testToken,
		Clock:     clock,
	})

	r := chi.NewRouter()
	if user != nil {
		u := *user
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), u)))
			})
		})
	}
	c.Routes(r)
	return &harness{store: store, drafts: drafts, router: r}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

var (
	draftRe = regexp.MustCompile(`name="draft_id" value="([^"]+)"`)
	csrfRe  = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)
)

// open GETs the form and returns the draft id and CSRF token.
func (h *harness) open(t *testing.T) (draft, csrf string) {
	t.Helper()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/tracks/new", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tracks/new = %d", rec.Code)
	}
	body := rec.Body.String()
	dm, cm := draftRe.FindStringSubmatch(body), csrfRe.FindStringSubmatch(body)
	if dm == nil || cm == nil {
		t.Fatalf("draft or csrf missing from form:\n%s", body)
	}
	return dm[1], cm[1]
}

func post(path string, vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func formValues(draft, csrf string, kv ...string) url.Values {
	vals := url.Values{"draft_id": {draft}, "csrf_token": {csrf}}
	for i := 0; i+1 < len(kv); i += 2 {
		vals.Set(kv[i], kv[i+1])
	}
	return vals
}

var jane = &auth.User{ID: 7, Email: "jane@example.com"}

/*──────────────────────────── page flow ────────────────────────────────────*/

func TestNew_NoSessionRedirectsHome(t *testing.T) {
	h := newHarness(t, nil)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/tracks/new", nil),
		post("/tracks/new", url.Values{}),
		post("/tracks/new/validate", url.Values{}),
	} {
		rec := h.do(req)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Fatalf("%s %s = %d to %q", req.Method, req.URL.Path, rec.Code, rec.Header().Get("Location"))
		}
		if strings.Contains(rec.Body.String(), "track-form") {
			t.Fatal("form rendered without a session")
		}
	}
}

func TestNew_RendersForm(t *testing.T) {
	h := newHarness(t, jane)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/tracks/new", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`spellcheck="false"`,
		`id="errors-list"`,
		`<textarea id="fld-lyrics" name="lyrics"`,
		`type="date" value="2024-03-13"`,
		`First time transcribing?`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("form missing %q", want)
		}
	}
	if h.drafts.Len() != 1 {
		t.Fatalf("drafts open = %d, want 1", h.drafts.Len())
	}
}

func TestSubmit_EmptyDraftShowsErrorsInOrder(t *testing.T) {
	h := newHarness(t, jane)
	draft, csrf := h.open(t)

	rec := h.do(post("/tracks/new", formValues(draft, csrf)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	a := strings.Index(body, "Track must have an artist")
	b := strings.Index(body, "Track must have a title")
	c := strings.Index(body, "You must enter lyrics for the track")
	if a < 0 || b < a || c < b {
		t.Fatalf("messages missing or out of order (%d, %d, %d)", a, b, c)
	}
	if !strings.Contains(body, `data-display-errors="true"`) {
		t.Error("latch not reflected in page")
	}
	if len(h.store.Created()) != 0 {
		t.Fatal("invalid draft reached the store")
	}
}

func TestSubmit_SuccessRedirectsToDetail(t *testing.T) {
	h := newHarness(t, jane)
	draft, csrf := h.open(t)

	rec := h.do(post("/tracks/new", formValues(draft, csrf,
		"artist", "Jane", "track_title", "Song", "lyrics", "La la la")))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/tracks/42" {
		t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}

	created := h.store.Created()
	want := track.Record{Title: "Song", Artist: "Jane", Lyrics: "La la la", ReleaseDate: "2024-03-13"}
	if len(created) != 1 || created[0] != want {
		t.Fatalf("created = %+v", created)
	}
	if h.drafts.Len() != 0 {
		t.Fatal("draft not discarded after success")
	}

	detail := h.do(httptest.NewRequest(http.MethodGet, "/tracks/42", nil))
	if detail.Code != http.StatusOK || !strings.Contains(detail.Body.String(), "La la la") {
		t.Fatalf("detail = %d", detail.Code)
	}
}

func TestSubmit_RejectionReplacesErrors(t *testing.T) {
	h := newHarness(t, jane)
	h.store.err = &track.RejectedError{Messages: []string{"Title already exists"}}
	draft, csrf := h.open(t)

	rec := h.do(post("/tracks/new", formValues(draft, csrf,
		"artist", "Jane", "track_title", "Song", "lyrics", "La")))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<li>Title already exists</li>") {
		t.Fatal("server message not displayed")
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("rejected submit navigated")
	}
}

func TestSubmit_UnstructuredFailureIsSilent(t *testing.T) {
	h := newHarness(t, jane)
	h.store.err = errors.New("connection reset")
	draft, csrf := h.open(t)

	rec := h.do(post("/tracks/new", formValues(draft, csrf,
		"artist", "Jane", "track_title", "Song", "lyrics", "La")))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "connection reset") {
		t.Fatal("internal error leaked to the page")
	}
	if !strings.Contains(body, `value="Jane"`) {
		t.Fatal("draft values lost")
	}
}

func TestSubmit_BadCSRF(t *testing.T) {
	h := newHarness(t, jane)
	draft, _ := h.open(t)
	rec := h.do(post("/tracks/new", formValues(draft, "forged", "artist", "Jane")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestValidate_LiveAfterLatch(t *testing.T) {
	h := newHarness(t, jane)
	draft, csrf := h.open(t)

	// Before the latch nothing is reported.
	rec := h.do(post("/tracks/new/validate", formValues(draft, csrf, "album", strings.Repeat("x", 31))))
	var resp validateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DisplayErrors || len(resp.Errors) != 0 {
		t.Fatalf("pre-latch response = %+v", resp)
	}

	h.do(post("/tracks/new", formValues(draft, csrf, "album", "")))

	rec = h.do(post("/tracks/new/validate", formValues(draft, csrf, "artist", "Jane")))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"Track must have a title", "You must enter lyrics for the track"}
	if !resp.DisplayErrors || strings.Join(resp.Errors, "|") != strings.Join(want, "|") {
		t.Fatalf("live response = %+v", resp)
	}
}

func TestValidate_StaleRevisionDropped(t *testing.T) {
	h := newHarness(t, jane)
	draft, csrf := h.open(t)

	// Latch the draft; the full post raises the revision to 1.
	latched := h.do(post("/tracks/new", formValues(draft, csrf, "rev", "1")))
	if !strings.Contains(latched.Body.String(), `name="rev" value="1"`) {
		t.Fatal("re-rendered form does not carry the revision")
	}

	validate := func(rev, artist string) validateResponse {
		t.Helper()
		rec := h.do(post("/tracks/new/validate", formValues(draft, csrf, "rev", rev, "artist", artist)))
		var resp validateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	if resp := validate("3", "Newer"); resp.Rev != 3 {
		t.Fatalf("rev 3 response = %+v", resp)
	}
	// Sent before rev 3 but arrived after it.
	resp := validate("2", "")
	if resp.Rev != 3 {
		t.Fatalf("stale response rev = %d, want 3", resp.Rev)
	}
	for _, msg := range resp.Errors {
		if msg == "Track must have an artist" {
			t.Fatal("stale edit rolled the draft back")
		}
	}
	// Sent before the full post.
	if resp := validate("1", ""); resp.Rev != 3 {
		t.Fatalf("pre-post response rev = %d", resp.Rev)
	}

	f, ok := h.drafts.Get(draft, jane.ID)
	if !ok || f.Draft().Artist != "Newer" {
		t.Fatal("draft does not hold the newest edit")
	}
}

func TestValidate_BodyTooLarge(t *testing.T) {
	h := newHarness(t, jane)
	draft, csrf := h.open(t)

	rec := h.do(post("/tracks/new/validate", formValues(draft, csrf, "lyrics", strings.Repeat("x", maxFormBytes+1))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if f, ok := h.drafts.Get(draft, jane.ID); !ok || f.Draft().Lyrics != "" {
		t.Fatal("oversized body reached the draft")
	}
}

func TestNew_PerUserDraftLimit(t *testing.T) {
	h := newHarness(t, jane)
	first, csrf := h.open(t)
	for i := 0; i < 4; i++ {
		h.open(t)
	}
	if h.drafts.Len() != 4 {
		t.Fatalf("drafts open = %d, want 4", h.drafts.Len())
	}

	// The evicted draft is reopened and keeps the posted values.
	rec := h.do(post("/tracks/new", formValues(first, csrf, "artist", "Jane")))
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), `value="Jane"`) {
		t.Fatalf("post to evicted draft = %d", rec.Code)
	}
}

func TestValidate_UnknownDraft(t *testing.T) {
	h := newHarness(t, jane)
	_, csrf := h.open(t)
	rec := h.do(post("/tracks/new/validate", formValues("nope", csrf)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

/*──────────────────────────── detail ───────────────────────────────────────*/

func TestDetail_SlugAndNotFound(t *testing.T) {
	h := newHarness(t, nil)
	_, _ = h.store.Create(context.Background(), track.Record{Artist: "Jane", Title: "Song", Lyrics: "La"})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/tracks/42/wrong-slug", nil))
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/tracks/42/jane-song" {
		t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := h.do(httptest.NewRequest(http.MethodGet, "/tracks/42/jane-song", nil)); rec.Code != http.StatusOK {
		t.Fatalf("canonical = %d", rec.Code)
	}
	if rec := h.do(httptest.NewRequest(http.MethodGet, "/tracks/99", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", rec.Code)
	}
}

/*──────────────────────────── API ──────────────────────────────────────────*/

func apiPost(body string, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/tracks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAPI_Create(t *testing.T) {
	h := newHarness(t, nil)

	req := apiPost(`{"artist":"Jane","track_title":"Song","lyrics":"La","release_date":"2024-03-01"}`, testToken)
	req.Header.Set(track.HeaderActingUser, "7")
	rec := h.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got track.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 42 || got.CreatedBy != 7 {
		t.Fatalf("track = %+v", got)
	}
}

func TestAPI_CreateErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		token  string
		status int
		first  string
	}{
		{"no auth", `{}`, "", http.StatusUnauthorized, "Authentication required"},
		{"wrong token", `{}`, "nope", http.StatusUnauthorized, "Authentication required"},
		{"malformed", `{`, testToken, http.StatusBadRequest, "Malformed request body"},
		{"invalid", `{"artist":"Jane"}`, testToken, http.StatusBadRequest, "Track must have a title"},
		{"future date", `{"artist":"J","track_title":"S","lyrics":"L","release_date":"2024-03-20"}`, testToken, http.StatusBadRequest, "Please provide a valid Release Date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.do(apiPost(tc.body, tc.token))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp struct {
				Errors []string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Errors) == 0 || resp.Errors[0] != tc.first {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestAPI_RejectionAndClientRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.store.err = &track.RejectedError{Messages: []string{"Title already exists"}}
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	client := track.NewClient(srv.URL, testToken, time.Second)
	_, err := client.Create(context.Background(), track.Record{Artist: "Jane", Title: "Song", Lyrics: "La"})
	var rej *track.RejectedError
	if !errors.As(err, &rej) || rej.Messages[0] != "Title already exists" {
		t.Fatalf("Create = %v, want rejection", err)
	}
}
