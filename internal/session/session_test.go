package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/ingenius/internal/auth"
)

var testKey = []byte(strings.Repeat("s", 32))

func TestManager_RoundTrip(t *testing.T) {
	m := New(testKey, time.Hour, false)

	rec := httptest.NewRecorder()
	if err := m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), auth.User{ID: 7, Email: "jane@example.com"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("cookies = %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	var seen auth.User
	m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)

	if seen.ID != 7 || seen.Email != "jane@example.com" {
		t.Fatalf("user = %+v", seen)
	}
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	a := New(testKey, time.Hour, false)
	b := New([]byte(strings.Repeat("x", 32)), time.Hour, false)

	rec := httptest.NewRecorder()
	_ = a.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), auth.User{ID: 7})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	if _, ok := b.Current(req); ok {
		t.Fatal("cookie signed with another key accepted")
	}
}

func TestRequireUser_RedirectsToRoot(t *testing.T) {
	called := false
	h := RequireUser(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracks/new", nil))

	if called {
		t.Fatal("protected handler ran without a session")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireUserAPI_Unauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireUserAPI(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tracks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}
