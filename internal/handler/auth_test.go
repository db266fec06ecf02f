package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/kazna/internal/auth"
	"github.com/dukerupert/kazna/internal/middleware"
	"github.com/dukerupert/kazna/internal/store"
)

func setupAuth(t *testing.T) (*AuthHandler, *store.SessionStore) {
	t.Helper()
	db := setupDB(t)
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := users.Create("admin@example.com", hash); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewAuthHandler(users, sessions, false, testLogger()), sessions
}

func TestLogin(t *testing.T) {
	h, sessions := setupAuth(t)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":" Admin@Example.com ","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess == nil {
		t.Error("cookie token does not match a stored session")
	}
}

func TestLoginRejected(t *testing.T) {
	h, _ := setupAuth(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"admin@example.com","password":"nope nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"ghost@example.com","password":"correct horse"}`, http.StatusUnauthorized},
		{"missing fields", `{"email":"admin@example.com"}`, http.StatusBadRequest},
		{"bad json", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest("POST", "/login", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("no cookie expected on failure")
			}
		})
	}
}

func TestLogout(t *testing.T) {
	h, sessions := setupAuth(t)
	sess, err := sessions.Create(1)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("POST", "/logout", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, SessionID: sess.ID}))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("session should be deleted")
	}
}

func TestSession(t *testing.T) {
	h, _ := setupAuth(t)

	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest("GET", "/api/session", nil))
	if body := decode[map[string]any](t, rec); body["authenticated"] != false {
		t.Errorf("visitor session = %v", body)
	}

	rec = httptest.NewRecorder()
	h.Session(rec, asAdmin(httptest.NewRequest("GET", "/api/session", nil)))
	body := decode[map[string]any](t, rec)
	if body["authenticated"] != true || body["admin"] != true || body["email"] != "admin@example.com" {
		t.Errorf("admin session = %v", body)
	}
}
