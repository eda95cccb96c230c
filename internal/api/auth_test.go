package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AaronLay10/StageEngine/internal/config"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func testAuth() *Auth {
	return NewAuth(
		config.Credentials{User: "admin", Pass: "secret"},
		config.Credentials{User: "operator", Pass: "opsecret"},
	)
}

func TestAuthDisabledWithoutAdminCredentials(t *testing.T) {
	for name, a := range map[string]*Auth{
		"nil":          nil,
		"empty":        NewAuth(config.Credentials{}, config.Credentials{}),
		"operatorOnly": NewAuth(config.Credentials{}, config.Credentials{User: "op", Pass: "x"}),
	} {
		t.Run(name, func(t *testing.T) {
			if a.Enabled() {
				t.Fatal("auth should be disabled")
			}
			called := false
			h := a.RequireAdmin()(okHandler(&called))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

			if !called || w.Code != http.StatusOK {
				t.Errorf("expected pass-through, got called=%v status=%d", called, w.Code)
			}
		})
	}
}

func TestAuthRoles(t *testing.T) {
	tests := []struct {
		name       string
		user, pass string
		adminOnly  bool
		wantStatus int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"admin on any-role route", "admin", "secret", false, http.StatusOK},
		{"operator on any-role route", "operator", "opsecret", false, http.StatusOK},
		{"wrong password", "admin", "nope", false, http.StatusUnauthorized},
		{"admin on admin route", "admin", "secret", true, http.StatusOK},
		{"operator on admin route", "operator", "opsecret", true, http.StatusForbidden},
	}

	a := testAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mw := a.RequireAnyRole()
			if tt.adminOnly {
				mw = a.RequireAdmin()
			}
			h := mw(okHandler(&called))

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestLoadAuthFromEnv(t *testing.T) {
	t.Setenv("STAGE_ADMIN_USER", "root")
	t.Setenv("STAGE_ADMIN_PASS", "pw")
	t.Setenv("STAGE_OPERATOR_USER", "")
	t.Setenv("STAGE_OPERATOR_PASS", "")

	a, err := LoadAuth()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Enabled() {
		t.Fatal("expected auth to be enabled")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("root", "pw")
	if role := a.authenticate(req); role != RoleAdmin {
		t.Errorf("expected admin role, got %q", role)
	}
}
