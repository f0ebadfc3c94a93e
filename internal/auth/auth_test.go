package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, *Tokens) {
	t.Helper()
	st := memory.New()
	tokens := NewTokens(testSecret, 15*time.Minute, 24*time.Hour)
	return NewService(st, st, tokens, nil), tokens
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Minute, time.Hour)
	raw, exp, err := tokens.IssueAccess("u1", "ada")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry must be in the future")
	}
	claims, err := tokens.ParseAccess(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Username != "ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens(testSecret, time.Minute, time.Hour)
	raw, _, _ := tokens.IssueAccess("u1", "ada")

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.ParseAccess(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	other := NewTokens("another-secret-another-secret-xx", time.Minute, time.Hour)
	if _, err := other.ParseAccess(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}
	if _, err := other.ParseAccess("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be rejected")
	}
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ada", "short", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	if _, err := svc.Register(ctx, "ada", "correct horse", "correct house"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	sess, err := svc.Register(ctx, "ada", "correct horse", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "ADA", "correct horse", "correct horse"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}

	if _, err := svc.Login(ctx, "ada", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "whatever123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := svc.Login(ctx, "ada", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == sess.RefreshToken {
		t.Fatalf("refresh token must rotate")
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("refresh tokens must be single use, got %v", err)
	}

	if err := svc.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("logged out token must not refresh, got %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, "ada", "correct horse", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.ChangePassword(ctx, sess.UserID, "battery staple", "battery stapler"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := svc.ChangePassword(ctx, sess.UserID, "battery staple", "battery staple"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("old refresh token must be revoked")
	}
	if _, err := svc.Login(ctx, "ada", "battery staple"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUpdateSettingsValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.CreateUser(ctx, "ada", "correct horse")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bad := core.Settings{DisplayName: "Ada", Currency: "CHF"}
	var ve *core.ValidationError
	if err := svc.UpdateSettings(ctx, id, bad); !errors.As(err, &ve) || ve.Field != "currency" {
		t.Fatalf("expected currency validation error, got %v", err)
	}
	good := core.Settings{DisplayName: " Ada ", DarkMode: true, Currency: "€"}
	if err := svc.UpdateSettings(ctx, id, good); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, _ := svc.Profile(ctx, id)
	if u.Settings.DisplayName != "Ada" || !u.Settings.DarkMode || u.Settings.Symbol() != "€" {
		t.Fatalf("unexpected settings %+v", u.Settings)
	}
}

func TestMiddlewareResolvesIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	sess, err := svc.Register(context.Background(), "ada", "correct horse", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	var gotOwner, gotName string
	h := svc.Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = core.OwnerFromContext(r.Context())
		gotName = UsernameFromContext(r.Context())
	}))

	cases := []struct {
		name        string
		cookies     []*http.Cookie
		wantOwner   string
		wantRefresh bool
	}{
		{"anonymous", nil, "", false},
		{"access token", []*http.Cookie{{Name: AccessCookie, Value: sess.AccessToken}}, sess.UserID, false},
		{"refresh only", []*http.Cookie{{Name: RefreshCookie, Value: sess.RefreshToken}}, sess.UserID, true},
		{"bad refresh", []*http.Cookie{{Name: RefreshCookie, Value: "stale"}}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotOwner, gotName = "", ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, c := range tc.cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if gotOwner != tc.wantOwner {
				t.Fatalf("owner = %q, want %q", gotOwner, tc.wantOwner)
			}
			if tc.wantOwner != "" && gotName != "ada" {
				t.Fatalf("username = %q", gotName)
			}
			refreshed := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == AccessCookie && c.Value != "" {
					refreshed = true
				}
			}
			if refreshed != tc.wantRefresh {
				t.Fatalf("refreshed = %v, want %v", refreshed, tc.wantRefresh)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/expenses", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("HX-Redirect") != LoginPath {
		t.Fatalf("expected 401 with HX-Redirect, got %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}

	req = httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect for plain GET, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/expenses", nil)
	req = req.WithContext(core.WithOwner(req.Context(), "u1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}
