package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/core"
)

const (
	AccessCookie  = "fintrack_access"
	RefreshCookie = "fintrack_refresh"
	LoginPath     = "/login"
)

type usernameKey struct{}

// UsernameFromContext returns the signed-in username, if any.
func UsernameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(usernameKey{}).(string)
	return s
}

func withIdentity(ctx context.Context, userID, username string) context.Context {
	ctx = core.WithOwner(ctx, userID)
	return context.WithValue(ctx, usernameKey{}, username)
}

// SetSessionCookies writes both session cookies. They are HttpOnly and SameSite=Lax.
func SetSessionCookies(w http.ResponseWriter, s Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.AccessExpires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    s.RefreshToken,
		Path:     "/",
		Expires:  s.RefreshExpires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Middleware resolves the caller's identity from the session cookies. A valid
// access token wins; otherwise a refresh token is exchanged transparently.
// Requests without a usable session continue anonymously.
func (s *Service) Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := cookieValue(r, AccessCookie); raw != "" {
				if claims, err := s.Authenticate(raw); err == nil {
					next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.Subject, claims.Username)))
					return
				}
			}

			raw := cookieValue(r, RefreshCookie)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := s.Refresh(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, ErrSessionExpired) {
					s.logger.Warn("Session refresh failed", "error", err)
				}
				ClearSessionCookies(w, secure)
				next.ServeHTTP(w, r)
				return
			}
			SetSessionCookies(w, sess, secure)
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), sess.UserID, sess.Username)))
		})
	}
}

// RequireSession rejects anonymous requests. HTMX callers get a 401 with
// HX-Redirect so the page navigates to the login form.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := core.OwnerFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", LoginPath)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
	})
}
