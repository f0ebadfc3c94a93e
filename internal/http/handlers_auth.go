package http

import (
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type authView struct {
	Mode     string
	Username string
	Error    string
}

type settingsView struct {
	Settings   core.Settings
	Currencies []string
}

// authMessage turns an auth failure into the text shown on the form, with the
// status it is sent with. ok is false for unexpected errors.
func authMessage(err error) (msg string, status int, ok bool) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid username or password", http.StatusUnauthorized, true
	case errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, auth.ErrEmptyUsername),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordMismatch):
		return capitalize(err.Error()), http.StatusUnprocessableEntity, true
	default:
		return "", 0, false
	}
}

func (s *Server) renderAuthForm(w http.ResponseWriter, r *http.Request, status int, view authView) {
	title := "Log in"
	if view.Mode == "register" {
		title = "Create account"
	}
	s.render(w, r, status, "login_page", s.newPage(r, "", title, view))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.OwnerFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderAuthForm(w, r, http.StatusOK, authView{Mode: "login"})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderAuthForm(w, r, http.StatusOK, authView{Mode: "register"})
}

// authFailed re-renders the form for expected failures and falls back to the
// generic error mapping for the rest.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, view authView, op string, err error) {
	msg, status, ok := authMessage(err)
	if !ok {
		s.fail(w, r, op, err)
		return
	}
	view.Error = msg
	s.renderAuthForm(w, r, status, view)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	username := p.Get("username")
	sess, err := s.deps.Auth.Login(ctx, username, p.Get("password"))
	if err != nil {
		applog.FromContext(ctx).InfoContext(ctx, "Login rejected",
			applog.FieldComponent, applog.ComponentAuth,
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		s.authFailed(w, r, authView{Mode: "login", Username: username}, "login", err)
		return
	}
	auth.SetSessionCookies(w, sess, s.deps.CookieSecure)
	redirect(w, r, "/")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	username := p.Get("username")
	sess, err := s.deps.Auth.Register(r.Context(), username, p.Get("password"), p.Get("confirm"))
	if err != nil {
		s.authFailed(w, r, authView{Mode: "register", Username: username}, "register", err)
		return
	}
	auth.SetSessionCookies(w, sess, s.deps.CookieSecure)
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, err := r.Cookie(auth.RefreshCookie); err == nil {
		if err := s.deps.Auth.Logout(ctx, c.Value); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Refresh token revocation failed", "error", err)
		}
	}
	auth.ClearSessionCookies(w, s.deps.CookieSecure)
	redirect(w, r, auth.LoginPath)
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "settings", "Settings", nil)
	p.Data = settingsView{Settings: p.Settings, Currencies: core.Currencies}
	s.render(w, r, http.StatusOK, "settings_page", p)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	settings := core.Settings{
		DisplayName: p.Get("display_name"),
		Currency:    p.Get("currency"),
		DarkMode:    p.Bool("dark_mode"),
		CompactMode: p.Bool("compact_mode"),
	}
	if err := s.deps.Auth.UpdateSettings(r.Context(), ownerOf(r.Context()), settings); err != nil {
		s.fail(w, r, "update_settings", err)
		return
	}
	// theme and currency live in the layout, so reload the whole page
	NewHXResponse().
		SetHeader("HX-Refresh", "true").
		Success("Settings saved").
		Write(w)
}

// handleChangePassword sets the new password and opens a fresh session, since
// the change revokes every refresh token of the user.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, fail := ParseFormOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	password, confirm := p.Get("password"), p.Get("confirm")
	if err := s.deps.Auth.ChangePassword(ctx, ownerOf(ctx), password, confirm); err != nil {
		if msg, status, ok := authMessage(err); ok {
			s.metrics.validationErrors.Add(1)
			ErrorFragment(status, msg).Write(w)
			return
		}
		s.fail(w, r, "change_password", err)
		return
	}
	if sess, err := s.deps.Auth.Login(ctx, auth.UsernameFromContext(ctx), password); err == nil {
		auth.SetSessionCookies(w, sess, s.deps.CookieSecure)
	} else {
		applog.FromContext(ctx).WarnContext(ctx, "Session renewal after password change failed", "error", err)
	}
	NewHXResponse().
		ResetForm().
		Success("Password changed").
		Write(w)
}
