package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackme/internal/auth"
	applog "trackme/internal/log"
)

const sessionTTL = 7 * 24 * time.Hour

// handleAuthCallback accepts a provider token from a posted form, verifies
// it and stores it in the session cookie.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Verifier.Ready() {
		s.renderPending(w, r)
		return
	}
	token := strings.TrimSpace(r.PostFormValue("token"))
	u, err := s.cfg.Verifier.Verify(token)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected sign-in token",
			applog.FieldError, err)
		setFlash(w, msgSignInFailed)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	auth.SetCookie(w, token, s.cfg.SecureCookies, sessionTTL)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User signed in", applog.FieldUserID, u.ID)
	http.Redirect(w, r, localPath(r.PostFormValue("next"), "/dashboard"), http.StatusSeeOther)
}

// handleDevLogin signs in a local user without the external provider.
func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Verifier.Ready() {
		s.renderPending(w, r)
		return
	}
	email := sanitizeInput(r.FormValue("email"))
	if email == "" {
		setFlash(w, "Please enter an email.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	u := auth.User{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email))).String(),
		Email: email,
		Name:  sanitizeInput(r.FormValue("name")),
	}
	token, err := s.cfg.Verifier.Issue(u, sessionTTL)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to issue dev token", applog.FieldError, err)
		setFlash(w, msgSignInFailed)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	auth.SetCookie(w, token, s.cfg.SecureCookies, sessionTTL)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleTheme flips between the dark default and light mode.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	next := "light"
	if themeOf(r) == "light" {
		next = "dark"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if isEnhanced(r) {
		NewResponse().Status(http.StatusNoContent).Trigger("theme:changed", map[string]string{"theme": next}).Write(w)
		return
	}
	http.Redirect(w, r, localPath(r.FormValue("return"), "/"), http.StatusSeeOther)
}
