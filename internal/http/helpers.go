package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trackme/internal/core"
	"trackme/internal/services"
	"trackme/internal/store"
)

// User-visible form messages.
const (
	msgSubscriptionIncomplete = "Please fill in every field."
	msgInvalidPrice           = "Price should be a positive number."
	msgTransactionIncomplete  = "Please fill in title, amount, and date."
	msgInvalidAmount          = "Amount must be a positive number."
	msgUnavailable            = "Service unavailable. Check your configuration."
	msgSaveFailed             = "Could not save. Please try again."
	msgNotFound               = "That item no longer exists."
	msgSignInFailed           = "Sign-in failed. Please try again."
)

const (
	themeCookie = "tm_theme"
	flashCookie = "tm_flash"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// subscriptionError maps a subscription write error to a status and message.
func subscriptionError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrIncomplete),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrMissingDate):
		return http.StatusUnprocessableEntity, msgSubscriptionIncomplete
	case errors.Is(err, core.ErrInvalidPrice):
		return http.StatusUnprocessableEntity, msgInvalidPrice
	case errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrUnknownInterval),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrNameTooLong):
		return http.StatusUnprocessableEntity, capitalize(err.Error()) + "."
	}
	return writeError(err)
}

// transactionError maps an income or expense write error.
func transactionError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrIncomplete),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrMissingDate):
		return http.StatusUnprocessableEntity, msgTransactionIncomplete
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, msgInvalidAmount
	case errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrTitleTooLong):
		return http.StatusUnprocessableEntity, capitalize(err.Error()) + "."
	}
	return writeError(err)
}

func writeError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	}
	return http.StatusInternalServerError, msgSaveFailed
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// localPath accepts only same-origin absolute paths, falling back to def.
func localPath(raw, def string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return def
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return def
	}
	return u.RequestURI()
}

// themeOf reads the theme cookie; dark is the default.
func themeOf(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == "light" {
		return "light"
	}
	return "dark"
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns and clears the pending flash message.
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// isEnhanced reports whether app.js submitted the form and expects a
// fragment instead of a redirect.
func isEnhanced(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "fetch"
}
