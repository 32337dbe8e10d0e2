package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"

	"trackme/internal/auth"
	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/services"
)

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
	"money":  core.FormatMoney,
	"price":  core.FormatPrice,
	"date":   core.DisplayDate,
	"negative": func(d decimal.Decimal) bool {
		return d.IsNegative()
	},
	"stateClass": func(s core.DueState) string {
		return "state-" + string(s)
	},
}

// pageData is shared by every template.
type pageData struct {
	Title    string
	Nav      string
	Path     string
	Theme    string
	Session  auth.Session
	Flash    string
	DevLogin bool
	Status   int
	Message  string

	Today     string
	Period    core.Period
	Periods   []core.Period
	Dashboard services.Dashboard
	Overview  services.Overview

	Cycles            []core.RenewalCycle
	Currencies        []core.Currency
	IncomeCategories  []string
	ExpenseCategories []string
}

func (s *Server) newPage(w http.ResponseWriter, r *http.Request, title, nav string) pageData {
	return pageData{
		Title:    title,
		Nav:      nav,
		Path:     r.URL.RequestURI(),
		Theme:    themeOf(r),
		Session:  auth.FromContext(r.Context()),
		Flash:    takeFlash(w, r),
		DevLogin: s.cfg.DevLogin,
		Today:    s.cfg.Clock.Today().String(),
		Periods:  core.Periods,

		Cycles:            core.RenewalCycles,
		Currencies:        core.Currencies,
		IncomeCategories:  core.IncomeCategories,
		ExpenseCategories: core.ExpenseCategories,
	}
}

// render executes name into a buffer first so a template failure never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpRender, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := s.newPage(w, r, message, "")
	data.Status = status
	data.Message = message
	s.render(w, r, status, "status.html", data)
}

// renderPending shows a holding page while the identity provider cannot
// answer; it neither reveals content nor redirects.
func (s *Server) renderPending(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusServiceUnavailable, "pending.html", s.newPage(w, r, "Loading…", ""))
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).State == auth.SignedIn {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "landing.html", s.newPage(w, r, "Track.me", ""))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch auth.FromContext(r.Context()).State {
	case auth.SignedIn:
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	case auth.Pending:
		s.renderPending(w, r)
	default:
		s.render(w, r, http.StatusOK, "login.html", s.newPage(w, r, "Sign in", "login"))
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(w, r, "Dashboard", "dashboard")
	data.Period = ParsePeriodParam(r.URL.Query())
	data.Dashboard = s.loadDashboard(r.Context(), userID(r))
	data.Overview = data.Dashboard.Overview(data.Period)
	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(w, r, "Subscriptions", "subscriptions")
	data.Dashboard = s.loadDashboard(r.Context(), userID(r))
	s.render(w, r, http.StatusOK, "subscriptions.html", data)
}

func (s *Server) handleMoney(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(w, r, "Money", "money")
	data.Period = ParsePeriodParam(r.URL.Query())
	data.Dashboard = s.loadDashboard(r.Context(), userID(r))
	data.Overview = data.Dashboard.Overview(data.Period)
	s.render(w, r, http.StatusOK, "money.html", data)
}
