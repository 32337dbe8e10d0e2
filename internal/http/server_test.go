package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"trackme/internal/auth"
	"trackme/internal/cache"
	"trackme/internal/core"
	"trackme/internal/services"
	"trackme/internal/store"
	"trackme/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	store *memory.Store
	subs  *services.SubscriptionService
	txs   *services.TransactionService
	token string
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	st := memory.New()
	clock := services.FixedClock(testNow)
	verifier := auth.NewVerifier(testSecret, "", "")
	resetter := services.NewCycleResetter(st, services.NewMemoryResetTracker(), nil)

	f := &fixture{
		store: st,
		subs:  services.NewSubscriptionService(st, clock, nil),
		txs:   services.NewTransactionService(st, cache.NewLRUCache[[]core.Transaction](10, time.Minute), clock, nil),
	}
	cfg := Config{
		Subscriptions:     f.subs,
		Transactions:      f.txs,
		Live:              services.NewLiveDashboard(st, resetter, clock, nil).WithTransactions(f.txs),
		Resetter:          resetter,
		Verifier:          verifier,
		Clock:             clock,
		DevLogin:          true,
		KeepAliveInterval: time.Second,
		Ready: func(ctx context.Context) error {
			_, err := st.Users(ctx)
			return err
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(srv.limiter.Stop)
	f.srv = srv

	if verifier.Ready() {
		f.token, err = verifier.Issue(auth.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}, time.Hour)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
	}
	return f
}

type reqOption func(*http.Request)

func signedIn(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func enhanced(r *http.Request) { r.Header.Set("X-Requested-With", "fetch") }

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (f *fixture) do(method, path string, form url.Values, opts ...reqOption) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	r := httptest.NewRequest(method, path, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, opt := range opts {
		opt(r)
	}
	w := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(w, r)
	return w
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, nil)

	if w := f.do(http.MethodGet, "/healthz", nil); w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("/healthz = %d %q", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/readyz", nil); w.Code != http.StatusOK {
		t.Fatalf("/readyz = %d", w.Code)
	}

	f = newFixture(t, func(c *Config) { c.Ready = nil })
	if w := f.do(http.MethodGet, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz without store = %d", w.Code)
	}
}

func TestSecurityHeadersAndStatic(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/", nil)
	if w.Header().Get("Content-Security-Policy") == "" || w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("security headers missing: %v", w.Header())
	}

	w = f.do(http.MethodGet, "/static/style.css", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/static/style.css = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}

	if w := f.do(http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Page not found") {
		t.Fatalf("/nope = %d", w.Code)
	}
}

func TestSessionGates(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name     string
		path     string
		opts     []reqOption
		status   int
		location string
	}{
		{"landing signed out", "/", nil, http.StatusOK, ""},
		{"landing signed in", "/", []reqOption{signedIn(f.token)}, http.StatusSeeOther, "/dashboard"},
		{"login signed in", "/login", []reqOption{signedIn(f.token)}, http.StatusSeeOther, "/dashboard"},
		{"dashboard signed out", "/dashboard", nil, http.StatusSeeOther, "/login"},
		{"dashboard bad token", "/dashboard", []reqOption{signedIn("garbage")}, http.StatusSeeOther, "/login"},
		{"dashboard signed in", "/dashboard", []reqOption{signedIn(f.token)}, http.StatusOK, ""},
		{"api signed out", "/api/overview", nil, http.StatusUnauthorized, ""},
		{"events signed out", "/events", nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, nil, tt.opts...)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.location != "" && w.Header().Get("Location") != tt.location {
				t.Fatalf("Location = %q, want %q", w.Header().Get("Location"), tt.location)
			}
		})
	}
}

func TestPendingProviderNeitherShowsNorRedirects(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Verifier = nil })

	for _, path := range []string{"/dashboard", "/login", "/subscriptions"} {
		w := f.do(http.MethodGet, path, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d, want 503", path, w.Code)
		}
		if w.Header().Get("Location") != "" {
			t.Fatalf("%s redirected to %q", path, w.Header().Get("Location"))
		}
		if !strings.Contains(w.Body.String(), "Loading…") {
			t.Fatalf("%s body lacks loading state", path)
		}
	}
	if w := f.do(http.MethodGet, "/api/subscriptions", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("api status = %d, want 503", w.Code)
	}
}

func TestCreateSubscription_PlainFormRedirectsWithFlash(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/subscriptions", url.Values{
		"name":            {"Netflix"},
		"price":           {"15.49"},
		"currency":        {"EUR"},
		"renewalInterval": {"1 Month"},
		"renewalDate":     {"2024-06-12"},
		"return":          {"/dashboard"},
	}, signedIn(f.token))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("create = %d Location %q", w.Code, w.Header().Get("Location"))
	}
	flash := cookieNamed(w, flashCookie)
	if flash == nil {
		t.Fatal("flash cookie not set")
	}

	w = f.do(http.MethodGet, "/dashboard", nil, signedIn(f.token), withCookie(flash))
	body := w.Body.String()
	for _, want := range []string{"Netflix", "Due soon", "€15.49", "Added Netflix."} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestCreateSubscription_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		form   url.Values
		status int
		msg    string
	}{
		{"blank name", url.Values{"name": {""}, "price": {"5"}, "renewalDate": {"2024-07-01"}}, http.StatusUnprocessableEntity, "Please fill in every field."},
		{"no date", url.Values{"name": {"Gym"}, "price": {"5"}}, http.StatusUnprocessableEntity, "Please fill in every field."},
		{"bad price", url.Values{"name": {"Gym"}, "price": {"abc"}, "renewalDate": {"2024-07-01"}}, http.StatusUnprocessableEntity, "Price should be a positive number."},
		{"negative price", url.Values{"name": {"Gym"}, "price": {"-3"}, "renewalDate": {"2024-07-01"}}, http.StatusUnprocessableEntity, "Price should be a positive number."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/subscriptions", tt.form, signedIn(f.token), enhanced)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), tt.msg) {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.msg)
			}
		})
	}

	docs, _ := f.store.List(context.Background(), "u1", store.Subscriptions)
	if len(docs) != 0 {
		t.Fatalf("rejected forms wrote %d documents", len(docs))
	}
}

func TestMarkPaidAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sub, err := f.subs.Create(ctx, "u1", services.SubscriptionInput{
		Name: "Spotify", Price: "9.99", RenewalInterval: "1 Month", RenewalDate: "2024-06-08",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := f.do(http.MethodPost, "/subscriptions/"+sub.ID+"/paid", nil, signedIn(f.token), enhanced)
	if w.Code != http.StatusOK {
		t.Fatalf("mark paid = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get(TriggerHeader), `"record:changed"`) {
		t.Fatalf("missing record:changed trigger: %s", w.Header().Get(TriggerHeader))
	}

	w = f.do(http.MethodGet, "/api/subscriptions", nil, signedIn(f.token))
	var got struct {
		Subscriptions []subscriptionJSON `json:"subscriptions"`
		Totals        []subtotalJSON     `json:"totals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Subscriptions) != 1 {
		t.Fatalf("subscriptions = %+v", got.Subscriptions)
	}
	s := got.Subscriptions[0]
	if s.State != string(core.StatePaid) || !s.IsPaidThisCycle || s.LastPaidDate != "2024-06-10" || s.DueDate != "2024-07-10" {
		t.Fatalf("after mark paid = %+v", s)
	}
	if len(got.Totals) != 1 || got.Totals[0].Display != "$9.99" {
		t.Fatalf("totals = %+v", got.Totals)
	}

	if w := f.do(http.MethodPost, "/subscriptions/missing/paid", nil, signedIn(f.token), enhanced); w.Code == http.StatusOK {
		t.Fatal("marking a missing subscription should fail")
	}

	w = f.do(http.MethodPost, "/subscriptions/"+sub.ID+"/delete", nil, signedIn(f.token), enhanced)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	docs, _ := f.store.List(ctx, "u1", store.Subscriptions)
	if len(docs) != 0 {
		t.Fatalf("subscription not deleted")
	}
}

func TestTransactionsAndOverview(t *testing.T) {
	f := newFixture(t, nil)

	for _, post := range []struct {
		path string
		form url.Values
	}{
		{"/money/income", url.Values{"title": {"Salary"}, "amount": {"1000"}, "category": {"Salary"}, "date": {"2024-06-01"}}},
		{"/money/expense", url.Values{"title": {"Rent"}, "amount": {"250.5"}, "category": {"Bills"}, "date": {"2024-06-02"}}},
		{"/money/expense", url.Values{"title": {"Old"}, "amount": {"10"}, "category": {"Food"}, "date": {"2023-01-02"}}},
	} {
		if w := f.do(http.MethodPost, post.path, post.form, signedIn(f.token), enhanced); w.Code != http.StatusOK {
			t.Fatalf("POST %s = %d %s", post.path, w.Code, w.Body.String())
		}
	}

	decode := func(w *httptest.ResponseRecorder) overviewJSON {
		t.Helper()
		var ov overviewJSON
		if err := json.Unmarshal(w.Body.Bytes(), &ov); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return ov
	}

	ov := decode(f.do(http.MethodGet, "/api/overview?period=this-month", nil, signedIn(f.token)))
	if ov.Income != "1000.00" || ov.Expense != "250.50" || ov.Net != "749.50" || len(ov.Transactions) != 2 {
		t.Fatalf("this-month overview = %+v", ov)
	}

	ov = decode(f.do(http.MethodGet, "/api/overview?period=bogus", nil, signedIn(f.token)))
	if ov.Period != string(core.ThisMonth) {
		t.Fatalf("unknown period fell back to %q", ov.Period)
	}

	ov = decode(f.do(http.MethodGet, "/api/overview?period=all-time", nil, signedIn(f.token)))
	if ov.Expense != "260.50" || len(ov.Transactions) != 3 {
		t.Fatalf("all-time overview = %+v", ov)
	}

	w := f.do(http.MethodGet, "/money?period=this-year", nil, signedIn(f.token))
	if !strings.Contains(w.Body.String(), "Savings") {
		t.Fatal("yearly tab should label the net figure as savings")
	}
}

func TestTransactionValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		path   string
		form   url.Values
		status int
		msg    string
	}{
		{"missing title", "/money/expense", url.Values{"amount": {"5"}, "date": {"2024-06-01"}}, http.StatusUnprocessableEntity, "Please fill in title, amount, and date."},
		{"missing date", "/money/income", url.Values{"title": {"Gift"}, "amount": {"5"}}, http.StatusUnprocessableEntity, "Please fill in title, amount, and date."},
		{"negative amount", "/money/expense", url.Values{"title": {"Taxi"}, "amount": {"-1"}, "date": {"2024-06-01"}}, http.StatusUnprocessableEntity, "Amount must be a positive number."},
		{"unknown type", "/money/refund", url.Values{"title": {"Taxi"}, "amount": {"1"}, "date": {"2024-06-01"}}, http.StatusNotFound, "Page not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, tt.path, tt.form, signedIn(f.token), enhanced)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), tt.msg) {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.msg)
			}
		})
	}
}

func TestAPICreateAcceptsJSON(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"type":"expense","title":"Lunch","amount":12.5,"category":"Food","date":"2024-06-09"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(`{"name":"Gym","price":"abc","renewalDate":"2024-07-01"}`))
	r.Header.Set("Authorization", "Bearer "+f.token)
	w = httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "Price should be a positive number.") {
		t.Fatalf("invalid subscription = %d %s", w.Code, w.Body.String())
	}
}

func TestServiceUnavailableWithoutStore(t *testing.T) {
	clock := services.FixedClock(testNow)
	f := newFixture(t, func(c *Config) {
		c.Subscriptions = services.NewSubscriptionService(nil, clock, nil)
		c.Transactions = services.NewTransactionService(nil, nil, clock, nil)
		c.Live = nil
		c.Resetter = nil
	})

	w := f.do(http.MethodPost, "/subscriptions", url.Values{
		"name": {"Gym"}, "price": {"30"}, "renewalDate": {"2024-07-01"},
	}, signedIn(f.token), enhanced)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "Service unavailable. Check your configuration.") {
		t.Fatalf("create without store = %d %s", w.Code, w.Body.String())
	}

	if w := f.do(http.MethodGet, "/dashboard", nil, signedIn(f.token)); w.Code != http.StatusOK {
		t.Fatalf("dashboard without store = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/events", nil, signedIn(f.token)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("events without live dashboard = %d", w.Code)
	}

	for _, path := range []string{"/api/overview", "/api/subscriptions"} {
		if w := f.do(http.MethodGet, path, nil, signedIn(f.token)); w.Code != http.StatusOK {
			t.Fatalf("%s without store = %d", path, w.Code)
		}
	}
	w = f.do(http.MethodPost, "/api/transactions", url.Values{
		"type": {"expense"}, "title": {"Tea"}, "amount": {"2"}, "category": {"Food"}, "date": {"2024-06-10"},
	}, signedIn(f.token))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "Service unavailable. Check your configuration.") {
		t.Fatalf("API write without store = %d %s", w.Code, w.Body.String())
	}
}

// unreadableStore fails every List, as a misconfigured database would.
type unreadableStore struct {
	store.DocumentStore
}

func (unreadableStore) List(context.Context, string, store.Collection) ([]store.Document, error) {
	return nil, errors.New("connection refused")
}

func TestAPIReadsDegradeWhenStoreFails(t *testing.T) {
	clock := services.FixedClock(testNow)
	st := unreadableStore{DocumentStore: memory.New()}
	f := newFixture(t, func(c *Config) {
		c.Subscriptions = services.NewSubscriptionService(st, clock, nil)
		c.Transactions = services.NewTransactionService(st, nil, clock, nil)
		c.Resetter = nil
	})

	w := f.do(http.MethodGet, "/api/overview?period=this-year", nil, signedIn(f.token))
	if w.Code != http.StatusOK {
		t.Fatalf("/api/overview = %d %s", w.Code, w.Body.String())
	}
	var ov struct {
		Period       string            `json:"period"`
		Net          string            `json:"net"`
		Transactions []json.RawMessage `json:"transactions"`
		Stale        bool              `json:"stale"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if !ov.Stale || ov.Period != "this-year" || ov.Net != "0.00" || ov.Transactions == nil || len(ov.Transactions) != 0 {
		t.Fatalf("overview = %+v (%s)", ov, w.Body.String())
	}

	w = f.do(http.MethodGet, "/api/subscriptions", nil, signedIn(f.token))
	if w.Code != http.StatusOK {
		t.Fatalf("/api/subscriptions = %d %s", w.Code, w.Body.String())
	}
	var subs struct {
		Subscriptions []json.RawMessage `json:"subscriptions"`
		Totals        []json.RawMessage `json:"totals"`
		Stale         bool              `json:"stale"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &subs); err != nil {
		t.Fatalf("decode subscriptions: %v", err)
	}
	if !subs.Stale || subs.Subscriptions == nil || len(subs.Subscriptions) != 0 || len(subs.Totals) != 0 {
		t.Fatalf("subscriptions = %s", w.Body.String())
	}

	if w := f.do(http.MethodGet, "/dashboard", nil, signedIn(f.token)); w.Code != http.StatusOK {
		t.Fatalf("dashboard with failing store = %d", w.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.WritesPerMinute = 1 })
	form := url.Values{"title": {"Coffee"}, "amount": {"3"}, "category": {"Food"}, "date": {"2024-06-09"}}

	if w := f.do(http.MethodPost, "/money/expense", form, signedIn(f.token), enhanced); w.Code != http.StatusOK {
		t.Fatalf("first write = %d", w.Code)
	}
	w := f.do(http.MethodPost, "/money/expense", form, signedIn(f.token), enhanced)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "60" {
		t.Fatalf("second write = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/money", nil, signedIn(f.token)); w.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", w.Code)
	}
}

func TestAuthCallbackAndLogout(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/auth/callback", url.Values{"token": {f.token}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("callback = %d %q", w.Code, w.Header().Get("Location"))
	}
	session := cookieNamed(w, auth.CookieName)
	if session == nil || session.Value != f.token || !session.HttpOnly {
		t.Fatalf("session cookie = %+v", session)
	}
	if w := f.do(http.MethodGet, "/dashboard", nil, withCookie(session)); w.Code != http.StatusOK {
		t.Fatalf("cookie session rejected: %d", w.Code)
	}

	w = f.do(http.MethodPost, "/auth/callback", url.Values{"token": {"garbage"}})
	if w.Header().Get("Location") != "/login" || cookieNamed(w, auth.CookieName) != nil {
		t.Fatalf("bad token = %d %q", w.Code, w.Header().Get("Location"))
	}

	w = f.do(http.MethodPost, "/logout", url.Values{}, withCookie(session))
	if c := cookieNamed(w, auth.CookieName); c == nil || c.MaxAge >= 0 {
		t.Fatalf("logout did not clear the cookie: %+v", c)
	}
}

func TestAuthCallbackIgnoresTokenInURL(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/auth/callback?token="+url.QueryEscape(f.token), nil)
	if w.Code != http.StatusMethodNotAllowed || cookieNamed(w, auth.CookieName) != nil {
		t.Fatalf("GET callback = %d, cookie %+v", w.Code, cookieNamed(w, auth.CookieName))
	}

	w = f.do(http.MethodPost, "/auth/callback?token="+url.QueryEscape(f.token), url.Values{})
	if w.Header().Get("Location") != "/login" || cookieNamed(w, auth.CookieName) != nil {
		t.Fatalf("POST with query token = %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestDevLogin(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/auth/dev", url.Values{"email": {"Ada@Example.com"}, "name": {"Ada"}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("dev login = %d %q", w.Code, w.Header().Get("Location"))
	}
	first := cookieNamed(w, auth.CookieName)
	u, err := f.srv.cfg.Verifier.Verify(first.Value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	w = f.do(http.MethodPost, "/auth/dev", url.Values{"email": {"ada@example.com"}})
	again, _ := f.srv.cfg.Verifier.Verify(cookieNamed(w, auth.CookieName).Value)
	if u.ID != again.ID {
		t.Fatalf("user id should be stable per email: %q vs %q", u.ID, again.ID)
	}

	f = newFixture(t, func(c *Config) { c.DevLogin = false })
	if w := f.do(http.MethodPost, "/auth/dev", url.Values{"email": {"a@b.c"}}); w.Code == http.StatusSeeOther {
		t.Fatal("dev login must be disabled")
	}
}

func TestThemeToggle(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/theme", url.Values{"return": {"/money"}})
	c := cookieNamed(w, themeCookie)
	if c == nil || c.Value != "light" || w.Header().Get("Location") != "/money" {
		t.Fatalf("first toggle = %+v %q", c, w.Header().Get("Location"))
	}

	w = f.do(http.MethodGet, "/", nil, withCookie(c))
	if !strings.Contains(w.Body.String(), `data-theme="light"`) {
		t.Fatal("light theme not applied")
	}

	w = f.do(http.MethodPost, "/theme", url.Values{}, withCookie(c))
	if c := cookieNamed(w, themeCookie); c == nil || c.Value != "dark" {
		t.Fatalf("second toggle = %+v", c)
	}
}

func TestExportWorkbook(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.subs.Create(context.Background(), "u1", services.SubscriptionInput{
		Name: "Netflix", Price: "15", RenewalDate: "2024-07-01",
	}); err != nil {
		t.Fatal(err)
	}

	w := f.do(http.MethodGet, "/export.xlsx", nil, signedIn(f.token))
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "trackme_20240610.xlsx") {
		t.Fatalf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Fatal("body is not a zip container")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AllowedOrigins = []string{"https://app.example.com"} })

	r := httptest.NewRequest(http.MethodOptions, "/api/overview", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestEventsStreamRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// Keep writing until a refresh arrives; the first dashboard is swallowed.
	write := time.NewTicker(50 * time.Millisecond)
	defer write.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before a refresh event")
			}
			if line == "event: refresh" {
				return
			}
		case <-write.C:
			if _, err := f.txs.Create(ctx, "u1", services.TransactionInput{
				Type: core.Expense, Title: "Tea", Amount: "2", Category: "Food", Date: "2024-06-10",
			}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for a refresh event")
		}
	}
}
