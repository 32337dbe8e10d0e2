package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trackme/internal/core"
	"trackme/internal/export"
	applog "trackme/internal/log"
	"trackme/internal/services"
)

type subscriptionJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	RenewalInterval string  `json:"renewalInterval,omitempty"`
	DueDate         string  `json:"dueDate"`
	IsPaidThisCycle bool    `json:"isPaidThisCycle"`
	LastPaidDate    string  `json:"lastPaidDate,omitempty"`
	State           string  `json:"state"`
}

type subtotalJSON struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Display  string `json:"display"`
}

type transactionJSON struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
}

type overviewJSON struct {
	Period       string            `json:"period"`
	Label        string            `json:"label"`
	BalanceLabel string            `json:"balanceLabel"`
	Income       string            `json:"income"`
	Expense      string            `json:"expense"`
	Net          string            `json:"net"`
	Transactions []transactionJSON `json:"transactions"`
	// Stale is set when the store could not be read and the lists are empty.
	Stale bool `json:"stale"`
}

func toSubscriptionJSON(row services.SubscriptionRow) subscriptionJSON {
	return subscriptionJSON{
		ID:              row.ID,
		Name:            row.Name,
		Price:           row.Price,
		Currency:        row.CurrencyCode(),
		RenewalInterval: row.RenewalInterval,
		DueDate:         row.EffectiveDueDate(),
		IsPaidThisCycle: row.IsPaidThisCycle,
		LastPaidDate:    row.LastPaidDate,
		State:           string(row.State),
	}
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:       tx.ID,
		Type:     string(tx.Type),
		Title:    tx.Title,
		Amount:   tx.Amount,
		Category: tx.Category,
		Date:     tx.Date,
	}
}

func toOverviewJSON(ov services.Overview) overviewJSON {
	out := overviewJSON{
		Period:       string(ov.Period),
		Label:        ov.Period.Label(),
		BalanceLabel: ov.Period.BalanceLabel(),
		Income:       ov.Totals.Income.StringFixed(2),
		Expense:      ov.Totals.Expense.StringFixed(2),
		Net:          ov.Totals.Net.StringFixed(2),
		Transactions: make([]transactionJSON, len(ov.Transactions)),
	}
	for i, tx := range ov.Transactions {
		out.Transactions[i] = toTransactionJSON(tx)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleAPIOverview(w http.ResponseWriter, r *http.Request) {
	p := ParsePeriodParam(r.URL.Query())
	ov, err := s.cfg.Transactions.Overview(r.Context(), userID(r), p)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Overview failed, serving empty totals",
			applog.FieldError, err, applog.FieldPeriod, p)
		ov = services.BuildOverview(nil, p, s.cfg.Clock.Today())
	}
	out := toOverviewJSON(ov)
	out.Stale = err != nil
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPISubscriptions(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	subs, err := s.cfg.Subscriptions.List(r.Context(), uid)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Subscription list failed, serving empty list", applog.FieldError, err)
		subs = nil
	}
	d := services.BuildDashboard(uid, subs, nil, s.cfg.Clock.Today())

	out := struct {
		Today         string             `json:"today"`
		Subscriptions []subscriptionJSON `json:"subscriptions"`
		Totals        []subtotalJSON     `json:"totals"`
		Stale         bool               `json:"stale"`
	}{
		Today:         d.Today.String(),
		Subscriptions: make([]subscriptionJSON, len(d.Subscriptions)),
		Totals:        make([]subtotalJSON, len(d.SubscriptionTotals)),
		Stale:         err != nil,
	}
	for i, row := range d.Subscriptions {
		out.Subscriptions[i] = toSubscriptionJSON(row)
	}
	for i, t := range d.SubscriptionTotals {
		out.Totals[i] = subtotalJSON{Currency: t.Currency, Amount: t.Amount.StringFixed(2), Display: t.String()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPICreateSubscription(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub, err := s.cfg.Subscriptions.Create(r.Context(), userID(r), services.SubscriptionInput{
		Name:            p.Get("name"),
		Price:           p.Get("price"),
		Currency:        p.Get("currency"),
		RenewalInterval: p.Get("renewalInterval"),
		RenewalDate:     p.Get("renewalDate"),
	})
	if err != nil {
		status, msg := subscriptionError(err)
		s.logWriteFailure(r, "Subscription create rejected", status, err)
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionJSON(services.SubscriptionRow{
		Subscription: sub,
		State:        sub.DueState(s.cfg.Clock.Today()),
	}))
}

func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, ok := ParseTransactionType(p.Get("type"))
	if !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		return
	}
	tx, err := s.cfg.Transactions.Create(r.Context(), userID(r), services.TransactionInput{
		Type:     t,
		Title:    p.Get("title"),
		Amount:   p.Get("amount"),
		Category: p.Get("category"),
		Date:     p.Get("date"),
	})
	if err != nil {
		status, msg := transactionError(err)
		s.logWriteFailure(r, "Transaction create rejected", status, err)
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

// handleEvents streams a "refresh" event every time the user's dashboard
// changes after the initial snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.cfg.Live == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	ctx := r.Context()
	uid := userID(r)
	feed, err := s.cfg.Live.Watch(ctx, uid)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Live dashboard unavailable", applog.FieldError, err)
		writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "retry: 5000\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case d, ok := <-feed:
			if !ok {
				return
			}
			if first {
				first = false
				continue
			}
			payload, err := json.Marshal(map[string]any{
				"subscriptions": len(d.Subscriptions),
				"transactions":  len(d.Transactions),
				"stale":         d.Err != nil,
			})
			if err != nil {
				applog.FromContext(ctx).ErrorContext(ctx, "Failed to encode refresh event", applog.FieldError, err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: refresh\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d := s.loadDashboard(r.Context(), userID(r))
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, d); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed", applog.FieldError, err)
		s.renderStatus(w, r, http.StatusInternalServerError, "Could not build the export.")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(d.Today)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
