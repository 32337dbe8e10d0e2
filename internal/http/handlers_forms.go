package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/services"
	"trackme/internal/store"
)

// finishWrite answers a successful form write: enhanced forms get a
// fragment, plain posts are redirected back with a flash message.
func finishWrite(w http.ResponseWriter, r *http.Request, collection store.Collection, message, fallback string) {
	if isEnhanced(r) {
		SuccessResponse(message).
			TriggerRecordChanged(string(collection)).
			TriggerFormReset().
			Write(w)
		return
	}
	setFlash(w, message)
	NewResponse().Redirect(localPath(r.FormValue("return"), fallback)).Write(w)
}

func failWrite(w http.ResponseWriter, r *http.Request, status int, message, fallback string) {
	if isEnhanced(r) {
		ErrorResponse(status, message).Write(w)
		return
	}
	setFlash(w, message)
	NewResponse().Redirect(localPath(r.FormValue("return"), fallback)).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		failWrite(w, r, http.StatusBadRequest, "Invalid request format.", "/subscriptions")
		return
	}
	in := services.SubscriptionInput{
		Name:            sanitizeInput(r.PostForm.Get("name")),
		Price:           sanitizeInput(r.PostForm.Get("price")),
		Currency:        sanitizeInput(r.PostForm.Get("currency")),
		RenewalInterval: sanitizeInput(r.PostForm.Get("renewalInterval")),
		RenewalDate:     sanitizeInput(r.PostForm.Get("renewalDate")),
	}
	sub, err := s.cfg.Subscriptions.Create(r.Context(), userID(r), in)
	if err != nil {
		status, msg := subscriptionError(err)
		s.logWriteFailure(r, "Subscription create rejected", status, err)
		failWrite(w, r, status, msg, "/subscriptions")
		return
	}
	finishWrite(w, r, store.Subscriptions, "Added "+sub.Name+".", "/subscriptions")
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	sub, err := s.cfg.Subscriptions.MarkPaid(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		status, msg := writeError(err)
		s.logWriteFailure(r, "Mark paid failed", status, err)
		failWrite(w, r, status, msg, "/subscriptions")
		return
	}
	finishWrite(w, r, store.Subscriptions, sub.Name+" marked paid. Next due "+core.DisplayDate(sub.NextDueDate)+".", "/subscriptions")
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Subscriptions.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		status, msg := writeError(err)
		s.logWriteFailure(r, "Subscription delete failed", status, err)
		failWrite(w, r, status, msg, "/subscriptions")
		return
	}
	finishWrite(w, r, store.Subscriptions, "Subscription removed.", "/subscriptions")
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := ParseTransactionType(chi.URLParam(r, "type"))
	if !ok {
		s.renderStatus(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if err := r.ParseForm(); err != nil {
		failWrite(w, r, http.StatusBadRequest, "Invalid request format.", "/money")
		return
	}
	in := services.TransactionInput{
		Type:     t,
		Title:    sanitizeInput(r.PostForm.Get("title")),
		Amount:   sanitizeInput(r.PostForm.Get("amount")),
		Category: sanitizeInput(r.PostForm.Get("category")),
		Date:     sanitizeInput(r.PostForm.Get("date")),
	}
	tx, err := s.cfg.Transactions.Create(r.Context(), userID(r), in)
	if err != nil {
		status, msg := transactionError(err)
		s.logWriteFailure(r, "Transaction create rejected", status, err)
		failWrite(w, r, status, msg, "/money")
		return
	}
	label := "Income"
	if t == core.Expense {
		label = "Expense"
	}
	finishWrite(w, r, store.CollectionFor(t), label+" added: "+tx.Title+".", "/money")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := ParseTransactionType(chi.URLParam(r, "type"))
	if !ok {
		s.renderStatus(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if err := s.cfg.Transactions.Delete(r.Context(), userID(r), t, chi.URLParam(r, "id")); err != nil {
		status, msg := writeError(err)
		s.logWriteFailure(r, "Transaction delete failed", status, err)
		failWrite(w, r, status, msg, "/money")
		return
	}
	finishWrite(w, r, store.CollectionFor(t), "Entry removed.", "/money")
}

// logWriteFailure logs server-side failures as errors and rejected input
// at debug level.
func (s *Server) logWriteFailure(r *http.Request, msg string, status int, err error) {
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().WithError(err).ToSlice()
	fields = append(fields, applog.FieldUserID, userID(r), applog.FieldPath, r.URL.Path)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, fields...)
		return
	}
	logger.DebugContext(r.Context(), msg, fields...)
}
