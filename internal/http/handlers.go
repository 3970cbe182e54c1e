package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/ledger"
)

type transactionRequest struct {
	Kind        string `json:"kind"`
	Amount      string `json:"amount"` // decimal string, e.g. "12.34"
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CategoryID  *int64 `json:"category_id"`
	Date        string `json:"date"` // effective date, 2006-01-02
}

type recurrenceRequest struct {
	transactionRequest
	Unit     string `json:"unit"`
	Interval int    `json:"interval"`
	Disabled bool   `json:"disabled"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`
	Date        string `json:"date"`
}

type recurringResponse struct {
	transactionResponse
	Unit     string `json:"unit"`
	Interval int    `json:"interval"`
	Disabled bool   `json:"disabled"`
}

func entryResponse(e core.Entry, loc *time.Location) transactionResponse {
	return transactionResponse{
		ID:          e.ID,
		Kind:        string(e.Kind),
		AmountCents: e.Amount.Cents,
		Amount:      e.Amount.String(),
		Currency:    e.Amount.Currency,
		Description: e.Description,
		CategoryID:  e.CategoryID,
		Date:        e.CreatedAt.In(loc).Format("2006-01-02"),
	}
}

func parentResponse(p core.Parent, loc *time.Location) recurringResponse {
	return recurringResponse{
		transactionResponse: entryResponse(p.Entry, loc),
		Unit:                string(p.Rule.Unit),
		Interval:            p.Rule.Interval,
		Disabled:            p.Disabled,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.entryFromRequest(req, userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.entries.Create(r.Context(), entry)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryResponse(saved, s.loc))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	entry, err := s.entries.Get(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse(entry, s.loc))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := s.entries.Delete(r.Context(), userID, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req recurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	parent, err := s.parentFromRequest(req, userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.entries.CreateParent(r.Context(), parent)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, parentResponse(saved, s.loc))
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	parent, err := s.recurring.Get(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentResponse(parent, s.loc))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req recurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	parent, err := s.parentFromRequest(req, userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parent.ID = id

	updated, err := s.recurring.Update(r.Context(), parent)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentResponse(updated, s.loc))
}

func (s *Server) handleEnableRecurring(w http.ResponseWriter, r *http.Request) {
	s.toggleRecurring(w, r, false)
}

func (s *Server) handleDisableRecurring(w http.ResponseWriter, r *http.Request) {
	s.toggleRecurring(w, r, true)
}

func (s *Server) toggleRecurring(w http.ResponseWriter, r *http.Request, disabled bool) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var parent core.Parent
	if disabled {
		parent, err = s.recurring.Disable(r.Context(), id, userID)
	} else {
		parent, err = s.recurring.Enable(r.Context(), id, userID)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentResponse(parent, s.loc))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	result, err := s.aggregator.Balance(ctx, userID, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance_cents":     result.Cents,
		"balance":           result.Balance,
		"transaction_count": result.Count,
	})
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	from, to, g, err := s.rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	history, err := s.aggregator.BalanceHistory(ctx, userID, from, to, g, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	points := make([]map[string]any, 0, len(history.Points))
	for _, p := range history.Points {
		points = append(points, map[string]any{
			"bucket":      p.Bucket.Format("2006-01-02"),
			"net_cents":   p.NetCents,
			"net":         p.Net,
			"total_cents": p.TotalCents,
			"total":       p.Total,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"initial_cents": history.InitialCents,
		"initial":       history.Initial,
		"points":        points,
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	from, to, g, err := s.rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	byCategory := r.URL.Query().Get("by_category") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := s.aggregator.Breakdown(ctx, userID, from, to, g, byCategory, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		item := map[string]any{
			"bucket":       row.Bucket.Format("2006-01-02"),
			"kind":         string(row.Kind),
			"amount_cents": row.Cents,
			"amount":       row.Amount,
		}
		if row.CategoryID != nil {
			item["category_id"] = *row.CategoryID
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

// rangeParams parses from/to dates (inclusive, interpreted in the
// reference zone) and the bucket granularity.
func (s *Server) rangeParams(r *http.Request) (time.Time, time.Time, analytics.Granularity, error) {
	q := r.URL.Query()

	from, err := time.ParseInLocation("2006-01-02", q.Get("from"), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, "", errors.New("invalid or missing 'from' date (want 2006-01-02)")
	}
	to, err := time.ParseInLocation("2006-01-02", q.Get("to"), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, "", errors.New("invalid or missing 'to' date (want 2006-01-02)")
	}
	// Include the whole final day.
	to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)

	g := analytics.Granularity(q.Get("granularity"))
	if g == "" {
		g = analytics.ByDay
	}
	if err := g.Validate(); err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	return from, to, g, nil
}

func (s *Server) entryFromRequest(req transactionRequest, userID int64) (core.Entry, error) {
	cents, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Entry{}, err
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.loc)
	if err != nil {
		return core.Entry{}, errors.New("invalid or missing 'date' (want 2006-01-02)")
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	e := core.Entry{
		UserID:      userID,
		Kind:        core.Kind(req.Kind),
		Amount:      core.Money{Cents: cents, Currency: currency},
		Description: req.Description,
		CategoryID:  req.CategoryID,
		CreatedAt:   date,
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

func (s *Server) parentFromRequest(req recurrenceRequest, userID int64) (core.Parent, error) {
	entry, err := s.entryFromRequest(req.transactionRequest, userID)
	if err != nil {
		return core.Parent{}, err
	}
	p := core.Parent{
		Entry:    entry,
		Rule:     core.RecurrenceRule{Unit: core.PeriodUnit(req.Unit), Interval: req.Interval},
		Disabled: req.Disabled,
	}
	if err := p.Validate(); err != nil {
		return core.Parent{}, err
	}
	return p, nil
}

// userID reads the caller identity resolved by the auth layer in front.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return 0, false
	}
	return id, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidRule),
		errors.Is(err, core.ErrCurrencyMismatch),
		errors.Is(err, core.ErrEmptyDate),
		errors.Is(err, analytics.ErrInvalidGranularity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "query timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
