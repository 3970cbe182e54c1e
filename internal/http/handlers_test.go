package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"tally/internal/analytics"
	"tally/internal/ledger/memory"
	"tally/internal/services"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	entries := services.NewEntryService(store, nil)
	recurring := services.NewRecurringService(store)
	aggregator := analytics.NewAggregator(store, time.UTC)
	return NewServer(":0", entries, recurring, aggregator, time.UTC).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, userID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequiresUserHeader(t *testing.T) {
	h := newTestServer(t)
	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/transactions"},
		{http.MethodGet, "/api/balance"},
		{http.MethodPost, "/api/recurring/1/disable"},
	}
	for _, p := range paths {
		rec := doJSON(t, h, p.method, p.path, "", "{}")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without header: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/balance", "zero", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("non-numeric user id: status = %d, want 401", rec.Code)
	}
}

func TestCreateTransactionAndBalance(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"income","amount":"100.00","date":"2024-05-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income: status = %d, body %s", rec.Code, rec.Body)
	}
	created := decodeBody(t, rec)
	if created["amount_cents"].(float64) != 10000 {
		t.Errorf("amount_cents = %v, want 10000", created["amount_cents"])
	}
	if created["currency"] != "EUR" {
		t.Errorf("currency = %v, want default EUR", created["currency"])
	}

	rec = doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"expense","amount":"30.00","date":"2024-05-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/balance", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status = %d, body %s", rec.Code, rec.Body)
	}
	balance := decodeBody(t, rec)
	if balance["balance_cents"].(float64) != 7000 {
		t.Errorf("balance_cents = %v, want 7000", balance["balance_cents"])
	}
	if balance["balance"] != "70.00" {
		t.Errorf("balance = %v, want 70.00", balance["balance"])
	}

	// The other user's ledger is empty.
	rec = doJSON(t, h, http.MethodGet, "/api/balance", "2", "")
	other := decodeBody(t, rec)
	if other["balance_cents"].(float64) != 0 {
		t.Errorf("other user balance = %v, want 0", other["balance_cents"])
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"zero amount", `{"kind":"income","amount":"0.00","date":"2024-05-01"}`},
		{"negative amount", `{"kind":"income","amount":"-5.00","date":"2024-05-01"}`},
		{"bad kind", `{"kind":"transfer","amount":"5.00","date":"2024-05-01"}`},
		{"missing date", `{"kind":"income","amount":"5.00"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/transactions", "1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"expense","amount":"12.50","date":"2024-05-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", rec.Code)
	}
	id := decodeBody(t, rec)["id"].(float64)
	path := "/api/transactions/" + jsonNumber(id)

	// A different user cannot see or delete it.
	if rec := doJSON(t, h, http.MethodDelete, path, "2", ""); rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete: status = %d, want 404", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodDelete, path, "1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, path, "1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestRecurringLifecycle(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/recurring", "1",
		`{"kind":"expense","amount":"950.00","date":"2024-05-01","unit":"monthly","interval":1,"description":"rent"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recurring: status = %d, body %s", rec.Code, rec.Body)
	}
	created := decodeBody(t, rec)
	if created["unit"] != "monthly" || created["disabled"] != false {
		t.Errorf("created = %v", created)
	}
	id := jsonNumber(created["id"].(float64))

	// Disable, then re-enable.
	rec = doJSON(t, h, http.MethodPost, "/api/recurring/"+id+"/disable", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("disable: status = %d, body %s", rec.Code, rec.Body)
	}
	if decodeBody(t, rec)["disabled"] != true {
		t.Error("expected disabled after toggle")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/recurring/"+id+"/enable", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("enable: status = %d", rec.Code)
	}
	if decodeBody(t, rec)["disabled"] != false {
		t.Error("expected enabled after toggle")
	}

	// Foreign users get 404, never 403, so ids do not leak.
	rec = doJSON(t, h, http.MethodPost, "/api/recurring/"+id+"/disable", "2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign disable: status = %d, want 404", rec.Code)
	}

	// A plain transaction is not a recurring parent.
	rec = doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"expense","amount":"5.00","date":"2024-05-01"}`)
	plainID := jsonNumber(decodeBody(t, rec)["id"].(float64))
	rec = doJSON(t, h, http.MethodPost, "/api/recurring/"+plainID+"/disable", "1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("disable plain transaction: status = %d, want 404", rec.Code)
	}
}

func TestCreateRecurringValidation(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/recurring", "1",
		`{"kind":"expense","amount":"10.00","date":"2024-05-01","unit":"hourly","interval":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad unit: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/recurring", "1",
		`{"kind":"expense","amount":"10.00","date":"2024-05-01","unit":"daily","interval":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero interval: status = %d, want 400", rec.Code)
	}
}

func TestBalanceHistoryEndpoint(t *testing.T) {
	h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"income","amount":"50.00","date":"2024-05-01"}`)
	doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"expense","amount":"20.00","date":"2024-05-02"}`)

	rec := doJSON(t, h, http.MethodGet,
		"/api/balance/history?from=2024-05-01&to=2024-05-31", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	points := body["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	last := points[1].(map[string]any)
	if last["total_cents"].(float64) != 3000 {
		t.Errorf("final total = %v, want 3000", last["total_cents"])
	}

	// Missing range parameters are a client error.
	rec = doJSON(t, h, http.MethodGet, "/api/balance/history", "1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing range: status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet,
		"/api/balance/history?from=2024-05-01&to=2024-05-31&granularity=hourly", "1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad granularity: status = %d, want 400", rec.Code)
	}
}

func TestBreakdownEndpoint(t *testing.T) {
	h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"income","amount":"100.00","date":"2024-05-01"}`)
	doJSON(t, h, http.MethodPost, "/api/transactions", "1",
		`{"kind":"expense","amount":"30.00","date":"2024-05-01","category_id":3}`)

	rec := doJSON(t, h, http.MethodGet,
		"/api/breakdown?from=2024-05-01&to=2024-05-31&granularity=month&by_category=true", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("breakdown: status = %d, body %s", rec.Code, rec.Body)
	}
	rows := decodeBody(t, rec)["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	var sawCategory bool
	for _, r := range rows {
		row := r.(map[string]any)
		if row["kind"] == "expense" {
			if row["amount_cents"].(float64) != 3000 {
				t.Errorf("expense cents = %v, want 3000", row["amount_cents"])
			}
			if row["category_id"].(float64) != 3 {
				t.Errorf("category_id = %v, want 3", row["category_id"])
			}
			sawCategory = true
		}
	}
	if !sawCategory {
		t.Error("expected a categorized expense row")
	}
}

// jsonNumber renders a decoded JSON id back into a path segment.
func jsonNumber(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}
