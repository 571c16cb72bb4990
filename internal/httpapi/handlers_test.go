package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/service"
	"tokokasir/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, repo, repo)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	payload, _ := json.Marshal(map[string]string{
		"username": "cashier",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestSessionRoutes_RequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	paths := []string{
		"/api/v1/products/search?q=mie",
		"/api/v1/sessions/kasir-1/cart",
		"/api/v1/transactions/saved",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestProductSearch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/products/search?q=mie", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].SKU != "SKU-MIE-01" {
		t.Fatalf("unexpected search result: %+v", result.Items)
	}
}

func TestCartFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-MIE-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, http.MethodPatch, "/api/v1/sessions/kasir-1/cart/items/SKU-MIE-01", domain.UpdateQuantityRequest{Delta: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("update quantity: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode cart view: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Amount != 3 {
		t.Fatalf("unexpected cart: %+v", view.Lines)
	}

	rec = doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/cart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get cart: expected 200, got %d", rec.Code)
	}
}

func TestAddItemUnknownSKUReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-TIDAK-ADA"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCouponRoutes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	if rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-ROTI-01"}); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/coupons", domain.ApplyCouponRequest{Code: "HEMAT10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/coupons", domain.ApplyCouponRequest{Code: "HEMAT10"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/coupons", domain.ApplyCouponRequest{Code: "HEMAT15"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second discount: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/coupons", domain.ApplyCouponRequest{Code: "KADALUARSA"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expired: expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, http.MethodDelete, "/api/v1/sessions/kasir-1/coupons/HEMAT10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rec.Code)
	}

	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Coupons) != 0 {
		t.Fatalf("coupon not removed: %+v", view.Coupons)
	}
}

func TestTenderEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/tender?total=23000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.TenderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int64{23000, 24000, 25000, 30000, 50000, 100000}
	if len(resp.Suggestions) != len(want) {
		t.Fatalf("suggestions = %v, want %v", resp.Suggestions, want)
	}
	for i, amount := range want {
		if resp.Suggestions[i] != amount {
			t.Fatalf("suggestions = %v, want %v", resp.Suggestions, want)
		}
	}

	rec = doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/tender?total=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad total: expected 400, got %d", rec.Code)
	}
}

func TestSaveRestorePayFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	if rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-SUSU-01"}); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/save", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var saved domain.SaveResponse
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode save: %v", err)
	}

	rec = doJSON(t, handler, token, http.MethodGet, "/api/v1/transactions/saved", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list saved: expected 200, got %d", rec.Code)
	}
	var listing domain.SavedTransactionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Transactions) != 1 {
		t.Fatalf("saved listing = %+v", listing.Transactions)
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/restore", domain.RestoreRequest{TransactionID: saved.Transaction.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/pay", domain.ConfirmPaymentRequest{Method: "cash", Pay: 20000})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var paid domain.PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if paid.Transaction.ID != saved.Transaction.ID {
		t.Fatalf("payment id = %q, want restored %q", paid.Transaction.ID, saved.Transaction.ID)
	}
	if paid.Change != 20000-18900 {
		t.Fatalf("change = %d, want %d", paid.Change, 20000-18900)
	}

	rec = doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/last-receipt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("last receipt: expected 200, got %d", rec.Code)
	}
}

func TestPayInsufficientReturns422(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	if rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-TELUR-01"}); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/pay", domain.ConfirmPaymentRequest{Method: "cash", Pay: 1000})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestClearEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	if rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-MIE-01"}); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/cart", nil)
	var view domain.CartView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("cart not cleared: %+v", view.Lines)
	}
}

func TestUnknownSessionOperation(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/sessions/kasir-1/bogus", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	payload := []byte(`{"sku":"SKU-MIE-01","unexpected":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStockConflictReturns409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	// SKU-ROTI-01 is seeded with 25 units; push the line past it.
	if rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", domain.AddItemRequest{SKU: "SKU-ROTI-01"}); rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}
	rec := doJSON(t, handler, token, http.MethodPatch, "/api/v1/sessions/kasir-1/cart/items/SKU-ROTI-01", domain.UpdateQuantityRequest{Delta: 25})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions/kasir-1/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Access-Control-Allow-Origin": "*",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequestBodyLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	oversized := fmt.Sprintf(`{"sku":%q}`, bytes.Repeat([]byte("A"), 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/kasir-1/cart/items", bytes.NewReader([]byte(oversized)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}
