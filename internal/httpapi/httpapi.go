package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/checkout"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/service"
	"tokokasir/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/products/search", a.requireAuth(a.handleProductSearch, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sessions/", a.requireAuth(a.handleSession, "cashier", "admin"))
	mux.HandleFunc("/api/v1/transactions/saved", a.requireAuth(a.handleSavedTransactions, "cashier", "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		cashier, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(cashier.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithCashier(r.Context(), cashier)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query().Get("q")
	page := parsePositiveInt(r.URL.Query().Get("page"), 1, 0)
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 20, 100)

	result, err := a.service.SearchProducts(r.Context(), query, page, limit)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSavedTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.ListSavedTransactions(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSession routes terminal-scoped checkout operations. Paths look like
// /api/v1/sessions/{terminal}/cart/items/{sku}; the terminal segment comes
// first and the remainder selects the operation.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/sessions/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("terminal id required"))
		return
	}

	terminal, action, _ := strings.Cut(tail, "/")
	terminal = strings.TrimSpace(terminal)
	if terminal == "" {
		writeError(w, http.StatusBadRequest, errors.New("terminal id required"))
		return
	}

	switch {
	case action == "cart":
		a.handleCart(w, r, terminal)
	case action == "cart/items":
		a.handleAddItem(w, r, terminal)
	case strings.HasPrefix(action, "cart/items/"):
		a.handleUpdateItem(w, r, terminal, strings.TrimPrefix(action, "cart/items/"))
	case action == "coupons":
		a.handleApplyCoupon(w, r, terminal)
	case strings.HasPrefix(action, "coupons/"):
		a.handleRemoveCoupon(w, r, terminal, strings.TrimPrefix(action, "coupons/"))
	case action == "tender":
		a.handleTender(w, r, terminal)
	case action == "save":
		a.handleSave(w, r, terminal)
	case action == "pay":
		a.handlePay(w, r, terminal)
	case action == "restore":
		a.handleRestore(w, r, terminal)
	case action == "clear":
		a.handleClear(w, r, terminal)
	case action == "last-receipt":
		a.handleLastReceipt(w, r, terminal)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown session operation"))
	}
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Cart(r.Context(), terminal))
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.AddItem(r.Context(), terminal, req.SKU)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request, terminal string, sku string) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}
	sku = strings.TrimSpace(strings.Trim(sku, "/"))
	if sku == "" {
		writeError(w, http.StatusBadRequest, errors.New("product sku required"))
		return
	}

	var req domain.UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, errors.New("delta must be non-zero"))
		return
	}

	view, err := a.service.UpdateQuantity(r.Context(), terminal, sku, req.Delta)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleApplyCoupon(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ApplyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, errors.New("coupon code required"))
		return
	}

	view, err := a.service.ApplyCoupon(r.Context(), terminal, req.Code)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRemoveCoupon(w http.ResponseWriter, r *http.Request, terminal string, code string) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	code = strings.TrimSpace(strings.Trim(code, "/"))
	if code == "" {
		writeError(w, http.StatusBadRequest, errors.New("coupon code required"))
		return
	}

	writeJSON(w, http.StatusOK, a.service.RemoveCoupon(r.Context(), terminal, code))
}

func (a *API) handleTender(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	total := int64(-1)
	if raw := strings.TrimSpace(r.URL.Query().Get("total")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errors.New("total must be a non-negative integer"))
			return
		}
		total = parsed
	}

	writeJSON(w, http.StatusOK, a.service.TenderSuggestions(r.Context(), terminal, total))
}

func (a *API) handleSave(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.SaveTransaction(r.Context(), terminal)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handlePay(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ConfirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ConfirmPayment(r.Context(), terminal, req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RestoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RestoreTransaction(r.Context(), terminal, req.TransactionID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	a.service.ClearSession(r.Context(), terminal)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleLastReceipt(w http.ResponseWriter, r *http.Request, terminal string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	receipt, err := a.service.LastReceipt(r.Context(), terminal)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": receipt})
}

// statusForError maps domain sentinels to HTTP statuses. Unmapped errors
// surface as 422 so callers can distinguish them from transport problems.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrCashierRequired):
		return http.StatusUnauthorized
	case errors.Is(err, checkout.ErrLineNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrStockInsufficient),
		errors.Is(err, checkout.ErrCouponAlreadyApplied),
		errors.Is(err, checkout.ErrDiscountAlreadyActive),
		errors.Is(err, checkout.ErrNothingToRestore),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrPersistence):
		return http.StatusBadGateway
	case errors.Is(err, checkout.ErrInvalidCoupon),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, store.ErrInvalidPayment):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveInt(raw string, fallback int, max int) int {
	value := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			value = parsed
		}
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx messages stay generic so internal details never reach clients.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
