package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/service"
	"kombatmoto/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
	log           zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		log:           logger.WithComponent("httpapi"),
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (Unix time truncated to the hour), hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
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
	staff := []string{domain.RoleOperator, domain.RoleAdmin}
	admin := []string{domain.RoleAdmin}
	route := func(pattern string, h http.HandlerFunc, roles []string) {
		mux.HandleFunc(pattern, a.requireAuth(h, roles...))
	}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	route("GET /api/v1/operators", a.handleListOperators, admin)
	route("POST /api/v1/operators", a.handleCreateOperator, admin)

	route("GET /api/v1/customers", a.handleListCustomers, staff)
	route("POST /api/v1/customers", a.handleCreateCustomer, staff)
	route("GET /api/v1/customers/{id}", a.handleGetCustomer, staff)
	route("PATCH /api/v1/customers/{id}/terms", a.handleCustomerTerms, admin)
	route("GET /api/v1/customers/{id}/statement", a.handleCustomerStatement, staff)

	route("GET /api/v1/motorcycles", a.handleListMotorcycles, staff)
	route("POST /api/v1/motorcycles", a.handleCreateMotorcycle, staff)
	route("PATCH /api/v1/motorcycles/{id}/km", a.handleMotorcycleKm, staff)
	route("GET /api/v1/motorcycles/revisions", a.handleRevisions, staff)

	route("GET /api/v1/products", a.handleListProducts, staff)
	route("POST /api/v1/products", a.handleCreateProduct, admin)
	route("PATCH /api/v1/products/{id}", a.handleUpdateProduct, admin)
	route("POST /api/v1/products/{id}/stock", a.handleAddStock, admin)
	route("GET /api/v1/catalog/{category}", a.handleCatalog, staff)

	route("GET /api/v1/mechanics", a.handleListMechanics, staff)
	route("POST /api/v1/mechanics", a.handleCreateMechanic, admin)
	route("GET /api/v1/fixed-services", a.handleListFixedServices, staff)
	route("POST /api/v1/fixed-services", a.handleCreateFixedService, admin)

	route("POST /api/v1/sales/counter", a.handleCounterSale, staff)
	route("POST /api/v1/sales/service-orders", a.handleServiceOrder, staff)
	route("GET /api/v1/sales", a.handleListSales, staff)
	route("GET /api/v1/sales/{id}", a.handleGetSale, staff)
	route("PATCH /api/v1/sales/{id}/status", a.handleSaleStatus, staff)
	route("POST /api/v1/sales/{id}/delete", a.handleDeleteSale, admin)

	route("GET /api/v1/receivables", a.handleListReceivables, staff)
	route("GET /api/v1/receivables/reminders", a.handleReminders, staff)
	route("GET /api/v1/receivables/{id}", a.handleGetReceivable, staff)
	route("POST /api/v1/receivables/{id}/settle", a.handleSettle, staff)
	route("PATCH /api/v1/receivables/{id}/due-date", a.handleReschedule, staff)
	route("GET /api/v1/receivables/{id}/promissory", a.handlePromissory, staff)

	route("POST /api/v1/cash-sessions/open", a.handleCashOpen, staff)
	route("GET /api/v1/cash-sessions/active", a.handleCashActive, staff)
	route("POST /api/v1/cash-sessions/movements", a.handleCashMovement, staff)
	route("POST /api/v1/cash-sessions/close", a.handleCashClose, staff)

	route("GET /api/v1/distributors", a.handleListDistributors, admin)
	route("POST /api/v1/distributors", a.handleCreateDistributor, admin)
	route("GET /api/v1/purchase-orders", a.handleListPurchaseOrders, admin)
	route("POST /api/v1/purchase-orders", a.handleCreatePurchaseOrder, admin)
	route("POST /api/v1/purchase-orders/{id}/send", a.handleSendPurchaseOrder, admin)
	route("POST /api/v1/purchase-orders/{id}/receive", a.handleReceivePurchaseOrder, admin)

	route("GET /api/v1/dashboard", a.handleDashboard, staff)
	route("GET /api/v1/reports/commissions", a.handleCommissions, admin)
	route("GET /api/v1/audit-logs", a.handleAuditLogs, admin)

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
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// csrfExemptPaths are called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the CSRF token on state-changing methods. It writes the
// error response and returns false when the token is missing or stale.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(startedAt)).
			Msg("request")
	})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var limitErr *domain.CreditLimitExceededError
	switch {
	case service.IsAdminRequired(err):
		writeError(w, http.StatusForbidden, err)
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        limitErr.Error(),
			"limit":        limitErr.Limit.StringFixed(2),
			"current_debt": limitErr.CurrentDebt.StringFixed(2),
			"proposed":     limitErr.Proposed.StringFixed(2),
		})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrPersistence):
		a.log.Error().Err(err).Msg("persistence failure")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "storage unavailable, try again"})
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// parsePositiveLimit falls back on blank or invalid input and clamps to max.
func parsePositiveLimit(raw string, fallback, max int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit < 1 {
		limit = fallback
	}
	return min(limit, max)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.NewValidationError("id", "invalid id")
	}
	return id, nil
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return nil, domain.NewValidationError(key, "invalid id")
	}
	return &id, nil
}

// writeError hides 5xx details from the client; 4xx messages are user facing.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		logger.WithComponent("httpapi").Error().Err(err).Int("status", status).Msg("internal error")
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
