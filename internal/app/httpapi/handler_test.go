package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	app "github.com/R3E-Network/kozak_economy/internal/app"
	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/middleware"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

var (
	secret   = []byte("test-secret")
	owner    = address.Derive("owner")
	smith    = address.Derive("smith")
	buyer    = address.Derive("buyer")
	operator = address.Derive("operator")
)

type harness struct {
	t   *testing.T
	api *API
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	application, err := app.New(nil, app.Options{Owners: access.UniformOwners(owner)}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Deploy(context.Background(), owner); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	opts.JWTSecret = secret
	opts.Issuer = "kozak"
	api, err := New(application, opts, logger.NewNop())
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	t.Cleanup(func() { _ = api.Close() })
	return &harness{t: t, api: api}
}

func (h *harness) do(as address.Address, method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != "" {
		token, err := middleware.IssueToken(secret, "kozak", as, time.Hour, time.Now())
		if err != nil {
			h.t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.api.ServeHTTP(resp, req)
	return resp
}

func (h *harness) expect(resp *httptest.ResponseRecorder, status int, what string) {
	h.t.Helper()
	if resp.Code != status {
		h.t.Fatalf("%s: expected %d, got %d: %s", what, status, resp.Code, resp.Body.String())
	}
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
}

func TestHandlerLifecycle(t *testing.T) {
	h := newHarness(t, Options{})

	h.expect(h.do("", http.MethodGet, "/healthz", nil), http.StatusOK, "healthz")
	h.expect(h.do("", http.MethodPost, "/resources/search", nil), http.StatusUnauthorized, "anonymous search")

	resp := h.do(smith, http.MethodPost, "/resources/search", nil)
	h.expect(resp, http.StatusOK, "search")
	var found struct {
		Found []string `json:"found"`
	}
	decode(t, resp, &found)
	if len(found.Found) != 3 {
		t.Fatalf("expected 3 resources, got %v", found.Found)
	}

	// Only the ledger owner manages the registry.
	h.expect(h.do(smith, http.MethodPut, "/ledgers/resources/authorized/"+operator.String(), nil), http.StatusForbidden, "non-owner add")
	h.expect(h.do(owner, http.MethodPut, "/ledgers/resources/authorized/"+operator.String(), nil), http.StatusOK, "owner add")
	h.expect(h.do(owner, http.MethodPut, "/ledgers/currency/authorized/"+operator.String(), nil), http.StatusOK, "owner add currency")
	h.expect(h.do(owner, http.MethodPut, "/ledgers/gold/authorized/"+operator.String(), nil), http.StatusNotFound, "unknown ledger")

	resp = h.do(smith, http.MethodGet, "/ledgers/resources/authorized", nil)
	h.expect(resp, http.StatusOK, "list authorized")
	if !strings.Contains(resp.Body.String(), operator.String()) {
		t.Fatalf("operator missing from %s", resp.Body.String())
	}

	h.expect(h.do(smith, http.MethodPost, "/ledgers/resources/mint", map[string]interface{}{
		"to": smith, "resource": "iron", "amount": 3,
	}), http.StatusForbidden, "unauthorized mint")
	for name, amount := range map[string]int{"iron": 3, "wood": 1, "leather": 1} {
		h.expect(h.do(operator, http.MethodPost, "/ledgers/resources/mint", map[string]interface{}{
			"to": smith, "resource": name, "amount": amount,
		}), http.StatusOK, "mint "+name)
	}

	h.expect(h.do(smith, http.MethodPost, "/recipes/99/craft", nil), http.StatusNotFound, "unknown recipe")
	resp = h.do(smith, http.MethodGet, "/recipes/0/check", nil)
	h.expect(resp, http.StatusOK, "check")
	if !strings.Contains(resp.Body.String(), `"craftable":true`) {
		t.Fatalf("expected craftable, got %s", resp.Body.String())
	}

	resp = h.do(smith, http.MethodPost, "/recipes/0/craft", nil)
	h.expect(resp, http.StatusCreated, "craft")
	var sword struct {
		ID uint64 `json:"id"`
	}
	decode(t, resp, &sword)

	h.expect(h.do(smith, http.MethodPost, "/listings", map[string]interface{}{"item_id": sword.ID, "price": 0}), http.StatusBadRequest, "zero price")
	h.expect(h.do(buyer, http.MethodPost, "/listings", map[string]interface{}{"item_id": sword.ID, "price": 100}), http.StatusForbidden, "list foreign item")
	resp = h.do(smith, http.MethodPost, "/listings", map[string]interface{}{"item_id": sword.ID, "price": 100})
	h.expect(resp, http.StatusCreated, "list")
	var listing struct {
		ID uint64 `json:"id"`
	}
	decode(t, resp, &listing)
	h.expect(h.do(smith, http.MethodPost, "/listings", map[string]interface{}{"item_id": sword.ID, "price": 100}), http.StatusConflict, "relist")

	buyPath := fmt.Sprintf("/listings/%d/buy", listing.ID)
	h.expect(h.do(buyer, http.MethodPost, buyPath, nil), http.StatusUnprocessableEntity, "buy without funds")
	h.expect(h.do(smith, http.MethodPost, buyPath, nil), http.StatusBadRequest, "seller buys own listing")
	h.expect(h.do(operator, http.MethodPost, "/ledgers/currency/mint", map[string]interface{}{"to": buyer, "amount": 100}), http.StatusOK, "mint currency")
	h.expect(h.do(buyer, http.MethodPost, buyPath, nil), http.StatusOK, "buy")
	h.expect(h.do(buyer, http.MethodPost, buyPath, nil), http.StatusConflict, "second buy")
	h.expect(h.do(smith, http.MethodPost, fmt.Sprintf("/listings/%d/cancel", listing.ID), nil), http.StatusConflict, "cancel sold")
	h.expect(h.do(buyer, http.MethodGet, "/listings/999", nil), http.StatusNotFound, "missing listing")

	resp = h.do(buyer, http.MethodGet, "/players/"+buyer.String()+"/items", nil)
	h.expect(resp, http.StatusOK, "buyer items")
	var items struct {
		Count int `json:"count"`
	}
	decode(t, resp, &items)
	if items.Count != 1 {
		t.Fatalf("expected buyer to own 1 item, got %d", items.Count)
	}

	resp = h.do(buyer, http.MethodGet, "/players/"+smith.String()+"/currency", nil)
	h.expect(resp, http.StatusOK, "seller currency")
	var cash struct {
		Balance uint64 `json:"balance"`
	}
	decode(t, resp, &cash)
	if cash.Balance != 100 {
		t.Fatalf("expected seller balance 100, got %d", cash.Balance)
	}

	resp = h.do(buyer, http.MethodGet, "/listings?status=sold&seller="+smith.String(), nil)
	h.expect(resp, http.StatusOK, "filter listings")
	var sold []map[string]interface{}
	decode(t, resp, &sold)
	if len(sold) != 1 {
		t.Fatalf("expected one sold listing, got %d", len(sold))
	}
	h.expect(h.do(buyer, http.MethodGet, "/listings?status=lost", nil), http.StatusBadRequest, "bad filter")
	h.expect(h.do(buyer, http.MethodGet, "/players/nobody/items", nil), http.StatusBadRequest, "bad address")

	resp = h.do("", http.MethodGet, "/metrics", nil)
	h.expect(resp, http.StatusOK, "metrics")
	if !strings.Contains(resp.Body.String(), "kozak_economy_operations_total") {
		t.Fatalf("expected operation counters in metrics output")
	}

	h.expect(h.do(smith, http.MethodGet, "/audit", nil), http.StatusForbidden, "audit as player")
	resp = h.do(owner, http.MethodGet, "/audit?limit=5", nil)
	h.expect(resp, http.StatusOK, "audit as owner")
	var entries []auditEntry
	decode(t, resp, &entries)
	if len(entries) != 5 {
		t.Fatalf("expected 5 audit entries, got %d", len(entries))
	}
}

func TestHandlerRejectsBadTokens(t *testing.T) {
	h := newHarness(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/resources/search", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	h.api.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	h := newHarness(t, Options{RateLimit: 1, Burst: 1})
	h.expect(h.do(smith, http.MethodGet, "/recipes", nil), http.StatusOK, "first")
	h.expect(h.do(smith, http.MethodGet, "/recipes", nil), http.StatusTooManyRequests, "second")
	h.expect(h.do(buyer, http.MethodGet, "/recipes", nil), http.StatusOK, "other caller")
}

func TestAuditFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	h := newHarness(t, Options{AuditFile: path})
	h.expect(h.do(smith, http.MethodPost, "/resources/search", nil), http.StatusOK, "search")
	h.expect(h.do(smith, http.MethodGet, "/recipes", nil), http.StatusOK, "reads are not audited")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 audit line, got %d: %s", len(lines), data)
	}
	var entry auditEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if entry.Caller != smith.String() || entry.Status != http.StatusOK || entry.RequestID == "" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{access.ErrNotAuthorized, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", access.ErrNotOwner), http.StatusForbidden},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestNewRequiresSecret(t *testing.T) {
	application, err := app.New(nil, app.Options{Owners: access.UniformOwners(owner)}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if _, err := New(application, Options{}, logger.NewNop()); err == nil {
		t.Fatal("expected error without jwt secret")
	}
}
