// Package httpapi exposes the economy over REST. The caller of every
// state-changing route is the subject of the request's bearer token.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/kozak_economy/internal/app"
	accessdomain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/metrics"
	"github.com/R3E-Network/kozak_economy/internal/middleware"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	JWTSecret   []byte
	Issuer      string
	RateLimit   float64 // requests per second per caller; 0 disables
	Burst       int
	CORSOrigins []string
	AuditFile   string
	AuditSize   int
}

// API is the HTTP handler for the economy.
type API struct {
	app    *app.Application
	log    *logger.Logger
	router *mux.Router
	h      http.Handler
	audit  *auditLog
	sink   *fileAuditSink
}

// New builds the router and middleware chain.
func New(application *app.Application, opts Options, log *logger.Logger) (*API, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("httpapi: jwt secret is required")
	}
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	a := &API{
		app:   application,
		log:   log,
		audit: newAuditLog(opts.AuditSize, sink),
		sink:  sink,
	}

	r := mux.NewRouter()
	r.Use(middleware.RequestLogging(log))
	if len(opts.CORSOrigins) > 0 {
		r.Use(middleware.NewCORSMiddleware(opts.CORSOrigins).Handler)
	}
	r.Use(middleware.NewAuthMiddleware(opts.JWTSecret, opts.Issuer, log.Named("auth"), []string{"/healthz", "/metrics"}).Handler)
	if opts.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(opts.RateLimit, opts.Burst, log.Named("ratelimit")).Handler)
	}
	r.Use(a.auditMiddleware)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.HandleFunc("/audit", a.auditEntries).Methods(http.MethodGet)
	r.HandleFunc("/supply", a.supply).Methods(http.MethodGet)

	r.HandleFunc("/resources/search", a.search).Methods(http.MethodPost)
	r.HandleFunc("/recipes", a.recipes).Methods(http.MethodGet)
	r.HandleFunc("/recipes/{id:[0-9]+}", a.recipe).Methods(http.MethodGet)
	r.HandleFunc("/recipes/{id:[0-9]+}/check", a.canCraft).Methods(http.MethodGet)
	r.HandleFunc("/recipes/{id:[0-9]+}/craft", a.craft).Methods(http.MethodPost)

	r.HandleFunc("/players/{address}/resources", a.playerResources).Methods(http.MethodGet)
	r.HandleFunc("/players/{address}/items", a.playerItems).Methods(http.MethodGet)
	r.HandleFunc("/players/{address}/currency", a.playerCurrency).Methods(http.MethodGet)
	r.HandleFunc("/items/{id:[0-9]+}", a.item).Methods(http.MethodGet)

	r.HandleFunc("/listings", a.createListing).Methods(http.MethodPost)
	r.HandleFunc("/listings", a.listListings).Methods(http.MethodGet)
	r.HandleFunc("/listings/{id:[0-9]+}", a.getListing).Methods(http.MethodGet)
	r.HandleFunc("/listings/{id:[0-9]+}/cancel", a.cancelListing).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id:[0-9]+}/buy", a.buyListing).Methods(http.MethodPost)

	r.HandleFunc("/ledgers/resources/mint", a.mintResources).Methods(http.MethodPost)
	r.HandleFunc("/ledgers/currency/mint", a.mintCurrency).Methods(http.MethodPost)
	r.HandleFunc("/ledgers/{ledger}/authorized", a.listAuthorized).Methods(http.MethodGet)
	r.HandleFunc("/ledgers/{ledger}/authorized/{address}", a.addAuthorized).Methods(http.MethodPut)
	r.HandleFunc("/ledgers/{ledger}/authorized/{address}", a.removeAuthorized).Methods(http.MethodDelete)

	a.router = r
	a.h = metrics.InstrumentHandler(r)
	return a, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.h.ServeHTTP(w, r)
}

// Close releases the audit sink.
func (a *API) Close() error {
	return a.sink.Close()
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"recipes":  a.app.Crafting.Catalog().Len(),
		"catalog":  a.app.Crafting.Catalog().Digest(),
		"services": a.app.Descriptors(),
	})
}

func (a *API) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.WrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			return
		}
		entry := auditEntry{
			Time:       time.Now().UTC(),
			RequestID:  middleware.RequestID(r.Context()),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     wrapped.Status(),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}
		if caller, ok := middleware.Caller(r.Context()); ok {
			entry.Caller = caller.String()
		}
		a.audit.add(entry)
	})
}

// auditEntries is restricted to ledger owners.
func (a *API) auditEntries(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	owner := false
	for _, l := range accessdomain.Ledgers() {
		if o, err := a.app.Registry.Owner(l); err == nil && o.Equal(caller) {
			owner = true
			break
		}
	}
	if !owner {
		writeError(w, http.StatusForbidden, errors.New("audit log is restricted to ledger owners"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, a.audit.listLimit(limit))
}

func (a *API) supply(w http.ResponseWriter, r *http.Request) {
	s, err := a.app.Treasury.Supply(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func pathUint(r *http.Request, name string) (uint64, error) {
	raw := mux.Vars(r)[name]
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// callerOf writes 401 and reports false when the request is anonymous.
func callerOf(w http.ResponseWriter, r *http.Request) (address.Address, bool) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.ErrMissingToken)
		return "", false
	}
	return caller, true
}
