package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kozak",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kozak",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kozak",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kozak",
			Subsystem: "economy",
			Name:      "operations_total",
			Help:      "Economy operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kozak",
			Subsystem: "economy",
			Name:      "operation_duration_seconds",
			Help:      "Duration of economy operations including the storage transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)

	resourceSupply = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kozak",
			Subsystem: "supply",
			Name:      "resources",
			Help:      "Total units in circulation per resource type.",
		},
		[]string{"resource"},
	)

	itemSupply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kozak",
			Subsystem: "supply",
			Name:      "items",
			Help:      "Number of crafted items in existence.",
		},
	)

	currencySupply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kozak",
			Subsystem: "supply",
			Name:      "currency",
			Help:      "Total currency in circulation.",
		},
	)

	activeListings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kozak",
			Subsystem: "market",
			Name:      "active_listings",
			Help:      "Listings currently holding an item in escrow.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		operationDuration,
		resourceSupply,
		itemSupply,
		currencySupply,
		activeListings,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordOperation counts one economy operation. A nil error is "ok";
// otherwise the result label is the error class supplied by the caller.
func RecordOperation(operation, result string, duration time.Duration) {
	if result == "" {
		result = "ok"
	}
	if duration <= 0 {
		duration = time.Microsecond
	}
	operations.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetResourceSupply publishes the circulating amount of one resource type.
func SetResourceSupply(resource string, amount uint64) {
	resourceSupply.WithLabelValues(resource).Set(float64(amount))
}

// SetItemSupply publishes the number of items.
func SetItemSupply(n uint64) { itemSupply.Set(float64(n)) }

// SetCurrencySupply publishes the circulating currency.
func SetCurrencySupply(amount uint64) { currencySupply.Set(float64(amount)) }

// SetActiveListings publishes the number of active listings.
func SetActiveListings(n int) { activeListings.Set(float64(n)) }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses ids and addresses so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, "0x") || strings.HasPrefix(p, "0X"):
			parts[i] = ":address"
		case isDigits(p):
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
