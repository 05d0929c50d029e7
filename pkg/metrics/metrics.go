package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Outreach metrics
	EmailsSent    *prometheus.CounterVec
	EmailsFailed  prometheus.Counter
	EmailsSkipped prometheus.Counter
	SMSSent       *prometheus.CounterVec
	SMSFailed     prometheus.Counter
	LeadsImported prometheus.Counter
	WebhookEvents *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		// Outreach metrics
		EmailsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_sent_total",
				Help: "Total number of emails delivered to the provider",
			},
			[]string{"mode"}, // mock, sendgrid
		),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total number of emails that failed after all retry attempts",
		}),
		EmailsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_skipped_total",
			Help: "Total number of emails skipped by the daily send limit",
		}),
		SMSSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sms_sent_total",
				Help: "Total number of SMS messages delivered to the provider",
			},
			[]string{"mode"}, // mock, twilio
		),
		SMSFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_failed_total",
			Help: "Total number of SMS messages that failed after all retry attempts",
		}),
		LeadsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leads_imported_total",
			Help: "Total number of leads imported from CSV uploads",
		}),
		WebhookEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of webhook events received",
			},
			[]string{"source", "event"}, // sendgrid/twilio/calendly, event type
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path (e.g., /api/leads/:id)

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordEmailSent increments sent emails for the given delivery mode
func (m *Metrics) RecordEmailSent(mode string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(mode).Inc()
}

// RecordEmailFailed increments failed emails
func (m *Metrics) RecordEmailFailed() {
	if m == nil {
		return
	}
	m.EmailsFailed.Inc()
}

// RecordEmailSkipped increments limit-skipped emails
func (m *Metrics) RecordEmailSkipped() {
	if m == nil {
		return
	}
	m.EmailsSkipped.Inc()
}

// RecordSMSSent increments sent SMS messages for the given delivery mode
func (m *Metrics) RecordSMSSent(mode string) {
	if m == nil {
		return
	}
	m.SMSSent.WithLabelValues(mode).Inc()
}

// RecordSMSFailed increments failed SMS messages
func (m *Metrics) RecordSMSFailed() {
	if m == nil {
		return
	}
	m.SMSFailed.Inc()
}

// RecordLeadsImported adds n to the imported leads counter
func (m *Metrics) RecordLeadsImported(n int) {
	if m == nil {
		return
	}
	m.LeadsImported.Add(float64(n))
}

// RecordWebhookEvent increments webhook events for a source/event pair
func (m *Metrics) RecordWebhookEvent(source, event string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(source, event).Inc()
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
