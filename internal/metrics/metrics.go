// Package metrics публикует счётчики сервиса взносов в формате Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	kindInvoice  = "invoice"
	kindReversal = "reversal"
)

// DuesMetrics реализует учёт событий сервиса взносов.
type DuesMetrics struct {
	invoicesIssued  *prometheus.CounterVec
	emailsSent      *prometheus.CounterVec
	emailFailures   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New регистрирует метрики в отдельном реестре.
func New() *DuesMetrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry регистрирует метрики в переданном реестре.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *DuesMetrics {
	m := &DuesMetrics{
		invoicesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dues_invoices_issued_total",
			Help: "Dues invoices issued by year and kind.",
		}, []string{"year", "kind"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dues_emails_sent_total",
			Help: "Dues emails accepted by the mail relay by year and kind.",
		}, []string{"year", "kind"}),
		emailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dues_email_failures_total",
			Help: "Dues emails rejected by the mail relay by year.",
		}, []string{"year"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dues_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "status"}),
		gatherer: gatherer,
	}

	registerer.MustRegister(m.invoicesIssued, m.emailsSent, m.emailFailures, m.requestDuration)
	return m
}

// InvoiceIssued учитывает выставленный счёт или сторнирующий счёт.
func (m *DuesMetrics) InvoiceIssued(year int, reversal bool) {
	kind := kindInvoice
	if reversal {
		kind = kindReversal
	}
	m.invoicesIssued.WithLabelValues(strconv.Itoa(year), kind).Inc()
}

// EmailSent учитывает принятое почтовым сервером письмо.
func (m *DuesMetrics) EmailSent(year int, kind string) {
	m.emailsSent.WithLabelValues(strconv.Itoa(year), kind).Inc()
}

// EmailFailed учитывает письмо, которое не удалось отправить.
func (m *DuesMetrics) EmailFailed(year int) {
	m.emailFailures.WithLabelValues(strconv.Itoa(year)).Inc()
}

// ObserveRequest учитывает длительность обработки HTTP-запроса.
func (m *DuesMetrics) ObserveRequest(method string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler возвращает обработчик /metrics.
func (m *DuesMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
