package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "bulk"

// Metrics groups every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InboundEvents       *prometheus.CounterVec
	RepliesSuppressed   prometheus.Counter
	Settlements         *prometheus.CounterVec
	CreditedAmount      prometheus.Counter
	PollAttempts        prometheus.Counter
	PendingPayments     prometheus.Gauge
	GatewayInitiations  *prometheus.CounterVec
	BroadcastDeliveries *prometheus.CounterVec
	ReferralPayouts     prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound chat events by outcome.",
		}, []string{"outcome"}),
		RepliesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_suppressed_total",
			Help:      "Outbound replies dropped as duplicates.",
		}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Resolved payments by settlement path and outcome.",
		}, []string{"path", "outcome"}),
		CreditedAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_amount_total",
			Help:      "Sum of deposits credited to balances.",
		}),
		PollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_poll_attempts_total",
			Help:      "Status queries issued by the poll loop.",
		}),
		PendingPayments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_payments",
			Help:      "Payments waiting for settlement.",
		}),
		GatewayInitiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_initiations_total",
			Help:      "Payment initiation attempts by result.",
		}, []string{"result"}),
		BroadcastDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Per-recipient broadcast deliveries by result.",
		}, []string{"result"}),
		ReferralPayouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_payouts_total",
			Help:      "Referral bonuses paid.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) InboundEvent(outcome string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReplySuppressed() {
	if m == nil {
		return
	}
	m.RepliesSuppressed.Inc()
}

func (m *Metrics) Settlement(path, outcome string, credited decimal.Decimal) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(path, outcome).Inc()
	if credited.IsPositive() {
		m.CreditedAmount.Add(credited.InexactFloat64())
	}
	m.PendingPayments.Dec()
}

func (m *Metrics) PaymentPending() {
	if m == nil {
		return
	}
	m.PendingPayments.Inc()
}

func (m *Metrics) PollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

func (m *Metrics) GatewayInitiation(result string) {
	if m == nil {
		return
	}
	m.GatewayInitiations.WithLabelValues(result).Inc()
}

func (m *Metrics) BroadcastDelivery(result string) {
	if m == nil {
		return
	}
	m.BroadcastDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ReferralPayout() {
	if m == nil {
		return
	}
	m.ReferralPayouts.Inc()
}

func (m *Metrics) HTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
