// Package metrics contains prometheus metrics of the relay.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "palaver"

// Config contains metrics configuration.
type Config struct {
	// Namespace is the prometheus namespace for all metrics. If empty,
	// defaults to "palaver".
	Namespace string
	// Registerer is the prometheus registerer to use. If nil,
	// prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
}

// Exported metrics, populated by Init.
var (
	ConnectionsGauge prometheus.Gauge
	ChatsGauge       prometheus.Gauge
	PublicChatsGauge prometheus.Gauge
	MembersGauge     prometheus.Gauge

	RequestsTotal  *prometheus.CounterVec
	MessagesTotal  prometheus.Counter
	FanoutTotal    prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	DeathRowSwept  prometheus.Counter
	DeathRowSpared prometheus.Counter
)

func init() {
	// Make metrics usable before the application-level Init runs (tests,
	// library use). The app re-runs Init with the default registerer.
	_ = Init(Config{Registerer: prometheus.NewRegistry()})
}

// Init creates all metrics and registers them with the configured registerer.
func Init(cfg Config) error {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultMetricsNamespace
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	ConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "connections",
		Help:      "Number of open client connections.",
	})
	ChatsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "chats",
		Help:      "Number of live chats.",
	})
	PublicChatsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "public_chats",
		Help:      "Number of live public chats.",
	})
	MembersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "members",
		Help:      "Number of live members across all chats.",
	})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "requests_total",
		Help:      "Number of requests processed, by request name.",
	}, []string{"name"})
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "messages_total",
		Help:      "Number of chat messages relayed.",
	})
	FanoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "fanout_sends_total",
		Help:      "Number of individual connection sends performed by broadcasts.",
	})
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "error_responses_total",
		Help:      "Number of error responses sent, by error kind.",
	}, []string{"kind"})
	DeathRowSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "death_row_swept_total",
		Help:      "Number of members removed after the disconnect grace period expired.",
	})
	DeathRowSpared = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "death_row_spared_total",
		Help:      "Number of members reclaimed from death row by a reconnect.",
	})

	collectors := []prometheus.Collector{
		ConnectionsGauge, ChatsGauge, PublicChatsGauge, MembersGauge,
		RequestsTotal, MessagesTotal, FanoutTotal, ErrorsTotal,
		DeathRowSwept, DeathRowSpared,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
