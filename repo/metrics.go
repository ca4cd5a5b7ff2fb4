package repo

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the Prometheus collectors a Repo exposes. Each Repo gets
// its own set, registered into the registry given through
// WithMetricsRegistry. The namespace and metric names are fixed, so
// registering a second Repo into the same registry panics on the duplicate
// collectors.
type metrics struct {
	writesIssued      prometheus.Counter
	acksSuccess       prometheus.Counter
	acksFailure       prometheus.Counter
	transactionsStart prometheus.Counter
	transactionsRerun prometheus.Counter
	activeListens     prometheus.Gauge
	onDisconnectFired prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	m := &metrics{
		writesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "writes_issued_total", Help: "User-initiated set/merge writes issued.",
		}),
		acksSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_acks_success_total", Help: "Writes acknowledged successfully by the server.",
		}),
		acksFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_acks_failure_total", Help: "Writes acknowledged as failed by the server.",
		}),
		transactionsStart: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_started_total", Help: "Transactions started.",
		}),
		transactionsRerun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_rerun_total", Help: "Transaction rerun attempts due to stale preconditions.",
		}),
		activeListens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_listens", Help: "Currently active server listen subscriptions.",
		}),
		onDisconnectFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ondisconnect_events_fired_total", Help: "onDisconnect entries replayed after a connection drop.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.writesIssued, m.acksSuccess, m.acksFailure,
			m.transactionsStart, m.transactionsRerun, m.activeListens, m.onDisconnectFired)
	}
	return m
}
