package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DependencyUp 1=Connected 0=Disconnected，dep: feed / broadcast
	DependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "dependency_up",
		Help:      "Connection state of an upstream dependency.",
	}, []string{"dep"})

	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "poll_cycles_total",
		Help:      "Poll cycles partitioned by outcome.",
	}, []string{"outcome"}) // ok / feed_down / broadcast_down / panic

	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "poll_cycle_seconds",
		Help:      "Duration of one symbol sweep.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "fetch_total",
		Help:      "Quote fetches partitioned by call path and result.",
	}, []string{"path", "result"}) // path: poll / on_demand

	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publish_total",
		Help:      "Tick publishes partitioned by result.",
	}, []string{"result"})
)

func SetDependencyUp(dep string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	DependencyUp.WithLabelValues(dep).Set(v)
}
