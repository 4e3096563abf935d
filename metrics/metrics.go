package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rn_inspector_protocol_frames_total",
		Help: "protocol frames received from targets by kind",
	}, []string{"kind"})

	callTimeoutCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rn_inspector_call_timeouts_total",
		Help: "protocol calls that expired before a response arrived",
	}, []string{"method"})

	bridgesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rn_inspector_bridges",
		Help: "open protocol bridges",
	})

	trackedRequestsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rn_inspector_tracked_requests",
		Help: "in-flight network requests per device",
	}, []string{"device"})

	observersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rn_inspector_observers",
		Help: "connected observers per channel",
	}, []string{"channel"})

	droppedFramesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rn_inspector_observer_dropped_frames_total",
		Help: "frames dropped because an observer queue was full, per channel",
	}, []string{"channel"})

	broadcastCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rn_inspector_broadcast_events_total",
		Help: "events broadcast to observers by type",
	}, []string{"type"})

	discoveryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rn_inspector_discovery_probes_total",
		Help: "discovery endpoint probes by result",
	}, []string{"result"})

	requestDurationHistogramVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rn_inspector_network_request_duration_seconds",
		Help:    "observed duration of completed target network requests",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"resource_type", "phase"})
)

func init() {
	prometheus.MustRegister(
		framesCounter,
		callTimeoutCounter,
		bridgesGauge,
		trackedRequestsGauge,
		observersGauge,
		droppedFramesCounter,
		broadcastCounter,
		discoveryCounter,
		requestDurationHistogramVec,
	)
}

func FrameReceived(kind string) {
	framesCounter.WithLabelValues(kind).Inc()
}

func CallTimeout(method string) {
	callTimeoutCounter.WithLabelValues(method).Inc()
}

func BridgeOpened() {
	bridgesGauge.Inc()
}

func BridgeClosed() {
	bridgesGauge.Dec()
}

func SetTrackedRequests(device string, count int) {
	trackedRequestsGauge.WithLabelValues(device).Set(float64(count))
}

func ObserverConnected(channel string) {
	observersGauge.WithLabelValues(channel).Inc()
}

func ObserverDisconnected(channel string) {
	observersGauge.WithLabelValues(channel).Dec()
}

func ObserverFrameDropped(channel string) {
	droppedFramesCounter.WithLabelValues(channel).Inc()
}

func EventBroadcast(eventType string) {
	broadcastCounter.WithLabelValues(eventType).Inc()
}

func DiscoveryProbe(result string) {
	discoveryCounter.WithLabelValues(result).Inc()
}

// ObserveRequest records a finished request; durationMs is in milliseconds.
func ObserveRequest(resourceType, phase string, durationMs float64) {
	requestDurationHistogramVec.WithLabelValues(resourceType, phase).Observe(durationMs / 1000)
}

// Handler serves the default registry on /metrics.
func Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())

	return router
}
