package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BusTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "niarc_bus_timeouts_total",
		Help: "Poll cycles that ended without a decodable packet",
	})
	ReportsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niarc_reports_decoded_total",
		Help: "Input reports decoded, by report type",
	}, []string{"report"})
	ColorCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niarc_color_cycles_total",
		Help: "Color classification cycles, by result",
	}, []string{"color"})
	SerialPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "niarc_serial_published_total",
		Help: "Quaternion lines written to the serial link",
	})
	SerialErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "niarc_serial_errors_total",
		Help: "Serial link write failures",
	})
	RedisSetErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "niarc_redis_set_errors_total",
		Help: "Failures writing readings to Redis",
	})
	ReadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "niarc_read_latency_seconds",
		Help:    "Latency of one sensor read cycle",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveReadLatency(start time.Time) {
	ReadLatency.Observe(time.Since(start).Seconds())
}

func StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	_ = http.ListenAndServe(":"+strconv.Itoa(port), mux)
}
