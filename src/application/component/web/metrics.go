package web

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsgate_http_requests_total",
		Help: "Number of handled HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "opsgate_http_request_duration_seconds",
		Help: "Time spent handling HTTP requests.",
	}, []string{"method", "path"})

	wsConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsgate_websocket_connections",
		Help: "Number of open websocket connections.",
	})
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (self *statusRecorder) WriteHeader(status int) {
	self.status = status
	self.ResponseWriter.WriteHeader(status)
}

// Hijack keeps websocket upgrades working through the middleware.
func (self *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := self.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (self *Web) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Labeled by route template so path parameters
		// do not blow up the cardinality.
		path := req.URL.Path
		if route := mux.CurrentRoute(req); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		recorder := &statusRecorder{w, http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		requestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(recorder.status)).Inc()
		requestDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
	})
}
