package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_http_requests_total",
			Help: "Total number of HTTP requests processed by the school service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "school_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	grpcServerHandlingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_server_handling_seconds",
			Help:    "Latency of unary gRPC calls handled by the server.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"grpc_service", "grpc_method"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "school_ws_active_connections",
			Help: "Number of open notification websockets.",
		},
		[]string{"channel"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_ws_events_total",
			Help: "Websocket lifecycle events such as connects and dropped writes.",
		},
		[]string{"channel", "event"},
	)
	directoryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_directory_cache_lookups_total",
			Help: "User profile lookups served by the directory cache, by result.",
		},
		[]string{"result"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_messages_sent_total",
			Help: "Total number of messages sent, by thread position.",
		},
		[]string{"kind"},
	)
	resultTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_result_transitions_total",
			Help: "Total number of result status transitions.",
		},
		[]string{"to"},
	)
	gradesComputedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "school_grades_computed_total",
			Help: "Total number of grades computed, by outcome.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "school_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		grpcServerHandlingSeconds,
		wsActiveConnections,
		wsEventsTotal,
		directoryCacheTotal,
		messagesSentTotal,
		resultTransitionsTotal,
		gradesComputedTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latency per matched route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		grpcServerHandlingSeconds.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive(channel string) {
	wsActiveConnections.WithLabelValues(channel).Inc()
}

func DecWSActive(channel string) {
	wsActiveConnections.WithLabelValues(channel).Dec()
}

func IncWSEvent(channel, event string) {
	wsEventsTotal.WithLabelValues(channel, event).Inc()
}

// AddDirectoryCache counts n lookups with result "hit" or "miss".
func AddDirectoryCache(result string, n int) {
	if n > 0 {
		directoryCacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// IncMessageSent counts a sent message; kind is "root" or "reply".
func IncMessageSent(kind string) {
	messagesSentTotal.WithLabelValues(kind).Inc()
}

func IncResultTransition(to string) {
	resultTransitionsTotal.WithLabelValues(to).Inc()
}

func IncGradeComputed(outcome string) {
	gradesComputedTotal.WithLabelValues(outcome).Inc()
}
