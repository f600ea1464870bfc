package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageOpDuration tracks document storage call latency by backend and operation.
var StorageOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "farum_storage_op_millis",
	Help:    "Milliseconds spent in document storage calls",
	Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
}, []string{"backend", "op"})

// StorageOpErrors counts failed document storage calls.
var StorageOpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farum_storage_op_errors_total",
	Help: "Document storage calls that returned an error",
}, []string{"backend", "op"})

// StorageDocuments counts documents moved through storage calls.
var StorageDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farum_storage_documents_total",
	Help: "Documents read, written or deleted",
}, []string{"backend", "op"})

// ChatTurns counts completed and failed chat turns.
var ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farum_chat_turns_total",
	Help: "Chat turns by outcome",
}, []string{"outcome"})

// HTTPRequests counts API requests by route and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farum_http_requests_total",
	Help: "HTTP requests by route and status",
}, []string{"route", "code"})
