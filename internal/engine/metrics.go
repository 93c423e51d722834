package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultIgnored = "ignored"
	resultSkipped = "skipped"
	resultError   = "error"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_engine_operations_total",
			Help: "Cart operations by outcome; failed operations are labelled with their notification kind.",
		},
		[]string{"operation", "result"},
	)

	storeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_engine_store_writes_total",
			Help: "Write-through attempts by result; skipped means the cart matched the persisted copy.",
		},
		[]string{"result"},
	)
)
