package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biobank",
		Subsystem: "orders",
		Name:      "mutations_total",
		Help:      "Total number of accepted order mutations broken down by operation.",
	}, []string{"operation"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biobank",
		Subsystem: "orders",
		Name:      "conflicts_total",
		Help:      "Total number of rejected order writes broken down by kind.",
	}, []string{"kind"})

	ledgerEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "biobank",
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Total number of audit ledger entries appended.",
	})

	exportBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biobank",
		Subsystem: "export",
		Name:      "batches_total",
		Help:      "Total number of export batches broken down by result.",
	}, []string{"result"})

	exportedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "biobank",
		Subsystem: "export",
		Name:      "entries_total",
		Help:      "Total number of ledger entries marked exported.",
	})
)

func recordMutation(operation string) {
	orderMutations.WithLabelValues(operation).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}
