package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LastImported = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archflow_last_imported_height",
		Help: "The highest block number durably committed by the importer",
	})

	TailingMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archflow_tailing_mode",
		Help: "1 when the importer has caught up to the front of the archive, 0 during backfill",
	})

	ImportedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archflow_imported_blocks_total",
		Help: "Total number of blocks imported since process start",
	})

	PseudoTransactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archflow_pseudo_transactions_total",
		Help: "Total number of deposit pseudo transactions synthesized",
	})

	ImportRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archflow_import_retries_total",
		Help: "Total number of per-block import attempts that failed and were retried",
	})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archflow_decode_failures_total",
		Help: "Total number of block files that failed structural decoding or number checks",
	})
)
