// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourcePacketsTotal counts frames read from a capture source
	SourcePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_source_packets_total",
			Help: "Total number of frames read from capture sources",
		},
		[]string{"source"},
	)

	// FilteredPacketsTotal counts frames checked by the frame filter
	FilteredPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_filtered_packets_total",
			Help: "Total number of frames checked by the frame filter",
		},
		[]string{"result"},
	)

	// DecodedPacketsTotal counts frames decoded without a structural error
	DecodedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_decoded_packets_total",
			Help: "Total number of frames decoded",
		},
		[]string{"link"},
	)

	// DecodedLayersTotal counts decoded protocol layers by kind
	DecodedLayersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_decoded_layers_total",
			Help: "Total number of protocol layers decoded",
		},
		[]string{"kind"},
	)

	// DecodeErrorsTotal counts decode failures by failing layer and class
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"kind", "class"},
	)

	// CorruptedPacketsTotal counts layers whose checksum did not verify
	CorruptedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_corrupted_packets_total",
			Help: "Total number of layers flagged as corrupted",
		},
		[]string{"kind"},
	)

	// DecodeLatencySeconds measures per-frame decode latency
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "otus_codec_decode_latency_seconds",
			Help:    "Latency of frame decoding in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// EncodedPacketsTotal counts packets serialized by the encoder
	EncodedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_encoded_packets_total",
			Help: "Total number of packets encoded",
		},
		[]string{"kind"},
	)

	// ReassemblyActiveFragments tracks active IPv4 fragments awaiting reassembly
	ReassemblyActiveFragments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "otus_codec_reassembly_active_fragments",
			Help: "Number of active IPv4 fragments in reassembly queue",
		},
	)

	// ReassembledPacketsTotal counts datagrams rebuilt from fragments
	ReassembledPacketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otus_codec_reassembled_packets_total",
			Help: "Total number of IPv4 datagrams reassembled",
		},
	)

	// FragmentsRejectedTotal counts fragments dropped by reassembly checks
	FragmentsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otus_codec_fragments_rejected_total",
			Help: "Total number of IPv4 fragments rejected",
		},
		[]string{"reason"},
	)
)
