package collection

import (
	"github.com/patrikhermansson/hanndb/internal/codec"
	"github.com/patrikhermansson/hanndb/metrics"
)

type options struct {
	name        string
	metrics     *metrics.Metrics
	compression codec.Compression
}

func defaultOptions() options {
	return options{
		name:        "default",
		compression: codec.CompressionZstd,
	}
}

// Option configures a Collection.
type Option func(*options)

func resolve(o options, opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMetrics reports operations, latencies and sizes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCompression selects the compression of serialized snapshots. Default is zstd.
func WithCompression(c codec.Compression) Option {
	return func(o *options) { o.compression = c }
}
