package mp

import "go.uber.org/zap"

// Option configures Read and ConvertMetadata.
type Option func(*options)

type options struct {
	convertMetadata bool
	includeNative   bool
	log             *zap.Logger
}

func applyOptions(opts []Option) *options {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithConvertedMetadata makes Read normalize the raw metadata into a
// canonical Metadata record. Ignored by ConvertMetadata, which always
// converts.
func WithConvertedMetadata() Option {
	return func(o *options) {
		o.convertMetadata = true
	}
}

// WithNativeMetadata attaches the original record set to the converted
// Metadata under its Native field.
func WithNativeMetadata() Option {
	return func(o *options) {
		o.includeNative = true
	}
}

// WithLogger sets the diagnostic sink for recoverable failures (skipped
// container nodes, compression-check errors, metadata fallbacks). The
// default discards all diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}
