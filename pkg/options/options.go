// Package options provides data structures and functions for configuring
// GrausDb. It defines the small set of parameters that control where the
// store keeps its data and when it compacts, following the functional
// options pattern the rest of this codebase uses.
package options

import (
	"strings"

	"github.com/iamNilotpal/grausdb/pkg/errors"
)

// Options holds the configuration parameters for a GrausDb store.
type Options struct {
	// DataDir is the directory holding the store's segment files. It must
	// be writable; deletion of files within it must be permitted, since
	// compaction deletes retired segments.
	//
	// Default: "/var/lib/grausdb"
	DataDir string `json:"dataDir"`

	// CompactionThreshold is the number of uncompacted bytes that triggers
	// a synchronous compaction on the next successful mutation. spec.md
	// fixes this at 1 MiB as a compile-time constant; it is still exposed
	// here so tests can force compaction on small datasets without
	// writing a megabyte of churn.
	//
	// Default: DefaultCompactionThreshold (1 MiB)
	CompactionThreshold int64 `json:"compactionThreshold"`

	// ReaderCacheLimit bounds how many open segment handles a single
	// reader context keeps cached at once. Zero means unbounded. This is
	// an ambient resource control, not part of the storage engine's
	// correctness contract.
	//
	// Default: DefaultReaderCacheLimit
	ReaderCacheLimit int `json:"readerCacheLimit"`
}

// OptionFunc is a function type that modifies GrausDb's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions resets every field to its default value.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		*o = opts
	}
}

// WithDataDir sets the directory GrausDb stores its segment files in.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithCompactionThreshold sets the uncompacted-byte threshold that
// triggers compaction. Values less than or equal to zero are ignored,
// since a non-positive threshold would compact on every single write.
func WithCompactionThreshold(bytes int64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.CompactionThreshold = bytes
		}
	}
}

// WithReaderCacheLimit bounds the number of segment handles a reader
// context caches at once. Zero means unbounded. A negative value is
// stored as given and then rejected by Validate.
func WithReaderCacheLimit(limit int) OptionFunc {
	return func(o *Options) {
		o.ReaderCacheLimit = limit
	}
}

// Validate checks the field-level constraints the With* constructors don't
// enforce on their own (WithReaderCacheLimit in particular accepts any int).
// It is called by engine.Open after every OptionFunc has run.
func (o *Options) Validate() error {
	if o.CompactionThreshold <= 0 {
		return errors.NewFieldRangeError("CompactionThreshold", o.CompactionThreshold, 1, nil).
			WithMessage("compaction threshold must be positive")
	}
	if o.ReaderCacheLimit < 0 {
		return errors.NewFieldRangeError("ReaderCacheLimit", o.ReaderCacheLimit, 0, nil).
			WithMessage("reader cache limit must not be negative")
	}
	return nil
}
