package options

const (
	// DefaultDataDir is the directory GrausDb stores its data files in
	// when no directory is specified during initialization.
	DefaultDataDir = "/var/lib/grausdb"

	// DefaultCompactionThreshold is spec.md's fixed 1 MiB threshold of
	// uncompacted bytes that triggers compaction.
	DefaultCompactionThreshold int64 = 1 << 20

	// DefaultReaderCacheLimit bounds how many segment handles a reader
	// context caches by default.
	DefaultReaderCacheLimit = 64
)

// defaultOptions holds the default configuration settings for a GrausDb
// store.
var defaultOptions = Options{
	DataDir:             DefaultDataDir,
	CompactionThreshold: DefaultCompactionThreshold,
	ReaderCacheLimit:    DefaultReaderCacheLimit,
}

// NewDefaultOptions returns a copy of GrausDb's default configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
