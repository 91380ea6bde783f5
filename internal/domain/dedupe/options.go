package dedupe

const defaultMaxSize = 50_000

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of keys to keep in memory, evicting the
// oldest first. A maxSize <= 0 disables suppression: nothing is remembered.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
