package queue

// Option applies a configuration option to the Partitioned queue.
type Option func(*Partitioned)

// WithPartitions sets the number of partitions.
func WithPartitions(n int) Option {
	return func(q *Partitioned) {
		if n > 0 {
			q.partitions = n
		}
	}
}

// WithCapacity sets the capacity of each partition.
func WithCapacity(capacity int) Option {
	return func(q *Partitioned) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
