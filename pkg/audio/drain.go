package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this when a consumer stops caring about a streaming channel before the
// producer closes it (e.g., a detector's frame tap after Stop): discarding
// keeps the producer's buffer empty so nothing is reported as dropped.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
