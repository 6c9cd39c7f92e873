package audio

import "sync"

// Broadcaster fans a single frame stream out to multiple subscribers so that
// the voice activity detector and the capture controller can tap the same
// live microphone stream.
//
// Delivery to a subscriber is non-blocking: a subscriber that falls behind
// its buffer has frames dropped rather than stalling the real-time producer.
// Dropped frames are counted per subscriber and reported on unsubscribe.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	closed  bool
	bufSize int
}

type subscriber struct {
	ch      chan AudioFrame
	dropped int
}

// NewBroadcaster creates a broadcaster whose subscribers each get a buffered
// channel of the given depth. A depth of at least a few hundred milliseconds
// of frames is recommended; values below 1 are clamped to 1.
func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Broadcaster{
		subs:    make(map[int]*subscriber),
		bufSize: bufSize,
	}
}

// Publish delivers frame to every current subscriber without blocking.
// It reports the number of subscribers whose buffer was full (frame dropped).
func (b *Broadcaster) Publish(frame AudioFrame) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	dropped := 0
	for _, s := range b.subs {
		select {
		case s.ch <- frame:
		default:
			s.dropped++
			dropped++
		}
	}
	return dropped
}

// Subscribe registers a new tap and returns its frame channel plus a cancel
// function. Cancel closes the channel and reports how many frames were
// dropped over the subscription's lifetime. Cancel is idempotent.
func (b *Broadcaster) Subscribe() (<-chan AudioFrame, func() int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscriber{ch: make(chan AudioFrame, b.bufSize)}
	if b.closed {
		close(s.ch)
		return s.ch, func() int { return 0 }
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = s

	var once sync.Once
	cancel := func() int {
		var n int
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			n = s.dropped
		})
		return n
	}
	return s.ch, cancel
}

// Run consumes src until it is closed, publishing every frame, then closes
// the broadcaster. It returns the total number of dropped deliveries.
// Typically invoked as a goroutine on the stream returned by
// [InputStream.Frames].
func (b *Broadcaster) Run(src <-chan AudioFrame) int {
	total := 0
	for f := range src {
		total += b.Publish(f)
	}
	b.Close()
	return total
}

// Close closes all subscriber channels. Publish becomes a no-op. Safe to call
// more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
