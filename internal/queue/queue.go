// Package queue turns an incoming stream of chat messages into sequential
// spoken audio.
//
// The queue never replays conversation history: the first batch it observes
// after construction is latched as already played. Later batches contribute
// only messages it has not seen, minus the local user's own messages and
// reasoning messages, which are marked played without being spoken. Audio is
// resolved through the cache first and synthesized on a miss, then played one
// message at a time in arrival order.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxline/internal/cache"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/provider/tts"
)

// Message is one inbound chat message as delivered by the message layer. The
// queue only reads it.
type Message struct {
	ID          string
	Content     string
	Pubkey      string
	VoiceID     string // optional per-message voice override
	IsReasoning bool
	CreatedAt   time.Time
}

// TTSMessage is a queued work item derived from a Message.
type TTSMessage struct {
	ID          string
	Content     string
	VoiceID     string
	AgentPubkey string
}

// Player is the playback surface the queue speaks through. Satisfied by
// *playback.Controller.
type Player interface {
	Play(ctx context.Context, data []byte) error
	Stop()
}

// Queue serializes text-to-speech playback of incoming messages. Safe for
// concurrent use; playback happens on an internal drain goroutine.
type Queue struct {
	synth   tts.Provider
	player  Player
	cache   *cache.Cache
	logger  *slog.Logger
	metrics *observe.Metrics

	localPubkey  string
	defaultVoice string
	onState      func(playing bool)

	autoSpeak atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	agentVoices map[string]string
	played      map[string]struct{}
	pending     []TTSMessage
	processing  bool
	latched     bool
	generation  uint64

	// drained closes when the active drain goroutine exits. Nil while idle.
	drained chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithDefaultVoice sets the voice used when neither the message nor the
// agent configuration names one.
func WithDefaultVoice(voiceID string) Option {
	return func(q *Queue) { q.defaultVoice = voiceID }
}

// WithAgentVoices seeds the per-agent voice assignments (pubkey to voice ID).
func WithAgentVoices(voices map[string]string) Option {
	return func(q *Queue) {
		for pk, v := range voices {
			q.agentVoices[pk] = v
		}
	}
}

// WithPlaybackStateFunc registers the playback-state-changed callback. It is
// invoked with true once per drain cycle when playback begins and with false
// when the queue empties or is cleared.
func WithPlaybackStateFunc(fn func(playing bool)) Option {
	return func(q *Queue) { q.onState = fn }
}

// New creates a playback queue speaking through synth and player, caching
// through store. localPubkey identifies the user whose own messages are never
// spoken. Auto-speak starts enabled.
func New(synth tts.Provider, player Player, store *cache.Cache, localPubkey string, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		synth:       synth,
		player:      player,
		cache:       store,
		logger:      slog.Default(),
		localPubkey: localPubkey,
		agentVoices: make(map[string]string),
		played:      make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, fn := range opts {
		fn(q)
	}
	if q.metrics == nil {
		q.metrics = observe.DefaultMetrics()
	}
	q.autoSpeak.Store(true)
	return q
}

// SetAutoSpeak toggles speaking of new messages. While disabled, incoming
// messages are still marked played so they are not spoken retroactively when
// re-enabled.
func (q *Queue) SetAutoSpeak(enabled bool) { q.autoSpeak.Store(enabled) }

// AutoSpeak reports whether new messages are spoken.
func (q *Queue) AutoSpeak() bool { return q.autoSpeak.Load() }

// SetAgentVoices replaces the per-agent voice assignments. Takes effect for
// messages enqueued afterwards.
func (q *Queue) SetAgentVoices(voices map[string]string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.agentVoices = make(map[string]string, len(voices))
	for pk, v := range voices {
		q.agentVoices[pk] = v
	}
}

// SetDefaultVoice replaces the queue-wide default voice.
func (q *Queue) SetDefaultVoice(voiceID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.defaultVoice = voiceID
}

// ProcessMessages feeds a batch of messages into the queue. The very first
// call marks every message as already played without speaking anything; this
// latch keeps a session that starts mid-conversation from reading out
// history. Duplicate messages across batches are ignored via the played set.
func (q *Queue) ProcessMessages(batch []Message) {
	q.mu.Lock()

	if !q.latched {
		q.latched = true
		for _, msg := range batch {
			q.played[msg.ID] = struct{}{}
		}
		q.logger.Debug("latched message history", "count", len(batch))
		q.mu.Unlock()
		return
	}

	speak := q.autoSpeak.Load()
	enqueued := 0
	for _, msg := range batch {
		if _, seen := q.played[msg.ID]; seen {
			continue
		}
		q.played[msg.ID] = struct{}{}

		if msg.Pubkey == q.localPubkey || msg.IsReasoning || !speak {
			continue
		}

		q.pending = append(q.pending, TTSMessage{
			ID:          msg.ID,
			Content:     msg.Content,
			VoiceID:     q.resolveVoiceLocked(msg),
			AgentPubkey: msg.Pubkey,
		})
		enqueued++
	}
	if enqueued > 0 {
		q.metrics.QueueDepth.Add(q.ctx, int64(enqueued))
	}

	startDrain := enqueued > 0 && !q.processing
	var gen uint64
	var done chan struct{}
	if startDrain {
		q.processing = true
		q.generation++
		gen = q.generation
		done = make(chan struct{})
		q.drained = done
	}
	q.mu.Unlock()

	if startDrain {
		if q.onState != nil {
			q.onState(true)
		}
		go q.drain(gen, done)
	}
}

// resolveVoiceLocked picks the voice for a message: explicit override, then
// the agent's configured voice, then the default. Caller must hold q.mu.
func (q *Queue) resolveVoiceLocked(msg Message) string {
	if msg.VoiceID != "" {
		return msg.VoiceID
	}
	if v, ok := q.agentVoices[msg.Pubkey]; ok && v != "" {
		return v
	}
	return q.defaultVoice
}

// drain speaks pending messages in order until the queue empties or the
// generation is superseded by ClearQueue or Close.
func (q *Queue) drain(gen uint64, done chan struct{}) {
	for {
		q.mu.Lock()
		if q.generation != gen {
			// Superseded: ClearQueue or Close owns the processing flag and
			// already announced the stop, so fire no signal here.
			if q.drained == done {
				q.drained = nil
			}
			q.mu.Unlock()
			close(done)
			return
		}
		if len(q.pending) == 0 {
			// The exit decision and the processing=false transition must share
			// one critical section: an enqueue landing between them would see
			// a drain that is about to die, skip starting its own, and strand
			// its messages.
			q.processing = false
			if q.drained == done {
				q.drained = nil
			}
			q.mu.Unlock()
			close(done)
			if q.onState != nil {
				q.onState(false)
			}
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.metrics.QueueDepth.Add(q.ctx, -1)
		q.speak(msg)
	}
}

// speak materializes audio for one message and plays it. Failures are logged
// and the queue advances.
func (q *Queue) speak(msg TTSMessage) {
	ctx, span := observe.StartSpan(q.ctx, "queue.speak")
	defer span.End()

	data, err := q.cache.Materialize(ctx, msg.ID, msg.Content, msg.VoiceID, msg.AgentPubkey,
		func(ctx context.Context) ([]byte, error) {
			return q.synth.Synthesize(ctx, msg.Content, msg.VoiceID)
		})
	if err != nil {
		q.logger.Error("synthesizing message, skipping",
			"message_id", msg.ID, "voice", msg.VoiceID, "error", err)
		return
	}

	start := time.Now()
	if err := q.player.Play(ctx, data); err != nil {
		q.logger.Error("playing message, skipping", "message_id", msg.ID, "error", err)
		return
	}
	q.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())
}

// ClearQueue discards all pending messages and stops the active playback.
// Used for barge-in when the user starts speaking over agent audio. Calling
// it while the queue is idle and empty is a no-op and fires no signal.
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	wasProcessing := q.processing
	dropped := len(q.pending)
	q.pending = nil
	if wasProcessing {
		q.generation++
		q.processing = false
	}
	q.mu.Unlock()

	if dropped > 0 {
		q.metrics.QueueDepth.Add(q.ctx, -int64(dropped))
	}
	if !wasProcessing {
		return
	}

	q.player.Stop()
	q.logger.Debug("queue cleared", "dropped", dropped)
	if q.onState != nil {
		q.onState(false)
	}
}

// Pending returns the number of messages waiting to be spoken.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Processing reports whether a drain cycle is active.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Close stops the queue permanently: pending messages are dropped, the active
// playback is stopped, and the drain goroutine is awaited.
func (q *Queue) Close() {
	q.cancel()

	q.mu.Lock()
	q.pending = nil
	q.generation++
	q.processing = false
	drained := q.drained
	q.mu.Unlock()

	q.player.Stop()
	if drained != nil {
		<-drained
	}
}
