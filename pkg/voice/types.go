// Package voice defines the shared types and error taxonomy used across all
// Voxline packages.
//
// These types form the lingua franca between the detector, the capture and
// playback controllers, the speech provider chains, and the playback queue.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package voice

import "time"

// Message is an inbound chat message as delivered by the external
// message-aggregation layer. Voxline never fetches, persists, or validates
// messages; it only decides whether each one should be spoken.
type Message struct {
	// ID is the message's unique identifier within the conversation.
	ID string

	// Content is the message text.
	Content string

	// Pubkey identifies the author. Messages whose Pubkey equals the local
	// user's pubkey are never spoken.
	Pubkey string

	// IsReasoning marks internal reasoning/thinking output that is not meant
	// to be spoken aloud.
	IsReasoning bool

	// VoiceID is an optional per-message voice override. Empty means the
	// queue resolves the voice from its per-agent configuration.
	VoiceID string

	// CreatedAt is the message creation time as reported by the chat layer.
	CreatedAt time.Time
}

// TTSMessage is the immutable work item the playback queue derives from a
// [Message] once it has decided the message should be spoken. It is owned by
// the queue until consumed.
type TTSMessage struct {
	// ID is the originating message ID. Also the cache key.
	ID string

	// Content is the text to synthesise.
	Content string

	// VoiceID is the per-message voice override, if any.
	VoiceID string

	// AgentPubkey identifies the authoring agent, used for per-agent voice
	// lookup when VoiceID is empty.
	AgentPubkey string
}
