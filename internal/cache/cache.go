// Package cache persists synthesized audio across sessions so repeated
// messages replay without another provider round-trip.
//
// Layout on disk: one JSON manifest (manifest.json) plus one opaque blob file
// per entry in the same directory. The manifest is the source of truth and is
// reloaded on construction; blobs whose manifest entry is gone are orphans
// and are swept by ClearAll.
//
// Cache faults are never fatal: a corrupt manifest, a missing blob, or a
// failed write degrades to a cache miss, logged at warn level. Lookup is by
// message ID; when duplicate entries exist for one message the first manifest
// entry wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voxline/internal/observe"
)

const (
	manifestName = "manifest.json"
	blobSuffix   = ".audio"
)

// CachedAudio is one manifest entry describing a stored clip.
type CachedAudio struct {
	// ID uniquely identifies this entry and names its blob file.
	ID string `json:"id"`

	// MessageID is the chat message this clip was synthesized for. It is the
	// lookup key; the text or voice possibly having changed since is not
	// detected.
	MessageID string `json:"message_id"`

	// Text is the text that was synthesized, kept for inspection.
	Text string `json:"text"`

	// VoiceID and AgentPubkey record which voice spoke for which agent.
	VoiceID     string `json:"voice_id"`
	AgentPubkey string `json:"agent_pubkey"`

	// FileName is the blob file name relative to the cache directory.
	FileName string `json:"file_name"`

	// CreatedAt is when the entry was saved.
	CreatedAt time.Time `json:"created_at"`

	// SizeBytes is the blob length at save time.
	SizeBytes int64 `json:"size_bytes"`
}

// manifest is the on-disk JSON document.
type manifest struct {
	Entries []CachedAudio `json:"entries"`
}

// Cache is a durable audio store. Safe for concurrent use.
type Cache struct {
	dir     string
	logger  *slog.Logger
	metrics *observe.Metrics

	group singleflight.Group

	mu        sync.RWMutex
	entries   []CachedAudio
	byMessage map[string]int // messageID → first entry index
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New opens (or creates) the cache at dir and loads its manifest. A corrupt
// or missing manifest starts the cache empty; only an unusable directory is
// an error.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}

	c := &Cache{
		dir:       dir,
		logger:    slog.Default(),
		byMessage: make(map[string]int),
	}
	for _, fn := range opts {
		fn(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	c.loadManifest()
	return c, nil
}

// loadManifest reads manifest.json, tolerating absence and corruption.
func (c *Cache) loadManifest() {
	data, err := os.ReadFile(filepath.Join(c.dir, manifestName))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("reading cache manifest, starting empty", "error", err)
		}
		return
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.Warn("cache manifest corrupt, starting empty", "error", err)
		return
	}
	c.entries = m.Entries
	for i, e := range c.entries {
		if _, ok := c.byMessage[e.MessageID]; !ok {
			c.byMessage[e.MessageID] = i
		}
	}
}

// persistManifest writes the manifest atomically (temp file plus rename).
// Caller must hold c.mu.
func (c *Cache) persistManifest() error {
	data, err := json.MarshalIndent(manifest{Entries: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(c.dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, manifestName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Save stores audio for messageID and returns the new entry. Saving a
// message that is already cached appends another entry; lookups keep serving
// the first one.
func (c *Cache) Save(audio []byte, messageID, text, voiceID, agentPubkey string) (CachedAudio, error) {
	if messageID == "" {
		return CachedAudio{}, fmt.Errorf("cache: messageID must not be empty")
	}

	entry := CachedAudio{
		ID:          uuid.NewString(),
		MessageID:   messageID,
		Text:        text,
		VoiceID:     voiceID,
		AgentPubkey: agentPubkey,
		CreatedAt:   time.Now().UTC(),
		SizeBytes:   int64(len(audio)),
	}
	entry.FileName = entry.ID + blobSuffix

	if err := os.WriteFile(filepath.Join(c.dir, entry.FileName), audio, 0o644); err != nil {
		return CachedAudio{}, fmt.Errorf("cache: write blob: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	if _, ok := c.byMessage[messageID]; !ok {
		c.byMessage[messageID] = len(c.entries) - 1
	}
	if err := c.persistManifest(); err != nil {
		return CachedAudio{}, fmt.Errorf("cache: %w", err)
	}
	return entry, nil
}

// Load reads the blob for a known entry. A missing or unreadable blob is a
// miss, not an error.
func (c *Cache) Load(entry CachedAudio) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, entry.FileName))
	if err != nil {
		c.logger.Warn("reading cached audio", "id", entry.ID, "error", err)
		return nil, false
	}
	return data, true
}

// AudioFor returns the cached clip for messageID, if any.
func (c *Cache) AudioFor(messageID string) ([]byte, bool) {
	data, ok := c.lookup(messageID)
	c.metrics.RecordCacheLookup(context.Background(), ok)
	return data, ok
}

// lookup resolves messageID to blob bytes without recording metrics, so
// internal re-checks do not inflate the hit/miss counters.
func (c *Cache) lookup(messageID string) ([]byte, bool) {
	c.mu.RLock()
	idx, ok := c.byMessage[messageID]
	var entry CachedAudio
	if ok {
		entry = c.entries[idx]
	}
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return c.Load(entry)
}

// HasCached reports whether a manifest entry exists for messageID. It does
// not verify the blob is readable.
func (c *Cache) HasCached(messageID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byMessage[messageID]
	return ok
}

// Entries returns a snapshot of all manifest entries in order.
func (c *Cache) Entries() []CachedAudio {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CachedAudio, len(c.entries))
	copy(out, c.entries)
	return out
}

// Delete removes one entry and its blob.
func (c *Cache) Delete(entry CachedAudio) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.ID != entry.ID {
			kept = append(kept, e)
		}
	}
	c.entries = kept
	c.reindexLocked()

	if err := os.Remove(filepath.Join(c.dir, entry.FileName)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("removing cached audio blob", "id", entry.ID, "error", err)
	}
	if err := c.persistManifest(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// ClearAll removes every entry, every blob, and any orphaned blob files.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	c.byMessage = make(map[string]int)

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: list directory: %w", err)
	}
	for _, de := range dirEntries {
		if filepath.Ext(de.Name()) == blobSuffix {
			if err := os.Remove(filepath.Join(c.dir, de.Name())); err != nil {
				c.logger.Warn("removing cached audio blob", "file", de.Name(), "error", err)
			}
		}
	}
	if err := c.persistManifest(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// reindexLocked rebuilds the first-entry-wins lookup map. Caller must hold
// c.mu.
func (c *Cache) reindexLocked() {
	c.byMessage = make(map[string]int, len(c.entries))
	for i, e := range c.entries {
		if _, ok := c.byMessage[e.MessageID]; !ok {
			c.byMessage[e.MessageID] = i
		}
	}
}

// Materialize returns the cached clip for messageID, synthesizing and saving
// it on a miss. Concurrent calls for the same message are collapsed into one
// synthesis; all callers get the same bytes.
//
// A save failure after successful synthesis is logged and the fresh bytes are
// still returned, so playback is not blocked by a full disk.
func (c *Cache) Materialize(ctx context.Context, messageID, text, voiceID, agentPubkey string,
	synthesize func(ctx context.Context) ([]byte, error)) ([]byte, error) {

	if data, ok := c.AudioFor(messageID); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(messageID, func() (any, error) {
		// Re-check under the flight: another caller may have saved while we
		// waited for the flight slot. Unrecorded, the outer lookup already
		// counted this call.
		if data, ok := c.lookup(messageID); ok {
			return data, nil
		}
		data, err := synthesize(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := c.Save(data, messageID, text, voiceID, agentPubkey); err != nil {
			c.logger.Warn("caching synthesized audio", "message_id", messageID, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
