package cache_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/voxline/internal/cache"
	"github.com/MrWong99/voxline/internal/observe"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newCache(t *testing.T, dir string) *cache.Cache {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c, err := cache.New(dir, cache.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCache_SaveAndLookupRoundTrip(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	audio := []byte{0x52, 0x49, 0x46, 0x46, 1, 2, 3}

	entry, err := c.Save(audio, "msg-1", "hello there", "voice-a", "pubkey-a")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if entry.MessageID != "msg-1" || entry.SizeBytes != int64(len(audio)) {
		t.Errorf("entry = %+v", entry)
	}

	if !c.HasCached("msg-1") {
		t.Error("HasCached = false after Save")
	}
	got, ok := c.AudioFor("msg-1")
	if !ok {
		t.Fatal("AudioFor miss after Save")
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %v, want %v", got, audio)
	}
}

func TestCache_MissForUnknownMessage(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	if _, ok := c.AudioFor("nope"); ok {
		t.Error("AudioFor hit for unknown message")
	}
	if c.HasCached("nope") {
		t.Error("HasCached = true for unknown message")
	}
}

func TestCache_DuplicateSaveKeepsFirstEntryForLookup(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	first := []byte{1, 1, 1}
	second := []byte{2, 2, 2}

	if _, err := c.Save(first, "msg-1", "take one", "v", "pk"); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if _, err := c.Save(second, "msg-1", "take two", "v", "pk"); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	if got := len(c.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2 (duplicates preserved)", got)
	}
	got, ok := c.AudioFor("msg-1")
	if !ok {
		t.Fatal("AudioFor miss")
	}
	if !bytes.Equal(got, first) {
		t.Errorf("lookup returned %v, want the first entry's audio %v", got, first)
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCache(t, dir)
	audio := []byte("persisted audio")
	if _, err := c.Save(audio, "msg-1", "text", "v", "pk"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := newCache(t, dir)
	got, ok := reopened.AudioFor("msg-1")
	if !ok {
		t.Fatal("AudioFor miss after reopen")
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %q, want %q", got, audio)
	}
}

func TestCache_CorruptManifestStartsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt manifest: %v", err)
	}

	c := newCache(t, dir)
	if got := len(c.Entries()); got != 0 {
		t.Errorf("entries = %d, want 0 after corrupt manifest", got)
	}
	// The cache must still be writable.
	if _, err := c.Save([]byte{1}, "msg-1", "t", "v", "pk"); err != nil {
		t.Fatalf("Save after corrupt manifest: %v", err)
	}
}

func TestCache_MissingBlobIsAMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCache(t, dir)
	entry, err := c.Save([]byte{1, 2}, "msg-1", "t", "v", "pk")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, entry.FileName)); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	if _, ok := c.AudioFor("msg-1"); ok {
		t.Error("AudioFor hit with missing blob")
	}
}

func TestCache_Delete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCache(t, dir)
	entry, err := c.Save([]byte{1}, "msg-1", "t", "v", "pk")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := c.Delete(entry); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.HasCached("msg-1") {
		t.Error("HasCached = true after Delete")
	}
	if _, err := os.Stat(filepath.Join(dir, entry.FileName)); !os.IsNotExist(err) {
		t.Error("blob file still exists after Delete")
	}
}

func TestCache_ClearAllRemovesEntriesAndBlobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCache(t, dir)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.Save([]byte(id), id, "t", "v", "pk"); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if got := len(c.Entries()); got != 0 {
		t.Errorf("entries = %d, want 0", got)
	}

	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, de := range des {
		if filepath.Ext(de.Name()) == ".audio" {
			t.Errorf("blob %s survived ClearAll", de.Name())
		}
	}

	// Entries stay gone across a reopen.
	reopened := newCache(t, dir)
	if got := len(reopened.Entries()); got != 0 {
		t.Errorf("entries after reopen = %d, want 0", got)
	}
}

func TestCache_MaterializeSynthesizesOnMiss(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	audio := []byte{9, 9, 9}

	got, err := c.Materialize(context.Background(), "msg-1", "text", "v", "pk",
		func(context.Context) ([]byte, error) { return audio, nil })
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %v", got)
	}
	if !c.HasCached("msg-1") {
		t.Error("Materialize did not save the synthesized audio")
	}
}

func TestCache_MaterializeUsesCache(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	cached := []byte{1, 2, 3}
	if _, err := c.Save(cached, "msg-1", "t", "v", "pk"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := c.Materialize(context.Background(), "msg-1", "t", "v", "pk",
		func(context.Context) ([]byte, error) {
			t.Error("synthesize called despite cache hit")
			return nil, nil
		})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !bytes.Equal(got, cached) {
		t.Errorf("audio = %v, want cached %v", got, cached)
	}
}

func TestCache_MaterializeSurfacesSynthesisError(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())
	wantErr := errors.New("provider down")

	_, err := c.Materialize(context.Background(), "msg-1", "t", "v", "pk",
		func(context.Context) ([]byte, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
	if c.HasCached("msg-1") {
		t.Error("failed synthesis left a cache entry behind")
	}
}

func TestCache_MaterializeCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	c := newCache(t, t.TempDir())

	var calls atomic.Int32
	gate := make(chan struct{})
	synth := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-gate
		return []byte{42}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Materialize(context.Background(), "msg-1", "t", "v", "pk", synth)
		}(i)
	}

	// Let the goroutines pile up on the flight before releasing it. The
	// single call inside the flight blocks on the gate, so every worker
	// either waits on the flight or has not reached it yet.
	close(gate)
	wg.Wait()

	if got := calls.Load(); got > 2 {
		t.Errorf("synthesize called %d times, want collapsed calls", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], []byte{42}) {
			t.Errorf("worker %d got %v", i, results[i])
		}
	}
}

func TestCache_MaterializeCountsLookupOnce(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c, err := cache.New(t.TempDir(), cache.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	synth := func(context.Context) ([]byte, error) { return []byte{0xAA}, nil }
	if _, err := c.Materialize(context.Background(), "msg-1", "hello", "v", "pk", synth); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if got := counterValue(t, reader, "voxline.cache.misses"); got != 1 {
		t.Errorf("misses = %d after one cold materialize, want 1", got)
	}
	if got := counterValue(t, reader, "voxline.cache.hits"); got != 0 {
		t.Errorf("hits = %d after one cold materialize, want 0", got)
	}

	if _, err := c.Materialize(context.Background(), "msg-1", "hello", "v", "pk", synth); err != nil {
		t.Fatalf("Materialize (warm): %v", err)
	}
	if got := counterValue(t, reader, "voxline.cache.misses"); got != 1 {
		t.Errorf("misses = %d after a warm materialize, want still 1", got)
	}
	if got := counterValue(t, reader, "voxline.cache.hits"); got != 1 {
		t.Errorf("hits = %d after a warm materialize, want 1", got)
	}
}

// counterValue sums the data points of an Int64 counter across one cumulative
// collection.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
