package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// availabilitySnapshot mirrors the shape of the encoder availability
// file the server watches at runtime, reduced to what the tests need.
type availabilitySnapshot struct {
	Recommended string `toml:"recommended_codec"`
	Backends    int    `toml:"backends"`
}

func loadSnapshot(path string) (availabilitySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return availabilitySnapshot{}, err
	}
	var snap availabilitySnapshot
	err = toml.Unmarshal(data, &snap)
	return snap, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeSnapshot(t *testing.T, path, codec string, backends int) {
	t.Helper()
	content := fmt.Appendf(nil, "recommended_codec = %q\nbackends = %d\n", codec, backends)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newSnapshotFile(t *testing.T) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "availability_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	return tmpFile.Name()
}

func TestWatcherBasicReload(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	received := make(chan availabilitySnapshot, 1)
	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
	)

	watcher.OnReload(func(snap availabilitySnapshot) {
		received <- snap
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)

	writeSnapshot(t, path, "av1", 3)

	select {
	case snap := <-received:
		if snap.Recommended != "av1" || snap.Backends != 3 {
			t.Errorf("got %+v, want recommended=av1, backends=3", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot reload")
	}
}

func TestWatcherLoadsFreshOnEveryChange(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	var loadCount atomic.Int32
	loader := func(path string) (availabilitySnapshot, error) {
		loadCount.Add(1)
		return loadSnapshot(path)
	}

	received := make(chan availabilitySnapshot, 10)
	watcher := NewConfigWatcher(
		path,
		loader,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
	)

	watcher.OnReload(func(snap availabilitySnapshot) {
		received <- snap
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	writeSnapshot(t, path, "vp9", 2)
	<-received

	time.Sleep(100 * time.Millisecond)
	writeSnapshot(t, path, "av1", 4)
	snap := <-received

	// Handlers must see the latest file contents, never a cached load
	if snap.Recommended != "av1" || snap.Backends != 4 {
		t.Errorf("got %+v, want the second write", snap)
	}
	if got := loadCount.Load(); got < 2 {
		t.Errorf("expected at least 2 loads, got %d", got)
	}
}

func TestWatcherMultipleHandlers(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	var count atomic.Int32
	var snaps []availabilitySnapshot
	var mu sync.Mutex

	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
	)

	for range 3 {
		watcher.OnReload(func(snap availabilitySnapshot) {
			count.Add(1)
			mu.Lock()
			snaps = append(snaps, snap)
			mu.Unlock()
		})
	}

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	writeSnapshot(t, path, "av1", 2)

	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handlers called, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, snap := range snaps {
		if snap.Recommended != "av1" || snap.Backends != 2 {
			t.Errorf("handler %d got wrong snapshot: %+v", i, snap)
		}
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	var count1, count2 atomic.Int32
	var last1, last2 atomic.Int32
	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
	)

	watcher.OnReload(func(snap availabilitySnapshot) {
		last1.Store(int32(snap.Backends))
		count1.Add(1)
	})
	unsub2 := watcher.OnReload(func(snap availabilitySnapshot) {
		last2.Store(int32(snap.Backends))
		count2.Add(1)
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// First change reaches both handlers
	time.Sleep(100 * time.Millisecond)
	writeSnapshot(t, path, "vp9", 10)
	time.Sleep(200 * time.Millisecond)

	unsub2()

	// Second change reaches only the first
	writeSnapshot(t, path, "av1", 20)
	time.Sleep(200 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
	if got := last1.Load(); got != 20 {
		t.Errorf("handler1: expected last backends 20, got %d", got)
	}
	if got := last2.Load(); got != 10 {
		t.Errorf("handler2: expected last backends 10, got %d", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	errorReceived := make(chan error, 1)
	snapReceived := make(chan availabilitySnapshot, 1)

	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
		WithErrorHandler[availabilitySnapshot](func(err error) {
			errorReceived <- err
		}),
	)

	watcher.OnReload(func(snap availabilitySnapshot) {
		snapReceived <- snap
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// Corrupt the file
	time.Sleep(100 * time.Millisecond)
	if writeErr := os.WriteFile(path, []byte("invalid toml [[["), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case <-errorReceived:
		// Expected
	case <-snapReceived:
		t.Fatal("reload handler should not be called on a load error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 0)

	var count atomic.Int32
	var last atomic.Int32

	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](200*time.Millisecond),
	)

	watcher.OnReload(func(snap availabilitySnapshot) {
		count.Add(1)
		last.Store(int32(snap.Backends))
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// Rapid rewrites within the debounce window collapse to one reload
	time.Sleep(100 * time.Millisecond)
	for i := 1; i <= 5; i++ {
		writeSnapshot(t, path, "vp8", i)
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final backends 5, got %d", got)
	}
}

func TestWatcherThreadSafety(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 0)

	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](10*time.Millisecond),
	)

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := watcher.OnReload(func(_ availabilitySnapshot) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	// Rewrite the file while handlers churn
	for i := range 10 {
		writeSnapshot(t, path, "vp8", i)
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()
}

func TestWatcherStop(t *testing.T) {
	path := newSnapshotFile(t)
	writeSnapshot(t, path, "vp8", 1)

	var count atomic.Int32
	watcher := NewConfigWatcher(
		path,
		loadSnapshot,
		newTestLogger(),
		WithDebounce[availabilitySnapshot](50*time.Millisecond),
	)

	watcher.OnReload(func(_ availabilitySnapshot) {
		count.Add(1)
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}

	time.Sleep(100 * time.Millisecond)

	if stopErr := watcher.Stop(); stopErr != nil {
		t.Fatal(stopErr)
	}

	// Changes after stop must not trigger handlers
	writeSnapshot(t, path, "av1", 99)
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}
