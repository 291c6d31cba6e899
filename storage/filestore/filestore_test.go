package filestore_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-catalog-client/storage"
	"github.com/jrsteele09/go-catalog-client/storage/filestore"
)

func TestRoundTripAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s1 := filestore.New(path)
	defer s1.Close()
	s2 := filestore.New(path)
	defer s2.Close()

	s1.Set("token", "abc123")

	got, ok := s2.Get("token")
	require.True(t, ok)
	require.Equal(t, "abc123", got)
}

func TestDeleteRemovesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := filestore.New(path)
	defer s.Close()

	s.Set("token", "abc123")
	s.Delete("token")

	_, ok := s.Get("token")
	require.False(t, ok)
}

func TestWatchSeesForeignWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writer := filestore.New(path)
	defer writer.Close()
	reader := filestore.New(path, filestore.WithPollInterval(10*time.Millisecond))
	defer reader.Close()

	var mu sync.Mutex
	var events []storage.Event
	cancel := reader.Watch(func(ev storage.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer cancel()

	writer.Set("app:lastActivity", "12345")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev.Key == "app:lastActivity" && ev.Value == "12345" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOwnWritesDoNotEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := filestore.New(path, filestore.WithPollInterval(10*time.Millisecond))
	defer s.Close()

	var mu sync.Mutex
	var events int
	cancel := s.Watch(func(storage.Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})
	defer cancel()

	s.Set("key", "value")

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, events, "a handle must not observe its own writes")
}

func TestUnreadableStateDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "state.json")
	s := filestore.New(path)
	defer s.Close()

	_, ok := s.Get("anything")
	require.False(t, ok)
}
