package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"starboard-bot/internal/starboard"
)

func testConfig(channelID, emoji string, threshold int) starboard.Config {
	return starboard.Config{
		ChannelID: channelID,
		GuildID:   "1",
		Options: starboard.Options{
			Emoji:      emoji,
			Threshold:  threshold,
			StarBotMsg: true,
		},
	}
}

func TestFileStore_MissingFileInitializedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starboards.json")
	store := NewFileStore(path)

	configs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("expected empty list, got %d configs", len(configs))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected empty array on disk, got %q", data)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starboards.json")
	store := NewFileStore(path)

	want := []starboard.Config{
		testConfig("100", "⭐", 5),
		testConfig("200", "🔥", 3),
		testConfig("100", "🔥", 10),
	}
	if err := store.SaveAll(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d configs, got %d", len(want), len(got))
	}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.ChannelID == w.ChannelID && g.Options.Emoji == w.Options.Emoji {
				found = true
				if g.Options.Threshold != w.Options.Threshold {
					t.Errorf("config (%s,%s): threshold %d, want %d",
						w.ChannelID, w.Options.Emoji, g.Options.Threshold, w.Options.Threshold)
				}
			}
		}
		if !found {
			t.Errorf("config (%s,%s) missing after round trip", w.ChannelID, w.Options.Emoji)
		}
	}
}

func TestFileStore_SaveOverwritesWholeList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starboards.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.SaveAll(ctx, []starboard.Config{testConfig("100", "⭐", 5)}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveAll(ctx, []starboard.Config{testConfig("200", "🔥", 3)}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ChannelID != "200" {
		t.Errorf("second save did not overwrite the first: %+v", got)
	}
}

func TestFileStore_MalformedFileIsFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starboards.json")
	if err := os.WriteFile(path, []byte(`{"not":"a list"`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).Load(context.Background())
	var formatErr *starboard.StorageFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *StorageFormatError, got %v", err)
	}
	if formatErr.Source != path {
		t.Errorf("format error names %q, want %q", formatErr.Source, path)
	}
}

// Concurrent registrations through the registry must all survive in the final
// file: the registry serializes the read-modify-write, the store only ever
// sees complete lists.
func TestFileStore_ConcurrentRegistrationsAllPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starboards.json")
	store := NewFileStore(path)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := starboard.NewRegistry(log, store, starboard.NewBus(log), starboard.Options{})

	channels := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(channelID string) {
			defer wg.Done()
			if _, err := registry.Register(context.Background(), channelID, "g", starboard.RegisterOptions{}); err != nil {
				t.Errorf("register %s: %v", channelID, err)
			}
		}(ch)
	}
	wg.Wait()

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(channels) {
		t.Fatalf("expected %d configs on disk, got %d", len(channels), len(got))
	}
	seen := make(map[string]bool)
	for _, cfg := range got {
		seen[cfg.ChannelID] = true
	}
	for _, ch := range channels {
		if !seen[ch] {
			t.Errorf("channel %s missing from final file", ch)
		}
	}
}
