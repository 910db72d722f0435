package starboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ConfigStore is the durable backing for the registry. Implementations live
// in internal/storage; the persistence model is a full-list overwrite on
// every mutation.
type ConfigStore interface {
	// Load reads the whole config list. A missing store is initialized empty
	// and returns no error; malformed contents return *StorageFormatError.
	Load(ctx context.Context) ([]Config, error)

	// SaveAll overwrites the store with the given list.
	SaveAll(ctx context.Context, configs []Config) error
}

// Registry holds the configured starboards for the process. All mutations run
// under one mutex that also covers the store write, so concurrent
// register/unregister calls cannot interleave their read-modify-write.
type Registry struct {
	log      *slog.Logger
	store    ConfigStore // nil disables persistence
	bus      *Bus
	defaults Options

	mu      sync.Mutex
	configs []Config
}

func NewRegistry(log *slog.Logger, store ConfigStore, bus *Bus, defaults Options) *Registry {
	if defaults.Emoji == "" {
		defaults.Emoji = "⭐"
	}
	if defaults.Threshold < 1 {
		defaults.Threshold = 5
	}
	return &Registry{
		log:      log,
		store:    store,
		bus:      bus,
		defaults: defaults,
	}
}

// Load populates the registry from the store. Called once at startup, before
// the pipeline starts. A *StorageFormatError is surfaced to the caller; the
// process must not run with an unreliable config set.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	configs, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.configs = configs
	r.mu.Unlock()

	r.log.Info("starboards_loaded", "count", len(configs))
	return nil
}

// Register creates a starboard for a channel, merging opts over the registry
// defaults. Fails with ErrDuplicateStarboard when the (channel, emoji) pair
// already exists; the registry and store are left untouched on any failure.
func (r *Registry) Register(ctx context.Context, channelID, guildID string, opts RegisterOptions) (Config, error) {
	if channelID == "" {
		return Config{}, fmt.Errorf("starboard: empty channel id")
	}

	cfg := Config{
		ChannelID: channelID,
		GuildID:   guildID,
		Options:   opts.merge(r.defaults),
	}
	if cfg.Options.Threshold < 1 {
		return Config{}, fmt.Errorf("starboard: threshold must be >= 1")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.configs {
		if existing.ChannelID == channelID && existing.Options.Emoji == cfg.Options.Emoji {
			return Config{}, ErrDuplicateStarboard
		}
	}

	next := make([]Config, len(r.configs), len(r.configs)+1)
	copy(next, r.configs)
	next = append(next, cfg)

	if err := r.persist(ctx, next); err != nil {
		return Config{}, err
	}
	r.configs = next

	r.log.Info("starboard_registered",
		"channel_id", cfg.ChannelID,
		"guild_id", cfg.GuildID,
		"emoji", cfg.Options.Emoji,
		"threshold", cfg.Options.Threshold,
	)
	r.bus.Publish(Event{Kind: EventStarboardCreate, Config: cfg})
	return cfg, nil
}

// Unregister removes the starboard configured for a channel. Fails with
// ErrNotFound when none matches, mutating nothing.
func (r *Registry) Unregister(ctx context.Context, channelID string) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, cfg := range r.configs {
		if cfg.ChannelID == channelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Config{}, ErrNotFound
	}

	removed := r.configs[idx]
	next := make([]Config, 0, len(r.configs)-1)
	next = append(next, r.configs[:idx]...)
	next = append(next, r.configs[idx+1:]...)

	if err := r.persist(ctx, next); err != nil {
		return Config{}, err
	}
	r.configs = next

	r.log.Info("starboard_unregistered",
		"channel_id", removed.ChannelID,
		"emoji", removed.Options.Emoji,
	)
	r.bus.Publish(Event{Kind: EventStarboardDelete, Config: removed})
	return removed, nil
}

// FindByChannel returns the first starboard configured for a channel. This is
// the cheap pre-fetch filter on the hot packet path.
func (r *Registry) FindByChannel(channelID string) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.configs {
		if cfg.ChannelID == channelID {
			return cfg, true
		}
	}
	return Config{}, false
}

// FindByChannelAndEmoji returns the starboard for an exact (channel, emoji)
// pair. The emoji argument is the canonical key (see models.Emoji.Key).
func (r *Registry) FindByChannelAndEmoji(channelID, emoji string) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.configs {
		if cfg.ChannelID == channelID && cfg.Options.Emoji == emoji {
			return cfg, true
		}
	}
	return Config{}, false
}

// All returns a copy of the current config list.
func (r *Registry) All() []Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Config, len(r.configs))
	copy(out, r.configs)
	return out
}

// persist runs under r.mu.
func (r *Registry) persist(ctx context.Context, configs []Config) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveAll(ctx, configs); err != nil {
		return fmt.Errorf("starboard: persist failed: %w", err)
	}
	return nil
}
