package starboard

import (
	"context"
	"log/slog"

	"starboard-bot/internal/models"
)

// Counter is the one narrow capability the aggregator needs from the
// platform: the live number of distinct users who reacted with an emoji.
// Reading platform truth instead of keeping a local counter is what makes
// the aggregator stateless and immune to count drift.
type Counter interface {
	CountReactors(ctx context.Context, channelID, messageID string, emoji models.Emoji) (int, error)
}

// Aggregator applies self-star and bot-message policy to resolved reaction
// events and publishes them with their live vote count. It holds no state
// between events; whether to act on a threshold crossing is the subscriber's
// decision.
type Aggregator struct {
	log     *slog.Logger
	bus     *Bus
	counter Counter
}

func NewAggregator(log *slog.Logger, bus *Bus, counter Counter) *Aggregator {
	return &Aggregator{log: log, bus: bus, counter: counter}
}

// OnReactionAdd publishes starboardReactionAdd for a resolved reaction.
//
// Bot-authored messages with StarBotMsg disabled suppress the event entirely.
// A self-star with SelfStar disabled still publishes (the platform reaction
// exists and subscribers may want to observe it) but is marked non-counting
// and skips the live-count read.
func (a *Aggregator) OnReactionAdd(ctx context.Context, cfg Config, msg *models.Message, user *models.User) {
	if !cfg.Options.StarBotMsg && msg.Author.Bot {
		a.log.Debug("reaction_add_suppressed_bot_author",
			"channel_id", msg.ChannelID,
			"message_id", msg.ID,
		)
		return
	}

	ev := Event{
		Kind:     EventReactionAdd,
		Config:   cfg,
		Message:  msg,
		User:     user,
		Emoji:    cfg.Options.Emoji,
		Counting: true,
	}

	if !cfg.Options.SelfStar && user.ID == msg.Author.ID {
		ev.Counting = false
		a.log.Debug("self_star_not_counted",
			"message_id", msg.ID,
			"user_id", user.ID,
		)
	} else {
		ev.Count = a.liveCount(ctx, msg, cfg)
	}

	a.bus.Publish(ev)
}

// OnReactionRemove publishes starboardReactionRemove unconditionally once the
// event is resolved. No suppression policy applies on removal; whether a
// removed self-star mattered is a threshold concern handled downstream.
func (a *Aggregator) OnReactionRemove(ctx context.Context, cfg Config, msg *models.Message, user *models.User) {
	a.bus.Publish(Event{
		Kind:     EventReactionRemove,
		Config:   cfg,
		Message:  msg,
		User:     user,
		Emoji:    cfg.Options.Emoji,
		Count:    a.liveCount(ctx, msg, cfg),
		Counting: true,
	})
}

// OnReactionRemoveAll publishes starboardReactionRemoveAll.
func (a *Aggregator) OnReactionRemoveAll(ctx context.Context, cfg Config, msg *models.Message) {
	a.bus.Publish(Event{
		Kind:    EventReactionRemoveAll,
		Config:  cfg,
		Message: msg,
	})
}

// liveCount reads the distinct-reactor count from the platform. When that
// fetch fails the reaction summary on the just-resolved message is close
// enough: it was read from live state moments ago.
func (a *Aggregator) liveCount(ctx context.Context, msg *models.Message, cfg Config) int {
	count, err := a.counter.CountReactors(ctx, msg.ChannelID, msg.ID, emojiFromKey(cfg.Options.Emoji))
	if err != nil {
		a.log.Debug("reactor_count_fetch_failed",
			"message_id", msg.ID,
			"emoji", cfg.Options.Emoji,
			"error", err,
		)
		return msg.ReactionCount(cfg.Options.Emoji)
	}
	return count
}

// emojiFromKey rebuilds a models.Emoji from a configured emoji string
// ("⭐" or "name:id").
func emojiFromKey(key string) models.Emoji {
	for i := len(key) - 1; i > 0; i-- {
		if key[i] == ':' {
			return models.Emoji{Name: key[:i], ID: key[i+1:]}
		}
	}
	return models.Emoji{Name: key}
}
