package starboard

// Options are the behavior knobs of a single starboard.
type Options struct {
	// Emoji the starboard counts. Unicode emoji ("⭐") or "name:id" for
	// custom emoji.
	Emoji string `json:"emoji"`

	// Threshold is the distinct-reactor count at which a message becomes
	// starboard-worthy. Always >= 1.
	Threshold int `json:"threshold"`

	// SelfStar controls whether an author's reaction on their own message
	// counts toward the threshold.
	SelfStar bool `json:"self_star"`

	// StarBotMsg controls whether bot-authored messages can be starred at all.
	StarBotMsg bool `json:"star_bot_msg"`
}

// Config is one configured starboard channel. The (ChannelID, Emoji) pair is
// unique across the registry.
type Config struct {
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id"`
	Options   Options `json:"options"`
}

// RegisterOptions are the caller-supplied overrides for Register. Zero/nil
// fields fall back to the registry defaults.
type RegisterOptions struct {
	Emoji      string
	Threshold  int
	SelfStar   *bool
	StarBotMsg *bool
}

func (o RegisterOptions) merge(defaults Options) Options {
	out := defaults
	if o.Emoji != "" {
		out.Emoji = o.Emoji
	}
	if o.Threshold > 0 {
		out.Threshold = o.Threshold
	}
	if o.SelfStar != nil {
		out.SelfStar = *o.SelfStar
	}
	if o.StarBotMsg != nil {
		out.StarBotMsg = *o.StarBotMsg
	}
	return out
}
