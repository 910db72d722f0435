package models

import "encoding/json"

// RawPacket is a single gateway dispatch exactly as it came off the socket:
// the event name and its undecoded payload. Payloads stay raw until the
// pipeline has decided the event is worth decoding.
type RawPacket struct {
	Type string
	Data json.RawMessage
}

// Emoji as it appears in gateway payloads and message reaction state. Unicode
// emoji have only Name set; custom emoji carry a snowflake ID as well.
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated"`
}

// Key returns the canonical identifier used to match an emoji against a
// starboard configuration: the bare name for unicode emoji, "name:id" for
// custom ones.
func (e Emoji) Key() string {
	if e.ID == "" {
		return e.Name
	}
	return e.Name + ":" + e.ID
}

// Matches reports whether this emoji is the one a starboard was configured
// with. Configurations may hold a unicode emoji, a "name:id" pair, or just a
// custom emoji ID.
func (e Emoji) Matches(configured string) bool {
	if configured == "" {
		return false
	}
	if e.ID != "" {
		return configured == e.Key() || configured == e.ID || configured == e.Name
	}
	return configured == e.Name
}

// APIPath is the reaction's path segment for REST calls. Unicode emoji are
// sent as-is (callers URL-escape), custom emoji as "name:id".
func (e Emoji) APIPath() string {
	return e.Key()
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Bot           bool   `json:"bot"`
}

type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Type    int    `json:"type"`
	Name    string `json:"name"`
}

// Reaction is the per-emoji summary Discord keeps on a message.
type Reaction struct {
	Count int    `json:"count"`
	Me    bool   `json:"me"`
	Emoji *Emoji `json:"emoji"`
}

type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	GuildID   string     `json:"guild_id"`
	Author    User       `json:"author"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
	Reactions []Reaction `json:"reactions"`
}

// ReactionCount returns the summary count the message itself carries for an
// emoji. Zero when the emoji is not present.
func (m *Message) ReactionCount(emoji string) int {
	for _, r := range m.Reactions {
		if r.Emoji != nil && r.Emoji.Matches(emoji) {
			return r.Count
		}
	}
	return 0
}

// ReactionPacket is the payload shape shared by MESSAGE_REACTION_ADD,
// MESSAGE_REACTION_REMOVE and MESSAGE_REACTION_REMOVE_ALL. UserID is absent
// on remove-all.
type ReactionPacket struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id"`
	Emoji     Emoji  `json:"emoji"`
}
