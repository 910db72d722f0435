package starboard

import (
	"context"
	"encoding/json"
	"log/slog"

	"starboard-bot/internal/models"
)

// Gateway packet types the pipeline consumes. Everything else is dropped
// before decoding.
const (
	packetReactionAdd       = "MESSAGE_REACTION_ADD"
	packetReactionRemove    = "MESSAGE_REACTION_REMOVE"
	packetReactionRemoveAll = "MESSAGE_REACTION_REMOVE_ALL"
)

// Resolver fetches the entities a reaction event refers to. Raw gateway
// packets carry only IDs, so this is the only path that works for messages
// never seen by any cache; implementations are expected to be cache-first.
type Resolver interface {
	FetchChannel(ctx context.Context, channelID string) (*models.Channel, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (*models.Message, error)
	FetchUser(ctx context.Context, userID string) (*models.User, error)
}

// Client is everything the pipeline needs from the platform.
type Client interface {
	Resolver
	Counter
}

// Normalizer turns raw gateway packets into resolved reaction events and
// hands them to the aggregator. Packets are consumed from a buffered queue by
// a single goroutine, preserving arrival order.
//
// The filter order matters: the registry lookup runs before any network
// fetch, because raw packets arrive for every channel the client can see and
// almost none of them concern a starboard.
type Normalizer struct {
	log        *slog.Logger
	registry   *Registry
	resolver   Resolver
	aggregator *Aggregator

	queue chan models.RawPacket
}

func NewNormalizer(log *slog.Logger, registry *Registry, resolver Resolver, aggregator *Aggregator) *Normalizer {
	return &Normalizer{
		log:        log,
		registry:   registry,
		resolver:   resolver,
		aggregator: aggregator,
		queue:      make(chan models.RawPacket, 4096),
	}
}

// Enqueue hands a raw packet to the pipeline. Called from the gateway read
// loop; drops the packet with a warning if the queue is full rather than
// stalling the socket.
func (n *Normalizer) Enqueue(pkt models.RawPacket) {
	select {
	case n.queue <- pkt:
	default:
		n.log.Warn("packet_queue_full", "packet_type", pkt.Type)
	}
}

// Run consumes the queue until ctx is canceled. Processing errors never
// escape: a packet that cannot be resolved is discarded, not retried.
func (n *Normalizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-n.queue:
			n.Process(ctx, pkt)
		}
	}
}

// Process runs the filter → resolve → aggregate pipeline for one packet.
func (n *Normalizer) Process(ctx context.Context, pkt models.RawPacket) {
	switch pkt.Type {
	case packetReactionAdd, packetReactionRemove, packetReactionRemoveAll:
	default:
		return
	}

	var p models.ReactionPacket
	if err := json.Unmarshal(pkt.Data, &p); err != nil {
		n.log.Debug("packet_decode_failed", "packet_type", pkt.Type, "error", err)
		return
	}
	if p.ChannelID == "" || p.MessageID == "" {
		return
	}

	// Cheap filter first: no starboard on this channel means no fetches at all.
	cfg, ok := n.registry.FindByChannel(p.ChannelID)
	if !ok {
		return
	}

	if pkt.Type != packetReactionRemoveAll {
		// A channel may carry several starboards with different emoji, so
		// re-resolve the config against the packet's emoji.
		cfg, ok = n.registry.FindByChannelAndEmoji(p.ChannelID, p.Emoji.Key())
		if !ok {
			return
		}
	}

	channel, err := n.resolver.FetchChannel(ctx, p.ChannelID)
	if err != nil {
		n.discard(pkt.Type, "channel", p.ChannelID, err)
		return
	}

	msg, err := n.resolver.FetchMessage(ctx, p.ChannelID, p.MessageID)
	if err != nil {
		n.discard(pkt.Type, "message", p.MessageID, err)
		return
	}
	if msg.GuildID == "" {
		msg.GuildID = channel.GuildID
	}

	if pkt.Type == packetReactionRemoveAll {
		n.aggregator.OnReactionRemoveAll(ctx, cfg, msg)
		return
	}

	user, err := n.resolver.FetchUser(ctx, p.UserID)
	if err != nil {
		n.discard(pkt.Type, "user", p.UserID, err)
		return
	}

	switch pkt.Type {
	case packetReactionAdd:
		n.aggregator.OnReactionAdd(ctx, cfg, msg, user)
	case packetReactionRemove:
		n.aggregator.OnReactionRemove(ctx, cfg, msg, user)
	}
}

// discard logs a dropped packet at debug level. Deleted messages and unknown
// users are routine here, not failures.
func (n *Normalizer) discard(packetType, entity, id string, err error) {
	n.log.Debug("reaction_event_discarded",
		"packet_type", packetType,
		"entity", entity,
		"id", id,
		"error", err,
	)
}
