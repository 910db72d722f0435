package starboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"starboard-bot/internal/models"
)

// fakeResolver counts fetches so tests can assert the cheap-filter contract:
// packets for unconfigured channels must never reach the network.
type fakeResolver struct {
	channels map[string]*models.Channel
	messages map[string]*models.Message
	users    map[string]*models.User

	channelFetches int
	messageFetches int
	userFetches    int
	countCalls     int
}

func (f *fakeResolver) FetchChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	f.channelFetches++
	if ch, ok := f.channels[channelID]; ok {
		return ch, nil
	}
	return nil, errors.New("channel not found")
}

func (f *fakeResolver) FetchMessage(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	f.messageFetches++
	if msg, ok := f.messages[messageID]; ok {
		return msg, nil
	}
	return nil, errors.New("message not found")
}

func (f *fakeResolver) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	f.userFetches++
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (f *fakeResolver) CountReactors(ctx context.Context, channelID, messageID string, emoji models.Emoji) (int, error) {
	f.countCalls++
	return 1, nil
}

func (f *fakeResolver) totalFetches() int {
	return f.channelFetches + f.messageFetches + f.userFetches
}

func newTestPipeline(t *testing.T, resolver *fakeResolver) (*Normalizer, *Registry, *Bus) {
	t.Helper()
	log := testLogger()
	bus := NewBus(log)
	registry := NewRegistry(log, nil, bus, Options{Emoji: "⭐", Threshold: 3, StarBotMsg: true})
	agg := NewAggregator(log, bus, resolver)
	return NewNormalizer(log, registry, resolver, agg), registry, bus
}

func resolvedWorld() *fakeResolver {
	return &fakeResolver{
		channels: map[string]*models.Channel{
			"100": {ID: "100", GuildID: "1"},
		},
		messages: map[string]*models.Message{
			"m1": {ID: "m1", ChannelID: "100", Author: models.User{ID: "author"}},
		},
		users: map[string]*models.User{
			"reactor": {ID: "reactor"},
			"author":  {ID: "author"},
		},
	}
}

func reactionPacket(t *testing.T, typ, channelID, messageID, userID, emoji string) models.RawPacket {
	t.Helper()
	payload := map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"emoji":      map[string]string{"name": emoji},
	}
	if userID != "" {
		payload["user_id"] = userID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal packet: %v", err)
	}
	return models.RawPacket{Type: typ, Data: data}
}

func TestProcess_UnconfiguredChannelNeverFetches(t *testing.T) {
	resolver := resolvedWorld()
	n, _, _ := newTestPipeline(t, resolver)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "reactor", "⭐"))

	if resolver.totalFetches() != 0 {
		t.Errorf("packet for unconfigured channel triggered %d fetches", resolver.totalFetches())
	}
}

func TestProcess_IrrelevantPacketTypesIgnored(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, _ := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})

	n.Process(context.Background(), models.RawPacket{Type: "MESSAGE_CREATE", Data: json.RawMessage(`{"channel_id":"100"}`)})
	n.Process(context.Background(), models.RawPacket{Type: "TYPING_START", Data: json.RawMessage(`{"channel_id":"100"}`)})

	if resolver.totalFetches() != 0 {
		t.Errorf("non-reaction packets triggered %d fetches", resolver.totalFetches())
	}
}

func TestProcess_EmojiMismatchDiscardsBeforeFetch(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, _ := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "reactor", "🔥"))

	if resolver.totalFetches() != 0 {
		t.Errorf("emoji mismatch triggered %d fetches", resolver.totalFetches())
	}
}

func TestProcess_AddResolvesAndEmits(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionAdd)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "reactor", "⭐"))

	if len(*events) != 1 {
		t.Fatalf("expected 1 add event, got %d", len(*events))
	}
	ev := (*events)[0]
	if ev.Message.ID != "m1" || ev.User.ID != "reactor" {
		t.Errorf("event carries wrong entities: %+v", ev)
	}
	if ev.Message.GuildID != "1" {
		t.Errorf("guild id not backfilled from channel: %q", ev.Message.GuildID)
	}
	if resolver.channelFetches != 1 || resolver.messageFetches != 1 || resolver.userFetches != 1 {
		t.Errorf("expected one fetch per entity, got ch=%d msg=%d user=%d",
			resolver.channelFetches, resolver.messageFetches, resolver.userFetches)
	}
}

func TestProcess_DeletedMessageDiscardedSilently(t *testing.T) {
	resolver := resolvedWorld()
	delete(resolver.messages, "m1")
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionAdd)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "reactor", "⭐"))

	if len(*events) != 0 {
		t.Errorf("unresolvable packet emitted %d events", len(*events))
	}
	if resolver.userFetches != 0 {
		t.Error("user fetched after message resolution already failed")
	}
}

func TestProcess_UnknownUserDiscardedSilently(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionAdd)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "ghost", "⭐"))

	if len(*events) != 0 {
		t.Errorf("packet with unknown user emitted %d events", len(*events))
	}
}

func TestProcess_RemoveEmits(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionRemove)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_REMOVE", "100", "m1", "reactor", "⭐"))

	if len(*events) != 1 {
		t.Fatalf("expected 1 remove event, got %d", len(*events))
	}
}

func TestProcess_RemoveAllEmits(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionRemoveAll)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_REMOVE_ALL", "100", "m1", "", ""))

	if len(*events) != 1 {
		t.Fatalf("expected 1 remove-all event, got %d", len(*events))
	}
	if resolver.userFetches != 0 {
		t.Error("remove-all should not resolve a user")
	}
}

func TestProcess_RemoveAllWrongChannelNeverEmits(t *testing.T) {
	resolver := resolvedWorld()
	resolver.channels["999"] = &models.Channel{ID: "999", GuildID: "1"}
	resolver.messages["m2"] = &models.Message{ID: "m2", ChannelID: "999"}
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})
	events := collect(bus, EventReactionRemoveAll)

	n.Process(context.Background(), reactionPacket(t, "MESSAGE_REACTION_REMOVE_ALL", "999", "m2", "", ""))

	if len(*events) != 0 {
		t.Errorf("remove-all for non-starboard channel emitted %d events", len(*events))
	}
	if resolver.totalFetches() != 0 {
		t.Error("remove-all for non-starboard channel triggered fetches")
	}
}

func TestProcess_MalformedPayloadDiscarded(t *testing.T) {
	resolver := resolvedWorld()
	n, registry, _ := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})

	n.Process(context.Background(), models.RawPacket{Type: "MESSAGE_REACTION_ADD", Data: json.RawMessage(`{"channel_id":`)})

	if resolver.totalFetches() != 0 {
		t.Error("malformed payload triggered fetches")
	}
}

func TestRunAndEnqueue_DeliversInArrivalOrder(t *testing.T) {
	resolver := resolvedWorld()
	resolver.messages["m2"] = &models.Message{ID: "m2", ChannelID: "100", Author: models.User{ID: "author"}}
	n, registry, bus := newTestPipeline(t, resolver)
	_, _ = registry.Register(context.Background(), "100", "1", RegisterOptions{})

	var got []string
	done := make(chan struct{})
	bus.Subscribe(EventReactionAdd, func(ev Event) {
		got = append(got, ev.Message.ID)
		if len(got) == 2 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Enqueue(reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m1", "reactor", "⭐"))
	n.Enqueue(reactionPacket(t, "MESSAGE_REACTION_ADD", "100", "m2", "reactor", "⭐"))

	<-done
	if got[0] != "m1" || got[1] != "m2" {
		t.Errorf("events out of arrival order: %v", got)
	}
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(testLogger(), nil, nil, Options{}); !errors.Is(err, ErrMissingClient) {
		t.Fatalf("expected ErrMissingClient, got %v", err)
	}
}

func TestNew_WiresService(t *testing.T) {
	svc, err := New(testLogger(), resolvedWorld(), nil, Options{Emoji: "⭐", Threshold: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Bus == nil || svc.Registry == nil || svc.Aggregator == nil || svc.Normalizer == nil {
		t.Error("service wiring incomplete")
	}
}
