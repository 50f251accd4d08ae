package ws

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/sfu"
)

// Hand-written fakes for the dispatcher's service interfaces.

type fakeSessions struct {
	joinErr      error
	leaveCalls   int
	leaveChCalls int
	channelType  models.ChannelType
}

func (f *fakeSessions) Join(_ context.Context, req *models.JoinServerRequest) (string, *models.User, []*models.ChannelNode, error) {
	if f.joinErr != nil {
		return "", nil, nil, f.joinErr
	}
	return "srv", &models.User{ID: req.UserID, Username: req.Username, Nickname: req.Nickname}, []*models.ChannelNode{}, nil
}

func (f *fakeSessions) Leave(context.Context, string, string) error {
	f.leaveCalls++
	return nil
}

func (f *fakeSessions) JoinChannel(_ context.Context, serverID, channelID, _, _ string) (*models.Channel, error) {
	typ := f.channelType
	if typ == "" {
		typ = models.ChannelTypeVoice
	}
	return &models.Channel{ID: channelID, ServerID: serverID, Type: typ}, nil
}

func (f *fakeSessions) LeaveChannel(context.Context, string, string) error {
	f.leaveChCalls++
	return nil
}

type fakeChannels struct{}

func (fakeChannels) Create(_ context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	return &models.Channel{ID: "new", ServerID: serverID, Name: req.Name, Type: models.ChannelType(req.Type)}, nil
}
func (fakeChannels) Update(_ context.Context, serverID, channelID string, _ *models.UpdateChannelRequest) (*models.Channel, error) {
	return &models.Channel{ID: channelID, ServerID: serverID}, nil
}
func (fakeChannels) Move(context.Context, string, string, *string, *int) error { return nil }
func (fakeChannels) Delete(context.Context, string, string) error              { return nil }

type fakeMessages struct{}

func (fakeMessages) Send(_ context.Context, _, channelID, userID, _, content string) (*models.Message, error) {
	return &models.Message{ID: "m1", ChannelID: channelID, UserID: userID, Content: content}, nil
}
func (fakeMessages) Fetch(context.Context, string, string, int) ([]models.Message, error) {
	return nil, nil
}

type fakeAdmin struct{}

func (fakeAdmin) ListUsers(context.Context, string) ([]models.UserWithRoles, error) { return nil, nil }
func (fakeAdmin) ListRoles(context.Context, string) ([]models.Role, error)          { return nil, nil }
func (fakeAdmin) AssignRole(context.Context, string, string, string, string) error  { return nil }

// fakeVoice mimics the Coordinator's observable side effects: a producer
// teardown during CleanupSession broadcasts PRODUCER_CLOSED to the
// channel room, exactly like the real SFU Coordinator.
type fakeVoice struct {
	hub       *Hub
	producers map[string]string // userID -> producerID
	cleanups  []string
}

func (f *fakeVoice) GetRouterCapabilities(string) sfu.RouterCapabilities {
	return sfu.RouterCapabilities{}
}
func (f *fakeVoice) CreateTransport(context.Context, string, string, string, sfu.Direction) (sfu.TransportDescriptor, error) {
	return sfu.TransportDescriptor{ID: "t1"}, nil
}
func (f *fakeVoice) ConnectTransport(context.Context, string, string, string, webrtc.DTLSParameters) error {
	return nil
}
func (f *fakeVoice) Produce(channelID, userID, _ string, _ webrtc.RTPCodecType, _ webrtc.RTPReceiveParameters) (string, error) {
	if f.producers == nil {
		f.producers = make(map[string]string)
	}
	f.producers[userID] = "p-" + userID
	f.hub.ToChannelExcept(channelID, userID, OpNewProducer, sfu.ProducerInfo{UserID: userID, ProducerID: "p-" + userID})
	return "p-" + userID, nil
}
func (f *fakeVoice) Consume(string, string, string, []webrtc.RTPCodecParameters) (sfu.ConsumerDescriptor, error) {
	return sfu.ConsumerDescriptor{}, nil
}
func (f *fakeVoice) ResumeConsumer(string, string, string) error { return nil }
func (f *fakeVoice) CloseProducer(string, string, string) error  { return nil }
func (f *fakeVoice) ExistingProducers(string, string) []sfu.ProducerInfo {
	return nil
}
func (f *fakeVoice) CleanupSession(channelID, userID string) {
	f.cleanups = append(f.cleanups, userID)
	if pid, ok := f.producers[userID]; ok {
		delete(f.producers, userID)
		f.hub.ToChannelExcept(channelID, "", OpProducerClosed, map[string]string{"producerId": pid, "userId": userID})
	}
}

type fakePerms struct {
	mask models.Permission
}

func (f fakePerms) Require(_ context.Context, _, _ string, flag models.Permission) (bool, error) {
	return f.mask.Has(flag), nil
}

func newTestDispatcher(t *testing.T, mask models.Permission) (*Dispatcher, *Hub, *fakeSessions, *fakeVoice) {
	t.Helper()
	hub := NewHub()
	sessions := &fakeSessions{}
	voice := &fakeVoice{hub: hub}
	d := NewDispatcher(hub, sessions, fakeChannels{}, fakeMessages{}, fakeAdmin{}, voice, fakePerms{mask: mask})
	return d, hub, sessions, voice
}

func ackOf(t *testing.T, events []Event) map[string]any {
	t.Helper()
	for _, ev := range events {
		if ev.Op == OpAck {
			result, ok := ev.Data.(map[string]any)
			if !ok {
				t.Fatalf("ack payload is %T, want object", ev.Data)
			}
			return result
		}
	}
	t.Fatalf("no ack among %d events", len(events))
	return nil
}

func TestDispatchRejectsUnknownOp(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, 0)
	c := newTestClient(hub)

	d.Dispatch(c, Event{Op: "NO_SUCH_OP", Ack: 1})

	result := ackOf(t, drain(c))
	if result["success"] != false {
		t.Fatalf("unknown op acked success=%v, want false", result["success"])
	}
}

func TestDispatchRequiresJoinBeforeMessaging(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, models.PermSendMessages)
	c := newTestClient(hub)

	d.Dispatch(c, Event{
		Op:   OpSendMessage,
		Data: map[string]any{"channelId": "ch", "content": "hello"},
		Ack:  1,
	})

	result := ackOf(t, drain(c))
	if result["success"] != false {
		t.Fatal("SEND_MESSAGE before JOIN_SERVER must nack")
	}
}

func TestDispatchDeniesMissingPermission(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, models.PermConnect) // no CREATE_CHANNEL
	c := newTestClient(hub)
	c.setIdentity("user-a", "A", "srv")

	d.Dispatch(c, Event{
		Op:   OpCreateChannel,
		Data: map[string]any{"name": "general", "type": "TEXT"},
		Ack:  1,
	})

	result := ackOf(t, drain(c))
	if result["success"] != false {
		t.Fatal("CREATE_CHANNEL without the flag must nack")
	}
}

func TestJoinServerFlow(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, models.PermConnect)

	other := newTestClient(hub)
	hub.JoinRoom(other, ServerRoom("srv"))

	c := newTestClient(hub)
	d.Dispatch(c, Event{
		Op:   OpUserJoinServer,
		Data: map[string]any{"userId": "user-a", "username": "alice", "nickname": "Alice", "credential": "s3cret"},
		Ack:  7,
	})

	events := drain(c)
	result := ackOf(t, events)
	if result["success"] != true {
		t.Fatalf("join nacked: %v", result)
	}
	if result["serverId"] != "srv" {
		t.Fatalf("serverId = %v, want srv", result["serverId"])
	}

	var sawTree bool
	for _, ev := range events {
		if ev.Op == OpChannelTreeUpdate {
			sawTree = true
		}
	}
	if !sawTree {
		t.Fatal("caller did not receive the initial CHANNEL_TREE_UPDATE")
	}

	otherEvents := drain(other)
	if len(otherEvents) != 1 || otherEvents[0].Op != OpUserJoined {
		t.Fatalf("other session got %v, want exactly one USER_JOINED", otherEvents)
	}

	if c.ServerID() != "srv" || c.UserID() != "user-a" {
		t.Fatalf("session state not set: server=%q user=%q", c.ServerID(), c.UserID())
	}
}

func TestJoinServerTwiceFails(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, models.PermConnect)
	c := newTestClient(hub)
	c.setIdentity("user-a", "A", "srv")

	d.Dispatch(c, Event{
		Op:   OpUserJoinServer,
		Data: map[string]any{"userId": "user-a", "username": "alice"},
		Ack:  1,
	})

	result := ackOf(t, drain(c))
	if result["success"] != false {
		t.Fatal("second JOIN_SERVER must nack")
	}
}

// Disconnect mid-produce must yield, in order: PRODUCER_CLOSED in the
// channel room, PRESENCE_UPDATE in the server room with the user out of
// the channel, then USER_LEFT.
func TestDisconnectCleanupOrdering(t *testing.T) {
	d, hub, sessions, voice := newTestDispatcher(t, models.PermConnect|models.PermSpeak)

	observer := newTestClient(hub)
	observer.setIdentity("user-b", "B", "srv")
	hub.BindUser(observer, "user-b")
	hub.JoinRoom(observer, ServerRoom("srv"))
	hub.JoinRoom(observer, ChannelRoom("voice-1"))

	c := newTestClient(hub)
	c.setIdentity("user-a", "A", "srv")
	c.setChannel("voice-1")
	hub.BindUser(c, "user-a")
	hub.JoinRoom(c, ServerRoom("srv"))
	hub.JoinRoom(c, ChannelRoom("voice-1"))
	voice.producers = map[string]string{"user-a": "p-a"}

	d.Disconnect(c)

	events := drain(observer)
	var ops []string
	for _, ev := range events {
		ops = append(ops, ev.Op)
	}
	want := []string{OpProducerClosed, OpPresenceUpdate, OpUserLeft}
	if len(ops) != len(want) {
		t.Fatalf("observer saw %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (full order %v)", i, ops[i], want[i], ops)
		}
	}

	if len(voice.cleanups) != 1 || voice.cleanups[0] != "user-a" {
		t.Fatalf("voice cleanup calls = %v", voice.cleanups)
	}
	if sessions.leaveChCalls != 1 || sessions.leaveCalls != 1 {
		t.Fatalf("presence calls: channel=%d server=%d, want 1/1", sessions.leaveChCalls, sessions.leaveCalls)
	}
}

// Two sessions in a voice channel: when A produces, the broker delivers
// exactly one NEW_PRODUCER to B and none to A.
func TestProduceFanOut(t *testing.T) {
	d, hub, _, _ := newTestDispatcher(t, models.PermConnect|models.PermSpeak)

	a := newTestClient(hub)
	a.setIdentity("user-a", "A", "srv")
	a.setChannel("voice-1")
	hub.BindUser(a, "user-a")
	hub.JoinRoom(a, ChannelRoom("voice-1"))

	b := newTestClient(hub)
	b.setIdentity("user-b", "B", "srv")
	b.setChannel("voice-1")
	hub.BindUser(b, "user-b")
	hub.JoinRoom(b, ChannelRoom("voice-1"))

	d.Dispatch(a, Event{
		Op:   OpProduce,
		Data: map[string]any{"transportId": "t1", "kind": "audio"},
		Ack:  1,
	})

	aEvents := drain(a)
	result := ackOf(t, aEvents)
	if result["success"] != true {
		t.Fatalf("produce nacked: %v", result)
	}
	for _, ev := range aEvents {
		if ev.Op == OpNewProducer {
			t.Fatal("producer received its own NEW_PRODUCER")
		}
	}

	var newProducers int
	for _, ev := range drain(b) {
		if ev.Op == OpNewProducer {
			newProducers++
		}
	}
	if newProducers != 1 {
		t.Fatalf("B received %d NEW_PRODUCER events, want 1", newProducers)
	}
}
