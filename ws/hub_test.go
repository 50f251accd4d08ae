package ws

import (
	"encoding/json"
	"testing"
)

func newTestClient(hub *Hub) *Client {
	c := &Client{
		hub:    hub,
		connID: "test-" + string(rune('a'+len(hub.conns))),
		send:   make(chan []byte, sendBufferSize),
	}
	hub.addClient(c)
	return c
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case raw := <-c.send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err == nil {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func TestRoomFanOutExcludesEmitter(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	b := newTestClient(hub)
	a.setIdentity("user-a", "A", "srv")
	b.setIdentity("user-b", "B", "srv")

	room := ChannelRoom("voice-1")
	hub.JoinRoom(a, room)
	hub.JoinRoom(b, room)

	// The producer's own session must not receive its NEW_PRODUCER.
	hub.ToChannelExcept("voice-1", "user-a", OpNewProducer, map[string]string{"producerId": "p1"})

	if got := drain(a); len(got) != 0 {
		t.Fatalf("emitter received %d events, want 0", len(got))
	}
	got := drain(b)
	if len(got) != 1 {
		t.Fatalf("other member received %d events, want 1", len(got))
	}
	if got[0].Op != OpNewProducer {
		t.Fatalf("op = %s, want %s", got[0].Op, OpNewProducer)
	}
}

func TestRoomFanOutReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	b := newTestClient(hub)
	c := newTestClient(hub)
	hub.JoinRoom(a, ServerRoom("srv"))
	hub.JoinRoom(b, ServerRoom("srv"))
	// c never joins the room.

	hub.ToServer("srv", OpMessageReceived, map[string]string{"content": "hi"})

	for _, tc := range []struct {
		name   string
		client *Client
		want   int
	}{
		{"subscriber a", a, 1},
		{"subscriber b", b, 1},
		{"non-subscriber", c, 0},
	} {
		if got := len(drain(tc.client)); got != tc.want {
			t.Errorf("%s received %d events, want %d", tc.name, got, tc.want)
		}
	}
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	room := ServerRoom("srv")
	hub.JoinRoom(a, room)
	hub.LeaveRoom(a, room)

	hub.ToRoom(room, OpUserJoined, nil)

	if got := len(drain(a)); got != 0 {
		t.Fatalf("received %d events after leaving room, want 0", got)
	}
}

func TestToUserDeliversOnlyToBoundConnection(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.BindUser(a, "user-a")
	hub.BindUser(b, "user-b")

	hub.ToUser("user-a", OpExistingProducers, nil)

	if got := len(drain(a)); got != 1 {
		t.Fatalf("bound user received %d events, want 1", got)
	}
	if got := len(drain(b)); got != 0 {
		t.Fatalf("other user received %d events, want 0", got)
	}
}

func TestSequenceNumbersIncrease(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	hub.JoinRoom(a, ServerRoom("srv"))

	hub.ToServer("srv", OpUserJoined, nil)
	hub.ToServer("srv", OpUserLeft, nil)

	got := drain(a)
	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Seq >= got[1].Seq {
		t.Fatalf("seq not increasing: %d then %d", got[0].Seq, got[1].Seq)
	}
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub()

	a := newTestClient(hub)
	hub.BindUser(a, "user-a")
	hub.JoinRoom(a, ServerRoom("srv"))
	hub.JoinRoom(a, ChannelRoom("ch"))

	hub.removeClient(a)

	if members := hub.RoomMembers(ServerRoom("srv")); len(members) != 0 {
		t.Fatalf("server room still has %d members", len(members))
	}
	if members := hub.RoomMembers(ChannelRoom("ch")); len(members) != 0 {
		t.Fatalf("channel room still has %d members", len(members))
	}
	// ToUser after unregister must not panic on the closed channel.
	hub.ToUser("user-a", OpError, nil)
}
