package services

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/akinalp/reson8/database"
	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/ws"
)

// fakePublisher records every broadcast a service makes.
type fakePublisher struct {
	events []publishedEvent
}

type publishedEvent struct {
	Room    string
	Op      string
	Payload any
}

func (f *fakePublisher) ToServer(serverID, event string, payload any) {
	f.events = append(f.events, publishedEvent{Room: ws.ServerRoom(serverID), Op: event, Payload: payload})
}

func (f *fakePublisher) ToChannelExcept(channelID, _, event string, payload any) {
	f.events = append(f.events, publishedEvent{Room: ws.ChannelRoom(channelID), Op: event, Payload: payload})
}

func (f *fakePublisher) ToUser(userID, event string, payload any) {
	f.events = append(f.events, publishedEvent{Room: "user:" + userID, Op: event, Payload: payload})
}

func (f *fakePublisher) ops() []string {
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Op
	}
	return out
}

// openTestDB runs the real migrations against a throwaway SQLite file and
// seeds one server row.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Conn.Exec(
		`INSERT INTO server (id, name, address, max_clients) VALUES ('srv', 'test', '', 0)`,
	); err != nil {
		t.Fatalf("seed server: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *database.DB, id string) {
	t.Helper()
	if _, err := db.Conn.Exec(
		`INSERT INTO users (id, username, nickname, credential_hash) VALUES (?, ?, ?, '')`,
		id, id, id,
	); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func seedChannel(t *testing.T, db *database.DB, id, typ string) {
	t.Helper()
	if _, err := db.Conn.Exec(
		`INSERT INTO channels (id, server_id, name, type, position) VALUES (?, 'srv', ?, ?, 0)`,
		id, id, typ,
	); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func TestSendPersistsAndBroadcastsToServerRoom(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "user-a")
	seedChannel(t, db, "general", "TEXT")

	pub := &fakePublisher{}
	svc := NewMessageService(durable.NewSQLiteMessageRepo(db.Conn), durable.NewSQLiteChannelRepo(db.Conn), pub)

	msg, err := svc.Send(context.Background(), "srv", "general", "user-a", "Alice", "hello there")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt == "" {
		t.Fatalf("message not fully persisted: %+v", msg)
	}

	if len(pub.events) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Op != ws.OpMessageReceived {
		t.Fatalf("op = %s, want %s", ev.Op, ws.OpMessageReceived)
	}
	if ev.Room != ws.ServerRoom("srv") {
		t.Fatalf("broadcast went to %s, want the full server room", ev.Room)
	}
}

func TestSendRejectsVoiceChannel(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "user-a")
	seedChannel(t, db, "lounge", "VOICE")

	pub := &fakePublisher{}
	svc := NewMessageService(durable.NewSQLiteMessageRepo(db.Conn), durable.NewSQLiteChannelRepo(db.Conn), pub)

	if _, err := svc.Send(context.Background(), "srv", "lounge", "user-a", "Alice", "hi"); err == nil {
		t.Fatal("sending text into a voice channel must fail")
	}
	if len(pub.events) != 0 {
		t.Fatal("failed send must not broadcast")
	}
}

func TestSendRejectsMissingChannel(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "user-a")

	svc := NewMessageService(durable.NewSQLiteMessageRepo(db.Conn), durable.NewSQLiteChannelRepo(db.Conn), &fakePublisher{})

	if _, err := svc.Send(context.Background(), "srv", "nope", "user-a", "Alice", "hi"); err == nil {
		t.Fatal("sending into a missing channel must fail")
	}
}

// 120 stored messages: the first page returns the newest 50 ascending,
// and paging with before = the first result's createdAt returns the next
// older 50.
func TestFetchPagination(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "user-a")
	seedChannel(t, db, "general", "TEXT")

	for i := 0; i < 120; i++ {
		createdAt := fmt.Sprintf("2026-01-01T10:%02d:%02d.000Z", i/60, i%60)
		if _, err := db.Conn.Exec(
			`INSERT INTO messages (id, channel_id, user_id, content, created_at) VALUES (?, 'general', 'user-a', ?, ?)`,
			fmt.Sprintf("msg-%03d", i), fmt.Sprintf("message %d", i), createdAt,
		); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}

	svc := NewMessageService(durable.NewSQLiteMessageRepo(db.Conn), durable.NewSQLiteChannelRepo(db.Conn), &fakePublisher{})
	ctx := context.Background()

	page1, err := svc.Fetch(ctx, "general", "", 50)
	if err != nil {
		t.Fatalf("fetch page 1: %v", err)
	}
	if len(page1) != 50 {
		t.Fatalf("page 1 length = %d, want 50", len(page1))
	}
	// Newest 50 are messages 70..119, ascending.
	if page1[0].Content != "message 70" || page1[49].Content != "message 119" {
		t.Fatalf("page 1 spans %q..%q, want message 70..message 119", page1[0].Content, page1[49].Content)
	}
	for i := 1; i < len(page1); i++ {
		if page1[i-1].CreatedAt >= page1[i].CreatedAt {
			t.Fatalf("page 1 not ascending at %d: %s >= %s", i, page1[i-1].CreatedAt, page1[i].CreatedAt)
		}
	}

	page2, err := svc.Fetch(ctx, "general", page1[0].CreatedAt, 50)
	if err != nil {
		t.Fatalf("fetch page 2: %v", err)
	}
	if len(page2) != 50 {
		t.Fatalf("page 2 length = %d, want 50", len(page2))
	}
	if page2[0].Content != "message 20" || page2[49].Content != "message 69" {
		t.Fatalf("page 2 spans %q..%q, want message 20..message 69", page2[0].Content, page2[49].Content)
	}
}

func TestFetchEmptyChannel(t *testing.T) {
	db := openTestDB(t)
	seedChannel(t, db, "general", "TEXT")

	svc := NewMessageService(durable.NewSQLiteMessageRepo(db.Conn), durable.NewSQLiteChannelRepo(db.Conn), &fakePublisher{})

	msgs, err := svc.Fetch(context.Background(), "general", "", 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages from an empty channel", len(msgs))
	}
}
