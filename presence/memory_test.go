package presence

import (
	"context"
	"testing"
)

func TestMemoryStoreJoinChannelMovesMembership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.JoinServer(ctx, "s1", "u1", "nick"); err != nil {
		t.Fatalf("JoinServer: %v", err)
	}
	if err := store.JoinChannel(ctx, "s1", "c1", "u1", "nick"); err != nil {
		t.Fatalf("JoinChannel c1: %v", err)
	}

	members, err := store.ChannelMembers(ctx, "c1")
	if err != nil || len(members) != 1 || members[0] != "u1" {
		t.Fatalf("expected u1 in c1, got %v (err=%v)", members, err)
	}

	if err := store.JoinChannel(ctx, "s1", "c2", "u1", "nick"); err != nil {
		t.Fatalf("JoinChannel c2: %v", err)
	}

	if members, _ := store.ChannelMembers(ctx, "c1"); len(members) != 0 {
		t.Fatalf("expected u1 removed from c1, got %v", members)
	}
	if members, _ := store.ChannelMembers(ctx, "c2"); len(members) != 1 {
		t.Fatalf("expected u1 in c2, got %v", members)
	}
}

func TestMemoryStoreLeaveServerClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.JoinServer(ctx, "s1", "u1", "nick")
	_ = store.JoinChannel(ctx, "s1", "c1", "u1", "nick")

	if err := store.LeaveServer(ctx, "s1", "u1"); err != nil {
		t.Fatalf("LeaveServer: %v", err)
	}

	if members, _ := store.ServerMembers(ctx, "s1"); len(members) != 0 {
		t.Fatalf("expected empty server presence, got %v", members)
	}
	if members, _ := store.ChannelMembers(ctx, "c1"); len(members) != 0 {
		t.Fatalf("expected empty channel presence, got %v", members)
	}
	rec, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil presence record, got %+v", rec)
	}
}

func TestMemoryStoreLeaveChannelKeepsServerMembership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.JoinServer(ctx, "s1", "u1", "nick")
	_ = store.JoinChannel(ctx, "s1", "c1", "u1", "nick")

	if err := store.LeaveChannel(ctx, "s1", "u1"); err != nil {
		t.Fatalf("LeaveChannel: %v", err)
	}

	if members, _ := store.ChannelMembers(ctx, "c1"); len(members) != 0 {
		t.Fatalf("expected u1 removed from c1, got %v", members)
	}
	if members, _ := store.ServerMembers(ctx, "s1"); len(members) != 1 {
		t.Fatalf("expected u1 still on server, got %v", members)
	}
}
