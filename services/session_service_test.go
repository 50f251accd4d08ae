package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/akinalp/reson8/database"
	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/permission"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/presence"
)

type sessionFixture struct {
	svc      SessionService
	db       *database.DB
	users    durable.UserRepository
	roles    durable.RoleRepository
	channels durable.ChannelRepository
	presence presence.Store
}

func newSessionFixture(t *testing.T, adminInstanceID string) *sessionFixture {
	t.Helper()
	db := openTestDB(t)

	users := durable.NewSQLiteUserRepo(db.Conn)
	roles := durable.NewSQLiteRoleRepo(db.Conn)
	channels := durable.NewSQLiteChannelRepo(db.Conn)
	servers := durable.NewSQLiteServerRepo(db.Conn)
	pres := presence.NewMemoryStore()

	ctx := context.Background()
	if err := roles.Create(ctx, &models.Role{
		ID:          uuid.NewString(),
		ServerID:    "srv",
		Name:        "Everyone",
		Permissions: models.PermConnect | models.PermSpeak | models.PermSendMessages,
		IsDefault:   true,
	}); err != nil {
		t.Fatalf("seed default role: %v", err)
	}
	if err := roles.Create(ctx, &models.Role{
		ID:          uuid.NewString(),
		ServerID:    "srv",
		Name:        "Admin",
		Permissions: models.PermAdmin,
		PowerLevel:  100,
	}); err != nil {
		t.Fatalf("seed admin role: %v", err)
	}

	return &sessionFixture{
		svc:      NewSessionService(servers, users, roles, channels, pres, adminInstanceID),
		db:       db,
		users:    users,
		roles:    roles,
		channels: channels,
		presence: pres,
	}
}

func joinReq(t *testing.T, userID, credential string) *models.JoinServerRequest {
	t.Helper()
	req := &models.JoinServerRequest{UserID: userID, Username: "alice", Nickname: "Alice", Credential: credential}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate join request: %v", err)
	}
	return req
}

func TestJoinUpsertsUserAndRegistersPresence(t *testing.T) {
	f := newSessionFixture(t, "")
	ctx := context.Background()

	serverID, user, tree, err := f.svc.Join(ctx, joinReq(t, "install-1", "pw"))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if serverID != "srv" {
		t.Fatalf("serverID = %s, want srv", serverID)
	}
	if user.ID != "install-1" || user.Nickname != "Alice" {
		t.Fatalf("user = %+v", user)
	}
	if tree == nil {
		t.Fatal("initial tree is nil")
	}

	stored, err := f.users.GetByID(ctx, "install-1")
	if err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if stored.CredentialHash == "" || stored.CredentialHash == "pw" {
		t.Fatal("credential stored unhashed")
	}

	members, err := f.presence.ServerMembers(ctx, "srv")
	if err != nil || len(members) != 1 || members[0] != "install-1" {
		t.Fatalf("server presence = %v (%v)", members, err)
	}

	held, err := f.roles.GetByUserIDAndServer(ctx, "install-1", "srv")
	if err != nil || len(held) != 1 || !held[0].IsDefault {
		t.Fatalf("default role not assigned: %v (%v)", held, err)
	}
}

func TestJoinVerifiesCredentialOnReconnect(t *testing.T) {
	f := newSessionFixture(t, "")
	ctx := context.Background()

	if _, _, _, err := f.svc.Join(ctx, joinReq(t, "install-1", "pw")); err != nil {
		t.Fatalf("first join: %v", err)
	}

	_, _, _, err := f.svc.Join(ctx, joinReq(t, "install-1", "wrong"))
	if !errors.Is(err, pkg.ErrNotAuthenticated) {
		t.Fatalf("wrong credential err = %v, want ErrNotAuthenticated", err)
	}

	if _, _, _, err := f.svc.Join(ctx, joinReq(t, "install-1", "pw")); err != nil {
		t.Fatalf("reconnect with correct credential: %v", err)
	}
}

func TestAdminInstanceAutoAssignment(t *testing.T) {
	f := newSessionFixture(t, "admin-install")
	ctx := context.Background()

	if _, _, _, err := f.svc.Join(ctx, joinReq(t, "admin-install", "pw")); err != nil {
		t.Fatalf("join: %v", err)
	}

	mask, err := permission.New(f.roles).EffectiveMask(ctx, "admin-install", "srv")
	if err != nil {
		t.Fatalf("effective mask: %v", err)
	}
	if !mask.Has(models.PermKickUser) {
		t.Fatal("admin instance should pass every permission check via the ADMIN bit")
	}
}

func TestJoinChannelRejectsFullChannel(t *testing.T) {
	f := newSessionFixture(t, "")
	ctx := context.Background()

	maxUsers := 1
	if _, err := f.db.Conn.Exec(
		`INSERT INTO channels (id, server_id, name, type, position, max_users) VALUES ('small', 'srv', 'small', 'VOICE', 0, ?)`,
		maxUsers,
	); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	if err := f.presence.JoinServer(ctx, "srv", "other", "Other"); err != nil {
		t.Fatalf("presence: %v", err)
	}
	if err := f.presence.JoinChannel(ctx, "srv", "small", "other", "Other"); err != nil {
		t.Fatalf("presence: %v", err)
	}

	_, err := f.svc.JoinChannel(ctx, "srv", "small", "late", "Late")
	if !errors.Is(err, pkg.ErrPreconditionFailed) {
		t.Fatalf("full channel err = %v, want ErrPreconditionFailed", err)
	}

	// The occupant itself can always re-join (channel switches are
	// idempotent for the same user).
	if _, err := f.svc.JoinChannel(ctx, "srv", "small", "other", "Other"); err != nil {
		t.Fatalf("occupant re-join: %v", err)
	}
}

func TestJoinChannelThenLeaveServerClearsAllPresence(t *testing.T) {
	f := newSessionFixture(t, "")
	ctx := context.Background()

	if _, err := f.db.Conn.Exec(
		`INSERT INTO channels (id, server_id, name, type, position) VALUES ('lounge', 'srv', 'lounge', 'VOICE', 0)`,
	); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	if _, _, _, err := f.svc.Join(ctx, joinReq(t, "install-1", "pw")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.svc.JoinChannel(ctx, "srv", "lounge", "install-1", "Alice"); err != nil {
		t.Fatalf("join channel: %v", err)
	}
	if err := f.svc.Leave(ctx, "srv", "install-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if members, _ := f.presence.ServerMembers(ctx, "srv"); len(members) != 0 {
		t.Fatalf("server presence not empty: %v", members)
	}
	if members, _ := f.presence.ChannelMembers(ctx, "lounge"); len(members) != 0 {
		t.Fatalf("channel presence not empty: %v", members)
	}
	if rec, _ := f.presence.Get(ctx, "install-1"); rec != nil {
		t.Fatalf("presence record survived leave: %+v", rec)
	}
}

func TestTreePopulatesOccupants(t *testing.T) {
	f := newSessionFixture(t, "")
	ctx := context.Background()

	if _, err := f.db.Conn.Exec(
		`INSERT INTO channels (id, server_id, name, type, position) VALUES ('lounge', 'srv', 'lounge', 'VOICE', 0)`,
	); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	if _, _, _, err := f.svc.Join(ctx, joinReq(t, "install-1", "pw")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.svc.JoinChannel(ctx, "srv", "lounge", "install-1", "Alice"); err != nil {
		t.Fatalf("join channel: %v", err)
	}

	tree, err := f.svc.Tree(ctx, "srv")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("tree has %d roots, want 1", len(tree))
	}
	occ := tree[0].Occupants
	if len(occ) != 1 || occ[0] != "install-1" {
		t.Fatalf("occupants = %v, want [install-1]", occ)
	}
}
