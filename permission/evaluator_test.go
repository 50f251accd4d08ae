package permission

import (
	"context"
	"testing"

	"github.com/akinalp/reson8/models"
)

type fakeRoleSource struct {
	roles map[string][]models.Role // userID -> roles
}

func (f *fakeRoleSource) GetByUserIDAndServer(_ context.Context, userID, _ string) ([]models.Role, error) {
	return f.roles[userID], nil
}

func TestEffectiveMaskIsBitwiseOR(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]models.Role{
		"u1": {
			{Permissions: models.PermConnect},
			{Permissions: models.PermSpeak},
		},
	}}
	eval := New(src)

	mask, err := eval.EffectiveMask(context.Background(), "u1", "s1")
	if err != nil {
		t.Fatalf("EffectiveMask: %v", err)
	}
	if mask != models.PermConnect|models.PermSpeak {
		t.Fatalf("expected CONNECT|SPEAK, got %d", mask)
	}
	if !mask.Has(models.PermSpeak) {
		t.Fatalf("expected Has(SPEAK) true")
	}
	if mask.Has(models.PermManageRoles) {
		t.Fatalf("expected Has(MANAGE_ROLES) false")
	}
}

func TestAdminShortCircuits(t *testing.T) {
	src := &fakeRoleSource{roles: map[string][]models.Role{
		"admin": {{Permissions: models.PermAdmin}},
	}}
	eval := New(src)

	ok, err := eval.Require(context.Background(), "admin", "s1", models.PermKickUser)
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if !ok {
		t.Fatalf("expected ADMIN to pass every check, including KICK_USER")
	}
}

func TestNoRolesDeniesEverything(t *testing.T) {
	eval := New(&fakeRoleSource{roles: map[string][]models.Role{}})

	ok, err := eval.Require(context.Background(), "ghost", "s1", models.PermConnect)
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if ok {
		t.Fatalf("expected a user with no roles to fail every check")
	}
}
