package models

import (
	"strconv"
)

// Permission is a bitfield of role permissions, at least 64 bits wide so the
// flag space can grow without a wire-format break. The nine flags below
// match the wire enumeration exactly; bits above ADMIN are reserved.
type Permission uint64

const (
	PermConnect        Permission = 1 << iota // 1
	PermSpeak                                 // 2
	PermSendMessages                          // 4
	PermCreateChannel                         // 8
	PermManageChannels                        // 16
	PermManageRoles                           // 32
	PermKickUser                              // 64
	PermBanUser                               // 128
	PermAdmin                                 // 256
)

// Has reports whether mask grants perm. ADMIN short-circuits every check.
func (p Permission) Has(perm Permission) bool {
	if p&PermAdmin == PermAdmin {
		return true
	}
	return p&perm == perm
}

// String serializes the mask as a decimal string, avoiding precision loss
// when the value crosses a JSON number's 53-bit safe-integer boundary.
func (p Permission) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// MarshalJSON emits Permission as a quoted decimal string rather than a
// JSON number.
func (p Permission) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON
// number, for leniency with hand-written test fixtures.
func (p *Permission) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*p = Permission(v)
	return nil
}

// Role is a bitfield-permissioned, server-scoped role.
type Role struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"serverId"`
	Name        string     `json:"name"`
	Permissions Permission `json:"permissions"`
	PowerLevel  int        `json:"powerLevel"`
	Color       *string    `json:"color"`
	// IsDefault marks the role every new member is bound to on JOIN_SERVER.
	// Exactly one role per server should carry it.
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt"`
}

// RoleAssignment is one user-to-role binding: the user id and the id of
// the role that user holds.
type RoleAssignment struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}
