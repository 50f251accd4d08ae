package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// User is identified by a persistent per-installation id the client itself
// supplies — there is no external identity provider. The first JOIN_SERVER
// for a given id upserts the row, setting Nickname from the join payload.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Nickname       string `json:"nickname"`
	CreatedAt      string `json:"createdAt"`
	CredentialHash string `json:"-"`
}

// UserWithRoles pairs a user with every role it holds on the queried
// server, as returned by GET_ALL_USERS.
type UserWithRoles struct {
	User
	Roles []Role `json:"roles"`
}

// JoinServerRequest is the payload of a JOIN_SERVER event.
type JoinServerRequest struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Nickname   string `json:"nickname"`
	Credential string `json:"credential"`
}

func (r *JoinServerRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	r.Username = strings.TrimSpace(r.Username)
	r.Nickname = strings.TrimSpace(r.Nickname)
	if r.Nickname == "" {
		r.Nickname = r.Username
	}
	if utf8.RuneCountInString(r.Nickname) < 1 || utf8.RuneCountInString(r.Nickname) > 32 {
		return fmt.Errorf("nickname must be between 1 and 32 characters")
	}
	return nil
}
