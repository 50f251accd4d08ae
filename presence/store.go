// Package presence implements the volatile presence store: O(1)
// membership queries for who is online on a server and who occupies a
// channel, plus per-user metadata with a TTL. Two implementations satisfy
// the same Store interface — an in-process mutex-guarded map and a Redis
// pipeline-backed one — selected at wiring time by whether a redis:// URL
// is configured.
package presence

import (
	"context"
	"time"

	"github.com/akinalp/reson8/models"
)

// DefaultTTL is the presence record lifetime, refreshed on every channel
// change.
const DefaultTTL = time.Hour

// Store is the Presence Store's access surface. Every multi-key mutation
// is atomic — an in-process implementation holds a lock for the duration,
// an external one pipelines the equivalent commands.
type Store interface {
	// JoinServer registers userID as online on serverID with nickname, with
	// no channel membership yet.
	JoinServer(ctx context.Context, serverID, userID, nickname string) error
	// LeaveServer removes userID from serverID and from whatever channel it
	// occupied, and deletes its metadata entirely.
	LeaveServer(ctx context.Context, serverID, userID string) error
	// JoinChannel atomically removes userID from its previous channel (if
	// any) and adds it to channelID, refreshing metadata and TTL.
	JoinChannel(ctx context.Context, serverID, channelID, userID, nickname string) error
	// LeaveChannel removes userID from its current channel only; server
	// membership is untouched.
	LeaveChannel(ctx context.Context, serverID, userID string) error
	// ServerMembers returns every user id online on serverID.
	ServerMembers(ctx context.Context, serverID string) ([]string, error)
	// ChannelMembers returns every user id occupying channelID.
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
	// Get returns the current metadata for userID, or (nil, nil) if the
	// user is not present anywhere.
	Get(ctx context.Context, userID string) (*models.PresenceRecord, error)
}
