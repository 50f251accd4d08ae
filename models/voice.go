package models

// PresenceRecord is the volatile per-user metadata the Presence Store keeps
// alongside its server/channel membership sets. It is never persisted to
// the Durable Store and does not survive a restart.
type PresenceRecord struct {
	UserID    string `json:"userId"`
	ServerID  string `json:"serverId"`
	ChannelID string `json:"channelId"`
	Nickname  string `json:"nickname"`
}
