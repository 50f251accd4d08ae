package models

// Server is the single authoritative server record a deployment serves.
// Exactly one row exists in typical deployments; its id is referenced by
// every channel, role, and message.
type Server struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	MaxClients int    `json:"maxClients"`
	CreatedAt  string `json:"createdAt"`
}
