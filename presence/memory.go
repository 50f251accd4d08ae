package presence

import (
	"context"
	"sync"
	"time"

	"github.com/akinalp/reson8/models"
)

// memoryStore is the in-process Presence Store fallback used when no
// PRESENCE_STORE_URL is configured. A single mutex held for the duration
// of every multi-step update makes each one atomic.
type memoryStore struct {
	mu       sync.Mutex
	servers  map[string]map[string]struct{} // serverID -> set of userID
	channels map[string]map[string]struct{} // channelID -> set of userID
	byUser   map[string]*entry
}

type entry struct {
	record  models.PresenceRecord
	expires time.Time
}

// NewMemoryStore builds the in-process fallback implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		servers:  make(map[string]map[string]struct{}),
		channels: make(map[string]map[string]struct{}),
		byUser:   make(map[string]*entry),
	}
}

func (s *memoryStore) JoinServer(_ context.Context, serverID, userID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addToSet(s.servers, serverID, userID)
	s.byUser[userID] = &entry{
		record:  models.PresenceRecord{UserID: userID, ServerID: serverID, Nickname: nickname},
		expires: time.Now().Add(DefaultTTL),
	}
	return nil
}

func (s *memoryStore) LeaveServer(_ context.Context, serverID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byUser[userID]; ok && e.record.ChannelID != "" {
		s.removeFromSet(s.channels, e.record.ChannelID, userID)
	}
	s.removeFromSet(s.servers, serverID, userID)
	delete(s.byUser, userID)
	return nil
}

func (s *memoryStore) JoinChannel(_ context.Context, serverID, channelID, userID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byUser[userID]; ok && e.record.ChannelID != "" {
		s.removeFromSet(s.channels, e.record.ChannelID, userID)
	}
	s.addToSet(s.channels, channelID, userID)
	s.byUser[userID] = &entry{
		record:  models.PresenceRecord{UserID: userID, ServerID: serverID, ChannelID: channelID, Nickname: nickname},
		expires: time.Now().Add(DefaultTTL),
	}
	return nil
}

func (s *memoryStore) LeaveChannel(_ context.Context, serverID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok || e.record.ChannelID == "" {
		return nil
	}
	s.removeFromSet(s.channels, e.record.ChannelID, userID)
	e.record.ChannelID = ""
	e.expires = time.Now().Add(DefaultTTL)
	return nil
}

func (s *memoryStore) ServerMembers(_ context.Context, serverID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMembers(s.servers, serverID), nil
}

func (s *memoryStore) ChannelMembers(_ context.Context, channelID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMembers(s.channels, channelID), nil
}

func (s *memoryStore) Get(_ context.Context, userID string) (*models.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok || time.Now().After(e.expires) {
		return nil, nil
	}
	rec := e.record
	return &rec, nil
}

func (s *memoryStore) addToSet(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func (s *memoryStore) removeFromSet(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m, key)
	}
}

func (s *memoryStore) setMembers(m map[string]map[string]struct{}, key string) []string {
	set, ok := m[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out
}
