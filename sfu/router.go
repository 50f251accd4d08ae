package sfu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// consumerEntry is one Consumer: an RTPSender on the subscribing session's
// recv transport, bound to the local track the producer's forwardLoop
// writes into. Kept here (rather than as an RTPReceiver) because in this
// server's topology a Consumer is always the server-to-client leg — the
// client's own incoming audio is the Producer, which lives in
// producerState instead.
type consumerEntry struct {
	id         string
	producerID string
	kind       webrtc.RTPCodecType
	sender     *webrtc.RTPSender
	localTrack *webrtc.TrackLocalStaticRTP
	paused     bool
}

// voiceSession is one (channelID, userID)'s WebRTC state. It is owned
// exclusively by the Session that created it — the event router
// serializes every handshake step per Session, so no lock is needed
// across voiceSession fields themselves; the Router's mutex only guards
// the maps that index sessions and producers.
type voiceSession struct {
	userID   string
	nickname string

	sendTransport *transport
	recvTransport *transport

	producerID string

	consumers map[string]*consumerEntry
}

// Router is the per-channel SFU object: it owns every voice session in
// the channel and the producer-to-owner attribution table that lets a
// cascading producerclose carry a fully-attributed PRODUCER_CLOSED even
// though the close was observed at a consumer, not the producer's own
// session.
type Router struct {
	channelID  string
	workerID   int
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	mu                  sync.Mutex
	sessions            map[string]*voiceSession
	owners              map[string]producerOwner // producerID -> owner
	producers           map[string]*producerState
	consumersByProducer map[string][]*consumerEntry
}

func newRouter(channelID string, workerID int, api *webrtc.API, iceServers []webrtc.ICEServer) *Router {
	return &Router{
		channelID:           channelID,
		workerID:            workerID,
		api:                 api,
		iceServers:          iceServers,
		sessions:            make(map[string]*voiceSession),
		owners:              make(map[string]producerOwner),
		producers:           make(map[string]*producerState),
		consumersByProducer: make(map[string][]*consumerEntry),
	}
}

func (r *Router) session(userID string) (*voiceSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Router) ensureSession(userID, nickname string) *voiceSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = &voiceSession{userID: userID, nickname: nickname, consumers: make(map[string]*consumerEntry)}
		r.sessions[userID] = s
	}
	return s
}

// existingProducers lists every producer in the channel except excludeUser,
// for EXISTING_PRODUCERS.
func (r *Router) existingProducers(excludeUser string) []ProducerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ProducerInfo
	for userID, s := range r.sessions {
		if userID == excludeUser || s.producerID == "" {
			continue
		}
		out = append(out, ProducerInfo{UserID: userID, Nickname: s.nickname, ProducerID: s.producerID})
	}
	return out
}

// recordProducer binds a newly created producer to its owning session.
func (r *Router) recordProducer(producerID, userID, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[producerID] = producerOwner{userID: userID, nickname: nickname}
}

func (r *Router) ownerOf(producerID string) (producerOwner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[producerID]
	return o, ok
}

func (r *Router) forgetProducer(producerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, producerID)
}

// sessionUserIDs snapshots the users currently holding a voice session.
func (r *Router) sessionUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		ids = append(ids, userID)
	}
	return ids
}

// removeSession drops userID's session entry and reports whether the
// channel's voice-session map is now empty — the router should be torn
// down by the caller when it is.
func (r *Router) removeSession(userID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return len(r.sessions) == 0
}

func (r *Router) newTransport(direction Direction) (*transport, error) {
	return newTransport(r.api, r.iceServers, direction)
}

func (r *Router) findTransport(s *voiceSession, transportID string) (*transport, error) {
	if s.sendTransport != nil && s.sendTransport.id == transportID {
		return s.sendTransport, nil
	}
	if s.recvTransport != nil && s.recvTransport.id == transportID {
		return s.recvTransport, nil
	}
	return nil, fmt.Errorf("transport %s not found in session", transportID)
}

func newConsumerID() string { return uuid.NewString() }
