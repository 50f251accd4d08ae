// Package sfu implements the SFU coordinator: the component that drives
// pion/webrtc's ORTC primitives through the six-step voice handshake, one
// Router per voice channel and one worker pool shared across every router
// in the process.
package sfu

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/akinalp/reson8/config"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/turnrelay"
)

// Broadcaster is the narrow surface the Coordinator needs to emit voice
// events to connected clients, implemented by ws.Hub. A local interface
// keeps the media plane from depending on the transport package.
type Broadcaster interface {
	// ToChannelExcept emits event/payload to every connection subscribed to
	// the channel's room except exceptUserID (empty string excepts no one).
	ToChannelExcept(channelID, exceptUserID, event string, payload any)
	// ToUser emits event/payload to a single user's connection(s).
	ToUser(userID, event string, payload any)
}

// Coordinator is the SFU Coordinator's top-level handle: one per process,
// shared by every voice channel.
type Coordinator struct {
	pool        *workerPool
	api         *webrtc.API
	iceServers  []webrtc.ICEServer
	codecs      []webrtc.RTPCodecParameters
	turnCfg     config.TURNConfig
	broadcaster Broadcaster

	mu      sync.Mutex
	routers map[string]*Router
}

// New builds the shared pion/webrtc API (Opus-only MediaEngine, a
// SettingEngine pinned to the configured ephemeral UDP port range and
// announced address) and starts the Worker Pool.
func New(ctx context.Context, cfg config.SFUConfig, turnCfg config.TURNConfig, broadcaster Broadcaster) (*Coordinator, error) {
	opus := webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(opus, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register opus codec: %w", err)
	}

	se := webrtc.SettingEngine{}
	if err := se.SetEphemeralUDPPortRange(cfg.RTCPortMin, cfg.RTCPortMax); err != nil {
		return nil, fmt.Errorf("invalid SFU RTC port range: %w", err)
	}
	if cfg.AnnouncedAddress != "" {
		se.SetNAT1To1IPs([]string{cfg.AnnouncedAddress}, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))

	var iceServers []webrtc.ICEServer
	if turnCfg.URL != "" && turnCfg.Secret == "" {
		iceServers = []webrtc.ICEServer{{
			URLs:       []string{turnCfg.URL},
			Username:   turnCfg.Username,
			Credential: turnCfg.Credential,
		}}
	}

	pool := newWorkerPool(ctx)
	go pool.fatalOnWorkerLoss()

	return &Coordinator{
		pool:        pool,
		api:         api,
		iceServers:  iceServers,
		codecs:      []webrtc.RTPCodecParameters{opus},
		turnCfg:     turnCfg,
		broadcaster: broadcaster,
		routers:     make(map[string]*Router),
	}, nil
}

// routerFor returns the channel's router, creating it lazily — the first
// voice event for a channel is what brings its router into existence.
func (c *Coordinator) routerFor(channelID string) *Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routers[channelID]
	if !ok {
		r = newRouter(channelID, c.pool.assign(), c.api, c.iceServers)
		c.routers[channelID] = r
	}
	return r
}

// peekRouter looks the router up without creating one.
func (c *Coordinator) peekRouter(channelID string) (*Router, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routers[channelID]
	return r, ok
}

func (c *Coordinator) sessionFor(channelID, userID string) (*Router, *voiceSession, error) {
	r, ok := c.peekRouter(channelID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no voice router for channel %s", pkg.ErrPreconditionFailed, channelID)
	}
	s, ok := r.session(userID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no voice session for user %s in channel %s", pkg.ErrPreconditionFailed, userID, channelID)
	}
	return r, s, nil
}

// GetRouterCapabilities is handshake step 1.
func (c *Coordinator) GetRouterCapabilities(channelID string) RouterCapabilities {
	c.routerFor(channelID)
	return RouterCapabilities{Codecs: c.codecs}
}

// CreateTransport is handshake step 2: it creates a send or recv transport
// for userID in channelID and mints TURN credentials for the reply when
// the operator configured ephemeral minting.
func (c *Coordinator) CreateTransport(ctx context.Context, channelID, userID, nickname string, direction Direction) (TransportDescriptor, error) {
	r := c.routerFor(channelID)
	s := r.ensureSession(userID, nickname)

	t, err := r.newTransport(direction)
	if err != nil {
		return TransportDescriptor{}, err
	}

	switch direction {
	case DirectionSend:
		s.sendTransport = t
	case DirectionRecv:
		s.recvTransport = t
	default:
		return TransportDescriptor{}, fmt.Errorf("%w: unknown transport direction %q", pkg.ErrInvalidInput, direction)
	}

	desc, err := t.descriptor()
	if err != nil {
		return TransportDescriptor{}, err
	}

	if c.turnCfg.URL != "" && c.turnCfg.Secret != "" {
		creds, err := turnrelay.Ephemeral(c.turnCfg.URL, c.turnCfg.Secret, time.Hour)
		if err != nil {
			return TransportDescriptor{}, fmt.Errorf("failed to mint TURN credentials: %w", err)
		}
		desc.TURN = &creds
	} else if c.turnCfg.URL != "" {
		creds := turnrelay.Static(c.turnCfg.URL, c.turnCfg.Username, c.turnCfg.Credential)
		desc.TURN = &creds
	}

	return desc, nil
}

// ConnectTransport is handshake step 3.
func (c *Coordinator) ConnectTransport(ctx context.Context, channelID, userID, transportID string, dtlsParams webrtc.DTLSParameters) error {
	r, s, err := c.sessionFor(channelID, userID)
	if err != nil {
		return err
	}
	t, err := r.findTransport(s, transportID)
	if err != nil {
		return err
	}
	return t.connect(ctx, dtlsParams)
}

// Produce is handshake step 4. It records the producer's owner, then
// broadcasts NEW_PRODUCER to everyone else already in the channel.
func (c *Coordinator) Produce(channelID, userID, transportID string, kind webrtc.RTPCodecType, rtpParams webrtc.RTPReceiveParameters) (string, error) {
	r, s, err := c.sessionFor(channelID, userID)
	if err != nil {
		return "", err
	}

	producerID, err := r.produce(s, transportID, kind, rtpParams)
	if err != nil {
		return "", err
	}
	r.recordProducer(producerID, s.userID, s.nickname)

	c.broadcaster.ToChannelExcept(channelID, userID, "NEW_PRODUCER", ProducerInfo{
		UserID:     s.userID,
		Nickname:   s.nickname,
		ProducerID: producerID,
	})

	return producerID, nil
}

// Consume is handshake step 5: after verifying the router can serve the
// producer to a client with the offered capabilities, it creates a paused
// Consumer for producerID on userID's recv transport.
func (c *Coordinator) Consume(channelID, userID, producerID string, rtpCaps []webrtc.RTPCodecParameters) (ConsumerDescriptor, error) {
	r, s, err := c.sessionFor(channelID, userID)
	if err != nil {
		return ConsumerDescriptor{}, err
	}
	if err := c.canConsume(rtpCaps); err != nil {
		return ConsumerDescriptor{}, err
	}
	return r.consume(s, producerID)
}

// canConsume checks the caller's offered capabilities against the
// router's codec set. Absent capabilities mean "whatever the router has",
// mirroring mediasoup's optional rtpCapabilities argument.
func (c *Coordinator) canConsume(rtpCaps []webrtc.RTPCodecParameters) error {
	if len(rtpCaps) == 0 {
		return nil
	}
	for _, offered := range rtpCaps {
		for _, have := range c.codecs {
			if strings.EqualFold(offered.MimeType, have.MimeType) && offered.ClockRate == have.ClockRate {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: cannot consume producer with the offered capabilities", pkg.ErrPreconditionFailed)
}

// ResumeConsumer is handshake step 6.
func (c *Coordinator) ResumeConsumer(channelID, userID, consumerID string) error {
	r, s, err := c.sessionFor(channelID, userID)
	if err != nil {
		return err
	}
	return r.resumeConsumer(s, consumerID)
}

// ExistingProducers lists every producer already in channelID except
// userID's own, pushed right after the session joins the voice channel.
// It never creates a router; for a channel that has none yet it returns nil.
func (c *Coordinator) ExistingProducers(channelID, userID string) []ProducerInfo {
	r, ok := c.peekRouter(channelID)
	if !ok {
		return nil
	}
	return r.existingProducers(userID)
}

// CloseProducer closes a producer and every consumer subscribed to it,
// broadcasting PRODUCER_CLOSED to the channel. requesterID, when
// non-empty, must match the producer's owner — a session may only close
// its own producer. This is both the explicit CLOSE_PRODUCER path and the
// path a cascading close from CleanupSession takes.
func (c *Coordinator) CloseProducer(channelID, requesterID, producerID string) error {
	r, ok := c.peekRouter(channelID)
	if !ok {
		return fmt.Errorf("%w: producer %s", pkg.ErrNotFound, producerID)
	}

	owner, hadOwner := r.ownerOf(producerID)
	if !hadOwner {
		return fmt.Errorf("%w: producer %s", pkg.ErrNotFound, producerID)
	}
	if requesterID != "" && owner.userID != requesterID {
		return fmt.Errorf("%w: producer %s belongs to another session", pkg.ErrPreconditionFailed, producerID)
	}

	r.closeProducer(producerID)
	r.forgetProducer(producerID)
	if s, ok := r.session(owner.userID); ok && s.producerID == producerID {
		s.producerID = ""
	}

	c.broadcaster.ToChannelExcept(channelID, "", "PRODUCER_CLOSED", map[string]string{
		"producerId": producerID,
		"userId":     owner.userID,
	})
	return nil
}

// CleanupSession tears down every transport, producer and consumer userID
// holds in channelID, in a fixed order: consumers first, then the
// producer (cascading PRODUCER_CLOSED to the rest of the channel), then
// both transports, then the session entry itself. When the channel's session map empties, the router is torn down
// with it.
func (c *Coordinator) CleanupSession(channelID, userID string) {
	r, ok := c.peekRouter(channelID)
	if !ok {
		return
	}

	s, ok := r.session(userID)
	if !ok {
		return
	}

	for consumerID := range s.consumers {
		r.closeConsumer(s, consumerID)
	}

	if s.producerID != "" {
		_ = c.CloseProducer(channelID, "", s.producerID)
	}

	if s.sendTransport != nil {
		s.sendTransport.close()
	}
	if s.recvTransport != nil {
		s.recvTransport.close()
	}

	if empty := r.removeSession(userID); empty {
		c.mu.Lock()
		delete(c.routers, channelID)
		c.mu.Unlock()
	}
}

// Close tears down every live voice session and router. Part of graceful
// shutdown: the SFU closes before the transport.
func (c *Coordinator) Close() {
	c.mu.Lock()
	routers := make(map[string]*Router, len(c.routers))
	for id, r := range c.routers {
		routers[id] = r
	}
	c.mu.Unlock()

	for channelID, r := range routers {
		for _, userID := range r.sessionUserIDs() {
			c.CleanupSession(channelID, userID)
		}
	}
}
