package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// transport is one leg of a Voice Session's WebRTC connection — either the
// send direction (carries the session's producer) or the recv direction
// (carries its consumers). It is built directly on pion/webrtc's ORTC
// primitives (ICEGatherer / ICETransport / DTLSTransport) rather than the
// SDP-offer/answer PeerConnection API, because the voice handshake
// creates and addresses transports independently of any SDP negotiation —
// the same shape mediasoup exposes.
type transport struct {
	id        string
	direction Direction

	mu        sync.Mutex
	gatherer  *webrtc.ICEGatherer
	ice       *webrtc.ICETransport
	dtls      *webrtc.DTLSTransport
	connected bool
}

func newTransport(api *webrtc.API, iceServers []webrtc.ICEServer, direction Direction) (*transport, error) {
	gatherer, err := api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create ICE gatherer: %w", err)
	}

	iceTransport := api.NewICETransport(gatherer)

	// nil certificates make pion generate a self-signed one per transport.
	dtlsTransport, err := api.NewDTLSTransport(iceTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DTLS transport: %w", err)
	}

	gatherFinished := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherFinished)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, fmt.Errorf("failed to start ICE gathering: %w", err)
	}
	<-gatherFinished

	return &transport{
		id:        uuid.NewString(),
		direction: direction,
		gatherer:  gatherer,
		ice:       iceTransport,
		dtls:      dtlsTransport,
	}, nil
}

func (t *transport) descriptor() (TransportDescriptor, error) {
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return TransportDescriptor{}, fmt.Errorf("failed to read ICE parameters: %w", err)
	}
	candidates, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return TransportDescriptor{}, fmt.Errorf("failed to read ICE candidates: %w", err)
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return TransportDescriptor{}, fmt.Errorf("failed to read DTLS parameters: %w", err)
	}

	return TransportDescriptor{
		ID:             t.id,
		ICEParameters:  iceParams,
		ICECandidates:  candidates,
		DTLSParameters: dtlsParams,
	}, nil
}

// connect completes the DTLS handshake — step 3 of the voice handshake.
// The ICE transport role follows the direction convention: a send
// transport (producer side) acts as the DTLS client, a recv transport
// (consumer side) the server, mirroring mediasoup's convention.
func (t *transport) connect(ctx context.Context, remote webrtc.DTLSParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}

	role := webrtc.ICERoleControlled
	if t.direction == DirectionSend {
		role = webrtc.ICERoleControlling
	}
	if err := t.ice.Start(nil, webrtc.ICEParameters{}, &role); err != nil {
		return fmt.Errorf("failed to start ICE transport: %w", err)
	}
	if err := t.dtls.Start(remote); err != nil {
		return fmt.Errorf("failed to complete DTLS handshake: %w", err)
	}
	t.connected = true
	return nil
}

func (t *transport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dtls != nil {
		_ = t.dtls.Stop()
	}
	if t.ice != nil {
		_ = t.ice.Stop()
	}
}
