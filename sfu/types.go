package sfu

import (
	"github.com/pion/webrtc/v4"

	"github.com/akinalp/reson8/turnrelay"
)

// Direction distinguishes a send transport (carries the session's own
// producer) from a receive transport (carries its consumers).
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// RouterCapabilities is the JSON shape returned by GET_ROUTER_CAPABILITIES —
// the router's supported codecs, mirrored from its MediaEngine.
type RouterCapabilities struct {
	Codecs []webrtc.RTPCodecParameters `json:"codecs"`
}

// TransportDescriptor is the JSON shape returned by CREATE_WEBRTC_TRANSPORT.
type TransportDescriptor struct {
	ID             string                 `json:"id"`
	ICEParameters  webrtc.ICEParameters   `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate  `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters  `json:"dtlsParameters"`
	TURN           *turnrelay.Credentials `json:"turn,omitempty"`
}

// ConsumerDescriptor is the JSON shape returned by CONSUME.
type ConsumerDescriptor struct {
	ID            string                      `json:"id"`
	ProducerID    string                      `json:"producerId"`
	Kind          string                      `json:"kind"`
	RTPParameters webrtc.RTPReceiveParameters `json:"rtpParameters"`
}

// ProducerInfo identifies one existing producer in a channel, as pushed to
// a session that just joined via EXISTING_PRODUCERS.
type ProducerInfo struct {
	UserID     string `json:"userId"`
	Nickname   string `json:"nickname"`
	ProducerID string `json:"producerId"`
}

// producerOwner records the user a producer belongs to. A cascading
// producerclose observed at a consumer needs to know whose producer just
// closed, and that binding is only known at the producer's own session
// otherwise.
type producerOwner struct {
	userID   string
	nickname string
}
