package sfu

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// producerState is a Voice Session's sole Producer: the server-side
// RTPReceiver reading the client's outgoing audio off its send transport.
// Each Consumer gets its own TrackLocalStaticRTP bound to its RTPSender.
// Forwarding is a single goroutine per producer reading RTP off the remote
// track and writing each packet into every non-paused consumer's local
// track — the usual "read once, fan out to N senders" shape of a minimal
// pion SFU. Voice-only audio needs neither simulcast nor a jitter buffer
// here.
type producerState struct {
	id       string
	receiver *webrtc.RTPReceiver
	track    *webrtc.TrackRemote
	done     chan struct{}
}

func (r *Router) produce(s *voiceSession, transportID string, kind webrtc.RTPCodecType, params webrtc.RTPReceiveParameters) (string, error) {
	if s.sendTransport == nil || s.sendTransport.id != transportID {
		return "", fmt.Errorf("produce: transport %s is not this session's send transport", transportID)
	}
	if s.producerID != "" {
		return "", fmt.Errorf("produce: session already has a producer")
	}

	receiver, err := r.api.NewRTPReceiver(kind, s.sendTransport.dtls)
	if err != nil {
		return "", fmt.Errorf("failed to create RTP receiver: %w", err)
	}
	if err := receiver.Receive(params); err != nil {
		return "", fmt.Errorf("failed to receive on RTP receiver: %w", err)
	}

	tracks := receiver.Tracks()
	if len(tracks) == 0 {
		return "", fmt.Errorf("produce: receiver negotiated no tracks")
	}

	producerID := uuid.NewString()
	done := make(chan struct{})

	r.mu.Lock()
	s.producerID = producerID
	r.producers[producerID] = &producerState{id: producerID, receiver: receiver, track: tracks[0], done: done}
	r.mu.Unlock()

	go r.forwardLoop(producerID, tracks[0], done)

	return producerID, nil
}

// forwardLoop reads RTP packets off the producer's remote track and fans
// them out to every live (non-paused) consumer's local track. It exits
// when the remote track errors out (the client stopped sending or the
// transport closed) or when done is closed by closeProducer.
func (r *Router) forwardLoop(producerID string, track *webrtc.TrackRemote, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			r.closeProducer(producerID)
			return
		}

		r.mu.Lock()
		entries := append([]*consumerEntry(nil), r.consumersByProducer[producerID]...)
		r.mu.Unlock()

		for _, c := range entries {
			if c.paused {
				continue
			}
			_ = c.localTrack.WriteRTP(pkt)
		}
	}
}

// consume creates a Consumer on s's recv transport for producerID. It
// starts paused; the client resumes it once its own pipeline is wired.
func (r *Router) consume(s *voiceSession, producerID string) (ConsumerDescriptor, error) {
	if s.recvTransport == nil {
		return ConsumerDescriptor{}, fmt.Errorf("consume: session has no recv transport")
	}

	r.mu.Lock()
	producer, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok {
		return ConsumerDescriptor{}, fmt.Errorf("consume: producer %s not found", producerID)
	}

	localTrack, err := webrtc.NewTrackLocalStaticRTP(producer.track.Codec().RTPCodecCapability, "audio", "reson8-"+producerID)
	if err != nil {
		return ConsumerDescriptor{}, fmt.Errorf("failed to create local relay track: %w", err)
	}

	sender, err := r.api.NewRTPSender(localTrack, s.recvTransport.dtls)
	if err != nil {
		return ConsumerDescriptor{}, fmt.Errorf("failed to create RTP sender: %w", err)
	}

	consumerID := newConsumerID()
	entry := &consumerEntry{
		id:         consumerID,
		producerID: producerID,
		kind:       producer.track.Kind(),
		sender:     sender,
		localTrack: localTrack,
		paused:     true,
	}

	r.mu.Lock()
	s.consumers[consumerID] = entry
	r.consumersByProducer[producerID] = append(r.consumersByProducer[producerID], entry)
	r.mu.Unlock()

	return ConsumerDescriptor{
		ID:         consumerID,
		ProducerID: producerID,
		Kind:       string(entry.kind.String()),
		RTPParameters: webrtc.RTPReceiveParameters{
			Encodings: []webrtc.RTPDecodingParameters{{RTPCodingParameters: webrtc.RTPCodingParameters{}}},
		},
	}, nil
}

func (r *Router) resumeConsumer(s *voiceSession, consumerID string) error {
	entry, ok := s.consumers[consumerID]
	if !ok {
		return fmt.Errorf("resume: consumer %s not found", consumerID)
	}
	if err := entry.sender.Send(webrtc.RTPSendParameters{}); err != nil {
		return fmt.Errorf("failed to resume consumer: %w", err)
	}
	entry.paused = false
	return nil
}

// closeProducer tears down producerID's forwarding loop and every
// consumer subscribed to it, returning their ids so the caller can emit
// PRODUCER_CLOSED to each.
func (r *Router) closeProducer(producerID string) []string {
	r.mu.Lock()
	producer, ok := r.producers[producerID]
	if ok {
		delete(r.producers, producerID)
	}
	entries := r.consumersByProducer[producerID]
	delete(r.consumersByProducer, producerID)
	r.mu.Unlock()

	if ok {
		close(producer.done)
		_ = producer.receiver.Stop()
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		_ = e.sender.Stop()
		ids = append(ids, e.id)
	}
	return ids
}

func (r *Router) closeConsumer(s *voiceSession, consumerID string) {
	r.mu.Lock()
	entry, ok := s.consumers[consumerID]
	if ok {
		delete(s.consumers, consumerID)
		remaining := r.consumersByProducer[entry.producerID][:0]
		for _, e := range r.consumersByProducer[entry.producerID] {
			if e.id != consumerID {
				remaining = append(remaining, e)
			}
		}
		r.consumersByProducer[entry.producerID] = remaining
	}
	r.mu.Unlock()

	if ok {
		_ = entry.sender.Stop()
	}
}
