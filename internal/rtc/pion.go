package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
)

// Pion implements Engine and Media on top of pion/webrtc and
// pion/mediadevices. One Pion instance serves a whole client session; each
// call gets its own peer session.
type Pion struct {
	stunURL  string
	selector *mediadevices.CodecSelector
}

func NewPion(stunURL string) (*Pion, error) {
	selector, err := newCodecSelector()
	if err != nil {
		return nil, err
	}
	return &Pion{stunURL: stunURL, selector: selector}, nil
}

// pionCapture wraps a mediadevices stream acquired for one call.
type pionCapture struct {
	stream mediadevices.MediaStream
}

func (c *pionCapture) Close() {
	for _, t := range c.stream.GetTracks() {
		_ = t.Close()
	}
}

type pionSession struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	onTrack func(RemoteTrack)
}

func (p *Pion) NewSession(ctx context.Context, local Capture) (Session, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if p.selector != nil {
		p.selector.Populate(mediaEngine)
	} else if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{p.stunURL}},
		},
	})
	if err != nil {
		return nil, err
	}

	s := &pionSession{pc: pc}
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.mu.Lock()
		fn := s.onTrack
		s.mu.Unlock()
		if fn != nil {
			fn(remoteTrack{track})
		}
	})

	if capture, ok := local.(*pionCapture); ok && capture != nil {
		for _, track := range capture.stream.GetTracks() {
			if _, err := pc.AddTrack(track); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
	} else {
		// No local media: recvonly transceivers still produce valid m-lines.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *pionSession) OnRemoteTrack(fn func(RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	s.mu.Unlock()
}

func (s *pionSession) CreateOffer(ctx context.Context) (Descriptor, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return s.settleLocal(ctx, offer)
}

func (s *pionSession) Answer(ctx context.Context, remoteOffer Descriptor) (Descriptor, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(remoteOffer, &sd); err != nil {
		return nil, fmt.Errorf("malformed remote offer: %w", err)
	}
	if err := s.pc.SetRemoteDescription(sd); err != nil {
		return nil, err
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return s.settleLocal(ctx, answer)
}

// settleLocal applies the local description and waits for ICE gathering so
// the returned descriptor is self-contained. The persisted record is written
// once per side, so there is no trickle path for late candidates.
func (s *pionSession) settleLocal(ctx context.Context, sd webrtc.SessionDescription) (Descriptor, error) {
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(sd); err != nil {
		return nil, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(s.pc.LocalDescription())
}

func (s *pionSession) AcceptAnswer(ctx context.Context, remoteAnswer Descriptor) error {
	if s.pc.RemoteDescription() != nil {
		// Duplicate delivery of the same answer: already applied.
		return nil
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(remoteAnswer, &sd); err != nil {
		return fmt.Errorf("malformed remote answer: %w", err)
	}
	return s.pc.SetRemoteDescription(sd)
}

func (s *pionSession) Close() error {
	return s.pc.Close()
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (t remoteTrack) ID() string   { return t.track.ID() }
func (t remoteTrack) Kind() string { return t.track.Kind().String() }
