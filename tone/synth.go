package tone

import (
	"go.uber.org/zap"

	"github.com/cwbudde/algo-tone/dsp"
)

// Synth is the local synthesis backend. It renders notes as additive
// voices on a sample-clocked audio graph and approximates pedal behavior
// on the master chain. The graph is built lazily on first use; when no
// graph can be constructed every call degrades to a no-op.
type Synth struct {
	sampleRate int
	params     *Params
	log        *zap.Logger

	graph    *Graph
	registry *VoiceRegistry
	voices   []*Voice
	pedals   pedalState

	room       *RoomConvolver
	toneFilter *dsp.Biquad
	started    bool
}

// NewSynth creates a synthesis backend. Nothing is allocated on the graph
// until the first play.
func NewSynth(sampleRate int, params *Params, log *zap.Logger) *Synth {
	if params == nil {
		params = NewDefaultParams()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Synth{
		sampleRate: sampleRate,
		params:     params,
		log:        log,
		registry:   NewVoiceRegistry(),
		pedals:     newPedalState(),
	}
}

// ensureStarted builds the audio graph on first use. Idempotent; returns
// false when synthesis is unavailable.
func (s *Synth) ensureStarted() bool {
	if s.started {
		return true
	}
	if s.sampleRate <= 0 {
		s.log.Warn("synth unavailable", zap.Int("sample_rate", s.sampleRate))
		return false
	}

	gain := s.params.OutputGain
	if gain <= 0 {
		gain = 1.0
	}
	s.graph = newGraph(s.sampleRate, gain)

	if s.params.ToneCutoffHz > 0 {
		s.toneFilter = dsp.NewLowpass(float32(s.params.ToneCutoffHz), float32(s.sampleRate), 0.707)
	}
	if s.params.RoomIRWavPath != "" && s.params.RoomWetMix > 0 {
		room := NewRoomConvolver(s.sampleRate)
		if err := room.SetIRFromWAV(s.params.RoomIRWavPath); err != nil {
			s.log.Warn("room IR load failed",
				zap.String("path", s.params.RoomIRWavPath), zap.Error(err))
		} else {
			s.room = room
		}
	}

	s.started = true
	s.log.Info("synth started", zap.Int("sample_rate", s.sampleRate))
	return true
}

// PlayNote starts one additive voice. With the damper down the voice is
// created held: its envelope stays open until the damper is released or
// all notes are stopped.
func (s *Synth) PlayNote(n Note) {
	if !s.ensureStarted() {
		return
	}
	v := newVoice(s.graph, s.registry, n, s.pedals.damperDown())
	s.voices = append(s.voices, v)
}

// PlayChord starts all notes of the chord within the same scheduling
// tick; the graph clock only advances inside Process, so the voices are
// exactly simultaneous.
func (s *Synth) PlayChord(c Chord) {
	if !s.ensureStarted() {
		return
	}
	for _, n := range c.Notes {
		v := newVoice(s.graph, s.registry, n, s.pedals.damperDown())
		s.voices = append(s.voices, v)
	}
}

// Pedal applies a pedal controller change to the synthesis path.
func (s *Synth) Pedal(ev PedalEvent) {
	if !s.ensureStarted() {
		return
	}
	switch ev.Kind {
	case PedalSostenuto:
		s.applySostenuto(ev.Value)
	case PedalSoft:
		s.applySoft(ev.Value)
	default:
		s.applyDamper(ev.Value)
	}
}

// AllNotesOff force-stops every tracked oscillator, clears the registry,
// and resets damper/sostenuto holds.
func (s *Synth) AllNotesOff() {
	if !s.started {
		return
	}
	stopped := s.registry.StopAll()
	for _, v := range s.voices {
		v.stop()
	}
	s.voices = nil
	s.pedals.resetHolds()
	if stopped > 0 {
		s.log.Debug("all notes off", zap.Int("oscillators", stopped))
	}
}

// Process renders a stereo interleaved block and advances the synthesis
// clock. Voices past their stop time are swept and their registry
// bookkeeping cleared at the end of the block.
func (s *Synth) Process(numFrames int) []float32 {
	if numFrames <= 0 {
		return nil
	}
	if !s.started {
		return make([]float32, numFrames*2)
	}

	mono := s.graph.Process(numFrames)
	if s.toneFilter != nil {
		for i := range mono {
			mono[i] = s.toneFilter.Process(mono[i])
		}
	}

	out := make([]float32, numFrames*2)
	if s.room != nil {
		wet := s.room.Process(mono)
		wetMix := float32(s.params.RoomWetMix)
		roomGain := float32(s.params.RoomGain)
		for i, m := range mono {
			out[i*2] = m + wetMix*wet[i*2]*roomGain
			out[i*2+1] = m + wetMix*wet[i*2+1]*roomGain
		}
	} else {
		for i, m := range mono {
			out[i*2] = m
			out[i*2+1] = m
		}
	}

	now := s.graph.Now()
	live := s.voices[:0]
	for _, v := range s.voices {
		if v.sounding(now) {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(s.voices); i++ {
		s.voices[i] = nil
	}
	s.voices = live
	s.registry.clearDone(now)

	return out
}

// Registry exposes the active-voice registry.
func (s *Synth) Registry() *VoiceRegistry {
	return s.registry
}

// Now returns the synthesis clock time in seconds, or zero before the
// graph has started.
func (s *Synth) Now() float64 {
	if !s.started {
		return 0
	}
	return s.graph.Now()
}

// MasterGain exposes the master gain parameter, or nil before start.
func (s *Synth) MasterGain() *Gain {
	if !s.started {
		return nil
	}
	return s.graph.Master()
}
