package tone

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Backend is the capability set both rendering paths implement.
type Backend interface {
	PlayNote(Note)
	PlayChord(Chord)
	Pedal(PedalEvent)
	AllNotesOff()
}

// Engine is the public entry point. It classifies incoming events, routes
// them to the selected backend, and guarantees that switching backends
// can never leave the previous one sounding: the active backend is always
// silenced before the mode flag changes.
type Engine struct {
	mu     sync.Mutex
	log    *zap.Logger
	params *Params

	mode  OutputMode
	synth *Synth
	midi  *MIDIOut

	synthBackend Backend
	midiBackend  Backend
	active       Backend
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger installs a structured logger; the default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine rendering through the synthesis backend.
// MIDI access is negotiated lazily on the first switch to ModeMIDI.
func NewEngine(sampleRate int, params *Params, opts ...Option) *Engine {
	if params == nil {
		params = NewDefaultParams()
	}
	e := &Engine{
		log:    zap.NewNop(),
		params: params,
		mode:   ModeSynth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.synth = NewSynth(sampleRate, params, e.log)
	e.midi = NewMIDIOut(params, e.log)
	e.synthBackend = e.synth
	e.midiBackend = e.midi
	e.active = e.synthBackend
	return e
}

// PlayNote renders one note on the active backend. Out-of-range input is
// rejected here; it indicates an upstream contract violation.
func (e *Engine) PlayNote(n Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("play note: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active.PlayNote(n)
	return nil
}

// PlayChord renders all notes of a chord simultaneously on the active
// backend.
func (e *Engine) PlayChord(c Chord) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("play chord: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active.PlayChord(c)
	return nil
}

// Pedal applies a pedal controller change on the active backend.
func (e *Engine) Pedal(ev PedalEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("pedal: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active.Pedal(ev)
	return nil
}

// SetSustain forwards a damper pedal event with value 127 or 0.
func (e *Engine) SetSustain(on bool) {
	value := 0
	if on {
		value = 127
	}
	_ = e.Pedal(PedalEvent{Kind: PedalDamper, Value: value})
}

// SetOutputMode switches the rendering backend. The previously active
// backend is stopped before the mode changes, so a switch during active
// sound cannot orphan voices or device notes.
func (e *Engine) SetOutputMode(mode OutputMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == e.mode {
		return
	}
	e.active.AllNotesOff()
	e.mode = mode
	if mode == ModeMIDI {
		if m, ok := e.midiBackend.(*MIDIOut); ok {
			m.Negotiate()
		}
		e.active = e.midiBackend
	} else {
		e.active = e.synthBackend
	}
	e.log.Info("output mode changed", zap.Stringer("mode", mode))
}

// Mode returns the currently selected output mode.
func (e *Engine) Mode() OutputMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// AllNotesOff silences the active backend and resets pedal holds.
func (e *Engine) AllNotesOff() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active.AllNotesOff()
}

// Process renders the next stereo interleaved block of the synthesis
// path and advances its clock. In MIDI mode the synthesis graph is
// silent, so the block is zero after its release tails drain.
func (e *Engine) Process(numFrames int) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synth.Process(numFrames)
}

// Synth exposes the synthesis backend.
func (e *Engine) Synth() *Synth {
	return e.synth
}

// MIDI exposes the MIDI backend.
func (e *Engine) MIDI() *MIDIOut {
	return e.midi
}

// Close releases the MIDI driver and device.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.midi.Close()
}
