package tone

import (
	"fmt"
	"time"
)

// Note is one sounding event: a MIDI pitch with velocity and duration.
type Note struct {
	Pitch    int
	Velocity int
	Duration time.Duration
}

// Validate rejects out-of-range pitch/velocity and non-positive durations.
// These indicate an upstream contract violation, not an environment issue.
func (n Note) Validate() error {
	if n.Pitch < 0 || n.Pitch > 127 {
		return fmt.Errorf("pitch %d out of range 0..127", n.Pitch)
	}
	if n.Velocity < 0 || n.Velocity > 127 {
		return fmt.Errorf("velocity %d out of range 0..127", n.Velocity)
	}
	if n.Duration <= 0 {
		return fmt.Errorf("duration %v must be positive", n.Duration)
	}
	return nil
}

// Chord is a set of notes started simultaneously. Order carries no meaning.
type Chord struct {
	Notes []Note
}

// Validate checks every note in the chord.
func (c Chord) Validate() error {
	if len(c.Notes) == 0 {
		return fmt.Errorf("empty chord")
	}
	for i, n := range c.Notes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("chord note %d: %w", i, err)
		}
	}
	return nil
}

// PedalKind identifies one of the three piano pedals.
type PedalKind int

const (
	PedalDamper PedalKind = iota
	PedalSostenuto
	PedalSoft
)

// Controller returns the MIDI CC number for the pedal.
func (k PedalKind) Controller() uint8 {
	switch k {
	case PedalSostenuto:
		return 66
	case PedalSoft:
		return 67
	default:
		return 64
	}
}

func (k PedalKind) String() string {
	switch k {
	case PedalSostenuto:
		return "sostenuto"
	case PedalSoft:
		return "soft"
	default:
		return "damper"
	}
}

// PedalEvent carries a pedal controller change. Value > 0 means depressed,
// 0 means released. The new level persists until the next event of the
// same kind.
type PedalEvent struct {
	Kind  PedalKind
	Value int
}

// Down reports whether the event depresses the pedal.
func (e PedalEvent) Down() bool {
	return e.Value > 0
}

// Validate rejects out-of-range controller values.
func (e PedalEvent) Validate() error {
	if e.Value < 0 || e.Value > 127 {
		return fmt.Errorf("pedal value %d out of range 0..127", e.Value)
	}
	return nil
}

// OutputMode selects the rendering backend.
type OutputMode int

const (
	// ModeSynth renders notes with the in-process additive synthesizer.
	ModeSynth OutputMode = iota
	// ModeMIDI passes events through to an external MIDI output device.
	ModeMIDI
)

func (m OutputMode) String() string {
	if m == ModeMIDI {
		return "midi"
	}
	return "webaudio"
}

// ParseOutputMode maps the wire-level mode names used by the event source.
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "webaudio", "synth":
		return ModeSynth, nil
	case "midi":
		return ModeMIDI, nil
	}
	return ModeSynth, fmt.Errorf("unknown output mode %q", s)
}
