package tone

import (
	"testing"
	"time"
)

func TestNoteValidateRejectsOutOfRange(t *testing.T) {
	cases := []Note{
		{Pitch: -1, Velocity: 100, Duration: time.Second},
		{Pitch: 128, Velocity: 100, Duration: time.Second},
		{Pitch: 60, Velocity: -1, Duration: time.Second},
		{Pitch: 60, Velocity: 128, Duration: time.Second},
		{Pitch: 60, Velocity: 100, Duration: 0},
		{Pitch: 60, Velocity: 100, Duration: -time.Second},
	}
	for i, n := range cases {
		if err := n.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, n)
		}
	}
	ok := Note{Pitch: 60, Velocity: 100, Duration: 500 * time.Millisecond}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error for valid note: %v", err)
	}
}

func TestChordValidateChecksEveryNote(t *testing.T) {
	c := Chord{Notes: []Note{
		{Pitch: 60, Velocity: 100, Duration: time.Second},
		{Pitch: 200, Velocity: 100, Duration: time.Second},
	}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for chord with invalid note")
	}
	if err := (Chord{}).Validate(); err == nil {
		t.Fatalf("expected error for empty chord")
	}
}

func TestPedalKindControllerMapping(t *testing.T) {
	if got := PedalDamper.Controller(); got != 64 {
		t.Fatalf("damper controller: got %d want 64", got)
	}
	if got := PedalSostenuto.Controller(); got != 66 {
		t.Fatalf("sostenuto controller: got %d want 66", got)
	}
	if got := PedalSoft.Controller(); got != 67 {
		t.Fatalf("soft controller: got %d want 67", got)
	}
}

func TestParseOutputMode(t *testing.T) {
	if m, err := ParseOutputMode("webaudio"); err != nil || m != ModeSynth {
		t.Fatalf("webaudio: got %v, %v", m, err)
	}
	if m, err := ParseOutputMode("midi"); err != nil || m != ModeMIDI {
		t.Fatalf("midi: got %v, %v", m, err)
	}
	if _, err := ParseOutputMode("bogus"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
