package tone

import (
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// messageRecorder captures sent MIDI messages; timers deliver Note-Offs
// on runtime goroutines, so it locks.
type messageRecorder struct {
	mu   sync.Mutex
	msgs []midi.Message
}

func (r *messageRecorder) send(msg midi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *messageRecorder) snapshot() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]midi.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func newTestMIDIOut(rec *messageRecorder) *MIDIOut {
	m := NewMIDIOut(nil, nil)
	m.granted = true
	m.send = rec.send
	m.portName = "test device"
	return m
}

func wantBytes(t *testing.T, got midi.Message, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("message %v: want %v", []byte(got), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %v: want %v", []byte(got), want)
		}
	}
}

func TestMIDIOutPlayNoteSendsNoteOn(t *testing.T) {
	rec := &messageRecorder{}
	m := newTestMIDIOut(rec)

	m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: time.Hour})

	msgs := rec.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	wantBytes(t, msgs[0], []byte{0x90, 60, 100})
	m.Close()
}

func TestMIDIOutNoteOffFiresAfterDuration(t *testing.T) {
	rec := &messageRecorder{}
	m := newTestMIDIOut(rec)

	m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: 10 * time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(rec.snapshot()) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("note-off never arrived, messages: %v", rec.snapshot())
		}
		time.Sleep(2 * time.Millisecond)
	}

	msgs := rec.snapshot()
	wantBytes(t, msgs[0], []byte{0x90, 60, 100})
	wantBytes(t, msgs[1], []byte{0x80, 60, 0})

	m.mu.Lock()
	pending := len(m.pending[60])
	m.mu.Unlock()
	if pending != 0 {
		t.Fatalf("expired timer not forgotten, %d pending", pending)
	}
	m.Close()
}

func TestMIDIOutPlayChordSendsAllNoteOns(t *testing.T) {
	rec := &messageRecorder{}
	m := newTestMIDIOut(rec)

	m.PlayChord(Chord{Notes: []Note{
		{Pitch: 60, Velocity: 90, Duration: time.Hour},
		{Pitch: 64, Velocity: 90, Duration: time.Hour},
		{Pitch: 67, Velocity: 90, Duration: time.Hour},
	}})

	msgs := rec.snapshot()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, pitch := range []byte{60, 64, 67} {
		wantBytes(t, msgs[i], []byte{0x90, pitch, 90})
	}
	m.Close()
}

func TestMIDIOutPedalSendsControlChange(t *testing.T) {
	cases := []struct {
		kind PedalKind
		cc   byte
	}{
		{PedalDamper, 64},
		{PedalSostenuto, 66},
		{PedalSoft, 67},
	}
	for _, tc := range cases {
		rec := &messageRecorder{}
		m := newTestMIDIOut(rec)
		m.Pedal(PedalEvent{Kind: tc.kind, Value: 127})
		m.Pedal(PedalEvent{Kind: tc.kind, Value: 0})

		msgs := rec.snapshot()
		if len(msgs) != 2 {
			t.Fatalf("%v: expected 2 messages, got %d", tc.kind, len(msgs))
		}
		wantBytes(t, msgs[0], []byte{0xB0, tc.cc, 127})
		wantBytes(t, msgs[1], []byte{0xB0, tc.cc, 0})
		m.Close()
	}
}

func TestMIDIOutAllNotesOffCancelsTimersAndResets(t *testing.T) {
	rec := &messageRecorder{}
	m := newTestMIDIOut(rec)

	m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: 50 * time.Millisecond})
	m.PlayNote(Note{Pitch: 64, Velocity: 100, Duration: 50 * time.Millisecond})
	m.AllNotesOff()

	m.mu.Lock()
	pending := len(m.pending)
	m.mu.Unlock()
	if pending != 0 {
		t.Fatalf("timers not cancelled, %d pitches pending", pending)
	}

	msgs := rec.snapshot()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d: %v", len(msgs), msgs)
	}
	wantBytes(t, msgs[2], []byte{0xB0, 123, 0})
	wantBytes(t, msgs[3], []byte{0xB0, 121, 0})

	// The cancelled timers must not deliver late Note-Offs.
	time.Sleep(100 * time.Millisecond)
	if got := len(rec.snapshot()); got != 4 {
		t.Fatalf("late note-off after cancellation, %d messages", got)
	}
	m.Close()
}

func TestMIDIOutChannelSetsStatusNibble(t *testing.T) {
	params := NewDefaultParams()
	params.MIDIChannel = 9
	rec := &messageRecorder{}
	m := NewMIDIOut(params, nil)
	m.granted = true
	m.send = rec.send

	m.PlayNote(Note{Pitch: 36, Velocity: 110, Duration: time.Hour})
	wantBytes(t, rec.snapshot()[0], []byte{0x99, 36, 110})
	m.Close()
}

func TestMIDIOutWithoutDeviceIsNoop(t *testing.T) {
	m := NewMIDIOut(nil, nil)

	// No Negotiate: every dispatch degrades to a no-op without panicking.
	m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: time.Millisecond})
	m.PlayChord(Chord{Notes: []Note{{Pitch: 60, Velocity: 100, Duration: time.Millisecond}}})
	m.Pedal(PedalEvent{Kind: PedalDamper, Value: 127})
	m.AllNotesOff()

	if m.Connected() {
		t.Fatal("expected no device")
	}
	if m.DeviceName() != "" {
		t.Fatalf("unexpected device name %q", m.DeviceName())
	}
	m.Close()
}

type fakeOut struct {
	name string
	open bool
	sent [][]byte
}

func (o *fakeOut) Open() error             { o.open = true; return nil }
func (o *fakeOut) Close() error            { o.open = false; return nil }
func (o *fakeOut) IsOpen() bool            { return o.open }
func (o *fakeOut) Number() int             { return 0 }
func (o *fakeOut) String() string          { return o.name }
func (o *fakeOut) Underlying() interface{} { return nil }
func (o *fakeOut) Send(b []byte) error {
	o.sent = append(o.sent, append([]byte(nil), b...))
	return nil
}

type fakeDriver struct {
	outs []drivers.Out
}

func (d *fakeDriver) Ins() ([]drivers.In, error)   { return nil, nil }
func (d *fakeDriver) Outs() ([]drivers.Out, error) { return d.outs, nil }
func (d *fakeDriver) String() string               { return "fake" }
func (d *fakeDriver) Close() error                 { return nil }

func TestMIDIOutRescanSelectsFirstAvailable(t *testing.T) {
	outA := &fakeOut{name: "Device A"}
	outB := &fakeOut{name: "Device B"}
	drv := &fakeDriver{outs: []drivers.Out{outA, outB}}

	m := NewMIDIOut(&Params{}, nil)
	m.drv = drv
	m.granted = true

	m.Rescan()
	if !m.Connected() || m.DeviceName() != "Device A" {
		t.Fatalf("expected first device selected, got %q", m.DeviceName())
	}

	// Selected device still listed: rescan keeps it.
	m.Rescan()
	if m.DeviceName() != "Device A" {
		t.Fatalf("rescan dropped a present device, got %q", m.DeviceName())
	}
}

func TestMIDIOutRescanHandlesUnplugAndReplug(t *testing.T) {
	outA := &fakeOut{name: "Device A"}
	outB := &fakeOut{name: "Device B"}
	drv := &fakeDriver{outs: []drivers.Out{outA, outB}}

	m := NewMIDIOut(&Params{}, nil)
	m.drv = drv
	m.granted = true
	m.Rescan()

	// The selected device disappears: selection falls to the next one.
	drv.outs = []drivers.Out{outB}
	m.Rescan()
	if m.DeviceName() != "Device B" {
		t.Fatalf("expected re-selection after unplug, got %q", m.DeviceName())
	}
	if outA.open {
		t.Fatal("unplugged device port left open")
	}

	// All devices gone: dispatch degrades to no-op.
	drv.outs = nil
	m.Rescan()
	if m.Connected() {
		t.Fatalf("expected no device, got %q", m.DeviceName())
	}
	m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: time.Millisecond})
	if len(outB.sent) != 0 {
		t.Fatalf("note sent to an unplugged device: %v", outB.sent)
	}

	// Plug-in after the outage: first-available applies again.
	drv.outs = []drivers.Out{outA}
	m.Rescan()
	if m.DeviceName() != "Device A" {
		t.Fatalf("expected re-selection after replug, got %q", m.DeviceName())
	}
}

func TestMIDIOutRescanRespectsExclusions(t *testing.T) {
	through := &fakeOut{name: "Midi Through Port-0"}
	usb := &fakeOut{name: "USB Synth"}
	drv := &fakeDriver{outs: []drivers.Out{through, usb}}

	m := NewMIDIOut(nil, nil)
	m.drv = drv
	m.granted = true
	m.Rescan()

	if m.DeviceName() != "USB Synth" {
		t.Fatalf("expected through port skipped, got %q", m.DeviceName())
	}
}

func TestMIDIOutImmediateNoteOffLeavesNoPendingTokens(t *testing.T) {
	rec := &messageRecorder{}
	m := newTestMIDIOut(rec)

	const notes = 32
	for i := 0; i < notes; i++ {
		m.PlayNote(Note{Pitch: 60, Velocity: 100, Duration: time.Nanosecond})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(rec.snapshot()) >= notes*2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("missing note-offs, %d messages", len(rec.snapshot()))
		}
		time.Sleep(time.Millisecond)
	}

	m.mu.Lock()
	pending := len(m.pending)
	m.mu.Unlock()
	if pending != 0 {
		t.Fatalf("fired timers left %d pitches pending", pending)
	}
	m.Close()
}

func TestMatchesAnyFoldsCase(t *testing.T) {
	if !matchesAny("Midi Through Port-0", []string{"midi through"}) {
		t.Fatal("expected case-insensitive substring match")
	}
	if matchesAny("USB Synth", []string{"through", "dummy"}) {
		t.Fatal("unexpected match")
	}
}
