package tone

import (
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

const (
	ccResetAllControllers = 121
	ccAllNotesOff         = 123
)

const midiRescanInterval = 1000 * time.Millisecond

// noteOffToken pairs a scheduled Note-Off with its cancellation handle.
// The timer field is only touched under the owning MIDIOut's mutex; the
// fired callback identifies itself by the token, not the timer.
type noteOffToken struct {
	timer *time.Timer
}

// MIDIOut is the external-device backend. It owns driver negotiation,
// first-available device selection with hot-plug rescans, and the
// duration-keyed Note-Off timers. Timers fire on runtime goroutines, so
// all state is guarded by the mutex.
type MIDIOut struct {
	mu  sync.Mutex
	log *zap.Logger

	channel   uint8
	preferred []string
	excluded  []string

	drv      drivers.Driver
	port     drivers.Out
	send     func(midi.Message) error
	granted  bool
	portName string

	// pending Note-Off cancellation tokens per pitch.
	pending map[int][]*noteOffToken

	stopWatch chan struct{}
}

// NewMIDIOut creates the MIDI backend without touching the driver; call
// Negotiate before dispatching.
func NewMIDIOut(params *Params, log *zap.Logger) *MIDIOut {
	if params == nil {
		params = NewDefaultParams()
	}
	if log == nil {
		log = zap.NewNop()
	}
	ch := params.MIDIChannel
	if ch < 0 || ch > 15 {
		ch = 0
	}
	return &MIDIOut{
		log:       log,
		channel:   uint8(ch),
		preferred: params.MIDIPreferred,
		excluded:  params.MIDIExcluded,
		pending:   make(map[int][]*noteOffToken),
	}
}

// Negotiate requests MIDI access and selects the first available output
// device. It never propagates failure: a missing driver or empty device
// list degrades to "no device" and every dispatch becomes a no-op.
func (m *MIDIOut) Negotiate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.drv == nil {
		drv, err := newMIDIDriver()
		if err != nil {
			m.granted = false
			m.log.Warn("midi access unavailable", zap.Error(err))
			return
		}
		m.drv = drv
	}
	m.granted = true
	m.selectLocked()
	m.startWatchLocked()
}

// Rescan re-runs device selection with the same first-available rule
// after the device list may have changed (hot-plug or hot-unplug).
func (m *MIDIOut) Rescan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.granted || m.drv == nil {
		return
	}
	if m.port != nil {
		outs, err := m.drv.Outs()
		if err == nil {
			for _, out := range outs {
				if out.String() == m.portName {
					return
				}
			}
		}
		m.log.Warn("midi device disappeared", zap.String("device", m.portName))
		m.closePortLocked()
	}
	m.selectLocked()
}

// Connected reports whether a device is selected.
func (m *MIDIOut) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send != nil
}

// DeviceName returns the selected device name, or "".
func (m *MIDIOut) DeviceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portName
}

// PlayNote sends a Note-On and schedules the matching Note-Off after the
// note's duration, retaining the cancellation token per pitch.
func (m *MIDIOut) PlayNote(n Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playNoteLocked(n)
}

// PlayChord sends all Note-Ons of the chord under one lock acquisition so
// the dispatches cannot interleave with a stop or a mode switch.
func (m *MIDIOut) PlayChord(c Chord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range c.Notes {
		m.playNoteLocked(n)
	}
}

func (m *MIDIOut) playNoteLocked(n Note) {
	if m.send == nil {
		return
	}
	if err := m.send(midi.NoteOn(m.channel, uint8(n.Pitch), uint8(n.Velocity))); err != nil {
		m.dropPortLocked(err)
		return
	}
	pitch := n.Pitch
	tok := &noteOffToken{}
	tok.timer = time.AfterFunc(n.Duration, func() {
		m.noteOff(pitch, tok)
	})
	m.pending[pitch] = append(m.pending[pitch], tok)
}

func (m *MIDIOut) noteOff(pitch int, tok *noteOffToken) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forgetTokenLocked(pitch, tok)
	if m.send == nil {
		return
	}
	if err := m.send(midi.NoteOff(m.channel, uint8(pitch))); err != nil {
		m.dropPortLocked(err)
	}
}

// Pedal forwards the controller change unmodified; the receiving device
// owns the pedal semantics.
func (m *MIDIOut) Pedal(ev PedalEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.send == nil {
		return
	}
	if err := m.send(midi.ControlChange(m.channel, ev.Kind.Controller(), uint8(ev.Value))); err != nil {
		m.dropPortLocked(err)
	}
}

// AllNotesOff cancels every pending Note-Off timer synchronously, then
// sends CC 123 (all notes off) and CC 121 (reset all controllers).
func (m *MIDIOut) AllNotesOff() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimersLocked()
	if m.send == nil {
		return
	}
	if err := m.send(midi.ControlChange(m.channel, ccAllNotesOff, 0)); err != nil {
		m.dropPortLocked(err)
		return
	}
	if err := m.send(midi.ControlChange(m.channel, ccResetAllControllers, 0)); err != nil {
		m.dropPortLocked(err)
	}
}

// Close silences the device and shuts down the driver.
func (m *MIDIOut) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimersLocked()
	m.closePortLocked()
	if m.stopWatch != nil {
		close(m.stopWatch)
		m.stopWatch = nil
	}
	if m.drv != nil {
		m.drv.Close()
		m.drv = nil
	}
	m.granted = false
}

// startWatchLocked spawns the hot-plug watcher: a periodic Rescan so a
// device unplugged or plugged in after negotiation is picked up with the
// same first-available rule. Runs until Close.
func (m *MIDIOut) startWatchLocked() {
	if m.stopWatch != nil {
		return
	}
	stop := make(chan struct{})
	m.stopWatch = stop
	go func() {
		ticker := time.NewTicker(midiRescanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Rescan()
			}
		}
	}()
}

func (m *MIDIOut) selectLocked() {
	if m.port != nil {
		return
	}
	outs, err := m.drv.Outs()
	if err != nil {
		m.log.Warn("midi device listing failed", zap.Error(err))
		return
	}

	var candidates []drivers.Out
	for _, out := range outs {
		if matchesAny(out.String(), m.excluded) {
			continue
		}
		candidates = append(candidates, out)
	}
	if len(candidates) == 0 {
		m.log.Info("no midi output devices")
		return
	}

	chosen := candidates[0]
	for _, pat := range m.preferred {
		found := false
		for _, out := range candidates {
			if containsFold(out.String(), pat) {
				chosen = out
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	if err := chosen.Open(); err != nil {
		m.log.Warn("midi device open failed",
			zap.String("device", chosen.String()), zap.Error(err))
		return
	}
	send, err := midi.SendTo(chosen)
	if err != nil {
		_ = chosen.Close()
		m.log.Warn("midi device send setup failed",
			zap.String("device", chosen.String()), zap.Error(err))
		return
	}

	m.port = chosen
	m.send = send
	m.portName = chosen.String()
	m.log.Info("midi device connected", zap.String("device", m.portName))
}

func (m *MIDIOut) dropPortLocked(err error) {
	m.log.Warn("midi send failed", zap.String("device", m.portName), zap.Error(err))
	m.closePortLocked()
}

func (m *MIDIOut) closePortLocked() {
	if m.port != nil {
		_ = m.port.Close()
		m.port = nil
	}
	m.send = nil
	m.portName = ""
}

func (m *MIDIOut) cancelTimersLocked() {
	for pitch, toks := range m.pending {
		for _, tok := range toks {
			tok.timer.Stop()
		}
		delete(m.pending, pitch)
	}
}

func (m *MIDIOut) forgetTokenLocked(pitch int, tok *noteOffToken) {
	toks := m.pending[pitch]
	for i, t := range toks {
		if t == tok {
			m.pending[pitch] = append(toks[:i], toks[i+1:]...)
			break
		}
	}
	if len(m.pending[pitch]) == 0 {
		delete(m.pending, pitch)
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsFold(name, pat) {
			return true
		}
	}
	return false
}

func containsFold(s string, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
