package tone

// VoiceRegistry maps each sounding pitch to its native oscillator handles
// so an all-notes-off can deterministically halt every voice. It is owned
// by one engine instance; independent engines never share a registry.
type VoiceRegistry struct {
	entries map[int][]*Oscillator
}

// NewVoiceRegistry creates an empty registry.
func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{entries: make(map[int][]*Oscillator)}
}

// Add records oscillator handles under a pitch.
func (r *VoiceRegistry) Add(pitch int, oscs ...*Oscillator) {
	if len(oscs) == 0 {
		return
	}
	r.entries[pitch] = append(r.entries[pitch], oscs...)
}

// Handles returns the tracked oscillators for a pitch.
func (r *VoiceRegistry) Handles(pitch int) []*Oscillator {
	return r.entries[pitch]
}

// Pitches returns the pitches currently tracked.
func (r *VoiceRegistry) Pitches() []int {
	out := make([]int, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	return out
}

// Len returns the number of tracked pitches.
func (r *VoiceRegistry) Len() int {
	return len(r.entries)
}

// Clear drops the bookkeeping for one pitch without stopping anything.
func (r *VoiceRegistry) Clear(pitch int) {
	delete(r.entries, pitch)
}

// StopAll force-stops every tracked oscillator and empties the registry.
// Stops racing an already-elapsed natural stop are ignored. Returns the
// number of oscillators that were still running.
func (r *VoiceRegistry) StopAll() int {
	stopped := 0
	for pitch, oscs := range r.entries {
		for _, o := range oscs {
			if err := o.Stop(); err == nil {
				stopped++
			}
		}
		delete(r.entries, pitch)
	}
	return stopped
}

// clearDone removes pitches whose every oscillator has stopped or passed
// its scheduled stop time.
func (r *VoiceRegistry) clearDone(t float64) {
	for pitch, oscs := range r.entries {
		done := true
		for _, o := range oscs {
			if !o.done(t) {
				done = false
				break
			}
		}
		if done {
			delete(r.entries, pitch)
		}
	}
}
