package tone

const (
	attackSeconds      = 0.010
	releaseTailSeconds = 0.100
)

// Partials above the fundamental and their relative gains.
var (
	harmonicRatios = []float64{2.0, 3.0, 4.0, 5.0}
	harmonicGains  = []float64{0.5, 0.25, 0.125, 0.06}
)

// Voice is one note's full oscillator and envelope chain: a sine
// fundamental plus four harmonics feeding one shared envelope gain. A
// voice is created on play, silenced when its scheduled stop elapses or
// when force-stopped, and never reused.
type Voice struct {
	pitch    int
	velocity int
	env      *Gain
	oscs     []*Oscillator
	startAt  float64
	duration float64 // seconds
	held     bool
	released bool
}

// newVoice builds the additive bank for a note and schedules its envelope:
// a 10 ms linear attack to velocity/127, a hold until duration minus the
// release tail (clamped to the attack end), and a linear release ending at
// duration plus the tail. The tail keeps a hard sine stop from clicking.
// When held, the envelope opens and stays at its peak until release is
// called. All created oscillators are registered under the note's pitch.
func newVoice(g *Graph, reg *VoiceRegistry, n Note, held bool) *Voice {
	t0 := g.Now()
	durS := n.Duration.Seconds()
	peak := velocityToGain(n.Velocity)

	v := &Voice{
		pitch:    n.Pitch,
		velocity: n.Velocity,
		env:      newGain(0),
		oscs:     make([]*Oscillator, 0, 1+len(harmonicRatios)),
		startAt:  t0,
		duration: durS,
		held:     held,
	}

	freq := midiNoteToFreq(n.Pitch)
	v.oscs = append(v.oscs, g.addOscillator(freq, 1.0, v.env))
	for i, ratio := range harmonicRatios {
		v.oscs = append(v.oscs, g.addOscillator(freq*ratio, harmonicGains[i]*peak, v.env))
	}

	v.env.SetValueAt(0, t0)
	v.env.LinearRampTo(peak, t0+attackSeconds)
	if !held {
		stopT := t0 + durS + releaseTailSeconds
		holdEnd := maxf(t0+durS-releaseTailSeconds, t0+attackSeconds)
		v.env.LinearRampTo(peak, holdEnd)
		v.env.LinearRampTo(0, stopT)
		for _, o := range v.oscs {
			o.StopAt(stopT)
		}
	}

	reg.Add(n.Pitch, v.oscs...)
	return v
}

// holdOpen cancels any pending release so the voice keeps sounding at its
// current level until an explicit release.
func (v *Voice) holdOpen(now float64) {
	v.held = true
	v.released = false
	v.env.CancelAfter(now)
	for _, o := range v.oscs {
		o.holdOpen()
	}
}

// release ramps the envelope down over the release tail and schedules the
// oscillators to stop with it.
func (v *Voice) release(now float64) {
	if v.released {
		return
	}
	v.held = false
	v.released = true
	v.env.CancelAfter(now)
	v.env.LinearRampTo(0, now+releaseTailSeconds)
	for _, o := range v.oscs {
		o.StopAt(now + releaseTailSeconds)
	}
}

// stop force-stops every oscillator immediately, ignoring double-stops.
func (v *Voice) stop() {
	for _, o := range v.oscs {
		_ = o.Stop()
	}
	v.held = false
	v.released = true
}

// sounding reports whether any oscillator can still produce output at t.
func (v *Voice) sounding(t float64) bool {
	for _, o := range v.oscs {
		if !o.done(t) {
			return true
		}
	}
	return false
}
