package tone

import (
	"errors"
	"math"
)

// gainAnchor is one scheduled point on an automation curve.
type gainAnchor struct {
	t float64
	v float64
}

// Gain is a scalar parameter scheduled against the graph clock. Values
// between anchors are linearly interpolated, so consecutive anchors form
// linear ramps. Before the first anchor the parameter sits at its base
// value; after the last it holds the final value.
type Gain struct {
	base    float64
	anchors []gainAnchor
}

func newGain(base float64) *Gain {
	return &Gain{base: base}
}

// Base returns the unscheduled value of the parameter.
func (g *Gain) Base() float64 {
	return g.base
}

// ValueAt evaluates the automation curve at time t.
func (g *Gain) ValueAt(t float64) float64 {
	if len(g.anchors) == 0 {
		return g.base
	}
	if t < g.anchors[0].t {
		return g.base
	}
	for i := 0; i < len(g.anchors)-1; i++ {
		a, b := g.anchors[i], g.anchors[i+1]
		if t >= b.t {
			continue
		}
		if b.t == a.t {
			return b.v
		}
		frac := (t - a.t) / (b.t - a.t)
		return a.v + frac*(b.v-a.v)
	}
	return g.anchors[len(g.anchors)-1].v
}

// SetValueAt schedules an immediate jump to v at time t, discarding any
// previously scheduled anchors at or after t.
func (g *Gain) SetValueAt(v float64, t float64) {
	g.truncateFrom(t)
	g.anchors = append(g.anchors, gainAnchor{t: t, v: v})
}

// LinearRampTo schedules a linear ramp ending at value v at time t. The
// ramp starts from the previous anchor; with no previous anchor the value
// jumps to v at t.
func (g *Gain) LinearRampTo(v float64, t float64) {
	g.truncateFrom(t)
	g.anchors = append(g.anchors, gainAnchor{t: t, v: v})
}

// CancelAfter freezes the parameter at its value at time t and discards
// every later anchor.
func (g *Gain) CancelAfter(t float64) {
	v := g.ValueAt(t)
	g.truncateFrom(t)
	g.anchors = append(g.anchors, gainAnchor{t: t, v: v})
}

func (g *Gain) truncateFrom(t float64) {
	for len(g.anchors) > 0 && g.anchors[len(g.anchors)-1].t >= t {
		g.anchors = g.anchors[:len(g.anchors)-1]
	}
}

var errOscillatorStopped = errors.New("oscillator already stopped")

// Oscillator is one sine node feeding a shared envelope gain. It starts
// at its creation time and runs until its scheduled stop time elapses or
// it is force-stopped.
type Oscillator struct {
	freq    float64
	gain    float64
	env     *Gain
	phase   float64
	startAt float64
	stopAt  float64
	stopped bool
}

// Frequency returns the oscillator frequency in Hz.
func (o *Oscillator) Frequency() float64 {
	return o.freq
}

// StopAt schedules the oscillator to go silent at time t.
func (o *Oscillator) StopAt(t float64) {
	if !o.stopped {
		o.stopAt = t
	}
}

// Stop silences the oscillator immediately. Stopping an already-stopped
// oscillator returns errOscillatorStopped; callers racing a natural stop
// ignore it.
func (o *Oscillator) Stop() error {
	if o.stopped {
		return errOscillatorStopped
	}
	o.stopped = true
	return nil
}

// holdOpen removes a pending scheduled stop so a pedal can keep the
// oscillator sounding past its natural duration.
func (o *Oscillator) holdOpen() {
	if !o.stopped {
		o.stopAt = math.Inf(1)
	}
}

func (o *Oscillator) done(t float64) bool {
	return o.stopped || t >= o.stopAt
}

// Graph is the synthesis clock and node set. All envelope and stop
// scheduling is expressed as timestamps against its clock and consumed
// sample by sample inside Process; nothing here blocks or spawns.
type Graph struct {
	sampleRate int
	frames     int64
	master     *Gain
	oscs       []*Oscillator
}

func newGraph(sampleRate int, masterGain float64) *Graph {
	return &Graph{
		sampleRate: sampleRate,
		master:     newGain(masterGain),
	}
}

// Now returns the current synthesis clock time in seconds.
func (g *Graph) Now() float64 {
	return float64(g.frames) / float64(g.sampleRate)
}

// SampleRate returns the graph sample rate in Hz.
func (g *Graph) SampleRate() int {
	return g.sampleRate
}

// Master returns the master output gain parameter.
func (g *Graph) Master() *Gain {
	return g.master
}

func (g *Graph) addOscillator(freq float64, gain float64, env *Gain) *Oscillator {
	o := &Oscillator{
		freq:    freq,
		gain:    gain,
		env:     env,
		startAt: g.Now(),
		stopAt:  math.Inf(1),
	}
	g.oscs = append(g.oscs, o)
	return o
}

// Process renders a mono block and advances the clock. Oscillators whose
// stop time has elapsed are released at the end of the block.
func (g *Graph) Process(numFrames int) []float32 {
	out := make([]float32, numFrames)
	sr := float64(g.sampleRate)
	step := 2.0 * math.Pi / sr

	for i := 0; i < numFrames; i++ {
		t := float64(g.frames) / sr
		var sample float64
		for _, o := range g.oscs {
			if o.done(t) || t < o.startAt {
				continue
			}
			sample += math.Sin(o.phase) * o.gain * o.env.ValueAt(t)
			o.phase += step * o.freq
			if o.phase > 2.0*math.Pi {
				o.phase -= 2.0 * math.Pi
			}
		}
		out[i] = float32(sample * g.master.ValueAt(t))
		g.frames++
	}

	g.releaseDone()
	return out
}

func (g *Graph) releaseDone() {
	t := g.Now()
	live := g.oscs[:0]
	for _, o := range g.oscs {
		if !o.done(t) {
			live = append(live, o)
		}
	}
	for i := len(live); i < len(g.oscs); i++ {
		g.oscs[i] = nil
	}
	g.oscs = live
}
