package tone

// pedalState tracks the persisted level of each pedal for the synthesis
// backend plus the sostenuto snapshot of pitches held at press time.
type pedalState struct {
	damperValue    int
	sostenutoValue int
	softValue      int
	sostenutoHeld  map[int]struct{}
}

func newPedalState() pedalState {
	return pedalState{sostenutoHeld: make(map[int]struct{})}
}

func (p *pedalState) damperDown() bool {
	return p.damperValue > 0
}

// resetHolds clears damper and sostenuto holds. The soft pedal level is a
// gain setting, not a hold, and survives a stop-all.
func (p *pedalState) resetHolds() {
	p.damperValue = 0
	p.sostenutoValue = 0
	p.sostenutoHeld = make(map[int]struct{})
}

// applyDamper holds every currently sounding voice while depressed and
// triggers release envelopes for all held voices on release, except those
// still covered by sostenuto.
func (s *Synth) applyDamper(value int) {
	if value == s.pedals.damperValue {
		return
	}
	was := s.pedals.damperDown()
	s.pedals.damperValue = value
	if value > 0 {
		if was {
			return
		}
		now := s.graph.Now()
		for _, v := range s.voices {
			if v.sounding(now) {
				v.holdOpen(now)
			}
		}
		return
	}

	now := s.graph.Now()
	for _, v := range s.voices {
		if !v.held {
			continue
		}
		if _, ok := s.pedals.sostenutoHeld[v.pitch]; ok && s.pedals.sostenutoValue > 0 {
			continue
		}
		v.release(now)
	}
}

// applySostenuto snapshots the pitches sounding at press time and holds
// exactly those until release. Notes played afterwards are unaffected.
func (s *Synth) applySostenuto(value int) {
	if value == s.pedals.sostenutoValue {
		return
	}
	was := s.pedals.sostenutoValue > 0
	s.pedals.sostenutoValue = value
	if value > 0 {
		if was {
			return
		}
		now := s.graph.Now()
		s.pedals.sostenutoHeld = make(map[int]struct{})
		for _, v := range s.voices {
			if v.sounding(now) {
				s.pedals.sostenutoHeld[v.pitch] = struct{}{}
				v.holdOpen(now)
			}
		}
		return
	}

	held := s.pedals.sostenutoHeld
	s.pedals.sostenutoHeld = make(map[int]struct{})
	if s.pedals.damperDown() {
		return
	}
	now := s.graph.Now()
	for _, v := range s.voices {
		if !v.held {
			continue
		}
		if _, ok := held[v.pitch]; ok {
			v.release(now)
		}
	}
}

// applySoft scales the master gain down proportionally to the pedal
// value, ramped over 100 ms so the change cannot click. Value 0 restores
// the unscaled base.
func (s *Synth) applySoft(value int) {
	if value == s.pedals.softValue {
		return
	}
	s.pedals.softValue = value

	master := s.graph.Master()
	target := master.Base() * (1.0 - s.params.SoftPedalDepth*float64(value)/127.0)
	now := s.graph.Now()
	master.CancelAfter(now)
	master.LinearRampTo(target, now+0.1)
}
