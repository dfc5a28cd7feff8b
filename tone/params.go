package tone

// Params holds engine tuning parameters.
type Params struct {
	// OutputGain is the unscaled master gain the soft pedal modulates.
	OutputGain float64

	// SoftPedalDepth is the maximum attenuation fraction at full soft
	// pedal (value 127).
	SoftPedalDepth float64

	// ToneCutoffHz enables a gentle lowpass on the master bus when > 0.
	ToneCutoffHz float64

	// Room ambience convolver on the master bus (disabled when the
	// IR path is empty or RoomWetMix is 0).
	RoomIRWavPath string
	RoomWetMix    float64
	RoomGain      float64

	// MIDI output device selection.
	MIDIChannel   int
	MIDIPreferred []string
	MIDIExcluded  []string
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		OutputGain:     1.0,
		SoftPedalDepth: 0.25,
		ToneCutoffHz:   0,
		RoomWetMix:     0,
		RoomGain:       1.0,
		MIDIChannel:    0,
		MIDIExcluded:   []string{"Midi Through", "Through Port", "Dummy"},
	}
}
