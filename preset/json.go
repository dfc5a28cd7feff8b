package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-tone/tone"
)

// File is the JSON schema for engine presets. Pointer fields distinguish
// "absent" from zero so a preset can partially override the defaults.
type File struct {
	OutputGain     *float64 `json:"output_gain"`
	SoftPedalDepth *float64 `json:"soft_pedal_depth"`
	ToneCutoffHz   *float64 `json:"tone_cutoff_hz"`

	RoomIRWavPath string   `json:"room_ir_wav_path"`
	RoomWetMix    *float64 `json:"room_wet_mix"`
	RoomGain      *float64 `json:"room_gain"`

	MIDIChannel   *int     `json:"midi_channel"`
	MIDIPreferred []string `json:"midi_preferred"`
	MIDIExcluded  []string `json:"midi_excluded"`
}

// LoadJSON loads a preset JSON file and applies it on top of default
// params. A relative room IR path is resolved against the preset file's
// directory.
func LoadJSON(path string) (*tone.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := tone.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}

	if p.RoomIRWavPath != "" && !filepath.IsAbs(p.RoomIRWavPath) {
		base := filepath.Dir(path)
		p.RoomIRWavPath = filepath.Clean(filepath.Join(base, p.RoomIRWavPath))
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing params object.
func ApplyFile(dst *tone.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	if f.OutputGain != nil {
		if *f.OutputGain <= 0 {
			return fmt.Errorf("output_gain must be > 0")
		}
		dst.OutputGain = *f.OutputGain
	}
	if f.SoftPedalDepth != nil {
		if *f.SoftPedalDepth < 0 || *f.SoftPedalDepth > 1 {
			return fmt.Errorf("soft_pedal_depth must be in [0,1]")
		}
		dst.SoftPedalDepth = *f.SoftPedalDepth
	}
	if f.ToneCutoffHz != nil {
		if *f.ToneCutoffHz < 0 {
			return fmt.Errorf("tone_cutoff_hz must be >= 0")
		}
		dst.ToneCutoffHz = *f.ToneCutoffHz
	}
	if f.RoomIRWavPath != "" {
		dst.RoomIRWavPath = strings.TrimSpace(f.RoomIRWavPath)
	}
	if f.RoomWetMix != nil {
		if *f.RoomWetMix < 0 {
			return fmt.Errorf("room_wet_mix must be >= 0")
		}
		dst.RoomWetMix = *f.RoomWetMix
	}
	if f.RoomGain != nil {
		if *f.RoomGain <= 0 {
			return fmt.Errorf("room_gain must be > 0")
		}
		dst.RoomGain = *f.RoomGain
	}
	if f.MIDIChannel != nil {
		if *f.MIDIChannel < 0 || *f.MIDIChannel > 15 {
			return fmt.Errorf("midi_channel must be in 0..15")
		}
		dst.MIDIChannel = *f.MIDIChannel
	}
	if len(f.MIDIPreferred) > 0 {
		dst.MIDIPreferred = f.MIDIPreferred
	}
	if len(f.MIDIExcluded) > 0 {
		dst.MIDIExcluded = f.MIDIExcluded
	}
	return nil
}
