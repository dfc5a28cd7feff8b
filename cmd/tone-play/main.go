package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-tone/preset"
	"github.com/cwbudde/algo-tone/tone"
)

func main() {
	mode := flag.String("mode", "webaudio", "Output mode: webaudio (local synthesis) or midi (external device)")
	note := flag.Int("note", 69, "MIDI note number (69 = A4 = 440 Hz)")
	chord := flag.String("chord", "", "Comma-separated MIDI notes; overrides -note (e.g. 60,64,67)")
	velocity := flag.Int("velocity", 100, "MIDI velocity (0-127)")
	duration := flag.Float64("duration", 2.0, "Note duration in seconds")
	sampleRate := flag.Int("sample-rate", 48000, "Synthesis sample rate in Hz")
	bufferSize := flag.Int("buffer", 512, "Audio buffer size in frames")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	listDevices := flag.Bool("list-midi", false, "List the selected MIDI device and exit")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	outputMode, err := tone.ParseOutputMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	params := tone.NewDefaultParams()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		params = p
	}

	log := zap.NewNop()
	if *verbose {
		l, lerr := zap.NewDevelopment()
		if lerr == nil {
			log = l
		}
	}

	e := tone.NewEngine(*sampleRate, params, tone.WithLogger(log))
	defer e.Close()

	if outputMode == tone.ModeMIDI || *listDevices {
		e.SetOutputMode(tone.ModeMIDI)
		if !e.MIDI().Connected() {
			fmt.Fprintln(os.Stderr, "No MIDI output device available")
			os.Exit(1)
		}
		fmt.Printf("MIDI output: %s\n", e.MIDI().DeviceName())
		if *listDevices {
			return
		}
	}

	dur := time.Duration(*duration * float64(time.Second))
	ev, err := buildEvent(*chord, *note, *velocity, dur)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outputMode == tone.ModeMIDI {
		if perr := play(e, ev); perr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
			os.Exit(1)
		}
		// Wait for the scheduled NoteOff timers before closing the driver.
		time.Sleep(dur + 200*time.Millisecond)
		return
	}

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(*sampleRate), *bufferSize, func(out []float32) {
		copy(out, e.Process(len(out)/2))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio stream: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting audio stream: %v\n", err)
		os.Exit(1)
	}
	defer stream.Stop()

	if perr := play(e, ev); perr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
		os.Exit(1)
	}
	time.Sleep(dur + 300*time.Millisecond)
}

type event struct {
	chord *tone.Chord
	note  tone.Note
}

func buildEvent(chordArg string, note int, velocity int, dur time.Duration) (event, error) {
	if chordArg == "" {
		return event{note: tone.Note{Pitch: note, Velocity: velocity, Duration: dur}}, nil
	}
	var notes []tone.Note
	for _, field := range strings.Split(chordArg, ",") {
		pitch, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return event{}, fmt.Errorf("invalid chord note %q: %w", field, err)
		}
		notes = append(notes, tone.Note{Pitch: pitch, Velocity: velocity, Duration: dur})
	}
	return event{chord: &tone.Chord{Notes: notes}}, nil
}

func play(e *tone.Engine, ev event) error {
	if ev.chord != nil {
		return e.PlayChord(*ev.chord)
	}
	return e.PlayNote(ev.note)
}
