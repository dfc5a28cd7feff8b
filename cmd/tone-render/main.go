package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-tone/preset"
	"github.com/cwbudde/algo-tone/tone"
)

func main() {
	note := flag.Int("note", 69, "MIDI note number (69 = A4 = 440 Hz)")
	chord := flag.String("chord", "", "Comma-separated MIDI notes; overrides -note (e.g. 60,64,67)")
	velocity := flag.Int("velocity", 100, "MIDI velocity (0-127)")
	duration := flag.Float64("duration", 2.0, "Note duration in seconds")
	sustain := flag.Bool("sustain", false, "Hold the damper pedal for the whole render")
	tailDBFS := flag.Float64("tail-dbfs", math.Inf(1), "Keep rendering past the note until stereo block RMS falls below this dBFS (e.g. -90). Disabled by default")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum render duration in seconds when using -tail-dbfs")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

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
		l, err := zap.NewDevelopment()
		if err == nil {
			log = l
		}
	}

	e := tone.NewEngine(*sampleRate, params, tone.WithLogger(log))
	defer e.Close()

	dur := time.Duration(*duration * float64(time.Second))
	if *sustain {
		e.SetSustain(true)
	}

	var err error
	if *chord != "" {
		var notes []tone.Note
		for _, field := range strings.Split(*chord, ",") {
			pitch, perr := strconv.Atoi(strings.TrimSpace(field))
			if perr != nil {
				fmt.Fprintf(os.Stderr, "Invalid chord note %q: %v\n", field, perr)
				os.Exit(1)
			}
			notes = append(notes, tone.Note{Pitch: pitch, Velocity: *velocity, Duration: dur})
		}
		fmt.Printf("Rendering chord %s, velocity %d, %.2fs at %d Hz...\n", *chord, *velocity, *duration, *sampleRate)
		err = e.PlayChord(tone.Chord{Notes: notes})
	} else {
		fmt.Printf("Rendering note %d, velocity %d, %.2fs at %d Hz...\n", *note, *velocity, *duration, *sampleRate)
		err = e.PlayNote(tone.Note{Pitch: *note, Velocity: *velocity, Duration: dur})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	const blockSize = 128
	const releaseTail = 0.15
	tailStop := !math.IsInf(*tailDBFS, 1)

	totalFrames := int(float64(*sampleRate) * (*duration + releaseTail))
	if totalFrames < blockSize {
		totalFrames = blockSize
	}
	maxFrames := totalFrames
	if tailStop {
		maxFrames = int(float64(*sampleRate) * (*maxDuration))
		if maxFrames < totalFrames {
			maxFrames = totalFrames
		}
	}

	thresholdLin := math.Pow(10.0, *tailDBFS/20.0)
	samples := make([]float32, 0, totalFrames*2)
	framesRendered := 0
	sustainReleased := !*sustain
	for framesRendered < maxFrames {
		framesToRender := blockSize
		if framesRendered+framesToRender > maxFrames {
			framesToRender = maxFrames - framesRendered
		}

		if !sustainReleased && framesRendered >= int(float64(*sampleRate)*(*duration)) {
			e.SetSustain(false)
			sustainReleased = true
		}

		block := e.Process(framesToRender)
		samples = append(samples, block...)
		framesRendered += framesToRender

		if tailStop && framesRendered >= totalFrames && sustainReleased {
			if blockRMS(block) < thresholdLin {
				break
			}
		}
	}

	file, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, *sampleRate, 16, 2, 1)
	defer encoder.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  *sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, framesRendered)
}

func blockRMS(interleaved []float32) float64 {
	if len(interleaved) == 0 {
		return 0
	}
	var sum float64
	for _, s := range interleaved {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(interleaved)))
}
