//go:build js && wasm

package main

import (
	"syscall/js"
	"time"
	"unsafe"

	"github.com/cwbudde/algo-tone/tone"
)

var (
	globalEngine *tone.Engine
	outputBuffer []float32
)

func main() {
	// Keep program running
	c := make(chan struct{})

	// Export functions to JavaScript
	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmPlayNote", js.FuncOf(wasmPlayNote))
	js.Global().Set("wasmPlayChord", js.FuncOf(wasmPlayChord))
	js.Global().Set("wasmPedal", js.FuncOf(wasmPedal))
	js.Global().Set("wasmSetSustain", js.FuncOf(wasmSetSustain))
	js.Global().Set("wasmSetOutputMode", js.FuncOf(wasmSetOutputMode))
	js.Global().Set("wasmAllNotesOff", js.FuncOf(wasmAllNotesOff))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM tone module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()

	params := tone.NewDefaultParams()
	globalEngine = tone.NewEngine(sampleRate, params)

	// Pre-allocate output buffer for 128 stereo frames
	outputBuffer = make([]float32, 128*2)

	println("Engine initialized at", sampleRate, "Hz")
	return nil
}

func wasmPlayNote(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || globalEngine == nil {
		return nil
	}
	n := tone.Note{
		Pitch:    args[0].Int(),
		Velocity: args[1].Int(),
		Duration: time.Duration(args[2].Float() * float64(time.Second)),
	}
	if err := globalEngine.PlayNote(n); err != nil {
		println("playNote rejected:", err.Error())
	}
	return nil
}

// wasmPlayChord takes a JS array of pitches plus a shared velocity and
// duration in seconds.
func wasmPlayChord(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || globalEngine == nil {
		return nil
	}
	pitches := args[0]
	velocity := args[1].Int()
	duration := time.Duration(args[2].Float() * float64(time.Second))

	numNotes := pitches.Length()
	notes := make([]tone.Note, 0, numNotes)
	for i := 0; i < numNotes; i++ {
		notes = append(notes, tone.Note{
			Pitch:    pitches.Index(i).Int(),
			Velocity: velocity,
			Duration: duration,
		})
	}
	if err := globalEngine.PlayChord(tone.Chord{Notes: notes}); err != nil {
		println("playChord rejected:", err.Error())
	}
	return nil
}

func wasmPedal(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	var kind tone.PedalKind
	switch args[0].String() {
	case "sostenuto":
		kind = tone.PedalSostenuto
	case "soft":
		kind = tone.PedalSoft
	default:
		kind = tone.PedalDamper
	}
	ev := tone.PedalEvent{Kind: kind, Value: args[1].Int()}
	if err := globalEngine.Pedal(ev); err != nil {
		println("pedal rejected:", err.Error())
	}
	return nil
}

func wasmSetSustain(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	globalEngine.SetSustain(args[0].Bool())
	return nil
}

func wasmSetOutputMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return nil
	}
	mode, err := tone.ParseOutputMode(args[0].String())
	if err != nil {
		println("setOutputMode rejected:", err.Error())
		return nil
	}
	globalEngine.SetOutputMode(mode)
	return nil
}

func wasmAllNotesOff(this js.Value, args []js.Value) interface{} {
	if globalEngine == nil {
		return nil
	}
	globalEngine.AllNotesOff()
	return nil
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return 0
	}

	numFrames := args[0].Int()
	if numFrames > 128 {
		numFrames = 128
	}

	output := globalEngine.Process(numFrames)

	// Copy to persistent buffer
	copy(outputBuffer, output)

	// Return pointer to buffer in WASM linear memory
	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	// Return WASM memory buffer for access from JS
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
