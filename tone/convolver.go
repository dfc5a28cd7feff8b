package tone

import (
	"fmt"
	"os"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
)

// RoomConvolver adds stereo room ambience to the master bus via
// partitioned convolution with a loaded impulse response.
type RoomConvolver struct {
	sampleRate int
	partSize   int
	irLen      int

	leftOLA  *dspconv.OverlapAdd
	rightOLA *dspconv.OverlapAdd

	tailLeft  []float64
	tailRight []float64
}

// NewRoomConvolver creates a convolver with a unity (pass-through) IR.
func NewRoomConvolver(sampleRate int) *RoomConvolver {
	c := &RoomConvolver{
		sampleRate: sampleRate,
		partSize:   128,
	}
	c.SetIR([]float32{1.0}, []float32{1.0})
	return c
}

// Process convolves a mono block with the IR and returns interleaved
// stereo. If the convolution backend fails the input passes through dry.
func (c *RoomConvolver) Process(input []float32) []float32 {
	output := make([]float32, len(input)*2)
	if len(input) == 0 {
		return output
	}

	in64 := toFloat64(input)

	leftFull, errL := c.leftOLA.Process(in64)
	rightFull, errR := c.rightOLA.Process(in64)
	if errL != nil || errR != nil {
		for i, s := range input {
			output[i*2] = s
			output[i*2+1] = s
		}
		return output
	}

	outL, newTailL := splitConvTail(leftFull, c.tailLeft, len(input))
	outR, newTailR := splitConvTail(rightFull, c.tailRight, len(input))
	c.tailLeft = newTailL
	c.tailRight = newTailR

	for i := 0; i < len(input); i++ {
		output[i*2] = float32(outL[i])
		output[i*2+1] = float32(outR[i])
	}
	return output
}

// SetIR configures left/right impulse responses.
func (c *RoomConvolver) SetIR(leftIR []float32, rightIR []float32) {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = []float32{1.0}
	}

	leftOLA, errL := dspconv.NewOverlapAdd(toFloat64(leftIR), c.partSize)
	rightOLA, errR := dspconv.NewOverlapAdd(toFloat64(rightIR), c.partSize)
	if errL != nil || errR != nil {
		// Keep previous state if construction fails.
		return
	}
	c.leftOLA = leftOLA
	c.rightOLA = rightOLA
	c.irLen = len(leftIR)
	if len(rightIR) > c.irLen {
		c.irLen = len(rightIR)
	}
	if c.irLen < 1 {
		c.irLen = 1
	}
	c.Reset()
}

// SetIRFromWAV loads a room impulse response from a WAV file. A mono IR
// feeds both channels; a stereo IR keeps its channel separation, which is
// what gives the wet signal its width. The IR is resampled when its rate
// differs from the engine rate.
func (c *RoomConvolver) SetIRFromWAV(path string) error {
	left, right, srcRate, err := decodeIRWav(path)
	if err != nil {
		return fmt.Errorf("room ir %s: %w", path, err)
	}
	if left, err = resampleIfNeeded(left, srcRate, c.sampleRate); err != nil {
		return fmt.Errorf("room ir %s: %w", path, err)
	}
	if right, err = resampleIfNeeded(right, srcRate, c.sampleRate); err != nil {
		return fmt.Errorf("room ir %s: %w", path, err)
	}
	c.SetIR(left, right)
	return nil
}

// decodeIRWav reads a WAV file into per-channel float slices. Channels
// beyond the first two are ignored.
func decodeIRWav(path string) (left []float32, right []float32, rate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, 0, fmt.Errorf("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, 0, fmt.Errorf("missing format chunk")
	}
	rate = buf.Format.SampleRate
	if rate <= 0 {
		return nil, nil, 0, fmt.Errorf("bad sample rate %d", rate)
	}

	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, nil, 0, fmt.Errorf("no sample data")
	}

	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = buf.Data[i*numCh]
		right[i] = buf.Data[i*numCh+min(1, numCh-1)]
	}
	return left, right, rate, nil
}

// Reset clears convolver history and overlap buffers.
func (c *RoomConvolver) Reset() {
	if c.leftOLA != nil {
		c.leftOLA.Reset()
	}
	if c.rightOLA != nil {
		c.rightOLA.Reset()
	}
	tailLen := c.irLen - 1
	if tailLen < 0 {
		tailLen = 0
	}
	c.tailLeft = make([]float64, tailLen)
	c.tailRight = make([]float64, tailLen)
}

func resampleIfNeeded(in []float32, inRate int, outRate int) ([]float32, error) {
	if inRate == outRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(inRate),
		float64(outRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}

	out64 := r.Process(toFloat64(in))
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}
