package tone

import (
	"github.com/cwbudde/algo-approx"
)

// midiNoteToFreq converts MIDI note number to frequency in Hz.
func midiNoteToFreq(note int) float64 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * float64(pow2Approx(exponent))
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func velocityToGain(velocity int) float64 {
	if velocity < 0 {
		velocity = 0
	}
	if velocity > 127 {
		velocity = 127
	}
	return float64(velocity) / 127.0
}

func maxf(a float64, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// splitConvTail splits a full linear-convolution result into the current
// output block and the tail carried into the next one, folding the
// previous block's tail in as it goes.
func splitConvTail(conv []float64, prevTail []float64, blockLen int) ([]float64, []float64) {
	block := make([]float64, blockLen)
	copy(block, conv)
	for i := 0; i < len(prevTail) && i < blockLen; i++ {
		block[i] += prevTail[i]
	}
	if len(conv) <= blockLen {
		return block, nil
	}

	tail := make([]float64, len(conv)-blockLen)
	copy(tail, conv[blockLen:])
	for i := blockLen; i < len(prevTail); i++ {
		tail[i-blockLen] += prevTail[i]
	}
	return block, tail
}
