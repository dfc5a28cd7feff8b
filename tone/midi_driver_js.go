//go:build js

package tone

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// The browser bridge owns Web MIDI access on the JS side; the in-process
// driver is unavailable under wasm.
func newMIDIDriver() (drivers.Driver, error) {
	return nil, errors.New("midi driver unavailable on this platform")
}
