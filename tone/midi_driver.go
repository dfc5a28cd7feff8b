//go:build !js

package tone

import (
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func newMIDIDriver() (drivers.Driver, error) {
	return rtmididrv.New()
}
