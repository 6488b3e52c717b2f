//go:build !linux

package radio

import (
	"tinygo.org/x/bluetooth"

	"github.com/nahidalam/BLE-Central/internal/central"
)

// Only the BlueZ backend supports selecting an adapter by ID.
func newAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}

// Non-linux backends identify peers by UUID rather than MAC; connections are
// unsupported there, so the address only serves logging.
func scanAddress(bluetooth.ScanResult) central.DeviceAddress {
	return central.DeviceAddress{}
}
