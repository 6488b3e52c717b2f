//go:build linux

package radio

import (
	"tinygo.org/x/bluetooth"

	"github.com/nahidalam/BLE-Central/internal/central"
)

func newAdapter(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}

func scanAddress(res bluetooth.ScanResult) central.DeviceAddress {
	addr := central.DeviceAddress{MAC: [6]byte(res.Address.MAC)}
	if res.Address.IsRandom() {
		addr.Type = central.AddressRandom
	}
	return addr
}
