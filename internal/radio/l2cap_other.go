//go:build !linux

package radio

import (
	"errors"
	"io"

	"github.com/nahidalam/BLE-Central/internal/central"
)

func dialATT(central.DeviceAddress, central.ConnParams) (io.ReadWriteCloser, error) {
	return nil, errors.New("radio: ATT channel requires linux (BlueZ l2cap sockets)")
}
