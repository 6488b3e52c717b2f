//go:build linux

package radio

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nahidalam/BLE-Central/internal/central"
)

// ATT rides the fixed L2CAP channel 4. BlueZ exposes it to user space as a
// seqpacket socket, which saves carrying a full HCI/L2CAP stack here.
const attCID = 4

const (
	bdaddrLEPublic = 1
	bdaddrLERandom = 2
)

// dialATT opens the peer's ATT channel. Connection timing is negotiated by
// the kernel; the session's ConnParams stay advisory on this backend.
func dialATT(addr central.DeviceAddress, _ central.ConnParams) (io.ReadWriteCloser, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, fmt.Errorf("radio: l2cap socket: %w", err)
	}
	local := &unix.SockaddrL2{CID: attCID, AddrType: bdaddrLEPublic}
	if err := unix.Bind(fd, local); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("radio: bind l2cap: %w", err)
	}
	remote := &unix.SockaddrL2{CID: attCID, Addr: addr.MAC, AddrType: bdaddrLEPublic}
	if addr.Type == central.AddressRandom {
		remote.AddrType = bdaddrLERandom
	}
	if err := unix.Connect(fd, remote); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("radio: connect %s: %w", addr.String(), err)
	}
	return os.NewFile(uintptr(fd), "l2cap-att"), nil
}
