// Package central implements the client-side state machine for a Bluetooth
// Low Energy Health Thermometer peripheral. It watches advertisements for
// the thermometer service, connects to the first device advertising it,
// resolves the temperature measurement characteristic and its configuration
// descriptor, subscribes to indications, and decodes the pushed temperature
// records into displayable readings.
//
// The package is hardware-agnostic: the session issues Commands and consumes
// Events, and a radio backend translates both to and from the wire.
package central

import (
	"fmt"
	"time"
)

// GATT UUIDs for the Health Thermometer profile.
const (
	// ServiceHealthThermometer is the 16-bit Health Thermometer service UUID.
	ServiceHealthThermometer uint16 = 0x1809
	// CharTemperatureMeasurement is the Temperature Measurement characteristic UUID.
	CharTemperatureMeasurement uint16 = 0x2A1C
	// DescClientCharacteristicConfig is the Client Characteristic
	// Configuration descriptor UUID.
	DescClientCharacteristicConfig uint16 = 0x2902
	// AttrPrimaryService is the primary service group type UUID.
	AttrPrimaryService uint16 = 0x2800
)

// AddressType distinguishes public from random device addresses.
type AddressType uint8

const (
	AddressPublic AddressType = 0
	AddressRandom AddressType = 1
)

// DeviceAddress identifies a BLE peripheral. MAC is in wire (little-endian)
// byte order, as delivered by the link layer.
type DeviceAddress struct {
	MAC  [6]byte
	Type AddressType
}

// String renders the address in the usual reversed hex form.
func (a DeviceAddress) String() string {
	m := a.MAC
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[5], m[4], m[3], m[2], m[1], m[0])
}

// HandleRange bounds a group of attributes in a peripheral's attribute table.
type HandleRange struct {
	Start uint16
	End   uint16
}

// FullHandleRange spans the entire attribute table.
func FullHandleRange() HandleRange {
	return HandleRange{Start: 0x0001, End: 0xFFFF}
}

// ScanParams configures passive discovery. Interval and Window are in units
// of 0.625 ms, per the link-layer convention.
type ScanParams struct {
	Interval uint16
	Window   uint16
	Active   bool
}

// ConnParams configures connection timing. Intervals are in units of
// 1.25 ms, Timeout in units of 10 ms.
type ConnParams struct {
	MinInterval uint16
	MaxInterval uint16
	Latency     uint16
	Timeout     uint16
}

// Commands is the outbound half of the radio collaborator: everything the
// session asks the link layer to do. Implementations must not call back into
// the session synchronously; results arrive later as events.
type Commands interface {
	// ConfigureScan sets the discovery timing parameters.
	ConfigureScan(p ScanParams) error
	// StartDiscovery begins (or resumes) scanning for advertisements.
	StartDiscovery() error
	// ConnectDirect initiates a connection to the given peer.
	ConnectDirect(addr DeviceAddress, p ConnParams) error
	// FindServiceGroups starts a service group search of the given group
	// type over the handle range.
	FindServiceGroups(rng HandleRange, groupType uint16) error
	// FindAttributes starts an attribute information search over the range.
	FindAttributes(rng HandleRange) error
	// WriteAttribute writes a value to the attribute at handle.
	WriteAttribute(handle uint16, value []byte) error
}

// Emitter receives the session's human-readable status lines, in the order
// the status changes occur. This is the system's only observable output
// besides readings handed to the OnReading hook.
type Emitter interface {
	Emit(text string)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(text string)

func (f EmitterFunc) Emit(text string) { f(text) }

// Reading is one decoded temperature measurement, as handed to the
// session's OnReading hook.
type Reading struct {
	Device      string    `json:"device"`
	Temperature string    `json:"temperature"`
	Unit        string    `json:"unit"`
	Time        time.Time `json:"time"`
}
