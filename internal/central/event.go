package central

// Event is one inbound protocol notification from the radio. The radio
// translates its wire traffic into these and delivers them serialized; the
// session consumes them one at a time to completion.
type Event interface {
	isEvent()
}

// BootComplete signals the controller is powered and ready.
type BootComplete struct{}

// AdvertisementReceived carries one advertising report: the sender and the
// raw payload of consecutive (length, type, data) fields.
type AdvertisementReceived struct {
	Addr    DeviceAddress
	Payload []byte
}

// Connected signals the link to the peer is established.
type Connected struct {
	Addr DeviceAddress
}

// ServiceGroupFound reports one group from an open service group search.
// UUID is in little-endian wire order, 2 or 16 bytes.
type ServiceGroupFound struct {
	UUID  []byte
	Range HandleRange
}

// ServiceDiscoveryComplete ends the service group search.
type ServiceDiscoveryComplete struct{}

// AttributeFound reports one attribute from an open information search.
// Searches deliver attributes in ascending handle order.
type AttributeFound struct {
	UUID   []byte
	Handle uint16
}

// AttributeDiscoveryComplete ends the information search. LastHandle is the
// highest handle the search reached.
type AttributeDiscoveryComplete struct {
	LastHandle uint16
}

// ValueIndicated carries a characteristic value pushed by the peripheral.
type ValueIndicated struct {
	Handle uint16
	Value  []byte
}

// Disconnected signals the link dropped.
type Disconnected struct{}

func (BootComplete) isEvent()               {}
func (AdvertisementReceived) isEvent()      {}
func (Connected) isEvent()                  {}
func (ServiceGroupFound) isEvent()          {}
func (ServiceDiscoveryComplete) isEvent()   {}
func (AttributeFound) isEvent()             {}
func (AttributeDiscoveryComplete) isEvent() {}
func (ValueIndicated) isEvent()             {}
func (Disconnected) isEvent()               {}
