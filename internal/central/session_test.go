package central

import (
	"testing"
)

// mockCommands records every command the session issues.
type mockCommands struct {
	configured    []ScanParams
	discoveries   int
	connects      []DeviceAddress
	groupSearches []groupSearch
	attrSearches  []HandleRange
	writes        []attrWrite
}

type groupSearch struct {
	rng       HandleRange
	groupType uint16
}

type attrWrite struct {
	handle uint16
	value  []byte
}

func (m *mockCommands) ConfigureScan(p ScanParams) error { m.configured = append(m.configured, p); return nil }
func (m *mockCommands) StartDiscovery() error            { m.discoveries++; return nil }
func (m *mockCommands) ConnectDirect(addr DeviceAddress, _ ConnParams) error {
	m.connects = append(m.connects, addr)
	return nil
}
func (m *mockCommands) FindServiceGroups(rng HandleRange, groupType uint16) error {
	m.groupSearches = append(m.groupSearches, groupSearch{rng, groupType})
	return nil
}
func (m *mockCommands) FindAttributes(rng HandleRange) error {
	m.attrSearches = append(m.attrSearches, rng)
	return nil
}
func (m *mockCommands) WriteAttribute(handle uint16, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.writes = append(m.writes, attrWrite{handle, cp})
	return nil
}

// lineLog records emitted status lines.
type lineLog struct {
	lines []string
}

func (l *lineLog) Emit(text string) { l.lines = append(l.lines, text) }

func TestMockCommandsImplementsInterface(t *testing.T) {
	var _ Commands = (*mockCommands)(nil)
}

func newTestSession(onReading func(Reading)) (*Session, *mockCommands, *lineLog) {
	cmds := &mockCommands{}
	out := &lineLog{}
	s := NewSession(cmds, out, Options{
		Scan:      ScanParams{Interval: 0x0060, Window: 0x0030},
		Conn:      ConnParams{MinInterval: 0x0018, MaxInterval: 0x0028, Timeout: 0x01F4},
		OnReading: onReading,
	})
	return s, cmds, out
}

var (
	testPeer       = DeviceAddress{MAC: [6]byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA}}
	thermometerAdv = []byte{0x02, 0x01, 0x06, 0x03, 0x03, 0x09, 0x18}
)

// driveToSubscribed feeds the session the full happy-path event sequence.
func driveToSubscribed(s *Session) {
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(ServiceGroupFound{
		UUID:  uuid16Bytes(ServiceHealthThermometer),
		Range: HandleRange{Start: 0x0010, End: 0x0020},
	})
	s.Handle(ServiceDiscoveryComplete{})
	s.Handle(AttributeFound{UUID: uuid16Bytes(CharTemperatureMeasurement), Handle: 0x0012})
	s.Handle(AttributeFound{UUID: uuid16Bytes(DescClientCharacteristicConfig), Handle: 0x0013})
	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0020})
}

func TestSessionHappyPathEndsSubscribed(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	driveToSubscribed(s)

	if s.Phase() != PhaseSubscribed {
		t.Fatalf("Phase() = %v, want subscribed", s.Phase())
	}
	if len(cmds.configured) != 1 || cmds.discoveries != 1 {
		t.Errorf("boot issued %d configures and %d discoveries, want 1 and 1", len(cmds.configured), cmds.discoveries)
	}
	if len(cmds.connects) != 1 || cmds.connects[0] != testPeer {
		t.Errorf("connects = %v, want exactly one to %v", cmds.connects, testPeer)
	}
	if len(cmds.groupSearches) != 1 {
		t.Fatalf("groupSearches = %d, want 1", len(cmds.groupSearches))
	}
	if gs := cmds.groupSearches[0]; gs.rng != FullHandleRange() || gs.groupType != AttrPrimaryService {
		t.Errorf("group search = %+v, want full range of type 0x2800", gs)
	}
	if len(cmds.attrSearches) != 1 || cmds.attrSearches[0] != (HandleRange{Start: 0x0010, End: 0x0020}) {
		t.Errorf("attrSearches = %+v, want the resolved service range", cmds.attrSearches)
	}
	if len(cmds.writes) != 1 {
		t.Fatalf("writes = %d, want exactly one CCC write", len(cmds.writes))
	}
	if w := cmds.writes[0]; w.handle != 0x0013 || len(w.value) != 1 || w.value[0] != 0x02 {
		t.Errorf("CCC write = %+v, want value 0x02 to handle 0x0013", w)
	}
}

func TestSessionIgnoresSecondMatchWhileConnecting(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})

	other := DeviceAddress{MAC: [6]byte{1, 2, 3, 4, 5, 6}, Type: AddressRandom}
	s.Handle(AdvertisementReceived{Addr: other, Payload: thermometerAdv})

	if len(cmds.connects) != 1 {
		t.Errorf("connects = %d, want 1: matches beyond scanning must be ignored", len(cmds.connects))
	}
}

func TestSessionIgnoresNonMatchingAdvertisement(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: []byte{0x03, 0x03, 0x0F, 0x18}})

	if len(cmds.connects) != 0 {
		t.Errorf("connects = %d, want 0", len(cmds.connects))
	}
	if s.Phase() != PhaseScanning {
		t.Errorf("Phase() = %v, want scanning", s.Phase())
	}
}

func TestSessionServiceNotFound(t *testing.T) {
	s, cmds, out := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(ServiceDiscoveryComplete{})

	if len(cmds.attrSearches) != 0 {
		t.Error("no attribute search should start without a resolved service")
	}
	if got := out.lines[len(out.lines)-1]; got != "Thermometer service not found" {
		t.Errorf("last emitted line = %q, want the not-found report", got)
	}
	// Connected but inert: further completions change nothing.
	s.Handle(ServiceDiscoveryComplete{})
	if len(cmds.attrSearches) != 0 || len(cmds.writes) != 0 {
		t.Error("session should stay inert after service-not-found")
	}
}

func TestSessionCharacteristicNotFound(t *testing.T) {
	s, cmds, out := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(ServiceGroupFound{
		UUID:  uuid16Bytes(ServiceHealthThermometer),
		Range: HandleRange{Start: 0x0010, End: 0x0020},
	})
	s.Handle(ServiceDiscoveryComplete{})
	// Only the measurement characteristic, no CCC descriptor.
	s.Handle(AttributeFound{UUID: uuid16Bytes(CharTemperatureMeasurement), Handle: 0x0012})
	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0020})

	if len(cmds.writes) != 0 {
		t.Error("no CCC write should be issued without a CCC handle")
	}
	if s.Phase() == PhaseSubscribed {
		t.Error("session must not reach subscribed without the CCC handle")
	}
	if got := out.lines[len(out.lines)-1]; got != "Temperature characteristic not found" {
		t.Errorf("last emitted line = %q, want the not-found report", got)
	}
}

func TestSessionStaleAttributeCompletionIgnored(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(ServiceGroupFound{
		UUID:  uuid16Bytes(ServiceHealthThermometer),
		Range: HandleRange{Start: 0x0010, End: 0x0020},
	})
	s.Handle(ServiceDiscoveryComplete{})
	s.Handle(AttributeFound{UUID: uuid16Bytes(CharTemperatureMeasurement), Handle: 0x0012})
	s.Handle(AttributeFound{UUID: uuid16Bytes(DescClientCharacteristicConfig), Handle: 0x0013})

	// Completion handle at or below the service range start is stale.
	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0010})
	if len(cmds.writes) != 0 || s.Phase() != PhaseFindingAttributes {
		t.Fatal("stale completion must not advance the session")
	}

	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0020})
	if len(cmds.writes) != 1 || s.Phase() != PhaseSubscribed {
		t.Error("genuine completion should subscribe")
	}
}

func TestSessionIndicationDecodesAndEmits(t *testing.T) {
	var readings []Reading
	s, _, out := newTestSession(func(r Reading) { readings = append(readings, r) })
	driveToSubscribed(s)

	s.Handle(ValueIndicated{Handle: 0x0012, Value: []byte{0x00, 0x0A, 0x00, 0x00, 0xFF}})

	if got := out.lines[len(out.lines)-1]; got != "Temperature: 00.1 C" {
		t.Errorf("last emitted line = %q, want %q", got, "Temperature: 00.1 C")
	}
	if len(readings) != 1 {
		t.Fatalf("OnReading fired %d times, want 1", len(readings))
	}
	if r := readings[0]; r.Temperature != "00.1" || r.Unit != "C" || r.Device != testPeer.String() {
		t.Errorf("reading = %+v, want 00.1 C from %s", r, testPeer)
	}
}

func TestSessionIndicationWrongHandleIgnored(t *testing.T) {
	s, _, out := newTestSession(nil)
	driveToSubscribed(s)
	before := len(out.lines)

	s.Handle(ValueIndicated{Handle: 0x0042, Value: []byte{0x00, 0x0A, 0x00, 0x00, 0xFF}})

	if len(out.lines) != before {
		t.Error("indication on an unrelated handle must not emit")
	}
}

func TestSessionShortIndicationDropped(t *testing.T) {
	s, _, out := newTestSession(nil)
	driveToSubscribed(s)
	before := len(out.lines)

	s.Handle(ValueIndicated{Handle: 0x0012, Value: []byte{0x00, 0x0A}})

	if len(out.lines) != before {
		t.Error("malformed measurement must not emit")
	}
}

func TestSessionDisconnectResetsFromAnyPhase(t *testing.T) {
	stages := []struct {
		name  string
		drive func(s *Session)
	}{
		{"connecting", func(s *Session) {
			s.Handle(BootComplete{})
			s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
		}},
		{"finding-service", func(s *Session) {
			s.Handle(BootComplete{})
			s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
			s.Handle(Connected{Addr: testPeer})
		}},
		{"subscribed", func(s *Session) { driveToSubscribed(s) }},
	}

	for _, stage := range stages {
		t.Run(stage.name, func(t *testing.T) {
			s, cmds, _ := newTestSession(nil)
			stage.drive(s)
			before := cmds.discoveries

			s.Handle(Disconnected{})

			if s.Phase() != PhaseScanning {
				t.Errorf("Phase() = %v, want scanning", s.Phase())
			}
			if cmds.discoveries != before+1 {
				t.Errorf("discoveries = %d, want %d: disconnect must restart scanning", cmds.discoveries, before+1)
			}
			if s.resolver != (Resolver{}) {
				t.Error("resolver should be reset to its zero value")
			}
			if s.peer != (DeviceAddress{}) {
				t.Error("peer should be cleared")
			}
		})
	}
}

func TestSessionReconnectsAfterDisconnect(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	driveToSubscribed(s)
	s.Handle(Disconnected{})

	// A fresh lifecycle must work end to end after the reset.
	driveToSubscribedAgain(s)
	if s.Phase() != PhaseSubscribed {
		t.Fatalf("Phase() = %v after second lifecycle, want subscribed", s.Phase())
	}
	if len(cmds.writes) != 2 {
		t.Errorf("writes = %d, want one CCC write per lifecycle", len(cmds.writes))
	}
}

// driveToSubscribedAgain repeats the post-boot part of the happy path.
func driveToSubscribedAgain(s *Session) {
	s.Handle(AdvertisementReceived{Addr: testPeer, Payload: thermometerAdv})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(ServiceGroupFound{
		UUID:  uuid16Bytes(ServiceHealthThermometer),
		Range: HandleRange{Start: 0x0010, End: 0x0020},
	})
	s.Handle(ServiceDiscoveryComplete{})
	s.Handle(AttributeFound{UUID: uuid16Bytes(CharTemperatureMeasurement), Handle: 0x0012})
	s.Handle(AttributeFound{UUID: uuid16Bytes(DescClientCharacteristicConfig), Handle: 0x0013})
	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0020})
}

func TestSessionIrrelevantEventsLeaveStateUnchanged(t *testing.T) {
	s, cmds, out := newTestSession(nil)
	s.Handle(BootComplete{})

	s.Handle(AttributeFound{UUID: uuid16Bytes(CharTemperatureMeasurement), Handle: 0x0012})
	s.Handle(ServiceGroupFound{UUID: uuid16Bytes(ServiceHealthThermometer), Range: HandleRange{Start: 1, End: 2}})
	s.Handle(ValueIndicated{Handle: 0x0012, Value: []byte{0x00, 0x0A, 0x00, 0x00, 0xFF}})
	s.Handle(Connected{Addr: testPeer})
	s.Handle(AttributeDiscoveryComplete{LastHandle: 0x0020})

	if s.Phase() != PhaseScanning {
		t.Errorf("Phase() = %v, want scanning: stray events must be dropped", s.Phase())
	}
	if s.resolver != (Resolver{}) {
		t.Error("stray discovery events must not touch the resolver")
	}
	if len(cmds.writes) != 0 || len(cmds.groupSearches) != 0 {
		t.Error("stray events must not issue commands")
	}
	if len(out.lines) != 1 {
		t.Errorf("emitted lines = %v, want only the scanning banner", out.lines)
	}
}

func TestSessionBootOnlyFromIdle(t *testing.T) {
	s, cmds, _ := newTestSession(nil)
	s.Handle(BootComplete{})
	s.Handle(BootComplete{})

	if len(cmds.configured) != 1 || cmds.discoveries != 1 {
		t.Errorf("second boot must be a no-op, got %d configures and %d discoveries", len(cmds.configured), cmds.discoveries)
	}
}
