package central

import (
	"log/slog"
	"time"
)

// Phase is the session's position in the connect/subscribe lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseFindingService
	PhaseFindingAttributes
	PhaseSubscribed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseFindingService:
		return "finding-service"
	case PhaseFindingAttributes:
		return "finding-attributes"
	case PhaseSubscribed:
		return "subscribed"
	}
	return "unknown"
}

// Options configures a Session.
type Options struct {
	Scan ScanParams
	Conn ConnParams
	// OnReading, if set, receives every decoded measurement in addition to
	// the emitted status line.
	OnReading func(Reading)
}

// Session owns the connection state and is its only mutator. It is purely
// reactive: Handle processes one event to completion, possibly issuing
// commands, before the next is considered. It holds no locks and is not
// safe for concurrent use; drive it from a single event loop.
type Session struct {
	cmds      Commands
	emitter   Emitter
	scan      ScanParams
	conn      ConnParams
	onReading func(Reading)

	phase    Phase
	peer     DeviceAddress
	resolver Resolver
}

// NewSession creates a session in the idle phase. It takes no action until
// it sees a BootComplete event.
func NewSession(cmds Commands, emitter Emitter, opts Options) *Session {
	return &Session{
		cmds:      cmds,
		emitter:   emitter,
		scan:      opts.Scan,
		conn:      opts.Conn,
		onReading: opts.OnReading,
		phase:     PhaseIdle,
	}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return s.phase }

// Handle dispatches one inbound event. Events that do not apply to the
// current phase are dropped silently; the link layer is free to deliver
// traffic the session has no use for.
func (s *Session) Handle(ev Event) {
	switch ev := ev.(type) {
	case BootComplete:
		s.handleBoot()
	case AdvertisementReceived:
		s.handleAdvertisement(ev)
	case Connected:
		s.handleConnected(ev)
	case ServiceGroupFound:
		if s.phase == PhaseFindingService {
			s.resolver.ObserveServiceGroup(ev.UUID, ev.Range)
		}
	case ServiceDiscoveryComplete:
		s.handleServiceDiscoveryComplete()
	case AttributeFound:
		if s.phase == PhaseFindingAttributes {
			s.resolver.ObserveAttribute(ev.UUID, ev.Handle)
		}
	case AttributeDiscoveryComplete:
		s.handleAttributeDiscoveryComplete(ev)
	case ValueIndicated:
		s.handleValueIndicated(ev)
	case Disconnected:
		s.handleDisconnected()
	}
}

func (s *Session) handleBoot() {
	if s.phase != PhaseIdle {
		return
	}
	if err := s.cmds.ConfigureScan(s.scan); err != nil {
		slog.Warn("[central] configure scan failed", "error", err)
		return
	}
	if err := s.cmds.StartDiscovery(); err != nil {
		slog.Warn("[central] start discovery failed", "error", err)
		return
	}
	s.phase = PhaseScanning
	s.emitter.Emit("Scanning for thermometer...")
}

func (s *Session) handleAdvertisement(ev AdvertisementReceived) {
	// Only one connection attempt at a time: matches are acted on solely
	// while scanning.
	if s.phase != PhaseScanning {
		return
	}
	if !AdvertisesService16(ev.Payload, ServiceHealthThermometer) {
		return
	}
	if err := s.cmds.ConnectDirect(ev.Addr, s.conn); err != nil {
		slog.Warn("[central] connect failed", "peer", ev.Addr.String(), "error", err)
		return
	}
	s.peer = ev.Addr
	s.phase = PhaseConnecting
	s.emitter.Emit("Found thermometer " + ev.Addr.String() + ", connecting...")
}

func (s *Session) handleConnected(ev Connected) {
	if s.phase != PhaseConnecting {
		return
	}
	if err := s.cmds.FindServiceGroups(FullHandleRange(), AttrPrimaryService); err != nil {
		slog.Warn("[central] service search failed", "error", err)
		return
	}
	s.phase = PhaseFindingService
	s.emitter.Emit("Connected!")
}

func (s *Session) handleServiceDiscoveryComplete() {
	if s.phase != PhaseFindingService {
		return
	}
	rng, ok := s.resolver.ServiceRange()
	if !ok {
		// Terminal for this connection attempt: stay connected but inert
		// until the peer drops the link.
		s.emitter.Emit("Thermometer service not found")
		return
	}
	if err := s.cmds.FindAttributes(rng); err != nil {
		slog.Warn("[central] attribute search failed", "error", err)
		return
	}
	s.phase = PhaseFindingAttributes
}

func (s *Session) handleAttributeDiscoveryComplete(ev AttributeDiscoveryComplete) {
	if s.phase != PhaseFindingAttributes {
		return
	}
	// A completion whose final handle does not lie beyond the service range
	// start belongs to an earlier, stale search. Drop it.
	if rng, ok := s.resolver.ServiceRange(); ok && ev.LastHandle <= rng.Start {
		return
	}
	ccc, ok := s.resolver.CCCHandle()
	if !s.resolver.CharacteristicResolved() || !ok {
		s.emitter.Emit("Temperature characteristic not found")
		return
	}
	// 0x02 enables indications on the measurement characteristic.
	if err := s.cmds.WriteAttribute(ccc, []byte{0x02}); err != nil {
		slog.Warn("[central] enable indications failed", "error", err)
		return
	}
	s.phase = PhaseSubscribed
	s.emitter.Emit("Subscribed to temperature measurements")
}

func (s *Session) handleValueIndicated(ev ValueIndicated) {
	if s.phase != PhaseSubscribed {
		return
	}
	if h, ok := s.resolver.MeasurementHandle(); !ok || h != ev.Handle {
		return
	}
	m, err := DecodeMeasurement(ev.Value)
	if err != nil {
		slog.Warn("[central] bad measurement", "error", err, "len", len(ev.Value))
		return
	}
	s.emitter.Emit("Temperature: " + m.Display() + " " + m.Unit())
	if s.onReading != nil {
		s.onReading(Reading{
			Device:      s.peer.String(),
			Temperature: m.Display(),
			Unit:        m.Unit(),
			Time:        time.Now(),
		})
	}
}

func (s *Session) handleDisconnected() {
	if s.phase == PhaseIdle {
		return
	}
	s.resolver = Resolver{}
	s.peer = DeviceAddress{}
	if err := s.cmds.StartDiscovery(); err != nil {
		slog.Warn("[central] restart discovery failed", "error", err)
	}
	s.phase = PhaseScanning
	s.emitter.Emit("Disconnected, scanning again...")
}
