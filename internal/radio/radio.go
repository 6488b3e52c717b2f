// Package radio is the link-layer collaborator for the central session. It
// scans through tinygo.org/x/bluetooth, speaks ATT over a BlueZ L2CAP
// socket once connected, and translates between session commands/events and
// wire traffic. All inbound traffic is serialized onto one event channel so
// the session can stay lock-free.
package radio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/nahidalam/BLE-Central/internal/att"
	"github.com/nahidalam/BLE-Central/internal/central"
)

// ErrNotConnected is returned for attribute commands issued without an open
// connection.
var ErrNotConnected = errors.New("radio: no open connection")

// Options configures a Radio.
type Options struct {
	// AdapterID selects the controller, e.g. "hci0". Empty selects the
	// platform default adapter.
	AdapterID string
	// EventBuffer is the inbound event channel capacity.
	EventBuffer int
}

// Radio implements central.Commands and produces central events.
type Radio struct {
	adapter *bluetooth.Adapter
	events  chan central.Event

	mu       sync.Mutex
	scan     central.ScanParams
	scanning bool
	conn     io.ReadWriteCloser
	pending  pendingSearch
}

// pendingSearch tracks the open discovery procedure so responses and error
// responses can be correlated to the right completion event.
type pendingSearch struct {
	op        byte // ATT request opcode, zero when no search is open
	groupType uint16
	rng       central.HandleRange
	last      uint16 // highest handle the search has reached
}

// New creates a radio on the given adapter. Call Start before use.
func New(opts Options) *Radio {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 16
	}
	return &Radio{
		adapter: newAdapter(opts.AdapterID),
		events:  make(chan central.Event, opts.EventBuffer),
	}
}

// Events is the serialized inbound event stream. Drive a single
// central.Session from it.
func (r *Radio) Events() <-chan central.Event { return r.events }

// Start powers on the controller and reports boot completion.
func (r *Radio) Start() error {
	if err := r.adapter.Enable(); err != nil {
		return fmt.Errorf("radio: enable adapter: %w", err)
	}
	r.post(central.BootComplete{})
	return nil
}

// Close stops scanning and drops any open connection.
func (r *Radio) Close() error {
	_ = r.adapter.StopScan()
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

var _ central.Commands = (*Radio)(nil)

// ConfigureScan records the scan timing. The BlueZ backend owns the actual
// scan window; the parameters are kept for backends that accept them.
func (r *Radio) ConfigureScan(p central.ScanParams) error {
	r.mu.Lock()
	r.scan = p
	r.mu.Unlock()
	slog.Debug("[radio] scan configured", "interval", p.Interval, "window", p.Window, "active", p.Active)
	return nil
}

// StartDiscovery begins scanning if it is not already running.
func (r *Radio) StartDiscovery() error {
	r.mu.Lock()
	if r.scanning {
		r.mu.Unlock()
		return nil
	}
	r.scanning = true
	r.mu.Unlock()
	go r.scanLoop()
	return nil
}

func (r *Radio) scanLoop() {
	err := r.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		payload := rawPayload(res)
		if payload == nil {
			return
		}
		r.post(central.AdvertisementReceived{Addr: scanAddress(res), Payload: payload})
	})
	if err != nil {
		slog.Warn("[radio] scan stopped", "error", err)
	}
	r.mu.Lock()
	r.scanning = false
	r.mu.Unlock()
}

// rawPayload returns the raw advertising payload when the backend exposes
// it. The BlueZ backend does not, so a canonical complete-16-bit-UUID-list
// field is reconstructed when the result advertises the thermometer
// service; the session's filter then sees the same shape either way.
func rawPayload(res bluetooth.ScanResult) []byte {
	if b := res.AdvertisementPayload.Bytes(); b != nil {
		return append([]byte(nil), b...)
	}
	if res.HasServiceUUID(bluetooth.New16BitUUID(central.ServiceHealthThermometer)) {
		u := central.ServiceHealthThermometer
		return []byte{0x03, 0x03, byte(u), byte(u >> 8)}
	}
	return nil
}

// ConnectDirect stops scanning and dials the peer's ATT channel. The result
// arrives as a Connected or Disconnected event.
func (r *Radio) ConnectDirect(addr central.DeviceAddress, p central.ConnParams) error {
	if err := r.adapter.StopScan(); err != nil {
		slog.Debug("[radio] stop scan", "error", err)
	}
	go r.connect(addr, p)
	return nil
}

func (r *Radio) connect(addr central.DeviceAddress, p central.ConnParams) {
	conn, err := dialATT(addr, p)
	if err != nil {
		slog.Warn("[radio] connect failed", "peer", addr.String(), "error", err)
		// The session treats this like any other link loss and rescans.
		r.post(central.Disconnected{})
		return
	}
	r.mu.Lock()
	r.conn = conn
	r.pending = pendingSearch{}
	r.mu.Unlock()
	slog.Info("[radio] connected", "peer", addr.String())
	r.post(central.Connected{Addr: addr})
	go r.readLoop(conn)
}

// FindServiceGroups starts the iterative Read By Group Type procedure.
func (r *Radio) FindServiceGroups(rng central.HandleRange, groupType uint16) error {
	r.mu.Lock()
	conn := r.conn
	r.pending = pendingSearch{op: att.OpReadByGroupReq, groupType: groupType, rng: rng}
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(att.ReadByGroupTypeRequest(rng.Start, rng.End, groupType)); err != nil {
		return fmt.Errorf("radio: read by group type request: %w", err)
	}
	return nil
}

// FindAttributes starts the iterative Find Information procedure.
func (r *Radio) FindAttributes(rng central.HandleRange) error {
	r.mu.Lock()
	conn := r.conn
	// Seed the completion handle with the range end so an empty search
	// still reports a completion beyond the service range start.
	r.pending = pendingSearch{op: att.OpFindInfoReq, rng: rng, last: rng.End}
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(att.FindInformationRequest(rng.Start, rng.End)); err != nil {
		return fmt.Errorf("radio: find information request: %w", err)
	}
	return nil
}

// WriteAttribute issues a Write Request.
func (r *Radio) WriteAttribute(handle uint16, value []byte) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(att.WriteRequest(handle, value)); err != nil {
		return fmt.Errorf("radio: write request: %w", err)
	}
	return nil
}

func (r *Radio) readLoop(conn io.ReadWriteCloser) {
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			r.dropConnection(conn)
			return
		}
		r.handlePDU(conn, append([]byte(nil), buf[:n]...))
	}
}

func (r *Radio) dropConnection(conn io.ReadWriteCloser) {
	r.mu.Lock()
	stale := r.conn != conn
	if !stale {
		r.conn = nil
		r.pending = pendingSearch{}
	}
	r.mu.Unlock()
	conn.Close()
	if !stale {
		r.post(central.Disconnected{})
	}
}

func (r *Radio) handlePDU(conn io.ReadWriteCloser, pdu []byte) {
	switch att.Opcode(pdu) {
	case att.OpReadByGroupResp:
		r.handleGroupResponse(conn, pdu)
	case att.OpFindInfoResp:
		r.handleInfoResponse(conn, pdu)
	case att.OpError:
		e, err := att.ParseError(pdu)
		if err != nil {
			slog.Warn("[radio] bad error response", "error", err)
			return
		}
		r.mu.Lock()
		matches := r.pending.op == e.Request
		r.mu.Unlock()
		// Attribute-not-found is the normal end of both searches; any other
		// code still means nothing more is coming for this request.
		if matches {
			if e.Code != att.ECodeAttrNotFound {
				slog.Warn("[radio] search ended with error", "error", e)
			}
			r.finishSearch()
		}
	case att.OpWriteResp:
		slog.Debug("[radio] write acknowledged")
	case att.OpHandleInd:
		ind, err := att.ParseHandleValueIndication(pdu)
		if err != nil {
			slog.Warn("[radio] bad indication", "error", err)
			return
		}
		if _, err := conn.Write(att.HandleValueConfirmation()); err != nil {
			slog.Warn("[radio] indication confirm failed", "error", err)
		}
		r.post(central.ValueIndicated{Handle: ind.Handle, Value: ind.Value})
	default:
		slog.Debug("[radio] unhandled pdu", "opcode", fmt.Sprintf("0x%02X", att.Opcode(pdu)))
	}
}

func (r *Radio) handleGroupResponse(conn io.ReadWriteCloser, pdu []byte) {
	groups, err := att.ParseReadByGroupTypeResponse(pdu)
	if err != nil {
		slog.Warn("[radio] bad group response", "error", err)
		r.finishSearch()
		return
	}
	var last uint16
	for _, g := range groups {
		r.post(central.ServiceGroupFound{
			UUID:  g.UUID,
			Range: central.HandleRange{Start: g.Start, End: g.End},
		})
		if g.End > last {
			last = g.End
		}
	}
	r.mu.Lock()
	r.pending.last = last
	end := r.pending.rng.End
	groupType := r.pending.groupType
	r.mu.Unlock()
	if last >= end || last == 0xFFFF {
		r.finishSearch()
		return
	}
	if _, err := conn.Write(att.ReadByGroupTypeRequest(last+1, end, groupType)); err != nil {
		slog.Warn("[radio] group search continue failed", "error", err)
		r.finishSearch()
	}
}

func (r *Radio) handleInfoResponse(conn io.ReadWriteCloser, pdu []byte) {
	infos, err := att.ParseFindInformationResponse(pdu)
	if err != nil {
		slog.Warn("[radio] bad information response", "error", err)
		r.finishSearch()
		return
	}
	var last uint16
	for _, in := range infos {
		r.post(central.AttributeFound{UUID: in.UUID, Handle: in.Handle})
		if in.Handle > last {
			last = in.Handle
		}
	}
	r.mu.Lock()
	r.pending.last = last
	end := r.pending.rng.End
	r.mu.Unlock()
	if last >= end || last == 0xFFFF {
		r.finishSearch()
		return
	}
	if _, err := conn.Write(att.FindInformationRequest(last+1, end)); err != nil {
		slog.Warn("[radio] information search continue failed", "error", err)
		r.finishSearch()
	}
}

// finishSearch closes the open procedure and posts the matching completion
// variant. The explicit correlation through pending.op is what lets the
// session route completions without guessing which search just ended.
func (r *Radio) finishSearch() {
	r.mu.Lock()
	p := r.pending
	r.pending = pendingSearch{}
	r.mu.Unlock()
	switch p.op {
	case att.OpReadByGroupReq:
		r.post(central.ServiceDiscoveryComplete{})
	case att.OpFindInfoReq:
		r.post(central.AttributeDiscoveryComplete{LastHandle: p.last})
	}
}

func (r *Radio) post(ev central.Event) {
	r.events <- ev
}
