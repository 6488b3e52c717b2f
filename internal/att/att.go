// Package att encodes and decodes the Attribute Protocol PDUs a thermometer
// central exchanges with its peripheral: the two discovery procedures, the
// configuration write, and value indications. UUIDs stay in little-endian
// wire order throughout.
package att

import (
	"errors"
	"fmt"
)

// ATT opcodes, per the Bluetooth core spec.
const (
	OpError           = 0x01
	OpFindInfoReq     = 0x04
	OpFindInfoResp    = 0x05
	OpReadByGroupReq  = 0x10
	OpReadByGroupResp = 0x11
	OpWriteReq        = 0x12
	OpWriteResp       = 0x13
	OpHandleInd       = 0x1D
	OpHandleCnf       = 0x1E
)

// ATT error codes the central branches on.
const (
	ECodeAttrNotFound = 0x0A
)

// Find Information response formats.
const (
	findInfoFormatUUID16  = 0x01
	findInfoFormatUUID128 = 0x02
)

var errTruncated = errors.New("att: truncated pdu")

// Opcode returns the PDU's opcode byte, or 0 for an empty PDU.
func Opcode(pdu []byte) byte {
	if len(pdu) == 0 {
		return 0
	}
	return pdu[0]
}

// ReadByGroupTypeRequest encodes a Read By Group Type request for 16-bit
// group type UUIDs, used to enumerate service groups across a handle range.
func ReadByGroupTypeRequest(start, end, groupType uint16) []byte {
	return []byte{
		OpReadByGroupReq,
		byte(start), byte(start >> 8),
		byte(end), byte(end >> 8),
		byte(groupType), byte(groupType >> 8),
	}
}

// ServiceGroup is one entry of a Read By Group Type response.
type ServiceGroup struct {
	Start uint16
	End   uint16
	UUID  []byte
}

// ParseReadByGroupTypeResponse decodes the fixed-stride entry list of a
// Read By Group Type response. Each entry is start, end, and the group
// value (the service UUID, 2 or 16 bytes).
func ParseReadByGroupTypeResponse(pdu []byte) ([]ServiceGroup, error) {
	if len(pdu) < 2 || pdu[0] != OpReadByGroupResp {
		return nil, errTruncated
	}
	stride := int(pdu[1])
	if stride < 6 {
		return nil, fmt.Errorf("att: group entry length %d too short", stride)
	}
	data := pdu[2:]
	if len(data) == 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("att: group data length %d not a multiple of %d", len(data), stride)
	}
	var groups []ServiceGroup
	for ; len(data) >= stride; data = data[stride:] {
		uuid := make([]byte, stride-4)
		copy(uuid, data[4:stride])
		groups = append(groups, ServiceGroup{
			Start: le16(data),
			End:   le16(data[2:]),
			UUID:  uuid,
		})
	}
	return groups, nil
}

// FindInformationRequest encodes a Find Information request over a handle
// range.
func FindInformationRequest(start, end uint16) []byte {
	return []byte{
		OpFindInfoReq,
		byte(start), byte(start >> 8),
		byte(end), byte(end >> 8),
	}
}

// AttributeInfo is one entry of a Find Information response.
type AttributeInfo struct {
	Handle uint16
	UUID   []byte
}

// ParseFindInformationResponse decodes a Find Information response. The
// format byte selects 16-bit or 128-bit UUID entries; entries arrive in
// ascending handle order.
func ParseFindInformationResponse(pdu []byte) ([]AttributeInfo, error) {
	if len(pdu) < 2 || pdu[0] != OpFindInfoResp {
		return nil, errTruncated
	}
	var stride int
	switch pdu[1] {
	case findInfoFormatUUID16:
		stride = 2 + 2
	case findInfoFormatUUID128:
		stride = 2 + 16
	default:
		return nil, fmt.Errorf("att: unknown find information format 0x%02X", pdu[1])
	}
	data := pdu[2:]
	if len(data) == 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("att: information data length %d not a multiple of %d", len(data), stride)
	}
	var infos []AttributeInfo
	for ; len(data) >= stride; data = data[stride:] {
		uuid := make([]byte, stride-2)
		copy(uuid, data[2:stride])
		infos = append(infos, AttributeInfo{Handle: le16(data), UUID: uuid})
	}
	return infos, nil
}

// WriteRequest encodes a Write Request of value to the attribute at handle.
func WriteRequest(handle uint16, value []byte) []byte {
	pdu := make([]byte, 0, 3+len(value))
	pdu = append(pdu, OpWriteReq, byte(handle), byte(handle>>8))
	return append(pdu, value...)
}

// HandleValueConfirmation encodes the confirmation the client owes the
// server for every indication.
func HandleValueConfirmation() []byte {
	return []byte{OpHandleCnf}
}

// Indication is a pushed characteristic value.
type Indication struct {
	Handle uint16
	Value  []byte
}

// ParseHandleValueIndication decodes a Handle Value Indication.
func ParseHandleValueIndication(pdu []byte) (Indication, error) {
	if len(pdu) < 3 || pdu[0] != OpHandleInd {
		return Indication{}, errTruncated
	}
	value := make([]byte, len(pdu)-3)
	copy(value, pdu[3:])
	return Indication{Handle: le16(pdu[1:]), Value: value}, nil
}

// Error is a decoded ATT Error Response. Request is the opcode of the
// request that failed.
type Error struct {
	Request byte
	Handle  uint16
	Code    byte
}

func (e Error) Error() string {
	return fmt.Sprintf("att: request 0x%02X on handle 0x%04X failed with code 0x%02X", e.Request, e.Handle, e.Code)
}

// ParseError decodes an Error Response PDU.
func ParseError(pdu []byte) (Error, error) {
	if len(pdu) < 5 || pdu[0] != OpError {
		return Error{}, errTruncated
	}
	return Error{Request: pdu[1], Handle: le16(pdu[2:]), Code: pdu[4]}, nil
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
