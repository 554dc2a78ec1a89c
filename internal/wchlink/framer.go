// Package wchlink implements C7's WCH-Link side: framed command I/O over
// the command endpoint, DMI register read/write with busy-retry (the
// riscv.DebugModule a generic RISC-V Debug-Module translator would drive),
// the vendor flash-programming path, session caching of the target variant
// and family-group ids, and the firmware-version gate (spec.md §4.7).
package wchlink

import (
	"time"

	"debugtool/internal/toolerrors"
)

// USB endpoints (spec §6 "WCH-Link endpoints": command OUT=0x01 IN=0x81,
// data OUT=0x02 IN=0x82).
const (
	CommandEndpointOut = 0x01
	CommandEndpointIn  = 0x81
	DataEndpointOut    = 0x02
	DataEndpointIn     = 0x82
)

// commandFramePrefix is the leading byte of a request frame (spec.md §4.7:
// "[0x02 or similar, command_id, payload_len, payload...]").
const commandFramePrefix = 0x02

const (
	responseCodeSuccess = 0x82
	responseCodeError   = 0x81
)

// bulkDevice is the narrow slice of *usbtransport.Device this package
// needs, so the framer is unit-testable with a fake instead of a real USB
// device (mirrors internal/cmsisdap's reportDevice pattern).
type bulkDevice interface {
	BulkWrite(ifaceNum, epAddr int, buf []byte, maxPacketSize int) error
	BulkRead(ifaceNum, epAddr int, timeout time.Duration, transferSize int) ([]byte, error)
}

// Command is one WCH-Link command-endpoint request.
type Command struct {
	ID      byte
	Payload []byte
}

// Bytes serialises a Command as [commandFramePrefix, ID, len(Payload), Payload...].
func (c Command) Bytes() []byte {
	out := make([]byte, 0, 3+len(c.Payload))
	out = append(out, commandFramePrefix, c.ID, byte(len(c.Payload)))
	out = append(out, c.Payload...)
	return out
}

// Response is a parsed WCH-Link command-endpoint response.
type Response struct {
	ID      byte
	Payload []byte
}

// parseResponse validates the frame per spec §4.7: at least 4 bytes, a
// leading byte in {0x81, 0x82}, command_id matching the request, and a
// declared payload length matching the tail. A 0x81 leading byte is raised
// as a protocol error once framing itself is confirmed valid.
func parseResponse(raw []byte, requestedID byte) (Response, error) {
	if len(raw) < 4 {
		return Response{}, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "WCH-Link response too short: %d bytes", len(raw))
	}
	if raw[0] != responseCodeSuccess && raw[0] != responseCodeError {
		return Response{}, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "WCH-Link response has invalid leading byte 0x%02x", raw[0])
	}
	if raw[1] != requestedID {
		return Response{}, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "WCH-Link response command id 0x%02x does not match request 0x%02x", raw[1], requestedID)
	}
	payloadLen := int(raw[2])
	if len(raw)-3 != payloadLen {
		return Response{}, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "WCH-Link response payload length mismatch: declared %d, got %d", payloadLen, len(raw)-3)
	}

	resp := Response{ID: raw[1], Payload: raw[3:]}
	if raw[0] == responseCodeError {
		return resp, toolerrors.Newf(toolerrors.KindProtocolError, "WCH-Link returned error response for command 0x%02x", requestedID)
	}
	return resp, nil
}

// Framer sends one Command and waits for its Response on the command
// endpoint (spec §4.7 "Framing").
type Framer struct {
	dev              bulkDevice
	interfaceNum     int
	maxPacketSize    int
	readTimeout      time.Duration
	readTransferSize int
}

// NewFramer constructs a Framer bound to an already-open, interface-claimed
// device.
func NewFramer(dev bulkDevice, interfaceNum, maxPacketSize int, readTimeout time.Duration) *Framer {
	return &Framer{
		dev:              dev,
		interfaceNum:     interfaceNum,
		maxPacketSize:    maxPacketSize,
		readTimeout:      readTimeout,
		readTransferSize: 64,
	}
}

// SendCommand writes cmd to the command endpoint and returns its parsed
// response.
func (f *Framer) SendCommand(cmd Command) (Response, error) {
	if err := f.dev.BulkWrite(f.interfaceNum, CommandEndpointOut, cmd.Bytes(), f.maxPacketSize); err != nil {
		return Response{}, err
	}
	raw, err := f.dev.BulkRead(f.interfaceNum, CommandEndpointIn, f.readTimeout, f.readTransferSize)
	if err != nil {
		return Response{}, err
	}
	return parseResponse(raw, cmd.ID)
}

// SendDataBlock writes buf to the data endpoint (OUT 0x02), used by the
// vendor flash-programming path to stream block-aligned data outside the
// command/response framing (spec §4.7 "Vendor flash programming").
func (f *Framer) SendDataBlock(buf []byte) error {
	return f.dev.BulkWrite(f.interfaceNum, DataEndpointOut, buf, f.maxPacketSize)
}
