// Package edbg implements C3 (the EDBG sub-protocol layer) and the
// EdbgControl-handler parts of C6 (target power management). It wraps an
// AvrCommandFrame into one or more CMSIS-DAP vendor commands (AvrCommand,
// CMSIS id 0x80), reassembles multi-fragment AvrResponseFrame replies via
// AVR_RSP polling (CMSIS id 0x81), and dispatches AVR_EVT events (CMSIS id
// 0x82). Grounded on
// original_source/src/DebugToolDrivers/Protocols/CMSIS-DAP/VendorSpecific/EDBG.
package edbg

import (
	"debugtool/internal/toolerrors"
)

// ProtocolHandlerID identifies the destination sub-protocol handler within
// an AvrCommandFrame (spec §3, §6).
type ProtocolHandlerID byte

const (
	HandlerDiscovery    ProtocolHandlerID = 0x00
	HandlerHouseKeeping ProtocolHandlerID = 0x01
	HandlerAvrISP       ProtocolHandlerID = 0x11
	HandlerAVR8Generic  ProtocolHandlerID = 0x12
	HandlerAVR32Generic ProtocolHandlerID = 0x13
	HandlerEdbgControl  ProtocolHandlerID = 0x20
)

// ResponseID is the handler-specific meaning of an AvrResponseFrame
// payload's leading byte (spec §3, §6).
type ResponseID byte

const (
	ResponseOK             ResponseID = 0x80
	ResponseList           ResponseID = 0x81
	ResponseData           ResponseID = 0x84
	ResponseFailed         ResponseID = 0xA0
	ResponseFailedWithData ResponseID = 0xA1
)

// CMSIS-DAP vendor command IDs that carry AVR traffic (spec §3, §6).
const (
	CmsisAvrCommand  byte = 0x80
	CmsisAvrResponse byte = 0x81
	CmsisAvrEvent    byte = 0x82
)

// avrFrameSOF is the start-of-frame byte for every AvrCommandFrame/
// AvrResponseFrame.
const avrFrameSOF = 0x0E

// avrProtocolVersion is the fixed protocol version byte.
const avrProtocolVersion = 0x00

// breakEventID is the AVR event ID signalling a target BREAK (spec §4.3, §6).
const breakEventID = 0x40

// AvrCommandFrame is the outer frame carried inside one or more AvrCommands.
// Serialised as [SOF, version, seq_lo, seq_hi, handler_id, payload...]
// (spec §3).
type AvrCommandFrame struct {
	SequenceID uint16
	HandlerID  ProtocolHandlerID
	Payload    []byte
}

// Bytes serialises the frame to its wire representation.
func (f AvrCommandFrame) Bytes() []byte {
	out := make([]byte, 5, 5+len(f.Payload))
	out[0] = avrFrameSOF
	out[1] = avrProtocolVersion
	out[2] = byte(f.SequenceID)
	out[3] = byte(f.SequenceID >> 8)
	out[4] = byte(f.HandlerID)
	out = append(out, f.Payload...)
	return out
}

// AvrResponseFrame is the parsed counterpart of AvrCommandFrame.
type AvrResponseFrame struct {
	SequenceID uint16
	HandlerID  ProtocolHandlerID
	Payload    []byte
}

// ResponseID returns the handler-specific response identifier, the first
// byte of Payload.
func (f AvrResponseFrame) ResponseID() (ResponseID, error) {
	if len(f.Payload) == 0 {
		return 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "AVR response frame has no payload")
	}
	return ResponseID(f.Payload[0]), nil
}

// Data returns the payload after the leading response-id byte.
func (f AvrResponseFrame) Data() []byte {
	if len(f.Payload) < 1 {
		return nil
	}
	return f.Payload[1:]
}

// parseAvrResponseFrame parses the concatenated bytes of a reassembled
// response into an AvrResponseFrame, validating the 5-byte minimum length
// and the SOF (both failures raise DeviceCommunicationFailure).
func parseAvrResponseFrame(raw []byte) (AvrResponseFrame, error) {
	if len(raw) < 5 {
		return AvrResponseFrame{}, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"AVR response frame too short: %d bytes", len(raw),
		)
	}
	if raw[0] != avrFrameSOF {
		return AvrResponseFrame{}, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"AVR response frame has invalid SOF 0x%02x", raw[0],
		)
	}

	seq := uint16(raw[2]) | uint16(raw[3])<<8
	handler := ProtocolHandlerID(raw[4])
	payload := append([]byte(nil), raw[5:]...)

	return AvrResponseFrame{SequenceID: seq, HandlerID: handler, Payload: payload}, nil
}

// AvrCommand is one CMSIS-id-0x80 fragment of an AvrCommandFrame. Byte
// layout of its Data(): [(fragmentNumber<<4 | fragmentCount), sizeHi, sizeLo,
// packet...] (spec §3, grounded on AvrCommand.cpp).
type AvrCommand struct {
	FragmentNumber int
	FragmentCount  int
	Packet         []byte
}

// Data serialises the AvrCommand fragment body (everything after the CMSIS
// command ID byte, which the framer adds separately).
func (c AvrCommand) Data() []byte {
	out := make([]byte, 3+len(c.Packet))
	out[0] = byte((c.FragmentNumber << 4) | (c.FragmentCount & 0x0F))
	out[1] = byte(len(c.Packet) >> 8)
	out[2] = byte(len(c.Packet))
	copy(out[3:], c.Packet)
	return out
}

// GenerateAvrCommands splits a serialised AvrCommandFrame into one or more
// AvrCommand fragments, each at most maxPacketSize bytes of packet, per spec
// §3/§4.3/§8 property 2: fragment_count = ceil(len/F), every fragment but
// the last has size F, fragment_number sequence is 1..=count.
func GenerateAvrCommands(rawFrame []byte, maxPacketSize int) []AvrCommand {
	if maxPacketSize <= 0 {
		maxPacketSize = len(rawFrame)
		if maxPacketSize == 0 {
			maxPacketSize = 1
		}
	}

	total := len(rawFrame)
	count := (total + maxPacketSize - 1) / maxPacketSize
	if count == 0 {
		count = 1
	}

	commands := make([]AvrCommand, 0, count)
	copied := 0
	for i := 0; i < count; i++ {
		size := maxPacketSize
		if i+1 == count {
			size = total - copied
		}
		commands = append(commands, AvrCommand{
			FragmentNumber: i + 1,
			FragmentCount:  count,
			Packet:         rawFrame[copied : copied+size],
		})
		copied += size
	}
	return commands
}

// AvrResponseFragment is one CMSIS-id-0x81 response fragment, parsed per
// AvrResponse.cpp: the leading byte packs {fragmentCount (low nibble),
// fragmentNumber (high nibble)}; fragmentNumber == 0 means "no data" / end
// of stream, independent of fragmentCount.
type AvrResponseFragment struct {
	FragmentNumber int
	FragmentCount  int
	Packet         []byte
	// EndOfStream is set when the device reported no further data
	// (leading byte's high nibble, fragmentNumber, == 0).
	EndOfStream bool
}

// parseAvrResponseFragment parses a CMSIS-id-0x81 response's data payload.
func parseAvrResponseFragment(data []byte) (AvrResponseFragment, error) {
	if len(data) == 0 {
		return AvrResponseFragment{}, toolerrors.New(
			toolerrors.KindDeviceCommunicationFailure, "AVR_RSP response contained no data",
		)
	}

	fragCount := int(data[0] & 0x0F)
	fragNumber := int(data[0] >> 4)

	// fragmentNumber == 0 marks end of stream regardless of fragmentCount
	// (original requestAvrResponses() breaks on this alone).
	if fragNumber == 0 {
		return AvrResponseFragment{EndOfStream: true}, nil
	}

	if len(data) < 3 {
		return AvrResponseFragment{}, toolerrors.New(
			toolerrors.KindDeviceCommunicationFailure, "AVR_RSP response fragment header truncated",
		)
	}

	size := int(data[1])<<8 | int(data[2])

	if 3+size > len(data) {
		return AvrResponseFragment{}, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"AVR_RSP response fragment declares %d bytes but only %d available", size, len(data)-3,
		)
	}

	return AvrResponseFragment{
		FragmentNumber: fragNumber,
		FragmentCount:  fragCount,
		Packet:         append([]byte(nil), data[3:3+size]...),
	}, nil
}

// AvrEvent is a parsed CMSIS-id-0x82 asynchronous event. EventID == 0x40
// signals an AVR8 target BREAK (spec §4.3, §6).
type AvrEvent struct {
	EventID byte
	Data    []byte
}

// IsBreak reports whether the event is an AVR8 target BREAK.
func (e AvrEvent) IsBreak() bool {
	return e.EventID == breakEventID
}

func parseAvrEvent(data []byte) (*AvrEvent, bool) {
	if len(data) == 0 {
		return nil, false
	}
	return &AvrEvent{EventID: data[0], Data: append([]byte(nil), data[1:]...)}, true
}
