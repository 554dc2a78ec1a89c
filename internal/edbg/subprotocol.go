package edbg

import (
	"sync/atomic"

	"debugtool/internal/cmsisdap"
	"debugtool/internal/toolerrors"
)

// cmsisFramer is the narrow slice of *cmsisdap.Framer that SubProtocol
// needs, so tests can drive it with a fake instead of a real HID framer.
type cmsisFramer interface {
	ReportSize() int
	SendAndReceive(cmd cmsisdap.Command) (cmsisdap.Response, error)
}

// SubProtocol drives one EDBG sub-protocol session over a CMSIS-DAP Framer:
// it fragments outgoing AvrCommandFrames into AvrCommands (CMSIS id 0x80),
// reassembles AvrResponseFrames by polling AVR_RSP (CMSIS id 0x81), and lets
// callers poll AVR_EVT (CMSIS id 0x82) for asynchronous events. One
// SubProtocol per open tool session (spec §3, §4.3, §5).
type SubProtocol struct {
	framer cmsisFramer
	// sequence is a per-instance, process-independent counter per the
	// redesign note in spec §9: wraps on 16-bit overflow.
	sequence uint32
}

// NewSubProtocol constructs a SubProtocol atop an already-open CMSIS-DAP
// Framer.
func NewSubProtocol(framer *cmsisdap.Framer) *SubProtocol {
	return &SubProtocol{framer: framer}
}

// nextSequenceID returns the next 16-bit sequence number, wrapping at
// overflow (spec §8 property 3: sequence monotonicity modulo wraparound).
func (p *SubProtocol) nextSequenceID() uint16 {
	return uint16(atomic.AddUint32(&p.sequence, 1))
}

// maxCommandPacketSize is the largest AvrCommand packet fragment that fits
// in one HID report, after the CMSIS id byte and the 3-byte fragment header
// (spec §3: "F = reportSize - 4").
func (p *SubProtocol) maxCommandPacketSize() int {
	f := p.framer.ReportSize() - 4
	if f <= 0 {
		f = 1
	}
	return f
}

// Exec sends an AvrCommandFrame (building a fresh sequence ID for it),
// confirms the device's per-fragment acknowledgements, and reassembles the
// resulting AvrResponseFrame.
func (p *SubProtocol) Exec(handler ProtocolHandlerID, payload []byte) (AvrResponseFrame, error) {
	frame := AvrCommandFrame{
		SequenceID: p.nextSequenceID(),
		HandlerID:  handler,
		Payload:    payload,
	}

	if err := p.sendCommandFrame(frame); err != nil {
		return AvrResponseFrame{}, err
	}

	raw, err := p.collectResponse()
	if err != nil {
		return AvrResponseFrame{}, err
	}

	resp, err := parseAvrResponseFrame(raw)
	if err != nil {
		return AvrResponseFrame{}, err
	}

	if resp.SequenceID != frame.SequenceID {
		return AvrResponseFrame{}, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"AVR response sequence ID 0x%04x does not match command sequence ID 0x%04x",
			resp.SequenceID, frame.SequenceID,
		)
	}

	return resp, nil
}

// sendCommandFrame fragments frame and writes each AvrCommand in turn,
// requiring the device's acknowledgement (first data byte 0x01) on every
// fragment including the last (spec §3: "last acknowledgement's first data
// byte must be 0x01").
func (p *SubProtocol) sendCommandFrame(frame AvrCommandFrame) error {
	commands := GenerateAvrCommands(frame.Bytes(), p.maxCommandPacketSize())

	for _, cmd := range commands {
		resp, err := p.framer.SendAndReceive(cmsisdap.Command{ID: CmsisAvrCommand, Data: cmd.Data()})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0] != 0x01 {
			return toolerrors.Newf(
				toolerrors.KindDeviceCommunicationFailure,
				"AVR_CMD fragment %d/%d was not acknowledged", cmd.FragmentNumber, cmd.FragmentCount,
			)
		}
	}

	return nil
}

// collectResponse polls AVR_RSP (CMSIS id 0x81) until every fragment of the
// response has been collected, per the fragment_count declared by the first
// fragment. A fragment_number of 0 (the device reporting "no data yet")
// simply means "poll again" (spec §3, §8 property 2).
func (p *SubProtocol) collectResponse() ([]byte, error) {
	var packet []byte
	expected := -1
	received := 0

	const maxPolls = 64
	for attempt := 0; attempt < maxPolls; attempt++ {
		resp, err := p.framer.SendAndReceive(cmsisdap.Command{ID: CmsisAvrResponse})
		if err != nil {
			return nil, err
		}

		fragment, err := parseAvrResponseFragment(resp.Data)
		if err != nil {
			return nil, err
		}

		if fragment.EndOfStream {
			continue
		}

		if expected == -1 {
			expected = fragment.FragmentCount
		}

		packet = append(packet, fragment.Packet...)
		received++

		if received >= expected {
			return packet, nil
		}
	}

	return nil, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "AVR_RSP reassembly did not complete within the poll budget")
}

// PollEvent issues one AVR_EVT request (CMSIS id 0x82) and returns the event
// if the device reported one, or (nil, nil) if there is none pending.
func (p *SubProtocol) PollEvent() (*AvrEvent, error) {
	resp, err := p.framer.SendAndReceive(cmsisdap.Command{ID: CmsisAvrEvent})
	if err != nil {
		return nil, err
	}
	event, ok := parseAvrEvent(resp.Data)
	if !ok {
		return nil, nil
	}
	return event, nil
}
