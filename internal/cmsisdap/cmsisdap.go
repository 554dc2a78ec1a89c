// Package cmsisdap implements C2: the CMSIS-DAP request/response framer
// riding atop the HID report layer of usbtransport. One Framer serialises a
// Command into a report-sized buffer, writes it, and parses the next report
// back into a Response, enforcing the single-outstanding-command invariant
// of spec §3/§5 by construction (Framer has no concurrent-call protection of
// its own - callers serialise, per spec §5's single-threaded model).
package cmsisdap

import (
	"time"

	"debugtool/internal/toolerrors"
	"debugtool/internal/usbtransport"
)

// Command is a CMSIS-DAP command: a one-byte ID followed by a data payload.
type Command struct {
	ID   byte
	Data []byte
}

// Response is a CMSIS-DAP response, structurally identical to Command.
type Response struct {
	ID   byte
	Data []byte
}

// Endpoints names the HID IN/OUT endpoint addresses and the interface they
// live on.
type Endpoints struct {
	InterfaceNumber int
	InEndpoint      int
	OutEndpoint     int
}

// reportDevice is the narrow slice of *usbtransport.Device the framer
// needs, so tests can supply a fake instead of a real claimed USB device.
type reportDevice interface {
	WriteReport(ifaceNum, epAddr int, buf []byte, reportSize int) error
	ReadReport(ifaceNum, epAddr int, reportSize int, timeout time.Duration) ([]byte, error)
}

// Framer sends Commands and receives Responses over one claimed HID
// interface, with an optional minimum inter-command delay (spec §4.2).
type Framer struct {
	dev        reportDevice
	endpoints  Endpoints
	reportSize int
	delay      time.Duration
	readTimeout time.Duration

	lastWrite time.Time
}

// NewFramer constructs a Framer. reportSize is the fixed HID report size
// (commonly 64 or 512 bytes, device-dependent). delay is the optional
// inter-command pacing interval (0-200ms, spec §4.2/§6).
func NewFramer(dev *usbtransport.Device, endpoints Endpoints, reportSize int, delay time.Duration) *Framer {
	return &Framer{
		dev:         dev,
		endpoints:   endpoints,
		reportSize:  reportSize,
		delay:       delay,
		readTimeout: 2 * time.Second,
	}
}

// ReportSize returns the fixed HID report size this framer was built with.
func (f *Framer) ReportSize() int {
	return f.reportSize
}

// SetReadTimeout overrides the default per-report read timeout.
func (f *Framer) SetReadTimeout(d time.Duration) {
	f.readTimeout = d
}

// pace blocks until at least f.delay has elapsed since the last write, per
// spec §4.2: "implementation sleeps the difference."
func (f *Framer) pace() {
	if f.delay <= 0 {
		return
	}
	elapsed := time.Since(f.lastWrite)
	if elapsed < f.delay {
		time.Sleep(f.delay - elapsed)
	}
}

// Send serialises cmd as [id, data...], zero-padded to the report size, and
// writes exactly one HID report.
func (f *Framer) Send(cmd Command) error {
	f.pace()

	buf := make([]byte, 0, 1+len(cmd.Data))
	buf = append(buf, cmd.ID)
	buf = append(buf, cmd.Data...)

	if err := f.dev.WriteReport(f.endpoints.InterfaceNumber, f.endpoints.OutEndpoint, buf, f.reportSize); err != nil {
		return err
	}

	f.lastWrite = time.Now()
	return nil
}

// Receive reads one HID report and parses it into a Response. An empty
// report is rejected (spec §4.2: "validates non-empty").
func (f *Framer) Receive() (Response, error) {
	raw, err := f.dev.ReadReport(f.endpoints.InterfaceNumber, f.endpoints.InEndpoint, f.reportSize, f.readTimeout)
	if err != nil {
		return Response{}, err
	}
	if len(raw) == 0 {
		return Response{}, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "received empty HID report")
	}

	return Response{ID: raw[0], Data: raw[1:]}, nil
}

// SendAndReceive sends cmd and returns the matching response, raising
// DeviceCommunicationFailure if the response ID doesn't match the command ID
// (spec §3 invariant 2, §4.2).
func (f *Framer) SendAndReceive(cmd Command) (Response, error) {
	if err := f.Send(cmd); err != nil {
		return Response{}, err
	}

	resp, err := f.Receive()
	if err != nil {
		return Response{}, err
	}

	if resp.ID != cmd.ID {
		return Response{}, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"CMSIS-DAP response ID 0x%02x does not match command ID 0x%02x", resp.ID, cmd.ID,
		)
	}

	return resp, nil
}
