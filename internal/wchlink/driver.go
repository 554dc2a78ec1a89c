package wchlink

import (
	"time"

	"debugtool/internal/riscv"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// commandSender is the narrow slice of *Framer the driver needs, so it's
// unit-testable with a scripted fake instead of a real bulk-transport
// framer (mirrors internal/avr8's subProtocol pattern).
type commandSender interface {
	SendCommand(cmd Command) (Response, error)
	SendDataBlock(buf []byte) error
}

// Clock abstracts time.Sleep so the DMI retry loop is testable without real
// wall-clock delay.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Driver implements C7, the WCH-Link DTM and vendor debug driver. It
// implements riscv.DebugModule, the interface a generic RISC-V Debug-Module
// translator (external collaborator) drives.
type Driver struct {
	framer commandSender
	clock  Clock

	dmiRetryDelay time.Duration

	active bool

	deviceInfo     DeviceInfo
	cachedTargetID [4]byte
	cachedGroupID  byte
	sessionCached  bool
}

// NewDriver constructs a Driver bound to an open Framer, with the
// documented default inter-attempt DMI retry delay of 10us (spec §4.7).
func NewDriver(framer commandSender) *Driver {
	return &Driver{
		framer:        framer,
		clock:         realClock{},
		dmiRetryDelay: 10 * time.Microsecond,
	}
}

// SetClock overrides the retry-delay clock; used by tests.
func (d *Driver) SetClock(clock Clock) { d.clock = clock }

// SetDMIRetryDelay overrides the inter-attempt DMI retry delay.
func (d *Driver) SetDMIRetryDelay(delay time.Duration) { d.dmiRetryDelay = delay }

// GetDeviceInfo issues the vendor GetDeviceInfo command (original_source's
// WchLinkInterface::getDeviceInfo): firmware version in payload[0:2], an
// optional variant byte in payload[2] when the response carries ≥4 bytes.
func (d *Driver) GetDeviceInfo() (DeviceInfo, error) {
	resp, err := d.framer.SendCommand(Command{ID: cmdGetDeviceInfo})
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(resp.Payload) < 3 {
		return DeviceInfo{}, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "GetDeviceInfo response too short")
	}

	info := DeviceInfo{
		FirmwareVersion: FirmwareVersion{Major: resp.Payload[0], Minor: resp.Payload[1]},
		Variant:         VariantUnknown,
	}
	if len(resp.Payload) >= 4 {
		info.Variant = Variant(resp.Payload[2])
	}
	d.deviceInfo = info
	return info, nil
}

// CheckFirmwareVersion implements the post_init() firmware-version gate of
// spec §4.7: a version below 2.9 is reported via the returned bool so the
// caller (the tool shell) can log a non-fatal warning; it is never an
// error in its own right.
func (d *Driver) CheckFirmwareVersion() (current FirmwareVersion, belowMinimum bool) {
	return d.deviceInfo.FirmwareVersion, d.deviceInfo.FirmwareVersion.Less(minimumFirmwareVersion)
}

// Activate issues the vendor activate command and caches its 5-byte
// response payload: payload[0] is the family/group id, payload[1:5] is the
// target variant id (spec §4.7 "Session caching").
func (d *Driver) Activate() error {
	resp, err := d.framer.SendCommand(Command{ID: cmdActivate})
	if err != nil {
		return err
	}
	if len(resp.Payload) < 5 {
		return toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "activate response too short for session cache")
	}

	d.cachedGroupID = resp.Payload[0]
	copy(d.cachedTargetID[:], resp.Payload[1:5])
	d.sessionCached = true
	d.active = true
	return nil
}

// Deactivate issues the vendor deactivate command.
func (d *Driver) Deactivate() error {
	_, err := d.framer.SendCommand(Command{ID: cmdDeactivate})
	if err != nil {
		return err
	}
	d.active = false
	return nil
}

// SetClockSpeed issues the vendor set-clock-speed command, which requires
// the cached group/target id from Activate (spec §4.7).
func (d *Driver) SetClockSpeed(speed ClockSpeed) error {
	if !d.sessionCached {
		return toolerrors.New(toolerrors.KindProtocolError, "SetClockSpeed requires an active session (call Activate first)")
	}

	payload := make([]byte, 0, 6)
	payload = append(payload, d.cachedGroupID)
	payload = append(payload, d.cachedTargetID[:]...)
	payload = append(payload, byte(speed))

	_, err := d.framer.SendCommand(Command{ID: cmdSetClockSpeed, Payload: payload})
	return err
}

// Passthrough issues a raw vendor command without a dedicated Go method
// (SPEC_FULL.md §4.7).
func (d *Driver) Passthrough(cmd target.PassthroughCommand) (target.PassthroughResponse, error) {
	resp, err := d.framer.SendCommand(Command{ID: cmd.Handler, Payload: cmd.Payload})
	if err != nil {
		return target.PassthroughResponse{}, err
	}
	return target.PassthroughResponse{Payload: resp.Payload}, nil
}

var _ riscv.DebugModule = (*Driver)(nil)
