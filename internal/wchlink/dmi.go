package wchlink

import (
	"debugtool/internal/riscv"
	"debugtool/internal/toolerrors"
)

// ReadDMIRegister implements riscv.DebugModule. It retries up to
// dmiOpMaxRetry times, sleeping dmiRetryDelay between attempts, to
// accommodate the target's DMI busy responses (spec §4.7, regression
// scenario E6).
func (d *Driver) ReadDMIRegister(address riscv.RegisterAddress) (riscv.RegisterValue, error) {
	for attempt := 0; attempt < dmiOpMaxRetry; attempt++ {
		resp, err := d.framer.SendCommand(Command{ID: cmdDmiRead, Payload: []byte{byte(address)}})
		if err != nil {
			return 0, err
		}

		status, value, err := parseDMIResponse(resp)
		if err != nil {
			return 0, err
		}

		switch status {
		case dmiStatusSuccess:
			return value, nil
		case dmiStatusBusy:
			if attempt < dmiOpMaxRetry-1 {
				d.clock.Sleep(d.dmiRetryDelay)
			}
			continue
		default:
			return 0, toolerrors.Newf(toolerrors.KindProtocolError, "DMI read of register 0x%02x failed with status 0x%02x", address, status)
		}
	}
	return 0, toolerrors.Newf(toolerrors.KindTimeout, "DMI read of register 0x%02x: busy after %d attempts", address, dmiOpMaxRetry)
}

// WriteDMIRegister implements riscv.DebugModule, with the same retry policy
// as ReadDMIRegister.
func (d *Driver) WriteDMIRegister(address riscv.RegisterAddress, value riscv.RegisterValue) error {
	payload := []byte{
		byte(address),
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	}

	for attempt := 0; attempt < dmiOpMaxRetry; attempt++ {
		resp, err := d.framer.SendCommand(Command{ID: cmdDmiWrite, Payload: payload})
		if err != nil {
			return err
		}

		status, _, err := parseDMIResponse(resp)
		if err != nil {
			return err
		}

		switch status {
		case dmiStatusSuccess:
			return nil
		case dmiStatusBusy:
			if attempt < dmiOpMaxRetry-1 {
				d.clock.Sleep(d.dmiRetryDelay)
			}
			continue
		default:
			return toolerrors.Newf(toolerrors.KindProtocolError, "DMI write of register 0x%02x failed with status 0x%02x", address, status)
		}
	}
	return toolerrors.Newf(toolerrors.KindTimeout, "DMI write of register 0x%02x: busy after %d attempts", address, dmiOpMaxRetry)
}

// parseDMIResponse extracts the status byte and, for a successful read, the
// little-endian 32-bit register value from a DMI command response payload
// (assumed shape: [status, value0..value3] - see commands.go).
func parseDMIResponse(resp Response) (status byte, value riscv.RegisterValue, err error) {
	if len(resp.Payload) < 1 {
		return 0, 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "DMI response payload too short")
	}
	status = resp.Payload[0]
	if status != dmiStatusSuccess {
		return status, 0, nil
	}
	if len(resp.Payload) < 5 {
		return 0, 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "DMI success response too short for register value")
	}
	value = riscv.RegisterValue(uint32(resp.Payload[1]) | uint32(resp.Payload[2])<<8 | uint32(resp.Payload[3])<<16 | uint32(resp.Payload[4])<<24)
	return status, value, nil
}
