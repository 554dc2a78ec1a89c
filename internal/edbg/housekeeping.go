package edbg

import "debugtool/internal/toolerrors"

// HouseKeeping command tokens, carried as the first payload byte of a
// HandlerHouseKeeping AvrCommandFrame (spec §4.2).
const (
	houseKeepingStartSession byte = 0x10
	houseKeepingEndSession   byte = 0x11
)

// StartSession opens a debug-tool session, required before issuing any
// AVR8Generic/AvrISP/EdbgControl command (spec §4.2, E1).
func (p *SubProtocol) StartSession() error {
	resp, err := p.Exec(HandlerHouseKeeping, []byte{houseKeepingStartSession, 0x00, 0x00, 0x00})
	if err != nil {
		return err
	}
	return requireOK(resp, "HouseKeeping START_SESSION")
}

// EndSession closes a session opened with StartSession.
func (p *SubProtocol) EndSession() error {
	resp, err := p.Exec(HandlerHouseKeeping, []byte{houseKeepingEndSession})
	if err != nil {
		return err
	}
	return requireOK(resp, "HouseKeeping END_SESSION")
}

// requireOK raises ProtocolError for a FAILED/FAILED_WITH_DATA response,
// surfacing its payload as diagnostic detail, and DeviceCommunicationFailure
// for any other response id that isn't a plain ResponseOK.
func requireOK(resp AvrResponseFrame, what string) error {
	id, err := resp.ResponseID()
	if err != nil {
		return err
	}
	switch id {
	case ResponseOK:
		return nil
	case ResponseFailed, ResponseFailedWithData:
		return toolerrors.Newf(toolerrors.KindProtocolError, "%s failed (response data: % x)", what, resp.Data())
	default:
		return toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "%s: unexpected response id 0x%02x", what, byte(id))
	}
}
