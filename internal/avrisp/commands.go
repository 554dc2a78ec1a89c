package avrisp

// AVR ISP command IDs, nested inside the EDBG AvrCommandFrame the same way
// AVR8-Generic's are (spec.md §3). original_source's retrieved subset
// (EdbgAvrIspInterface.hpp, AvrIspCommandFrame.hpp) names the operations but
// not their wire byte values, so every ID here is assumed rather than
// confirmed - internally consistent (same ID builds and is recognised by
// this package), never cross-checked against a real device.
const (
	cmdIspSetParameter      byte = 0x01
	cmdIspEnterProgMode     byte = 0x10
	cmdIspLeaveProgMode     byte = 0x11
	cmdIspReadSignature     byte = 0x20
	cmdIspReadFuse          byte = 0x21
	cmdIspReadLockBits      byte = 0x22
	cmdIspProgramFuse       byte = 0x23
)

const ispProtocolVersion = 0x00

func buildCommand(cmdID byte, args ...byte) []byte {
	out := make([]byte, 0, 2+len(args))
	out = append(out, cmdID, ispProtocolVersion)
	out = append(out, args...)
	return out
}

// ParameterID pairs a context byte with a parameter byte, mirroring
// AVR8-Generic's SET_PARAMETER shape (spec §4.4 supplement).
type ParameterID struct {
	Context byte
	ID      byte
}

var (
	ParamProgramModeTimeout              = ParameterID{0x00, 0x01}
	ParamProgramModeStabilizationDelay   = ParameterID{0x00, 0x02}
	ParamProgramModeCommandExecutionDelay = ParameterID{0x00, 0x03}
	ParamProgramModeSyncLoops             = ParameterID{0x00, 0x04}
	ParamProgramModeByteDelay             = ParameterID{0x00, 0x05}
	ParamProgramModePollValue             = ParameterID{0x00, 0x06}
	ParamProgramModePollIndex             = ParameterID{0x00, 0x07}
	ParamProgramModePreDelay              = ParameterID{0x00, 0x08}
	ParamProgramModePostDelay             = ParameterID{0x00, 0x09}
	ParamReadSignaturePollIndex           = ParameterID{0x00, 0x0A}
	ParamReadFusePollIndex                = ParameterID{0x00, 0x0B}
	ParamReadLockPollIndex                = ParameterID{0x00, 0x0C}
)
