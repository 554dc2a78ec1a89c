package wchlink

// Vendor command IDs. GetDeviceInfo's existence and response shape are
// confirmed by original_source's WchLinkInterface.cpp
// (Commands::Control::GetDeviceInfo); its Commands/ directory (which would
// hold the literal wire byte for each command) was not part of the
// retrieved subset, so every numeric ID below is assumed and only needs to
// be internally consistent, per the same rule applied in internal/avrisp.
const (
	cmdGetDeviceInfo          byte = 0x01
	cmdActivate               byte = 0x0d
	cmdDeactivate             byte = 0x0e
	cmdSetClockSpeed          byte = 0x0c
	cmdDmiRead                byte = 0x08
	cmdDmiWrite               byte = 0x09
	cmdWriteFlashFullBlock    byte = 0x10
	cmdWriteFlashPartialBlock byte = 0x11
	cmdEraseProgramMemory     byte = 0x12
)

// dmiOpMaxRetry is DMI_OP_MAX_RETRY from spec.md §4.7.
const dmiOpMaxRetry = 10

// DMI response status byte, leading the [status, value(4)] payload of a
// read_dmi_register response (assumed shape - mirrors the RISC-V debug
// spec's own op field, not literally retrieved from original_source).
const (
	dmiStatusSuccess byte = 0x00
	dmiStatusBusy    byte = 0x01
	dmiStatusFailed  byte = 0x02
)

// maxPartialFlashBlock is the 64-byte cap on write_flash_partial_block
// (spec.md §4.7: "up to 64 bytes; used for the tail").
const maxPartialFlashBlock = 64
