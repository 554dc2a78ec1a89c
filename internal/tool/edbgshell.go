package tool

import (
	"fmt"

	"github.com/google/gousb"

	"debugtool/internal/avr8"
	"debugtool/internal/avrisp"
	"debugtool/internal/cmsisdap"
	"debugtool/internal/edbg"
	"debugtool/internal/toolconfig"
	"debugtool/internal/toolerrors"
	"debugtool/internal/usbtransport"
)

// defaultHIDReportSize is the common EDBG HID report size; per-model shells
// may override via PostConfig.
const defaultHIDReportSize = 64

// edbgHIDEndpoints are the fixed HID endpoint addresses used across every
// EDBG tool model (spec §4.2/§6 give only the interface number; in+out
// endpoint addresses follow CMSIS-DAP's own convention of IN=0x81/OUT=0x01
// on the claimed HID interface).
var edbgHIDEndpoints = cmsisdap.Endpoints{InEndpoint: 0x81, OutEndpoint: 0x01}

// PostConfig is a per-model hook that Init calls once with the shell, after
// the HouseKeeping session has started and before any capability driver
// exists. No identity in this package comes with one, and the capability
// accessors apply no per-model memory-access size limit of their own.
type PostConfig func(shell *EdbgShell)

// EdbgShell is the capability-dispatch shell (C8) for one EDBG-family tool:
// it owns the USB device, the CMSIS-DAP framer, the EDBG sub-protocol
// session, and lazily-instantiated capability drivers (spec §4.8).
type EdbgShell struct {
	identity Identity
	config   toolconfig.ToolConfig
	postCfg  PostConfig

	dev *usbtransport.Device
	sub *edbg.SubProtocol

	initialised    bool
	sessionStarted bool

	avr8Driver   *avr8.Driver
	avrISPDriver *avrisp.Driver
}

// NewEdbgShell constructs a shell bound to identity. postCfg may be nil.
func NewEdbgShell(identity Identity, cfg toolconfig.ToolConfig, postCfg PostConfig) *EdbgShell {
	return &EdbgShell{identity: identity, config: cfg, postCfg: postCfg}
}

// Init opens the USB device, claims the HID interface, builds the
// CMSIS-DAP framer and EDBG sub-protocol, and starts a HouseKeeping
// session (spec §4.8 lifecycle).
func (s *EdbgShell) Init(ctx *gousb.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	dev, err := usbtransport.Open(ctx, s.identity.usbIdentity())
	if err != nil {
		return err
	}

	if err := dev.ClaimInterface(s.identity.CmsisHIDInterfaceNumber); err != nil {
		dev.Close()
		return err
	}

	endpoints := edbgHIDEndpoints
	endpoints.InterfaceNumber = s.identity.CmsisHIDInterfaceNumber

	framer := cmsisdap.NewFramer(dev, endpoints, defaultHIDReportSize, s.config.CmsisCommandDelay)
	sub := edbg.NewSubProtocol(framer)

	if err := sub.StartSession(); err != nil {
		dev.Close()
		return err
	}

	s.dev = dev
	s.sub = sub
	s.sessionStarted = true
	s.initialised = true

	if s.postCfg != nil {
		s.postCfg(s)
	}
	return nil
}

// PostInit logs the tool firmware version and enforces no minimum-version
// policy for EDBG tools (spec §4.8: "logs the firmware version and
// enforces any minimum-version policy" - EDBG tools have none documented,
// unlike the WCH-Link gate).
func (s *EdbgShell) PostInit() error {
	version, err := s.sub.GetFirmwareVersion()
	if err != nil {
		return err
	}
	fmt.Printf("%s: firmware version %d.%d\n", s.identity.Name, version.Major, version.Minor)
	return nil
}

// Close tears down in strict reverse order: ends the HouseKeeping session,
// then closes the USB device (spec §4.8).
func (s *EdbgShell) Close() error {
	var sessionErr error
	if s.sessionStarted && s.sub != nil {
		sessionErr = s.sub.EndSession()
		s.sessionStarted = false
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil && sessionErr == nil {
			sessionErr = err
		}
		s.dev = nil
	}
	s.initialised = false
	return sessionErr
}

// SerialNumber returns the tool's USB serial number (spec §4.8).
func (s *EdbgShell) SerialNumber() (string, error) {
	if s.dev == nil {
		return "", toolerrors.New(toolerrors.KindDeviceInitializationFailure, "shell not initialised")
	}
	return s.dev.SerialNumber()
}

// PowerManagement returns the target-power capability, when the tool
// identity declares support; lazy and idempotent (spec §4.8 table).
func (s *EdbgShell) PowerManagement() (PowerManagement, bool) {
	if !s.identity.SupportsTargetPower {
		return nil, false
	}
	return s.sub, true
}

// Avr8Debug returns the AVR8-Generic debug capability, instantiating the
// driver on first call and returning the same instance afterwards; it does
// not call Activate (spec §4.8 table: "tool speaks EDBG and target is AVR8").
func (s *EdbgShell) Avr8Debug(cfg toolconfig.AvrTargetConfig) (Avr8Debug, error) {
	if s.avr8Driver != nil {
		return s.avr8Driver, nil
	}
	driver := avr8.NewDriver(s.sub, cfg)
	s.avr8Driver = driver
	return driver, nil
}

// AvrISP returns the AVR ISP capability when the caller requests it
// (spec §4.8 table), instantiating the driver on first call.
func (s *EdbgShell) AvrISP(params avrisp.ParameterBlock) (AvrISP, error) {
	if s.avrISPDriver != nil {
		return s.avrISPDriver, nil
	}
	driver := avrisp.NewDriver(s.sub, params)
	s.avrISPDriver = driver
	return driver, nil
}
