package tool

import (
	"fmt"
	"time"

	"github.com/google/gousb"

	"debugtool/internal/toolconfig"
	"debugtool/internal/toolerrors"
	"debugtool/internal/usbtransport"
	"debugtool/internal/wchlink"
)

// defaultIAPReenumerateTimeout is the default wait after an IAP exit
// command for the normal device to reappear (spec §4.1: "default 8s").
const defaultIAPReenumerateTimeout = 8 * time.Second

// defaultCommandReadTimeout bounds one command-endpoint read.
const defaultCommandReadTimeout = 2 * time.Second

// wchMaxPacketSize is the command/data endpoint's max packet size.
const wchMaxPacketSize = 64

// WchLinkShell is the capability-dispatch shell (C8) for a WCH-Link
// variant (spec §4.8, §4.7).
type WchLinkShell struct {
	identity WchLinkIdentity
	config   toolconfig.ToolConfig

	dev    *usbtransport.Device
	framer *wchlink.Framer
	driver *wchlink.Driver

	initialised bool
}

// NewWchLinkShell constructs a shell bound to identity.
func NewWchLinkShell(identity WchLinkIdentity, cfg toolconfig.ToolConfig) *WchLinkShell {
	return &WchLinkShell{identity: identity, config: cfg}
}

// Init opens the USB device - recovering from IAP mode first when
// ExitIapMode is set and only the IAP pair is present - claims the command
// interface, and performs the WCH DeviceInfo handshake (spec §4.8
// lifecycle; §4.1, §4.7 IAP recovery; E5).
func (s *WchLinkShell) Init(ctx *gousb.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	dev, err := usbtransport.Open(ctx, s.identity.usbIdentity())
	if err != nil {
		if toolerrors.Is(err, toolerrors.KindDeviceNotFound) && s.config.ExitIapMode {
			dev, err = usbtransport.ExitIAPMode(
				ctx,
				usbtransport.Identity{VendorID: s.identity.IAPVendorID, ProductID: s.identity.IAPProductID},
				s.identity.usbIdentity(),
				defaultIAPReenumerateTimeout,
			)
		}
		if err != nil {
			return err
		}
	}

	if err := dev.ClaimInterface(s.identity.CmsisHIDInterfaceNumber); err != nil {
		dev.Close()
		return err
	}

	framer := wchlink.NewFramer(dev, s.identity.CmsisHIDInterfaceNumber, wchMaxPacketSize, defaultCommandReadTimeout)
	driver := wchlink.NewDriver(framer)

	if _, err := driver.GetDeviceInfo(); err != nil {
		dev.Close()
		return err
	}

	s.dev = dev
	s.framer = framer
	s.driver = driver
	s.initialised = true
	return nil
}

// PostInit logs the firmware version and warns (non-fatally) if it is
// below the documented minimum (spec §4.7 "Firmware-version gate").
func (s *WchLinkShell) PostInit() error {
	version, belowMinimum := s.driver.CheckFirmwareVersion()
	fmt.Printf("%s: firmware version %s\n", s.identity.Name, version)
	if belowMinimum {
		fmt.Printf("%s: warning: firmware %s is older than the recommended minimum %s\n", s.identity.Name, version, minimumFirmwareVersionString())
	}
	return nil
}

func minimumFirmwareVersionString() string {
	return "2.9"
}

// Close tears down in strict reverse order: deactivates the debug session
// (best-effort) then closes the USB device (spec §4.8, §7 propagation
// policy).
func (s *WchLinkShell) Close() error {
	var deactivateErr error
	if s.driver != nil {
		deactivateErr = s.driver.Deactivate()
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil && deactivateErr == nil {
			deactivateErr = err
		}
		s.dev = nil
	}
	s.initialised = false
	return deactivateErr
}

// SerialNumber returns the tool's USB serial number (spec §4.8).
func (s *WchLinkShell) SerialNumber() (string, error) {
	if s.dev == nil {
		return "", toolerrors.New(toolerrors.KindDeviceInitializationFailure, "shell not initialised")
	}
	return s.dev.SerialNumber()
}

// RiscVDebug returns the RISC-V debug capability; every WCH-Link variant
// supports it (spec §4.8 table: "tool is a WCH-Link variant").
func (s *WchLinkShell) RiscVDebug() (RiscVDebug, error) {
	if err := s.driver.Activate(); err != nil {
		return nil, err
	}
	return s.driver, nil
}
