// Package tool implements C8, the Debug Tool Shell: the capability
// dispatcher that binds a fixed USB identity to the C1-C7 stack and
// answers power_management()/avr8_debug()/avr_isp()/riscv_debug() on a
// uniform surface (spec §4.8).
package tool

import (
	"github.com/google/gousb"

	"debugtool/internal/usbtransport"
)

// Identity is the static, per-model tool-identity record of spec §3/§6:
// `(usb_vendor_id, usb_product_id, cmsis_hid_interface_number,
// supports_target_power, optional_usb_configuration_index)`.
type Identity struct {
	Name string

	VendorID  gousb.ID
	ProductID gousb.ID

	// ConfigurationIndex, when non-nil, is set explicitly during Open
	// (spec §6: "Config idx" column; "-" means the device's default).
	ConfigurationIndex *int

	CmsisHIDInterfaceNumber int
	SupportsTargetPower     bool
}

func (id Identity) usbIdentity() usbtransport.Identity {
	return usbtransport.Identity{
		VendorID:           id.VendorID,
		ProductID:          id.ProductID,
		ConfigurationIndex: id.ConfigurationIndex,
	}
}

func configIndex(v int) *int { return &v }

// EDBG tool identities, bit-exact per spec §6's USB identity table.
var (
	AtmelICE = Identity{
		Name: "Atmel-ICE",
		VendorID: 0x03eb, ProductID: 0x2141,
		ConfigurationIndex:      configIndex(0),
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	}
	PowerDebugger = Identity{
		Name: "Power Debugger",
		VendorID: 0x03eb, ProductID: 0x2144,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	}
	JTAGICE3 = Identity{
		Name: "JTAGICE3",
		VendorID: 0x03eb, ProductID: 0x2140,
		ConfigurationIndex:      configIndex(0),
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	}
	MplabSnap = Identity{
		Name: "MPLAB Snap (AVR mode)",
		VendorID: 0x03eb, ProductID: 0x2180,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	}
	MplabPICkit4 = Identity{
		Name: "MPLAB PICkit4 (AVR mode)",
		VendorID: 0x03eb, ProductID: 0x2177,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	}
	XplainedPro = Identity{
		Name: "Xplained Pro",
		VendorID: 0x03eb, ProductID: 0x2111,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     true,
	}
	XplainedMini = Identity{
		Name: "Xplained Mini",
		VendorID: 0x03eb, ProductID: 0x2145,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     true,
	}
	XplainedNano = Identity{
		Name: "Xplained Nano",
		VendorID: 0x03eb, ProductID: 0x2145,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     true,
	}
	CuriosityNano = Identity{
		Name: "Curiosity Nano",
		VendorID: 0x03eb, ProductID: 0x2175,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     true,
	}
)

// WchLinkIdentity extends Identity with the IAP-mode (vendor, product)
// pair WCH-Link variants additionally carry (spec §3).
type WchLinkIdentity struct {
	Identity

	IAPVendorID  gousb.ID
	IAPProductID gousb.ID
}

// WCHLinkE is the one WCH-Link variant named explicitly in spec §6's
// identity table; its IAP pair is grounded on spec §8 scenario E5
// ("(0x1a86, 0x8012 IAP)").
var WCHLinkE = WchLinkIdentity{
	Identity: Identity{
		Name: "WCH-LinkE",
		VendorID: 0x1a86, ProductID: 0x8010,
		CmsisHIDInterfaceNumber: 0,
		SupportsTargetPower:     false,
	},
	IAPVendorID:  0x1a86,
	IAPProductID: 0x8012,
}
