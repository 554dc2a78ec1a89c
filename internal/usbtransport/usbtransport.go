// Package usbtransport implements C1: USB enumeration, bulk I/O, and an HID
// report layer built on top of bulk semantics. Grounded on
// guiperry-HASHER/internal/driver/device/usb_device.go's use of
// github.com/google/gousb (Context/Device/Config/Interface/endpoints),
// generalized from one hard-coded ASIC identity to arbitrary (VID, PID)
// pairs and a configurable HID report size.
package usbtransport

import (
	"context"
	"log"
	"time"

	"github.com/google/gousb"

	"debugtool/internal/toolerrors"
)

// Identity names the (vendor, product) pair used for enumeration, plus the
// fields the Debug Tool Shell needs when opening a matched device
// (spec §6).
type Identity struct {
	VendorID  gousb.ID
	ProductID gousb.ID

	// ConfigurationIndex, if non-nil, is set explicitly during Open.
	ConfigurationIndex *int
}

// Device owns one opened USB device: the gousb context, device handle, the
// active configuration, and any claimed interfaces. Ownership is exclusive -
// spec §5 says the USB device handle is owned by exactly one shell instance.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config

	ifaces map[int]*claimedInterface
}

type claimedInterface struct {
	iface *gousb.Interface
	epIn  map[int]*gousb.InEndpoint
	epOut map[int]*gousb.OutEndpoint
}

// Enumerate matches every device with the given (vid, pid). Per spec §4.1,
// the caller decides what to do with more than one match - Open enforces
// the AmbiguousDevice rule, but Enumerate itself is a plain list.
func Enumerate(ctx *gousb.Context, vid, pid gousb.ID) ([]*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "USB enumeration failed", err)
	}
	return devices, nil
}

// Open enumerates devices matching identity and opens exactly one. Zero
// matches is DeviceNotFound; more than one is AmbiguousDevice (spec §4.1).
func Open(ctx *gousb.Context, identity Identity) (*Device, error) {
	matches, err := Enumerate(ctx, identity.VendorID, identity.ProductID)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, toolerrors.Newf(
			toolerrors.KindDeviceNotFound,
			"no USB device matching VID:0x%04x PID:0x%04x", identity.VendorID, identity.ProductID,
		)
	}

	if len(matches) > 1 {
		for _, extra := range matches {
			extra.Close()
		}
		return nil, toolerrors.Newf(
			toolerrors.KindAmbiguousDevice,
			"found %d devices matching VID:0x%04x PID:0x%04x, expected exactly one",
			len(matches), identity.VendorID, identity.ProductID,
		)
	}

	dev := matches[0]

	// Kernel driver detachment is attempted once per interface and is
	// idempotent; failure here is fatal (spec §4.1).
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to detach kernel driver", err)
	}

	configIdx := 1
	if identity.ConfigurationIndex != nil {
		configIdx = *identity.ConfigurationIndex
	}

	config, err := dev.Config(configIdx)
	if err != nil {
		dev.Close()
		return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to set USB configuration", err)
	}

	return &Device{
		ctx:    ctx,
		dev:    dev,
		config: config,
		ifaces: make(map[int]*claimedInterface),
	}, nil
}

// Close tears down claimed interfaces, the configuration, and the device
// handle, in strict reverse order (spec §4.8 close()).
func (d *Device) Close() error {
	for num, ci := range d.ifaces {
		ci.iface.Close()
		delete(d.ifaces, num)
	}
	if d.config != nil {
		d.config.Close()
	}
	if d.dev != nil {
		d.dev.Close()
	}
	return nil
}

// SerialNumber reads the device's USB serial-number string descriptor
// (spec §4.8 "serial_number()").
func (d *Device) SerialNumber() (string, error) {
	serial, err := d.dev.SerialNumber()
	if err != nil {
		return "", toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "failed to read USB serial number", err)
	}
	return serial, nil
}

// ClaimInterface claims USB interface number num (alternate setting 0) and
// resolves its IN/OUT endpoints on demand.
func (d *Device) ClaimInterface(num int) error {
	if _, ok := d.ifaces[num]; ok {
		return nil
	}

	iface, err := d.config.Interface(num, 0)
	if err != nil {
		return toolerrors.Wrap(
			toolerrors.KindDeviceInitializationFailure,
			"failed to claim USB interface", err,
		)
	}

	d.ifaces[num] = &claimedInterface{
		iface: iface,
		epIn:  make(map[int]*gousb.InEndpoint),
		epOut: make(map[int]*gousb.OutEndpoint),
	}
	return nil
}

// ReleaseInterface releases a previously claimed interface.
func (d *Device) ReleaseInterface(num int) {
	ci, ok := d.ifaces[num]
	if !ok {
		return
	}
	ci.iface.Close()
	delete(d.ifaces, num)
}

func (d *Device) inEndpoint(ifaceNum, epAddr int) (*gousb.InEndpoint, error) {
	ci, ok := d.ifaces[ifaceNum]
	if !ok {
		return nil, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "interface %d not claimed", ifaceNum)
	}
	if ep, ok := ci.epIn[epAddr]; ok {
		return ep, nil
	}
	ep, err := ci.iface.InEndpoint(epAddr)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to open IN endpoint", err)
	}
	ci.epIn[epAddr] = ep
	return ep, nil
}

func (d *Device) outEndpoint(ifaceNum, epAddr int) (*gousb.OutEndpoint, error) {
	ci, ok := d.ifaces[ifaceNum]
	if !ok {
		return nil, toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "interface %d not claimed", ifaceNum)
	}
	if ep, ok := ci.epOut[epAddr]; ok {
		return ep, nil
	}
	ep, err := ci.iface.OutEndpoint(epAddr)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to open OUT endpoint", err)
	}
	ci.epOut[epAddr] = ep
	return ep, nil
}

// BulkWrite splits buf into maxPacketSize chunks and writes them in order;
// the final short fragment implicitly terminates the transfer (spec §4.1).
func (d *Device) BulkWrite(ifaceNum, epAddr int, buf []byte, maxPacketSize int) error {
	ep, err := d.outEndpoint(ifaceNum, epAddr)
	if err != nil {
		return err
	}
	return writeBulk(ep, buf, maxPacketSize)
}

func writeBulk(ep *gousb.OutEndpoint, buf []byte, maxPacketSize int) error {
	if maxPacketSize <= 0 {
		maxPacketSize = len(buf)
		if maxPacketSize == 0 {
			maxPacketSize = 1
		}
	}

	total := 0
	for total < len(buf) {
		end := total + maxPacketSize
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[total:end]

		n, err := ep.Write(chunk)
		if err != nil || n != len(chunk) {
			return toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "USB bulk write failed", err)
		}
		total += n
	}
	return nil
}

// BulkRead reads from the endpoint until a short or empty transfer is seen,
// coalescing the results into one buffer, honouring timeout on the first
// read (spec §4.1, mirrors the original's readBulk()).
func (d *Device) BulkRead(ifaceNum, epAddr int, timeout time.Duration, transferSize int) ([]byte, error) {
	ep, err := d.inEndpoint(ifaceNum, epAddr)
	if err != nil {
		return nil, err
	}
	return readBulk(ep, timeout, transferSize)
}

func readBulk(ep *gousb.InEndpoint, timeout time.Duration, transferSize int) ([]byte, error) {
	if transferSize <= 0 {
		transferSize = 512
	}

	var out []byte
	cur := timeout

	for {
		ctx, cancel := context.WithTimeout(context.Background(), cur)
		buf := make([]byte, transferSize)
		n, err := ep.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			if len(out) > 0 {
				// Subsequent reads may legitimately time out once the
				// device has nothing more to offer.
				break
			}
			return nil, toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "USB bulk read failed", err)
		}

		out = append(out, buf[:n]...)
		if n < transferSize {
			break
		}

		// After the first read, don't wait long for the remainder.
		cur = time.Millisecond
	}

	return out, nil
}

// ReadReport reads exactly one HID report: at most reportSize bytes, no
// coalescing across reports (spec §4.1: "a read returns at most one report").
func (d *Device) ReadReport(ifaceNum, epAddr int, reportSize int, timeout time.Duration) ([]byte, error) {
	ep, err := d.inEndpoint(ifaceNum, epAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, reportSize)
	n, err := ep.ReadContext(ctx, buf)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "HID report read failed", err)
	}
	return buf[:n], nil
}

// WriteReport zero-pads buf to reportSize and writes exactly one report
// (spec §4.1: "every write must be exactly one report").
func (d *Device) WriteReport(ifaceNum, epAddr int, buf []byte, reportSize int) error {
	ep, err := d.outEndpoint(ifaceNum, epAddr)
	if err != nil {
		return err
	}

	if len(buf) > reportSize {
		return toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "report payload (%d bytes) exceeds report size (%d)", len(buf), reportSize)
	}

	padded := make([]byte, reportSize)
	copy(padded, buf)

	n, err := ep.Write(padded)
	if err != nil || n != reportSize {
		return toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "HID report write failed", err)
	}
	return nil
}

// ExitIAPMode writes the single-byte bootloader-exit command to a raw IAP
// device's endpoint 0x02, then waits up to timeout for a device matching
// normalIdentity to reappear (spec §4.1, §4.7, E5).
func ExitIAPMode(ctx *gousb.Context, iapIdentity, normalIdentity Identity, timeout time.Duration) (*Device, error) {
	const (
		iapExitInterface = 0
		iapExitEndpoint  = 0x02
		iapExitCommand   = 0x83
	)

	iapDev, err := Open(ctx, iapIdentity)
	if err != nil {
		return nil, err
	}

	if err := iapDev.ClaimInterface(iapExitInterface); err != nil {
		iapDev.Close()
		return nil, err
	}

	if err := iapDev.BulkWrite(iapExitInterface, iapExitEndpoint, []byte{iapExitCommand}, 64); err != nil {
		iapDev.Close()
		return nil, toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "failed to send IAP exit command", err)
	}
	iapDev.Close()

	log.Printf("Sent IAP exit command, waiting up to %s for device to re-enumerate", timeout)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		matches, err := Enumerate(ctx, normalIdentity.VendorID, normalIdentity.ProductID)
		if err == nil && len(matches) == 1 {
			dev := matches[0]
			if err := dev.SetAutoDetach(true); err != nil {
				dev.Close()
				return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to detach kernel driver", err)
			}
			configIdx := 1
			if normalIdentity.ConfigurationIndex != nil {
				configIdx = *normalIdentity.ConfigurationIndex
			}
			config, err := dev.Config(configIdx)
			if err != nil {
				dev.Close()
				return nil, toolerrors.Wrap(toolerrors.KindDeviceInitializationFailure, "failed to set USB configuration", err)
			}
			return &Device{ctx: ctx, dev: dev, config: config, ifaces: make(map[int]*claimedInterface)}, nil
		}
		for _, extra := range matches {
			extra.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}

	return nil, toolerrors.Newf(toolerrors.KindTimeout, "device did not re-enumerate within %s after IAP exit", timeout)
}
