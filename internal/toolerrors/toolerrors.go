// Package toolerrors defines the error taxonomy shared by every layer of the
// debug-tool driver stack. The source throws exceptions across layers; here
// each failure kind is a typed value so callers can branch on it with
// errors.Is/errors.As instead of catching a class hierarchy.
package toolerrors

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy of spec §7. It carries no message -
// that's in Error.Message - so callers can switch on Kind alone.
type Kind int

const (
	// KindUnknown is never returned; it catches zero-value misuse.
	KindUnknown Kind = iota

	// KindDeviceNotFound means enumeration returned no matching device.
	KindDeviceNotFound
	// KindAmbiguousDevice means more than one device matched (vid, pid).
	KindAmbiguousDevice
	// KindDeviceInitializationFailure means open/claim/configure failed.
	KindDeviceInitializationFailure
	// KindDeviceCommunicationFailure means a malformed/unexpected response,
	// size mismatch, out-of-order framing, or transport-level error.
	KindDeviceCommunicationFailure
	// KindProtocolError means the device responded with an explicit
	// protocol-level failure code (EDBG FAILED, WCH-Link 0x81).
	KindProtocolError
	// KindInvalidConfig means a user-supplied parameter is out of range.
	KindInvalidConfig
	// KindDebugWirePhysicalInterfaceError means debugWIRE activation failed
	// in a way that suggests the DWEN fuse is unset.
	KindDebugWirePhysicalInterfaceError
	// KindOutOfHardwareBreakpoints means no hardware breakpoint slot is free.
	KindOutOfHardwareBreakpoints
	// KindTimeout means a USB read, re-enumeration wait, or event wait timed out.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindDeviceNotFound:
		return "DeviceNotFound"
	case KindAmbiguousDevice:
		return "AmbiguousDevice"
	case KindDeviceInitializationFailure:
		return "DeviceInitializationFailure"
	case KindDeviceCommunicationFailure:
		return "DeviceCommunicationFailure"
	case KindProtocolError:
		return "ProtocolError"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindDebugWirePhysicalInterfaceError:
		return "DebugWirePhysicalInterfaceError"
	case KindOutOfHardwareBreakpoints:
		return "OutOfHardwareBreakpoints"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned throughout the driver stack.
// Every error carries a human-readable message and a Kind discriminator, per
// spec §7's "user-visible behaviour" requirement.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, toolerrors.New(kind, "")) style kind checks by
// comparing only the Kind field.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// KindOf extracts the Kind from err, or KindUnknown if err isn't an *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return KindUnknown
	}
	return e.Kind
}
