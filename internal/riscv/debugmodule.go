// Package riscv defines the narrow Debug-Module register interface that
// the external, out-of-scope generic RISC-V Debug-Module translator
// consumes (spec.md §4.7: "composition with a generic RISC-V Debug-Module
// translator"). This subsystem only provides a DebugModule implementation
// (internal/wchlink.Driver); the translator itself - the component that
// interprets DMI register values as abstract target operations - lives
// outside this module.
package riscv

// RegisterAddress is a DMI register address (spec §4.7 "DTM interface").
type RegisterAddress uint8

// RegisterValue is a DMI register's 32-bit value.
type RegisterValue uint32

// DebugModule is the DTM surface a RISC-V Debug-Module translator drives:
// read/write of Debug Module Interface registers, with local busy-retry
// handled by the implementation (spec §4.7).
type DebugModule interface {
	ReadDMIRegister(address RegisterAddress) (RegisterValue, error)
	WriteDMIRegister(address RegisterAddress, value RegisterValue) error
}
