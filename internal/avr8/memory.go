package avr8

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// cmdReadMemoryMasked is the masked-SRAM-read command variant referenced by
// spec §4.4 rule 5 (avoid_masked_read). Like the other AVR8-Generic
// commands without a confirmed wire value in the retrieved original_source
// subset, its ID is assumed (documented in DESIGN.md).
const cmdReadMemoryMasked byte = 0x32

// readMemoryRaw issues one ReadMemory command, with no alignment,
// chunking or exclusion handling - the lowest layer above the wire.
func (d *Driver) readMemoryRaw(memType MemoryType, address target.MemoryAddress, size target.MemorySize) ([]byte, error) {
	payload := buildCommand(cmdReadMemory, byte(memType),
		byte(address), byte(address>>8), byte(address>>16), byte(address>>24),
		byte(size), byte(size>>8), byte(size>>16), byte(size>>24),
	)

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, payload)
	if err != nil {
		return nil, err
	}
	if err := requireOK(resp, "AVR8-Generic READ_MEMORY"); err != nil {
		return nil, err
	}

	data := resp.Data()
	if target.MemorySize(len(data)) != size {
		return nil, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"READ_MEMORY returned %d bytes, expected %d", len(data), size,
		)
	}
	return data, nil
}

// readMemoryMaskedRaw issues the masked-SRAM-read variant: mask is one bit
// per byte of the range (1 = read, 0 = skip), and the device is trusted to
// zero-fill skipped bytes in its response (spec §4.4 rule 5, used only when
// avoidMaskedRead is false).
func (d *Driver) readMemoryMaskedRaw(address target.MemoryAddress, size target.MemorySize, mask []byte) ([]byte, error) {
	payload := buildCommand(cmdReadMemoryMasked, byte(MemoryTypeSRAM),
		byte(address), byte(address>>8), byte(address>>16), byte(address>>24),
		byte(size), byte(size>>8), byte(size>>16), byte(size>>24),
	)
	payload = append(payload, mask...)

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, payload)
	if err != nil {
		return nil, err
	}
	if err := requireOK(resp, "AVR8-Generic READ_MEMORY (masked)"); err != nil {
		return nil, err
	}

	data := resp.Data()
	if target.MemorySize(len(data)) != size {
		return nil, toolerrors.Newf(
			toolerrors.KindDeviceCommunicationFailure,
			"masked READ_MEMORY returned %d bytes, expected %d", len(data), size,
		)
	}
	return data, nil
}

// writeMemoryRaw issues one WriteMemory command, with no alignment or
// chunking.
func (d *Driver) writeMemoryRaw(memType MemoryType, address target.MemoryAddress, buf []byte) error {
	size := len(buf)
	payload := buildCommand(cmdWriteMemory, byte(memType),
		byte(address), byte(address>>8), byte(address>>16), byte(address>>24),
		byte(size), byte(size>>8), byte(size>>16), byte(size>>24),
	)
	payload = append(payload, buf...)

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, payload)
	if err != nil {
		return err
	}
	return requireOK(resp, "AVR8-Generic WRITE_MEMORY")
}

// pageSizeFor returns the page-alignment requirement for memType, or 0 if
// the type isn't page-aligned (spec §4.4 rule 2).
func (d *Driver) pageSizeFor(memType MemoryType) target.MemorySize {
	switch memType {
	case MemoryTypeFlashPage, MemoryTypeApplFlash, MemoryTypeBootFlash, MemoryTypeApplFlashAtomic:
		return target.MemorySize(d.targetParameters.FlashPageSize)
	case MemoryTypeEEPROMPage, MemoryTypeEEPROMAtomic:
		return target.MemorySize(d.targetParameters.EEPROMPageSize)
	default:
		return 0
	}
}

// alignRange aligns [start, start+size) down/up to pageSize, returning the
// aligned start and size (spec §4.4 rule 2). A zero pageSize is a no-op.
func alignRange(start target.MemoryAddress, size target.MemorySize, pageSize target.MemorySize) (target.MemoryAddress, target.MemorySize) {
	if pageSize == 0 {
		return start, size
	}

	alignedStart := (uint32(start) / uint32(pageSize)) * uint32(pageSize)
	end := uint32(start) + uint32(size)
	alignedEnd := ((end + uint32(pageSize) - 1) / uint32(pageSize)) * uint32(pageSize)

	return target.MemoryAddress(alignedStart), target.MemorySize(alignedEnd - alignedStart)
}

// chunkSize picks the largest chunk the driver will request in one
// READ_MEMORY/WRITE_MEMORY command, respecting both maximumMemoryAccessSizePerRequest
// and pageSize - "when the page size exceeds the limit, the limit is
// ignored (page-sized is the minimum)" (spec §4.4 rule 3).
func (d *Driver) chunkSize(pageSize target.MemorySize) target.MemorySize {
	if d.maximumMemoryAccessSizePerRequest == nil {
		if pageSize > 0 {
			return pageSize
		}
		return 0 // unbounded: caller issues one request
	}

	limit := *d.maximumMemoryAccessSizePerRequest
	if pageSize == 0 {
		return limit
	}
	if pageSize > limit {
		return pageSize
	}
	// Largest multiple of pageSize that fits within limit.
	chunks := uint32(limit) / uint32(pageSize)
	if chunks == 0 {
		chunks = 1
	}
	return target.MemorySize(chunks * uint32(pageSize))
}

// readAlignedChunked reads [start, start+size) (already page-aligned by the
// caller if needed), splitting into chunkSize()-sized requests (spec §4.4
// rules 2-3).
func (d *Driver) readAlignedChunked(memType MemoryType, start target.MemoryAddress, size target.MemorySize) ([]byte, error) {
	chunk := d.chunkSize(d.pageSizeFor(memType))
	if chunk == 0 || chunk >= size {
		return d.readMemoryRaw(memType, start, size)
	}

	out := make([]byte, 0, size)
	for offset := target.MemorySize(0); offset < size; {
		remaining := size - offset
		n := chunk
		if n > remaining {
			n = remaining
		}
		data, err := d.readMemoryRaw(memType, start+target.MemoryAddress(offset), n)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		offset += n
	}
	return out, nil
}

func (d *Driver) writeAlignedChunked(memType MemoryType, start target.MemoryAddress, buf []byte) error {
	chunk := d.chunkSize(d.pageSizeFor(memType))
	if chunk == 0 || target.MemorySize(chunk) >= target.MemorySize(len(buf)) {
		return d.writeMemoryRaw(memType, start, buf)
	}

	for offset := 0; offset < len(buf); {
		n := int(chunk)
		if offset+n > len(buf) {
			n = len(buf) - offset
		}
		if err := d.writeMemoryRaw(memType, start+target.MemoryAddress(offset), buf[offset:offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// ReadMemory reads size bytes from start, honouring page alignment,
// chunking, SRAM exclusion ranges and the masked-read workaround toggle
// (spec §4.4 "Memory access").
func (d *Driver) ReadMemory(memType MemoryType, start target.MemoryAddress, size target.MemorySize, excludedRanges []target.AddressRange) ([]byte, error) {
	if memType == MemoryTypeSRAM && len(excludedRanges) > 0 {
		return d.readSRAMWithExclusions(start, size, excludedRanges)
	}

	pageSize := d.pageSizeFor(memType)
	alignedStart, alignedSize := alignRange(start, size, pageSize)

	data, err := d.readAlignedChunked(memType, alignedStart, alignedSize)
	if err != nil {
		return nil, err
	}

	offset := uint32(start) - uint32(alignedStart)
	return data[offset : offset+uint32(size)], nil
}

// readSRAMWithExclusions fills excluded address ranges with 0x00 without
// issuing a read over them (spec §4.4 rule 4), reading every other byte
// either via the masked-read command (avoidMaskedRead == false) or by
// splitting the range into included runs (avoidMaskedRead == true,
// default).
func (d *Driver) readSRAMWithExclusions(start target.MemoryAddress, size target.MemorySize, excludedRanges []target.AddressRange) ([]byte, error) {
	out := make([]byte, size)

	if !d.avoidMaskedRead {
		mask := buildInclusionMask(start, size, excludedRanges)
		data, err := d.readMemoryMaskedRaw(start, size, mask)
		if err != nil {
			return nil, err
		}
		copy(out, data)
		return out, nil
	}

	end := uint32(start) + uint32(size)
	runStart := uint32(start)
	for addr := uint32(start); addr < end; addr++ {
		if addressExcluded(target.MemoryAddress(addr), excludedRanges) {
			if addr > runStart {
				data, err := d.readAlignedChunked(MemoryTypeSRAM, target.MemoryAddress(runStart), target.MemorySize(addr-runStart))
				if err != nil {
					return nil, err
				}
				copy(out[runStart-uint32(start):], data)
			}
			runStart = addr + 1
			continue
		}
	}
	if runStart < end {
		data, err := d.readAlignedChunked(MemoryTypeSRAM, target.MemoryAddress(runStart), target.MemorySize(end-runStart))
		if err != nil {
			return nil, err
		}
		copy(out[runStart-uint32(start):], data)
	}

	return out, nil
}

func addressExcluded(addr target.MemoryAddress, ranges []target.AddressRange) bool {
	for _, r := range ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// buildInclusionMask builds a 1-bit-per-byte mask (1 = read, 0 = skip) for
// the masked-read command path.
func buildInclusionMask(start target.MemoryAddress, size target.MemorySize, excludedRanges []target.AddressRange) []byte {
	mask := make([]byte, (size+7)/8)
	for i := target.MemorySize(0); i < size; i++ {
		if !addressExcluded(start+target.MemoryAddress(i), excludedRanges) {
			mask[i/8] |= 1 << (i % 8)
		}
	}
	return mask
}

// WriteMemory writes buf to start, honouring page alignment via
// read-modify-write for partial pages and chunking (spec §4.4 "Memory
// access").
func (d *Driver) WriteMemory(memType MemoryType, start target.MemoryAddress, buf []byte) error {
	pageSize := d.pageSizeFor(memType)
	if pageSize == 0 {
		return d.writeAlignedChunked(memType, start, buf)
	}

	alignedStart, alignedSize := alignRange(start, target.MemorySize(len(buf)), pageSize)
	if alignedStart == start && int(alignedSize) == len(buf) {
		return d.writeAlignedChunked(memType, start, buf)
	}

	existing, err := d.readAlignedChunked(memType, alignedStart, alignedSize)
	if err != nil {
		return err
	}
	offset := uint32(start) - uint32(alignedStart)
	copy(existing[offset:], buf)

	return d.writeAlignedChunked(memType, alignedStart, existing)
}
