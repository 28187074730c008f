package modules

import (
	"math"

	"github.com/coral-mesh/coral-modules/internal/sys/proc"
)

// MaxMappings is the number of discontiguous mapping runs tracked per module.
// Further runs are dropped.
const MaxMappings = 5

// Memory gives read access to the address space the modules live in.
type Memory interface {
	ReadAt(addr uint64, size int) ([]byte, error)
}

// MappingRun is a stretch of a module image that is contiguous both in the
// address space and in the file it was mapped from.
type MappingRun struct {
	Offset uint64
	Size   uint64
	Addr   uint64
}

// Module is one loaded image, made of up to MaxMappings runs in ascending
// address order.
type Module struct {
	Path []byte

	mappings    [MaxMappings]MappingRun
	numMappings int
}

// Mappings returns the runs of the module.
func (m *Module) Mappings() []MappingRun {
	return m.mappings[:m.numMappings]
}

// Push adds the region described by entry to the module. A region that
// continues the last run in both address and file offset extends that run.
func (m *Module) Push(entry *proc.MapEntry) {
	size := entry.End - entry.Start
	if m.numMappings > 0 {
		last := &m.mappings[m.numMappings-1]
		if last.Addr+last.Size == entry.Start && last.Offset+last.Size == entry.Offset {
			last.Size += size
			return
		}
	}
	if m.numMappings < MaxMappings {
		m.mappings[m.numMappings] = MappingRun{
			Offset: entry.Offset,
			Size:   size,
			Addr:   entry.Start,
		}
		m.numMappings++
	}
}

// Translate returns the address at which the file range [offset, offset+size)
// is mapped. The range may cover several runs as long as they are adjacent in
// memory; a gap in the address space makes the translation fail.
func (m *Module) Translate(offset, size uint64) (uint64, bool) {
	var addr uint64
	found := false
	addrEnd := uint64(math.MaxUint64)
	for _, mapping := range m.Mappings() {
		if found && addrEnd < mapping.Addr {
			return 0, false
		}
		addrEnd = mapping.Addr + mapping.Size
		if offset >= mapping.Offset && offset-mapping.Offset < mapping.Size {
			addr = offset - mapping.Offset + mapping.Addr
			found = true
		}
		if found && addr <= addrEnd && size <= addrEnd-addr {
			return addr, true
		}
	}
	return 0, false
}

// Read translates the file range [offset, offset+size) and reads it from mem.
// All structure accesses of the ELF reader go through here.
func (m *Module) Read(mem Memory, offset, size uint64) ([]byte, bool) {
	return m.readPrefix(mem, offset, size, size)
}

// readPrefix validates the whole range like Read but only copies its first
// limit bytes.
func (m *Module) readPrefix(mem Memory, offset, size, limit uint64) ([]byte, bool) {
	addr, ok := m.Translate(offset, size)
	if !ok {
		return nil, false
	}
	n := min(size, limit)
	if n > math.MaxInt32 {
		return nil, false
	}
	data, err := mem.ReadAt(addr, int(n))
	if err != nil {
		return nil, false
	}
	return data, true
}
