//go:build linux

package proc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SelfMemory reads the memory of the current process.
//
// Reads go through process_vm_readv(2), so an address that is no longer
// mapped produces an error instead of a fault.
type SelfMemory struct {
	pid int
}

// NewSelfMemory returns a reader for the memory of the calling process.
func NewSelfMemory() *SelfMemory {
	return &SelfMemory{pid: os.Getpid()}
}

// ReadAt copies size bytes starting at addr.
func (m *SelfMemory) ReadAt(addr uint64, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid read size %d", size)
	}
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}

	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(size)
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: size}}

	n, err := unix.ProcessVMReadv(m.pid, local, remote, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at 0x%x: %w", size, addr, err)
	}
	if n != size {
		return nil, fmt.Errorf("short read at 0x%x: got %d of %d bytes", addr, n, size)
	}
	return buf, nil
}
