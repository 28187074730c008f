//go:build !linux

package proc

// SelfMemory is not supported on non-Linux platforms.
type SelfMemory struct{}

// NewSelfMemory returns a reader that always fails.
func NewSelfMemory() *SelfMemory {
	return &SelfMemory{}
}

// ReadAt is not supported on non-Linux platforms.
func (m *SelfMemory) ReadAt(addr uint64, size int) ([]byte, error) {
	return nil, ErrUnsupported
}
