//go:build !linux

package proc

// ReadMaps is not supported on non-Linux platforms.
func ReadMaps(path string) ([]byte, error) {
	return nil, ErrUnsupported
}
