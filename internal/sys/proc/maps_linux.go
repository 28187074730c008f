//go:build linux

package proc

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ReadMaps reads the whole maps pseudo-file at path into one buffer.
//
// The file is read with raw read(2) calls so that interrupted or would-block
// reads can be retried. Reading stops at end of file or on any other error;
// whatever was read up to that point is returned.
func ReadMaps(path string) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer unix.Close(fd) // nolint:errcheck

	var contents bytes.Buffer
	buf := make([]byte, readChunk)
	for {
		n, err := unix.Read(fd, buf)
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err != nil || n <= 0 {
			break
		}
		contents.Write(buf[:n])
	}
	return contents.Bytes(), nil
}
