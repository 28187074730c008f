package proc

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
)

// Auxiliary vector entry types, see getauxval(3).
const (
	atNull        = 0
	atSysinfoEhdr = 33
)

// ParseAuxv scans an auxiliary vector made of (type, value) word pairs in
// native byte order and returns the value of AT_SYSINFO_EHDR, the base
// address of the vDSO. It returns 0 when the entry is missing.
func ParseAuxv(r io.Reader, wordSize int) uint64 {
	if wordSize != 4 && wordSize != 8 {
		return 0
	}
	entry := make([]byte, 2*wordSize)
	word := func(b []byte) uint64 {
		if wordSize == 4 {
			return uint64(binary.NativeEndian.Uint32(b))
		}
		return binary.NativeEndian.Uint64(b)
	}

	for {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0
		}
		typ := word(entry[:wordSize])
		if typ == atNull {
			return 0
		}
		if typ == atSysinfoEhdr {
			return word(entry[wordSize:])
		}
	}
}

// VDSOBase returns the vDSO base address of the current process as recorded
// in the auxiliary vector file at path, or 0 if it cannot be determined.
func VDSOBase(path string) uint64 {
	//nolint:gosec // G304: Path is from /proc filesystem for system information.
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close() // nolint:errcheck

	return ParseAuxv(f, strconv.IntSize/8)
}
