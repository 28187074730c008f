// Package proc provides utilities for reading the /proc filesystem of the
// current process on Linux systems. It parses /proc/self/maps and
// /proc/self/auxv and gives access to live process memory.
package proc

import (
	"encoding/binary"
	"errors"

	"github.com/zeebo/xxh3"
)

// Default pseudo-file locations.
const (
	SelfMapsPath = "/proc/self/maps"
	SelfAuxvPath = "/proc/self/auxv"
)

// readChunk is the size of a single read(2) when slurping a pseudo-file.
const readChunk = 4096

// ErrUnsupported is returned on platforms without a /proc filesystem.
var ErrUnsupported = errors.New("proc: not supported on this platform")

// MapEntry is a single record of /proc/<pid>/maps.
//
// Path is a sub-slice of the buffer the entry was parsed from and is only
// valid as long as that buffer is. It is nil for anonymous mappings.
type MapEntry struct {
	Start    uint64
	End      uint64
	Perms    [4]byte
	Offset   uint64
	DevMajor uint8
	DevMinor uint8
	Inode    uint64
	Path     []byte
}

// Readable reports whether the mapping has read permission.
func (e *MapEntry) Readable() bool {
	return e.Perms[0] == 'r'
}

// ParseMapLine parses one line of the maps format
//
//	start-end perms offset major:minor inode [path]
//
// into entry and returns the number of bytes consumed, including the
// terminating newline. It returns 0 if the line is malformed.
func ParseMapLine(buf []byte, entry *MapEntry) int {
	s := lineScanner{buf: buf}

	var ok bool
	if entry.Start, ok = s.hex(); !ok || !s.expect('-') {
		return 0
	}
	if entry.End, ok = s.hex(); !ok {
		return 0
	}
	s.skipBlanks()
	if s.pos+len(entry.Perms) > len(s.buf) {
		return 0
	}
	copy(entry.Perms[:], s.buf[s.pos:s.pos+len(entry.Perms)])
	s.pos += len(entry.Perms)

	if entry.Offset, ok = s.hex(); !ok {
		return 0
	}
	major, ok := s.hex()
	if !ok || !s.expect(':') {
		return 0
	}
	minor, ok := s.hex()
	if !ok {
		return 0
	}
	entry.DevMajor = uint8(major) //nolint:gosec // device numbers are 8 bits in the maps format
	entry.DevMinor = uint8(minor) //nolint:gosec
	if entry.Inode, ok = s.dec(); !ok {
		return 0
	}

	s.skipBlanks()
	entry.Path = nil
	if s.pos >= len(s.buf) {
		return s.pos
	}
	if s.buf[s.pos] == '\n' {
		return s.pos + 1
	}

	start := s.pos
	for s.pos < len(s.buf) && s.buf[s.pos] != '\n' {
		s.pos++
	}
	entry.Path = s.buf[start:s.pos:s.pos]
	if s.pos < len(s.buf) {
		s.pos++
	}
	return s.pos
}

// MapsDigest returns a fingerprint of the file-backed mappings in raw maps
// contents. Anonymous mappings such as heap growth or new thread stacks do not
// change it; loading or unloading a shared object does. Parsing stops at the
// first malformed line.
func MapsDigest(contents []byte) uint64 {
	h := xxh3.New()
	var (
		entry MapEntry
		addr  [8]byte
	)
	for off := 0; off < len(contents); {
		n := ParseMapLine(contents[off:], &entry)
		if n == 0 {
			break
		}
		off += n
		if len(entry.Path) == 0 || entry.Path[0] != '/' {
			continue
		}
		binary.LittleEndian.PutUint64(addr[:], entry.Start)
		_, _ = h.Write(addr[:])
		_, _ = h.Write(entry.Path)
	}
	return h.Sum64()
}

type lineScanner struct {
	buf []byte
	pos int
}

func (s *lineScanner) skipBlanks() {
	for s.pos < len(s.buf) && (s.buf[s.pos] == ' ' || s.buf[s.pos] == '\t') {
		s.pos++
	}
}

func (s *lineScanner) expect(c byte) bool {
	if s.pos < len(s.buf) && s.buf[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *lineScanner) hex() (uint64, bool) {
	s.skipBlanks()
	var v uint64
	digits := 0
	for ; s.pos < len(s.buf); s.pos++ {
		var d byte
		switch c := s.buf[s.pos]; {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return v, digits > 0
		}
		if v>>60 != 0 {
			return 0, false
		}
		v = v<<4 | uint64(d)
		digits++
	}
	return v, digits > 0
}

func (s *lineScanner) dec() (uint64, bool) {
	s.skipBlanks()
	var v uint64
	digits := 0
	for ; s.pos < len(s.buf); s.pos++ {
		c := s.buf[s.pos]
		if c < '0' || c > '9' {
			break
		}
		d := uint64(c - '0')
		if v > (^uint64(0)-d)/10 {
			return 0, false
		}
		v = v*10 + d
		digits++
	}
	return v, digits > 0
}
