package modules

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
)

const (
	// ntGNUBuildID is the note type of the GNU build-id note. debug/elf does not
	// define it.
	ntGNUBuildID = 3

	noteHeaderSize = 12

	// textHashLimit is how much of .text feeds the fallback identifier.
	textHashLimit = 4096
)

// fileHeader, progHeader and sectionHeader hold the class independent parts
// of the ELF structures the reader needs.
type fileHeader struct {
	phoff     uint64
	shoff     uint64
	phentsize uint16
	phnum     uint16
	shentsize uint16
	shnum     uint16
	shstrndx  uint16
}

type progHeader struct {
	typ    elf.ProgType
	offset uint64
	filesz uint64
	align  uint64
}

type sectionHeader struct {
	name   uint32
	typ    elf.SectionType
	offset uint64
	size   uint64
}

// layout decodes the structures of one ELF class.
type layout interface {
	headerSize() uint64
	progSize() uint64
	sectionSize() uint64
	header(b []byte, bo binary.ByteOrder) (fileHeader, bool)
	prog(b []byte, bo binary.ByteOrder) (progHeader, bool)
	section(b []byte, bo binary.ByteOrder) (sectionHeader, bool)
}

// decode reads a fixed-size debug/elf structure from the front of b.
func decode(b []byte, bo binary.ByteOrder, v any) bool {
	n := binary.Size(v)
	if n < 0 || len(b) < n {
		return false
	}
	_, err := binary.Decode(b, bo, v)
	return err == nil
}

type layout32 struct{}

func (layout32) headerSize() uint64  { return uint64(binary.Size(elf.Header32{})) }
func (layout32) progSize() uint64    { return uint64(binary.Size(elf.Prog32{})) }
func (layout32) sectionSize() uint64 { return uint64(binary.Size(elf.Section32{})) }

func (layout32) header(b []byte, bo binary.ByteOrder) (fileHeader, bool) {
	var h elf.Header32
	if !decode(b, bo, &h) {
		return fileHeader{}, false
	}
	return fileHeader{
		phoff:     uint64(h.Phoff),
		shoff:     uint64(h.Shoff),
		phentsize: h.Phentsize,
		phnum:     h.Phnum,
		shentsize: h.Shentsize,
		shnum:     h.Shnum,
		shstrndx:  h.Shstrndx,
	}, true
}

func (layout32) prog(b []byte, bo binary.ByteOrder) (progHeader, bool) {
	var p elf.Prog32
	if !decode(b, bo, &p) {
		return progHeader{}, false
	}
	return progHeader{
		typ:    elf.ProgType(p.Type),
		offset: uint64(p.Off),
		filesz: uint64(p.Filesz),
		align:  uint64(p.Align),
	}, true
}

func (layout32) section(b []byte, bo binary.ByteOrder) (sectionHeader, bool) {
	var s elf.Section32
	if !decode(b, bo, &s) {
		return sectionHeader{}, false
	}
	return sectionHeader{
		name:   s.Name,
		typ:    elf.SectionType(s.Type),
		offset: uint64(s.Off),
		size:   uint64(s.Size),
	}, true
}

type layout64 struct{}

func (layout64) headerSize() uint64  { return uint64(binary.Size(elf.Header64{})) }
func (layout64) progSize() uint64    { return uint64(binary.Size(elf.Prog64{})) }
func (layout64) sectionSize() uint64 { return uint64(binary.Size(elf.Section64{})) }

func (layout64) header(b []byte, bo binary.ByteOrder) (fileHeader, bool) {
	var h elf.Header64
	if !decode(b, bo, &h) {
		return fileHeader{}, false
	}
	return fileHeader{
		phoff:     h.Phoff,
		shoff:     h.Shoff,
		phentsize: h.Phentsize,
		phnum:     h.Phnum,
		shentsize: h.Shentsize,
		shnum:     h.Shnum,
		shstrndx:  h.Shstrndx,
	}, true
}

func (layout64) prog(b []byte, bo binary.ByteOrder) (progHeader, bool) {
	var p elf.Prog64
	if !decode(b, bo, &p) {
		return progHeader{}, false
	}
	return progHeader{
		typ:    elf.ProgType(p.Type),
		offset: p.Off,
		filesz: p.Filesz,
		align:  p.Align,
	}, true
}

func (layout64) section(b []byte, bo binary.ByteOrder) (sectionHeader, bool) {
	var s elf.Section64
	if !decode(b, bo, &s) {
		return sectionHeader{}, false
	}
	return sectionHeader{
		name:   s.Name,
		typ:    elf.SectionType(s.Type),
		offset: s.Off,
		size:   s.Size,
	}, true
}

// elfReader interprets a module's mapped memory as an ELF image.
type elfReader struct {
	mod    *Module
	mem    Memory
	layout layout
	order  binary.ByteOrder
}

// newELFReader checks the ELF magic at the start of the module and picks
// the class and byte order. It returns false for anything that is not ELF.
func newELFReader(mod *Module, mem Memory) (*elfReader, bool) {
	ident, ok := mod.Read(mem, 0, elf.EI_NIDENT)
	if !ok || !bytes.HasPrefix(ident, []byte(elf.ELFMAG)) {
		return nil, false
	}

	r := &elfReader{mod: mod, mem: mem, layout: layout32{}, order: binary.NativeEndian}
	if elf.Class(ident[elf.EI_CLASS]) == elf.ELFCLASS64 {
		r.layout = layout64{}
	}
	switch elf.Data(ident[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		r.order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		r.order = binary.BigEndian
	}
	return r, true
}

func (r *elfReader) header() (fileHeader, bool) {
	b, ok := r.mod.Read(r.mem, 0, r.layout.headerSize())
	if !ok {
		return fileHeader{}, false
	}
	return r.layout.header(b, r.order)
}

// buildID returns the description of the first NT_GNU_BUILD_ID note found in
// the PT_NOTE segments, in program header order.
func (r *elfReader) buildID() ([]byte, bool) {
	hdr, ok := r.header()
	if !ok {
		return nil, false
	}

	for i := uint64(0); i < uint64(hdr.phnum); i++ {
		b, ok := r.mod.Read(r.mem, hdr.phoff+uint64(hdr.phentsize)*i, uint64(hdr.phentsize))
		if !ok {
			return nil, false
		}
		prog, ok := r.layout.prog(b, r.order)
		if !ok {
			return nil, false
		}
		if prog.typ != elf.PT_NOTE {
			continue
		}

		notes, ok := r.mod.Read(r.mem, prog.offset, prog.filesz)
		if !ok {
			return nil, false
		}
		if id, ok := buildIDFromNotes(notes, prog.align, r.order); ok {
			return id, true
		}
	}
	return nil, false
}

// buildIDFromNotes walks the note records of one segment. Name and
// description are padded to the segment alignment, which must be 4 or 8.
func buildIDFromNotes(notes []byte, alignment uint64, bo binary.ByteOrder) ([]byte, bool) {
	if alignment < 4 {
		alignment = 4
	} else if alignment != 4 && alignment != 8 {
		return nil, false
	}

	size := uint64(len(notes))
	var off uint64
	for off+noteHeaderSize <= size {
		namesz := uint64(bo.Uint32(notes[off:]))
		descsz := uint64(bo.Uint32(notes[off+4:]))
		typ := bo.Uint32(notes[off+8:])

		off = alignUp(off+noteHeaderSize+namesz, alignment)
		if off > size || descsz > size-off {
			return nil, false
		}
		if typ == ntGNUBuildID {
			return notes[off : off+descsz], true
		}
		off = alignUp(off+descsz, alignment)
	}
	return nil, false
}

func alignUp(off, alignment uint64) uint64 {
	return (off + alignment - 1) &^ (alignment - 1)
}

// textHash folds the first page of the .text section into 16 bytes. The
// result is all zeroes if the section cannot be located.
func (r *elfReader) textHash() [16]byte {
	var acc [16]byte

	text, ok := r.text()
	if !ok {
		return acc
	}
	for i, b := range text {
		acc[i%16] ^= b
	}
	return acc
}

// text returns up to textHashLimit bytes of the .text section.
func (r *elfReader) text() ([]byte, bool) {
	hdr, ok := r.header()
	if !ok {
		return nil, false
	}

	shentsize := uint64(hdr.shentsize)
	b, ok := r.mod.Read(r.mem, hdr.shoff+shentsize*uint64(hdr.shstrndx), shentsize)
	if !ok {
		return nil, false
	}
	strtab, ok := r.layout.section(b, r.order)
	if !ok {
		return nil, false
	}
	names, ok := r.mod.Read(r.mem, strtab.offset, strtab.size)
	if !ok {
		return nil, false
	}

	for i := uint64(0); i < uint64(hdr.shnum); i++ {
		b, ok := r.mod.Read(r.mem, hdr.shoff+shentsize*i, shentsize)
		if !ok {
			return nil, false
		}
		sec, ok := r.layout.section(b, r.order)
		if !ok {
			return nil, false
		}
		if sec.typ != elf.SHT_PROGBITS || sectionName(names, sec.name) != ".text" {
			continue
		}
		return r.mod.readPrefix(r.mem, sec.offset, sec.size, textHashLimit)
	}
	return nil, false
}

func sectionName(names []byte, off uint32) string {
	if uint64(off) >= uint64(len(names)) {
		return ""
	}
	name := names[off:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// identify builds the Image record of a module, or returns false when the
// module does not hold an ELF image.
func identify(mod *Module, mem Memory) (Image, bool) {
	mappings := mod.Mappings()
	if len(mappings) == 0 {
		return Image{}, false
	}
	r, ok := newELFReader(mod, mem)
	if !ok {
		return Image{}, false
	}

	last := mappings[len(mappings)-1]
	img := Image{
		Type:      "elf",
		ImageAddr: Addr(mappings[0].Addr),
		ImageSize: last.Offset + last.Size,
		CodeFile:  string(mod.Path),
	}

	if codeID, ok := r.buildID(); ok {
		img.CodeID = hex.EncodeToString(codeID)
		img.DebugID = NewDebugID(codeID)
	} else {
		hash := r.textHash()
		img.DebugID = NewDebugID(hash[:])
	}
	return img, true
}
