package modules

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-modules/internal/sys/proc"
)

// fakeMemory is an address space made of byte regions.
type fakeMemory struct {
	regions []fakeRegion
}

type fakeRegion struct {
	addr uint64
	data []byte
}

func (m *fakeMemory) mapAt(addr uint64, data []byte) {
	m.regions = append(m.regions, fakeRegion{addr: addr, data: data})
}

func (m *fakeMemory) ReadAt(addr uint64, size int) ([]byte, error) {
	for _, r := range m.regions {
		if addr >= r.addr && addr+uint64(size) <= r.addr+uint64(len(r.data)) {
			start := addr - r.addr
			return bytes.Clone(r.data[start : start+uint64(size)]), nil
		}
	}
	return nil, fmt.Errorf("address 0x%x+%d not mapped", addr, size)
}

type testNote struct {
	name string
	typ  uint32
	desc []byte
}

// testELF describes a minimal ELF image: a PT_LOAD header, an optional
// PT_NOTE segment and an optional .text section with its section headers.
type testELF struct {
	class     elf.Class
	noteAlign uint64
	notes     []testNote
	text      []byte
}

func gnuBuildIDNote(desc []byte) testNote {
	return testNote{name: "GNU", typ: ntGNUBuildID, desc: desc}
}

func padTo(t *testing.T, buf *bytes.Buffer, off uint64) {
	t.Helper()
	require.LessOrEqual(t, uint64(buf.Len()), off)
	buf.Write(make([]byte, off-uint64(buf.Len())))
}

func (e testELF) encodeNotes() []byte {
	align := max(e.noteAlign, 4)
	var buf bytes.Buffer
	for _, n := range e.notes {
		namesz := 0
		if n.name != "" {
			namesz = len(n.name) + 1
		}
		_ = binary.Write(&buf, binary.LittleEndian, [3]uint32{uint32(namesz), uint32(len(n.desc)), n.typ})
		if namesz > 0 {
			buf.WriteString(n.name)
			buf.WriteByte(0)
		}
		buf.Write(make([]byte, alignUp(uint64(buf.Len()), align)-uint64(buf.Len())))
		buf.Write(n.desc)
		buf.Write(make([]byte, alignUp(uint64(buf.Len()), align)-uint64(buf.Len())))
	}
	return buf.Bytes()
}

func (e testELF) build(t *testing.T) []byte {
	t.Helper()

	is64 := e.class == elf.ELFCLASS64
	ehsize, phentsize, shentsize := uint64(52), uint64(32), uint64(40)
	if is64 {
		ehsize, phentsize, shentsize = 64, 56, 64
	}

	notes := e.encodeNotes()
	phnum := uint64(1)
	if len(notes) > 0 {
		phnum++
	}
	phoff := ehsize
	noteOff := alignUp(phoff+phnum*phentsize, 8)
	textOff := alignUp(noteOff+uint64(len(notes)), 16)
	shstrtab := []byte("\x00.text\x00.shstrtab\x00")
	shstrOff := textOff + uint64(len(e.text))
	var shoff, shnum, shstrndx uint64
	if e.text != nil {
		shoff = alignUp(shstrOff+uint64(len(shstrtab)), 8)
		shnum, shstrndx = 3, 2
	}

	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(e.class), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}
	type prog struct{ typ, off, size, align uint64 }
	progs := []prog{{typ: uint64(elf.PT_LOAD), off: 0, size: shstrOff, align: 0x1000}}
	if len(notes) > 0 {
		progs = append(progs, prog{typ: uint64(elf.PT_NOTE), off: noteOff, size: uint64(len(notes)), align: e.noteAlign})
	}
	type section struct{ name, typ, off, size uint64 }
	sections := []section{
		{},
		{name: 1, typ: uint64(elf.SHT_PROGBITS), off: textOff, size: uint64(len(e.text))},
		{name: 7, typ: uint64(elf.SHT_STRTAB), off: shstrOff, size: uint64(len(shstrtab))},
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	if is64 {
		require.NoError(t, binary.Write(&buf, le, elf.Header64{
			Ident: ident, Type: uint16(elf.ET_DYN), Machine: uint16(elf.EM_X86_64), Version: 1,
			Phoff: phoff, Shoff: shoff, Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum),
			Shentsize: uint16(shentsize), Shnum: uint16(shnum), Shstrndx: uint16(shstrndx),
		}))
		for _, p := range progs {
			require.NoError(t, binary.Write(&buf, le, elf.Prog64{
				Type: uint32(p.typ), Off: p.off, Filesz: p.size, Memsz: p.size, Align: p.align,
			}))
		}
	} else {
		require.NoError(t, binary.Write(&buf, le, elf.Header32{
			Ident: ident, Type: uint16(elf.ET_DYN), Machine: uint16(elf.EM_386), Version: 1,
			Phoff: uint32(phoff), Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum),
			Shentsize: uint16(shentsize), Shnum: uint16(shnum), Shstrndx: uint16(shstrndx),
		}))
		for _, p := range progs {
			require.NoError(t, binary.Write(&buf, le, elf.Prog32{
				Type: uint32(p.typ), Off: uint32(p.off), Filesz: uint32(p.size), Memsz: uint32(p.size), Align: uint32(p.align),
			}))
		}
	}

	padTo(t, &buf, noteOff)
	buf.Write(notes)
	padTo(t, &buf, textOff)
	buf.Write(e.text)
	buf.Write(shstrtab)

	if e.text != nil {
		padTo(t, &buf, shoff)
		for _, s := range sections {
			if is64 {
				require.NoError(t, binary.Write(&buf, le, elf.Section64{
					Name: uint32(s.name), Type: uint32(s.typ), Off: s.off, Size: s.size,
				}))
			} else {
				require.NoError(t, binary.Write(&buf, le, elf.Section32{
					Name: uint32(s.name), Type: uint32(s.typ), Off: uint32(s.off), Size: uint32(s.size),
				}))
			}
		}
	}
	return buf.Bytes()
}

// singleRunModule maps image at addr as one run and returns its module.
func singleRunModule(mem *fakeMemory, path string, addr uint64, image []byte) *Module {
	mem.mapAt(addr, image)
	mod := &Module{Path: []byte(path)}
	mod.Push(&proc.MapEntry{Start: addr, End: addr + uint64(len(image))})
	return mod
}

func xorFold(data []byte) [16]byte {
	var acc [16]byte
	for i := 0; i < len(data) && i < textHashLimit; i++ {
		acc[i%16] ^= data[i]
	}
	return acc
}

func patternBytes(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) + seed
	}
	return b
}
