package modules

import (
	"debug/elf"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-modules/internal/sys/proc"
	"github.com/coral-mesh/coral-modules/internal/testutil"
)

const (
	appBase  = 0x400000
	fooBase  = 0x7f0000400000
	vdsoBase = 0x7ffc00000000
)

const testMaps = `00400000-00401000 r--p 00000000 08:01 100    /usr/bin/app
00401000-00402000 r-xp 00001000 08:01 100    /usr/bin/app
00600000-00621000 rw-p 00000000 00:00 0      [heap]
7f0000000000-7f0000001000 r--p 00000000 08:01 200    /usr/lib/libgone.so (deleted)
7f0000100000-7f0000101000 r--p 00000000 00:05 300    /dev/zero
7f0000200000-7f0000201000 ---p 00000000 08:01 400    /usr/lib/libhidden.so
7f0000300000-7f0000301000 r--p 00000000 08:01 500    /usr/lib/locale/locale-archive
7f0000400000-7f0000401000 r--p 00000000 08:01 600    /usr/lib/libfoo.so
7f0000401000-7f0000402000 r-xp 00001000 08:01 600    /usr/lib/libfoo.so
7f0000500000-7f0000501000 rw-p 00000000 00:00 0
7ffc00000000-7ffc00001000 r-xp 00000000 00:00 0      [vdso]
7ffd00000000-7ffd00021000 rw-p 00000000 00:00 0      [stack]
`

// testAddressSpace maps ELF images behind every file of testMaps,
// including the ones that must be filtered out.
func testAddressSpace(t *testing.T) *fakeMemory {
	t.Helper()

	page := func(image []byte, size int) []byte {
		b := make([]byte, size)
		copy(b, image)
		return b
	}

	mem := &fakeMemory{}
	mem.mapAt(appBase, page(testELF{class: elf.ELFCLASS64, notes: []testNote{gnuBuildIDNote(patternBytes(20, 1))}}.build(t), 0x2000))
	mem.mapAt(fooBase, page(testELF{class: elf.ELFCLASS64, text: patternBytes(512, 2)}.build(t), 0x2000))
	mem.mapAt(vdsoBase, page(testELF{class: elf.ELFCLASS64, notes: []testNote{gnuBuildIDNote(patternBytes(20, 3))}}.build(t), 0x1000))

	for _, addr := range []uint64{0x7f0000000000, 0x7f0000100000, 0x7f0000200000} {
		mem.mapAt(addr, page(testELF{class: elf.ELFCLASS64, text: patternBytes(16, 4)}.build(t), 0x1000))
	}
	mem.mapAt(0x7f0000300000, patternBytes(0x1000, 0))
	return mem
}

func newTestBuilder(t *testing.T, maps string, vdso uint64, mem Memory) *builder {
	b := newBuilder()
	b.mem = mem
	b.logger = testutil.NewTestLogger(t)
	b.readMaps = func(string) ([]byte, error) { return []byte(maps), nil }
	b.vdsoBase = func(string) uint64 { return vdso }
	return &b
}

func codeFiles(list *List) []string {
	var files []string
	for _, img := range list.Images() {
		files = append(files, img.CodeFile)
	}
	return files
}

func TestBuilder_Load(t *testing.T) {
	b := newTestBuilder(t, testMaps, vdsoBase, testAddressSpace(t))

	list := NewList()
	b.load(list)

	require.Equal(t, []string{"/usr/bin/app", "/usr/lib/libfoo.so", "linux-gate.so"}, codeFiles(list))

	app := list.At(0)
	assert.Equal(t, Addr(appBase), app.ImageAddr)
	assert.Equal(t, uint64(0x2000), app.ImageSize)
	assert.Equal(t, hex.EncodeToString(patternBytes(20, 1)), app.CodeID)

	foo := list.At(1)
	assert.Equal(t, Addr(fooBase), foo.ImageAddr)
	assert.Empty(t, foo.CodeID)
	want := xorFold(patternBytes(512, 2))
	assert.Equal(t, NewDebugID(want[:]), foo.DebugID)

	vdso := list.At(2)
	assert.Equal(t, Addr(vdsoBase), vdso.ImageAddr)
	assert.Equal(t, uint64(0x1000), vdso.ImageSize)
	assert.Equal(t, hex.EncodeToString(patternBytes(20, 3)), vdso.CodeID)
}

func TestBuilder_LoadWithoutVDSO(t *testing.T) {
	b := newTestBuilder(t, testMaps, 0, testAddressSpace(t))

	list := NewList()
	b.load(list)

	assert.Equal(t, []string{"/usr/bin/app", "/usr/lib/libfoo.so"}, codeFiles(list))
}

func TestBuilder_StopsAtMalformedLine(t *testing.T) {
	maps := `00400000-00401000 r--p 00000000 08:01 100    /usr/bin/app
00401000-00402000 r-xp 00001000 08:01 100    /usr/bin/app
this is not a mapping
7f0000400000-7f0000401000 r--p 00000000 08:01 600    /usr/lib/libfoo.so
`
	b := newTestBuilder(t, maps, 0, testAddressSpace(t))

	list := NewList()
	b.load(list)

	assert.Equal(t, []string{"/usr/bin/app"}, codeFiles(list))
}

func TestBuilder_UnreadableMaps(t *testing.T) {
	b := newTestBuilder(t, "", 0, testAddressSpace(t))
	b.readMaps = func(string) ([]byte, error) { return nil, errors.New("permission denied") }

	list := NewList()
	b.load(list)

	assert.Zero(t, list.Len())
}

func TestBuilder_Empty(t *testing.T) {
	b := newTestBuilder(t, "", 0, &fakeMemory{})

	list := NewList()
	b.load(list)

	assert.Zero(t, list.Len())
}

func TestSkipEntry(t *testing.T) {
	tests := []struct {
		name string
		line string
		skip bool
	}{
		{"shared object", "7f0000400000-7f0000401000 r--p 00000000 08:01 600 /usr/lib/libfoo.so\n", false},
		{"no start address", "00000000-00001000 r--p 00000000 08:01 600 /usr/lib/libfoo.so\n", true},
		{"anonymous", "7f0000400000-7f0000401000 r--p 00000000 00:00 0\n", true},
		{"not readable", "7f0000400000-7f0000401000 ---p 00000000 08:01 600 /usr/lib/libfoo.so\n", true},
		{"deleted", "7f0000400000-7f0000401000 r--p 00000000 08:01 600 /usr/lib/libfoo.so (deleted)\n", true},
		{"pseudo path", "7f0000400000-7f0000401000 r--p 00000000 00:00 0 [anon:scudo]\n", true},
		{"device", "7f0000400000-7f0000401000 r--s 00000000 00:05 3 /dev/dri/card0\n", true},
		{"memfd", "7f0000400000-7f0000401000 r--p 00000000 00:01 9 /memfd:jit-cache\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e proc.MapEntry
			require.Positive(t, proc.ParseMapLine([]byte(tt.line), &e))
			assert.Equal(t, tt.skip, skipEntry(&e))
		})
	}
}
