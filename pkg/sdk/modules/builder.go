package modules

import (
	"bytes"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-modules/internal/sys/proc"
)

// linuxGate is the name reported for the vDSO, which has no backing file.
var linuxGate = []byte("linux-gate.so")

var devPrefix = []byte("/dev/")

// builder scans the memory map of the process and turns it into images.
type builder struct {
	mapsPath string
	auxvPath string
	mem      Memory
	logger   zerolog.Logger

	readMaps func(path string) ([]byte, error)
	vdsoBase func(path string) uint64
}

func newBuilder() builder {
	return builder{
		mapsPath: proc.SelfMapsPath,
		auxvPath: proc.SelfAuxvPath,
		mem:      proc.NewSelfMemory(),
		logger:   zerolog.Nop(),
		readMaps: proc.ReadMaps,
		vdsoBase: proc.VDSOBase,
	}
}

// load appends an image for every ELF module of the memory map to list, in
// the order the modules first appear. An unreadable map leaves list as is.
func (b *builder) load(list *List) {
	contents, err := b.readMaps(b.mapsPath)
	if err != nil {
		b.logger.Debug().Err(err).Str("path", b.mapsPath).Msg("Failed to read memory map")
		return
	}
	vdso := b.vdsoBase(b.auxvPath)

	// Mappings of one file are adjacent in the map, so a module is complete
	// as soon as an entry for another file shows up.
	var current Module
	rest := contents
	for {
		var entry proc.MapEntry
		n := proc.ParseMapLine(rest, &entry)
		if n == 0 {
			break
		}
		rest = rest[n:]

		if entry.Start != 0 && entry.Start == vdso {
			entry.Path = linuxGate
		} else if skipEntry(&entry) {
			continue
		}

		if len(current.Path) > 0 && !bytes.Equal(current.Path, entry.Path) {
			b.appendModule(list, &current)
			current = Module{}
		}
		current.Path = entry.Path
		current.Push(&entry)
	}
	b.appendModule(list, &current)

	if len(rest) > 0 {
		b.logger.Debug().Int("remaining_bytes", len(rest)).Msg("Stopped at malformed memory map line")
	}
}

// skipEntry reports whether a mapping cannot belong to a loadable image:
// anonymous and pseudo mappings, unreadable regions, deleted files and
// device nodes.
func skipEntry(entry *proc.MapEntry) bool {
	path := entry.Path
	return entry.Start == 0 ||
		len(path) == 0 ||
		!entry.Readable() ||
		path[len(path)-1] == ')' ||
		bytes.IndexByte(path, '/') < 0 ||
		bytes.HasPrefix(path, devPrefix)
}

func (b *builder) appendModule(list *List, mod *Module) {
	if len(mod.Path) == 0 {
		return
	}
	img, ok := identify(mod, b.mem)
	if !ok {
		b.logger.Trace().Bytes("path", mod.Path).Msg("Skipping module without ELF header")
		return
	}
	if err := list.Append(img); err != nil {
		b.logger.Warn().Err(err).Str("code_file", img.CodeFile).Msg("Failed to record module")
	}
}
