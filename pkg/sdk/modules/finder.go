package modules

import (
	"sync"

	"github.com/rs/zerolog"
)

// Finder caches the module list of the process. The list is computed on the
// first Get and kept until Clear.
type Finder struct {
	mu          sync.Mutex
	initialized bool
	modules     *List

	builder builder
	logger  zerolog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Finder) {
		f.logger = logger.With().Str("component", "modulefinder").Logger()
		f.builder.logger = f.logger
	}
}

// WithMapsPath overrides the memory map location (default /proc/self/maps).
func WithMapsPath(path string) Option {
	return func(f *Finder) {
		f.builder.mapsPath = path
	}
}

// WithAuxvPath overrides the auxiliary vector location (default /proc/self/auxv).
func WithAuxvPath(path string) Option {
	return func(f *Finder) {
		f.builder.auxvPath = path
	}
}

// WithMemory sets the memory the images are read from. The default reads
// the memory of the current process.
func WithMemory(mem Memory) Option {
	return func(f *Finder) {
		f.builder.mem = mem
	}
}

// NewFinder creates a Finder with an empty cache.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{
		builder: newBuilder(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get returns the cached module list, scanning the process on first use.
// The returned list is frozen and carries a reference owned by the caller,
// who releases it with DecRef.
func (f *Finder) Get() *List {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		modules := NewList()
		f.logger.Trace().Str("path", f.builder.mapsPath).Msg("Trying to read modules")
		f.builder.load(modules)
		f.logger.Trace().Int("count", modules.Len()).Msg("Read modules")
		modules.Freeze()

		f.modules = modules
		f.initialized = true
	}

	// Take the reference under the lock so a concurrent Clear cannot drop the
	// last one first.
	f.modules.IncRef()
	return f.modules
}

// Clear drops the cached list. The next Get scans the process again. Lists
// already handed out stay valid until released.
func (f *Finder) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.modules != nil {
		f.modules.DecRef()
	}
	f.modules = nil
	f.initialized = false
}

var (
	defaultOnce   sync.Once
	defaultFinder *Finder
)

// Default returns the process-wide Finder.
func Default() *Finder {
	defaultOnce.Do(func() {
		defaultFinder = NewFinder()
	})
	return defaultFinder
}

// GetModulesList returns the process-wide module list. See Finder.Get.
func GetModulesList() *List {
	return Default().Get()
}

// ClearModuleCache drops the process-wide module list. See Finder.Clear.
func ClearModuleCache() {
	Default().Clear()
}
