package sdk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-modules/pkg/sdk/modules"
)

// SDK represents the SDK instance embedded in an application.
type SDK struct {
	logger      zerolog.Logger
	serviceName string
	finder      *modules.Finder
}

// Config contains SDK configuration options.
type Config struct {
	// ServiceName is the name of the service (required).
	ServiceName string

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger

	// Finder overrides the module finder. Defaults to the process-wide one.
	Finder *modules.Finder
}

// New creates a new SDK instance.
func New(config Config) (*SDK, error) {
	if config.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	logger := config.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "coral-sdk").Str("service", config.ServiceName).Logger()

	finder := config.Finder
	if finder == nil {
		finder = modules.Default()
	}

	s := &SDK{
		logger:      logger,
		serviceName: config.ServiceName,
		finder:      finder,
	}

	logger.Debug().Msg("SDK initialized")
	return s, nil
}

// Modules returns the module list of the process, computed on first use and
// shared afterwards. Release it with DecRef.
func (s *SDK) Modules() *modules.List {
	return s.finder.Get()
}

// DebugMeta returns the images of the process in payload form, for inclusion
// in a diagnostic report.
func (s *SDK) DebugMeta() []map[string]any {
	list := s.finder.Get()
	defer list.DecRef()

	images := make([]map[string]any, 0, list.Len())
	for _, img := range list.Images() {
		images = append(images, img.Value())
	}
	return images
}

// ClearModuleCache forgets the cached module list, for example after the
// application loaded or unloaded a shared library.
func (s *SDK) ClearModuleCache() {
	s.logger.Debug().Msg("Clearing module cache")
	s.finder.Clear()
}

// Close shuts down the SDK.
func (s *SDK) Close() error {
	s.logger.Debug().Msg("Shutting down SDK")
	return nil
}
