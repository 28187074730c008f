package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo describes the inspected process and the host it runs on.
type ProcessInfo struct {
	PID      int32  `json:"pid" yaml:"pid"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Kernel   string `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	Arch     string `json:"arch,omitempty" yaml:"arch,omitempty"`
}

// currentProcess gathers ProcessInfo for this process. Lookup failures leave
// the corresponding fields empty.
func currentProcess(ctx context.Context, logger zerolog.Logger) ProcessInfo {
	info := ProcessInfo{PID: int32(os.Getpid())} //nolint:gosec // pids fit in int32

	p, err := process.NewProcessWithContext(ctx, info.PID)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to look up process")
	} else if info.Name, err = p.NameWithContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("Failed to read process name")
	}

	h, err := host.InfoWithContext(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read host info")
		return info
	}
	info.Hostname = h.Hostname
	info.Kernel = h.KernelVersion
	info.Arch = h.KernelArch
	return info
}
