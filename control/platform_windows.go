//go:build windows
// +build windows

// File: control/platform_windows.go
//
// Windows-specific metrics/debug introspection points.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
