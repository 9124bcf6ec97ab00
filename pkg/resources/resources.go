// Package resources samples the node's spare capacity for the registrar's
// server descriptor.
package resources

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one measurement of the node's remaining capacity.
type Sample struct {
	// CPUFreePercent is 100 minus the busy percentage over the sample window.
	CPUFreePercent int
	// MemoryFreeMB is the available physical memory in megabytes.
	MemoryFreeMB int
	// DiskFreeMB is the free space of the root filesystem in megabytes.
	DiskFreeMB int
}

// Measure samples cpu over the given window plus current memory and disk.
func Measure(window time.Duration) (Sample, error) {
	busy, err := cpu.Percent(window, false)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to sample cpu: %w", err)
	}
	if len(busy) == 0 {
		return Sample{}, fmt.Errorf("cpu sample returned no data")
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, fmt.Errorf("failed to sample memory: %w", err)
	}

	du, err := disk.Usage("/")
	if err != nil {
		return Sample{}, fmt.Errorf("failed to sample disk: %w", err)
	}

	return Sample{
		CPUFreePercent: int(100 - busy[0]),
		MemoryFreeMB:   int(vm.Available / 1024 / 1024),
		DiskFreeMB:     int(du.Free / 1024 / 1024),
	}, nil
}
