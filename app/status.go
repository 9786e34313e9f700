package app

import (
	"runtime"

	"punish-engine/ledger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// Status is a snapshot of the host and the engine.
type Status struct {
	Platform      string
	KernelVersion string
	GoVersion     string
	CPUCount      int
	CPUPercent    float64
	MemUsedMB     uint64
	MemTotalMB    uint64
	MemPercent    float64
	Goroutines    int
	CachedTargets int
}

// CollectStatus gathers host figures where available. Missing figures stay zero.
func CollectStatus(l *ledger.Ledger) Status {
	st := Status{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	}
	if l != nil {
		st.CachedTargets = l.CacheSize()
	}

	if cpuCount, err := cpu.Counts(true); err == nil {
		st.CPUCount = cpuCount
	}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		st.CPUPercent = cpuPercent[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemUsedMB = vm.Used / 1024 / 1024
		st.MemTotalMB = vm.Total / 1024 / 1024
		st.MemPercent = vm.UsedPercent
	}
	if hostInfo, err := host.Info(); err == nil {
		st.Platform = hostInfo.Platform + " " + hostInfo.PlatformVersion
		st.KernelVersion = hostInfo.KernelVersion
	}
	return st
}

func (s Status) Fields() logrus.Fields {
	return logrus.Fields{
		"platform":       s.Platform,
		"kernel":         s.KernelVersion,
		"go":             s.GoVersion,
		"cpus":           s.CPUCount,
		"cpu_percent":    s.CPUPercent,
		"mem_used_mb":    s.MemUsedMB,
		"mem_total_mb":   s.MemTotalMB,
		"mem_percent":    s.MemPercent,
		"goroutines":     s.Goroutines,
		"cached_targets": s.CachedTargets,
	}
}
