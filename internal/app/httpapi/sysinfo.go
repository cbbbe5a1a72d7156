package httpapi

import (
	"net/http"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemInfo reports process and host diagnostics.
func (h *handler) systemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
	}

	if hi, err := host.InfoWithContext(r.Context()); err == nil {
		info["hostname"] = hi.Hostname
		info["os"] = hi.OS
		info["platform"] = hi.Platform
		info["uptime_seconds"] = hi.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		info["memory"] = map[string]interface{}{
			"total_bytes":  vm.Total,
			"used_bytes":   vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if pct, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(pct) > 0 {
		info["cpu_percent"] = pct[0]
	}

	writeJSON(w, http.StatusOK, info)
}
