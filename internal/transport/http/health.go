package httptransport

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	Goroutines    int     `json:"goroutines"`
	HostUptime    uint64  `json:"host_uptime_seconds,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
}

// RegisterHealth mounts the liveness endpoint. Host statistics are best
// effort; a probe failure leaves the field zero.
func (r *Router) RegisterHealth(started time.Time) {
	r.API.GET("/health", func(c *gin.Context) {
		RespondSuccess(c, http.StatusOK, collectHealth(c.Request.Context(), started), "")
	})
}

func collectHealth(ctx context.Context, started time.Time) HealthStatus {
	status := HealthStatus{
		Status:     "ok",
		Uptime:     time.Since(started).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		status.HostUptime = up
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		status.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemoryPercent = vm.UsedPercent
		status.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	return status
}
