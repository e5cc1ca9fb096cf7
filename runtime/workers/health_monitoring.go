package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsProvider exposes the registry figures the health worker reports.
type StatsProvider interface {
	RoomCount() int
}

// HealthMonitoringWorker samples process resource usage and registry size
// on an interval. Observability layers are out of scope; the log line is
// the whole surface.
type HealthMonitoringWorker struct {
	log      *slog.Logger
	stats    StatsProvider
	interval time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, stats StatsProvider, interval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, stats: stats, interval: interval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			var rssMb uint64
			if mem, err := proc.MemoryInfo(); err == nil {
				rssMb = mem.RSS / 1024 / 1024
			}
			cpuPercent, _ := proc.CPUPercent()

			w.log.Info("Instance health",
				"rss_mb", rssMb,
				"cpu_percent", cpuPercent,
				"goroutines", runtime.NumGoroutine(),
				"rooms", w.stats.RoomCount(),
			)
		}
	}
}
