package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/miradorstack/mirador-ids/internal/utils"
)

// Host reads real resource usage from the machine it runs on. Host metrics
// carry no security log stream, so configured events are reported as zero
// counts to keep the feature schema stable.
type Host struct {
	events      []string
	cpuInterval time.Duration
	connKind    string
	now         func() time.Time
}

// NewHost returns a host collector reporting the given log event names.
func NewHost(events []string, cpuInterval time.Duration) *Host {
	if len(events) == 0 {
		events = []string{EventLoginFail, EventHTTPError}
	}
	return &Host{
		events:      append([]string(nil), events...),
		cpuInterval: cpuInterval,
		connKind:    "inet",
		now:         time.Now,
	}
}

// Collect samples CPU percent, memory used percent and open inet connections.
func (h *Host) Collect(ctx context.Context) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, h.cpuInterval, false)
	if err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHost, "read cpu usage", err)
	}
	cpuPercent := 0.0
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHost, "read memory usage", err)
	}

	conns, err := net.ConnectionsWithContext(ctx, h.connKind)
	if err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectHost, "list connections", err)
	}

	logs := make([]LogEvent, 0, len(h.events))
	for _, event := range h.events {
		logs = append(logs, LogEvent{Event: event})
	}

	return Snapshot{
		Logs: logs,
		Metrics: map[string]float64{
			MetricCPU:         cpuPercent,
			MetricMemory:      vm.UsedPercent,
			MetricNetworkConn: float64(len(conns)),
		},
		CollectedAt: h.now(),
	}, nil
}

// Close is a no-op.
func (h *Host) Close() error { return nil }
