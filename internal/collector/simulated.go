package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulated produces synthetic container signals drawn from fixed ranges.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulated returns a simulated collector. A zero seed draws from the clock.
func NewSimulated(seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Collect draws login failures in [0,5], HTTP errors in [0,3], CPU and memory
// percentages in [0,100) and a connection count in [50,200].
func (s *Simulated) Collect(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Logs: []LogEvent{
			{Event: EventLoginFail, Count: s.rng.Intn(6)},
			{Event: EventHTTPError, Count: s.rng.Intn(4)},
		},
		Metrics: map[string]float64{
			MetricCPU:         s.rng.Float64() * 100,
			MetricMemory:      s.rng.Float64() * 100,
			MetricNetworkConn: float64(50 + s.rng.Intn(151)),
		},
		CollectedAt: s.now(),
	}, nil
}

// Close is a no-op.
func (s *Simulated) Close() error { return nil }
