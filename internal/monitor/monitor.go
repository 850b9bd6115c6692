package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// DefaultInterval is the polling period while a transcription runs.
const DefaultInterval = time.Second

// Sample is one resource reading taken while a blocking call runs
type Sample struct {
	At            time.Time     `json:"at"`
	Elapsed       time.Duration `json:"elapsed"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
}

// Sampler reads current host CPU and memory utilization in percent.
type Sampler interface {
	Sample(ctx context.Context) (cpuPercent, memPercent float64, err error)
}

type systemSampler struct{}

// NewSystemSampler returns a Sampler backed by gopsutil.
func NewSystemSampler() Sampler {
	return systemSampler{}
}

func (systemSampler) Sample(ctx context.Context) (float64, float64, error) {
	// Interval 0 compares against the previous call, so it never blocks.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}

	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}
	return cpuPercent, vm.UsedPercent, nil
}

// Monitor polls a Sampler on a fixed interval until cancelled.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Monitor. A non-positive interval falls back to DefaultInterval.
func New(sampler Sampler, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{sampler: sampler, interval: interval, logger: logger}
}

// Start launches the polling goroutine and returns a stop function that
// cancels it and waits for it to exit. onSample runs on the polling goroutine.
func (m *Monitor) Start(ctx context.Context, onSample func(Sample)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	started := time.Now()

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cpuPercent, memPercent, err := m.sampler.Sample(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					m.logger.Debug("resource sample failed", zap.Error(err))
					continue
				}
				if onSample != nil {
					onSample(Sample{
						At:            now,
						Elapsed:       now.Sub(started),
						CPUPercent:    cpuPercent,
						MemoryPercent: memPercent,
					})
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
