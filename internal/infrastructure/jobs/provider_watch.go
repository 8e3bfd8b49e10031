package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"agrimarket.walletd/pkg/logger"
)

type providerPoller interface {
	Poll(ctx context.Context) error
}

// ProviderWatchJob drives wallet notification polling
type ProviderWatchJob struct {
	provider providerPoller
	interval time.Duration
	stop     chan struct{}
	failing  bool
}

func NewProviderWatchJob(provider providerPoller, interval time.Duration) *ProviderWatchJob {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ProviderWatchJob{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *ProviderWatchJob) Start(ctx context.Context) {
	ctx = logger.WithComponent(ctx, "provider_watch")
	logger.Info(ctx, "Starting provider watch job", zap.Duration("interval", j.interval))

	// baseline before the first tick so the initial state is not reported as a change
	j.poll(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Provider watch job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Provider watch job stopped")
			return
		case <-ticker.C:
			j.poll(ctx)
		}
	}
}

func (j *ProviderWatchJob) Stop() {
	close(j.stop)
}

func (j *ProviderWatchJob) poll(ctx context.Context) {
	err := j.provider.Poll(ctx)
	if err != nil {
		if !j.failing && ctx.Err() == nil {
			logger.Warn(ctx, "Wallet provider poll failed", zap.Error(err))
		}
		j.failing = true
		return
	}
	if j.failing {
		logger.Info(ctx, "Wallet provider poll recovered")
	}
	j.failing = false
}
