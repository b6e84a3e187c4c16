package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/pipeline"
)

// RunMetrics logs service throughput every interval until ctx is canceled.
// Idle intervals are skipped to keep quiet servers quiet.
func RunMetrics(ctx context.Context, svc *pipeline.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastJobs, lastSamples uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, samples, lastERLE := svc.Stats()
			if jobs == lastJobs {
				continue
			}
			slog.Info("service metrics",
				"jobs", jobs,
				"samples", samples,
				"last_erle_db", lastERLE,
				"samples_per_sec", float64(samples-lastSamples)/interval.Seconds())
			lastJobs, lastSamples = jobs, samples
		}
	}
}
