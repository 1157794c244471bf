package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/neuroguard/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"packets_framed", snap.PacketsFramed,
					"checksum_failures", snap.ChecksumFailures,
					"resyncs", snap.Resyncs,
					"reconnects", snap.Reconnects,
					"keepalive_misses", snap.KeepaliveMisses,
					"predictions", snap.Predictions,
					"seizures", snap.Seizures,
					"therapy_starts", snap.TherapyStarts,
					"therapy_stops", snap.TherapyStops,
					"csv_rotations", snap.CSVRotations,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
