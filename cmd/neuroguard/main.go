package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kstaniek/neuroguard/internal/discovery"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/session"
	"github.com/kstaniek/neuroguard/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("neuroguard %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}
	if cfg == nil {
		return 1
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	sup := supervisor.New(supervisor.Config{
		Baud:        cfg.baud,
		ReadTimeout: cfg.serialReadTO,
		CSVDir:      cfg.csvDir,
		CSVDebug:    cfg.csvDebug,
		Logger:      l,
		PortNames:   []string{cfg.serialDev},
	})

	hub := sup.Notify()
	hub.OnStreamStarted(func() { l.Info("stream_started") })
	hub.OnStreamStopped(func() { l.Info("stream_stopped") })
	hub.OnTherapyStarted(func() { l.Info("therapy_started") })
	hub.OnTherapyStopped(func() { l.Info("therapy_stopped") })

	if err := sup.Start(ctx); err != nil {
		l.Error("start_failed", "error", err)
		return 1
	}
	l.Info("running", "device", cfg.serialDev, "baud", cfg.baud)

	metrics.SetReadinessFunc(func() bool {
		return sup.Status() == session.StatusRunning
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	var stopMDNS func()
	if cfg.mdnsEnable {
		var port int
		if cfg.metricsAddr != "" {
			port = portFromAddr(cfg.metricsAddr)
		}
		cleanup, err := discovery.Start(ctx, discovery.Options{
			Enable:  true,
			Name:    cfg.mdnsName,
			Version: version,
			Commit:  commit,
		}, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			stopMDNS = cleanup
			l.Info("mdns_started", "service", discovery.ServiceType, "name", cfg.mdnsName)
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if stopMDNS != nil {
		stopMDNS()
	}
	sup.Stop()
	wg.Wait()
	return 0
}

// portFromAddr extracts the numeric port from a ":9100"-style address.
func portFromAddr(addr string) int {
	var port int
	_, _ = fmt.Sscanf(addr, ":%d", &port)
	return port
}
