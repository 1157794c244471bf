package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		serialDev:       "/dev/null",
		baud:            115200,
		serialReadTO:    50 * time.Millisecond,
		logFormat:       "text",
		logLevel:        "info",
		metricsAddr:     "",
		csvDir:          "./recordings",
		logMetricsEvery: 0,
		mdnsEnable:      false,
		mdnsName:        "",
	}

	os.Setenv("NEUROGUARD_BAUD", "230400")
	os.Setenv("NEUROGUARD_MDNS_ENABLE", "true")
	os.Setenv("NEUROGUARD_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("NEUROGUARD_LOG_METRICS_INTERVAL", "5s")
	os.Setenv("NEUROGUARD_CSV_DIR", "/var/tmp/recordings")
	t.Cleanup(func() {
		os.Unsetenv("NEUROGUARD_BAUD")
		os.Unsetenv("NEUROGUARD_MDNS_ENABLE")
		os.Unsetenv("NEUROGUARD_SERIAL_READ_TIMEOUT")
		os.Unsetenv("NEUROGUARD_LOG_METRICS_INTERVAL")
		os.Unsetenv("NEUROGUARD_CSV_DIR")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.serialReadTO != 100*time.Millisecond {
		t.Fatalf("expected serialReadTO 100ms got %v", base.serialReadTO)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
	if base.csvDir != "/var/tmp/recordings" {
		t.Fatalf("expected csvDir override, got %s", base.csvDir)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("NEUROGUARD_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("NEUROGUARD_BAUD") })
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("NEUROGUARD_BAUD", "notint")
	t.Cleanup(func() { os.Unsetenv("NEUROGUARD_BAUD") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
