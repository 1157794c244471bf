// Package discovery optionally advertises a running driver instance over
// mDNS so a companion monitor/dashboard process can find it without a
// static address.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the fixed mDNS/Avahi service type advertised.
const ServiceType = "_neuroguard._tcp"

// Options configures mDNS advertisement.
type Options struct {
	Enable  bool
	Name    string
	Version string
	Commit  string
}

// Start registers the service via mDNS and returns a cleanup function. It is
// safe to call even if disabled (no-op cleanup).
func Start(ctx context.Context, opts Options, metricsPort int) (func(), error) {
	if !opts.Enable {
		return func() {}, nil
	}
	instance := opts.Name
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("neuroguard-%s", host)
	}
	meta := []string{
		"version=" + opts.Version,
		"commit=" + opts.Commit,
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", metricsPort, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
