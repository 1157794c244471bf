// Package notify implements the public subscription surface: vectors of
// callback values per event, invoked sequentially with per-call panic
// recovery, for in-process subscriber callbacks rather than network
// clients.
package notify

import (
	"log/slog"
	"sync"

	"github.com/kstaniek/neuroguard/internal/linkproto"
)

// StreamHandler receives every decoded stream sample.
type StreamHandler func(linkproto.StreamSample)

// LifecycleHandler receives a lifecycle event with no payload.
type LifecycleHandler func()

// Hub fans lifecycle and stream events out to registered subscribers.
type Hub struct {
	mu     sync.RWMutex
	logger *slog.Logger

	streamData     []StreamHandler
	streamStarted  []LifecycleHandler
	streamStopped  []LifecycleHandler
	therapyStarted []LifecycleHandler
	therapyStopped []LifecycleHandler
}

// New returns an empty Hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{logger: logger}
}

func (h *Hub) OnStreamData(fn StreamHandler) {
	h.mu.Lock()
	h.streamData = append(h.streamData, fn)
	h.mu.Unlock()
}

func (h *Hub) OnStreamStarted(fn LifecycleHandler) {
	h.mu.Lock()
	h.streamStarted = append(h.streamStarted, fn)
	h.mu.Unlock()
}

func (h *Hub) OnStreamStopped(fn LifecycleHandler) {
	h.mu.Lock()
	h.streamStopped = append(h.streamStopped, fn)
	h.mu.Unlock()
}

func (h *Hub) OnTherapyStarted(fn LifecycleHandler) {
	h.mu.Lock()
	h.therapyStarted = append(h.therapyStarted, fn)
	h.mu.Unlock()
}

func (h *Hub) OnTherapyStopped(fn LifecycleHandler) {
	h.mu.Lock()
	h.therapyStopped = append(h.therapyStopped, fn)
	h.mu.Unlock()
}

// EmitStreamData invokes every StreamData subscriber in registration order.
func (h *Hub) EmitStreamData(s linkproto.StreamSample) {
	h.mu.RLock()
	subs := append([]StreamHandler(nil), h.streamData...)
	h.mu.RUnlock()
	for _, fn := range subs {
		h.safeCall("stream_data", func() { fn(s) })
	}
}

func (h *Hub) EmitStreamStarted()  { h.emitLifecycle("stream_started", h.streamStarted) }
func (h *Hub) EmitStreamStopped()  { h.emitLifecycle("stream_stopped", h.streamStopped) }
func (h *Hub) EmitTherapyStarted() { h.emitLifecycle("therapy_started", h.therapyStarted) }
func (h *Hub) EmitTherapyStopped() { h.emitLifecycle("therapy_stopped", h.therapyStopped) }

func (h *Hub) emitLifecycle(name string, handlers []LifecycleHandler) {
	h.mu.RLock()
	subs := append([]LifecycleHandler(nil), handlers...)
	h.mu.RUnlock()
	for _, fn := range subs {
		h.safeCall(name, func() { fn() })
	}
}

// safeCall invokes fn, logging and continuing if it panics. A subscriber
// failure must never interrupt delivery to the remaining subscribers.
func (h *Hub) safeCall(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if h.logger != nil {
				h.logger.Error("subscriber_panic", "event", event, "recovered", r)
			}
		}
	}()
	fn()
}
