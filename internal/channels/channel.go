// Package channels defines the minimal adapter contract external
// event-source bridges (chat/webhook integrations) must satisfy to be
// probed by the doctor diagnostics surface. The bridges themselves are
// external collaborators; only their health-reporting interface lives here.
package channels

import (
	"context"
	"time"

	"github.com/loomrun/loom/pkg/models"
)

// Adapter is the minimal contract for a channel connector.
type Adapter interface {
	Type() models.ChannelType
}

// HealthAdapter is implemented by adapters that expose status and metrics.
type HealthAdapter interface {
	Adapter
	Status() Status
	HealthCheck(ctx context.Context) HealthStatus
	Metrics() MetricsSnapshot
}

// Status represents the connection status of a channel.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"last_ping,omitempty"`
}

// HealthStatus is the result of a single health check.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`
	Degraded  bool          `json:"degraded,omitempty"`
}

// MetricsSnapshot is a point-in-time view of a channel adapter's counters.
type MetricsSnapshot struct {
	ChannelType       models.ChannelType
	MessagesSent      uint64
	MessagesReceived  uint64
	MessagesFailed    uint64
	ConnectionsOpened uint64
	ConnectionsClosed uint64
	ReconnectAttempts uint64
	Uptime            time.Duration
}

// Registry tracks the channel adapters configured for this process.
type Registry struct {
	adapters map[models.ChannelType]Adapter
	health   map[models.ChannelType]HealthAdapter
}

// NewRegistry returns an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.ChannelType]Adapter),
		health:   make(map[models.ChannelType]HealthAdapter),
	}
}

// Register adds an adapter, indexing it as a health adapter when it
// implements that optional interface.
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	channelType := adapter.Type()
	r.adapters[channelType] = adapter
	if health, ok := adapter.(HealthAdapter); ok {
		r.health[channelType] = health
	} else {
		delete(r.health, channelType)
	}
}

// Get returns an adapter by channel type.
func (r *Registry) Get(channelType models.ChannelType) (Adapter, bool) {
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// HealthAdapters returns a copy of registered health adapters.
func (r *Registry) HealthAdapters() map[models.ChannelType]HealthAdapter {
	out := make(map[models.ChannelType]HealthAdapter, len(r.health))
	for channelType, adapter := range r.health {
		out[channelType] = adapter
	}
	return out
}
