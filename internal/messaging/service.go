// Package messaging provides outbound message delivery and webhook parsing
// for the supported platforms.
//
// Each platform transport implements Service; the Registry maps a platform to
// its configured transport so the API layer can dispatch replies without
// knowing which providers are enabled.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

// Service delivers outbound messages on one platform.
type Service interface {
	// Send delivers a message to the given platform address.
	Send(ctx context.Context, to string, msg models.Outbound) error
}

// Registry maps platforms to their configured transports.
type Registry struct {
	mu       sync.RWMutex
	services map[models.Platform]Service
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[models.Platform]Service)}
}

// Register installs the transport for a platform, replacing any previous one.
func (r *Registry) Register(platform models.Platform, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[platform] = svc
	slog.Info("Registry.Register: transport registered", "platform", platform)
}

// Get returns the transport for a platform.
func (r *Registry) Get(platform models.Platform) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedPlatform, platform)
	}
	return svc, nil
}
