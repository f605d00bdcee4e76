package connectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/subsyncio/subsync/app/models"
)

// Registry maps an ESP type tag to its connector implementation. It is
// populated once at startup; new ESPs register themselves without the sync
// engine needing to know about them.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds a connector under its ESP type tag. Registering the same tag
// twice panics; that is a wiring bug, not a runtime condition.
func (r *Registry) Register(espType string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[espType]; exists {
		panic(fmt.Sprintf("connector already registered for esp type %q", espType))
	}
	r.connectors[espType] = c
}

// Resolve returns the connector for an ESP type.
func (r *Registry) Resolve(espType string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[espType]
	return c, ok
}

// Types returns the registered ESP type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connectors))
	for t := range r.connectors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Global registry instance
var defaultRegistry = NewRegistry()
var defaultOnce sync.Once

// Default returns the process-wide registry, populating the built-in
// connectors on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry.Register(models.EspTypeMailerlite, NewMailerliteConnector())
		defaultRegistry.Register(models.EspTypeAWeber, NewAWeberConnector())
	})
	return defaultRegistry
}
