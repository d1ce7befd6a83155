// Package ingestion implements geobase's source-plugin contract and the Run
// Protocol that drives it: watermark load, discover, resolve, upsert,
// watermark advance (spec.md §4.4). Discover returns records already shaped
// as entities; there is no separate extract step. Adapted from the teacher's
// supervisor/circuit-breaker patterns, replacing media-server sync sources
// with geobase's dot-namespaced entity sources.
package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/geobase/geobase/internal/models"
)

// Record is one unit a plugin's Discover returns: an Entity ready for the
// Resolver (if it lacks coordinates) and the Store.
type Record struct {
	Entity *models.Entity
}

// Plugin is the contract every ingestion source implements (spec.md §4.4.1).
// A plugin never talks to the Store directly — the Engine owns upsert,
// watermark persistence, and failure isolation so every source behaves the
// same way under Run.
type Plugin interface {
	// Name is the plugin's unique source identifier, matching the Entity's
	// Source field for rows it produces (e.g. "spotify", "gcal", "arc").
	Name() string

	// HasNativeLocation reports whether this plugin's records already carry
	// their own coordinates (true for GPS-like backbones) or need the
	// Resolver to infer them (false for everything else).
	HasNativeLocation() bool

	// Schedule is this plugin's cadence hint as a standard 5-field cron
	// expression (minute hour day-of-month month day-of-week), consulted by
	// the Scheduler to decide when Run fires next.
	Schedule() string

	// Discover returns every record available strictly after since. A nil
	// since means "from the beginning" (the source's first run).
	Discover(ctx context.Context, since *models.Watermark) ([]Record, error)
}

var (
	registryMu sync.Mutex
	registry   = map[string]Plugin{}
)

// Register adds a plugin to the process-wide registry. cmd/server calls it
// once per plugin at startup (registerPlugins), the way spec.md §9's
// REDESIGN FLAG replaces a filesystem plugin scan with explicit registration.
// Panics on a duplicate name: a name collision is a programming error, not
// a runtime condition to recover from, and panicking at registration time
// surfaces it immediately rather than at first use.
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := p.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("ingestion: plugin %q registered twice", name))
	}
	registry[name] = p
}

// Registered returns every plugin registered so far, keyed by name.
func Registered() map[string]Plugin {
	registryMu.Lock()
	defer registryMu.Unlock()

	out := make(map[string]Plugin, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// resetRegistryForTest clears the registry; only ingestion's own tests use
// this to get a clean slate between Register calls.
func resetRegistryForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]Plugin{}
}
