// Package output defines the outbound ports the application services
// call into. Adapters live under infrastructure and adapter/gateway.
package output

import "context"

// StateAccessor is the injected capability that ties the engine to the
// live state it protects. What "state" means is deployment-defined: the
// CLI wires a workspace directory, tests wire an in-memory blob. The
// engine itself never touches domain state except through this port and
// the operation callbacks it is handed.
type StateAccessor interface {
	// CollectState serializes the current live state into an opaque payload
	CollectState(ctx context.Context) ([]byte, error)

	// ApplyState replaces the live state with a previously collected payload
	ApplyState(ctx context.Context, data []byte) error
}
