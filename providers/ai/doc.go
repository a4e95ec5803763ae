// Package ai defines the shared contracts between the fan-out core and the
// provider adapters: the Engine snapshot model, the normalized delta stream
// every wire format is reduced to, the canonical error values produced at
// the adapter boundary, and the adapter registry.
package ai
