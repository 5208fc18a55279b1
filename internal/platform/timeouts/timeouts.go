// Package timeouts defines shared timeout constants used across the
// engine. Centralizing these values prevents drift between the HTTP
// surface and the background loops and makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// CacheTTL is how long a cached status snapshot stays valid without an
// invalidation event.
const CacheTTL = 45 * time.Second

// RefreshInterval is how often the background refresher forces a new
// snapshot computation so decay transitions surface without read traffic.
const RefreshInterval = 30 * time.Second
