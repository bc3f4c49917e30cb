// Package server hosts the Fiber HTTP service behind `setup-wsl serve-cache`:
// the run-scoped content cache that self-hosted runners point
// SETUP_WSL_CACHE_URL at. It attaches request IDs and panic recovery, serves
// directory blobs from the disk store in internal/cache, and exposes
// Prometheus counters plus a /-/distributions diagnostics endpoint. Keep
// exports narrow and accept explicit dependencies.
package server
