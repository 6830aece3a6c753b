// Package control
// Author: momentics <momentics@gmail.com>
//
// Hot-reload, runtime metrics, configuration control, and debug introspection layer
// for scratchspace.
//
// Provides concurrent-safe state handling primitives including:
//   - File configuration (YAML or TOML) with validation and defaults
//   - Dynamic config map with reload listeners
//   - Metrics registry fed from pool statistics
//   - Debug probe registration and state export
//   - Polling file watcher for config hot-reload
package control
