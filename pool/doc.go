// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded pool of transient scratch workspaces.
//
// ScratchPool keeps a capped LIFO stack of idle workspaces and a registry of
// issued ones. Acquire rebinds a pooled workspace to the caller's parent
// store or builds a new one; Release clears it and parks it for reuse while
// room remains. Issuing more workspaces than the capacity is treated as a
// leak in the caller and is fatal by default.
//
// Callers normally hold a *Lease and release it with defer, or use With.
// See scratch.go, lease.go and history.go for implementation details.
package pool
