// File: api/workspace.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Workspace and backing store contracts shared by the pool and its collaborators.

package api

import "context"

// Store is a keyed backing store. Permanent stores and workspaces both
// implement it, so a workspace can shadow another workspace.
type Store interface {
	// Name identifies the store in logs and diagnostics.
	Name() string

	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all visible keys in unspecified order.
	Keys(ctx context.Context) ([]string, error)
}

// Workspace is a scratch overlay over a parent store.
// The pool only relies on Bind and Clear; everything else is diagnostics.
// Pointer implementations are matched by identity on release; values of
// non-comparable types are matched by ID alone.
type Workspace interface {
	// ID is stable for the lifetime of the workspace.
	ID() string

	// Bind re-points the workspace at a new parent. Content is undefined
	// until Clear has been called.
	Bind(parent Store)

	// Clear drops all content and unbinds the parent.
	Clear()

	// Parent returns the current parent, nil while idle.
	Parent() Store

	// Transient reports the construction-time transient marker.
	Transient() bool
}

// WorkspaceFactory constructs a brand-new workspace bound to parent.
type WorkspaceFactory func(parent Store, transient bool) Workspace
