// Package space
// Author: momentics <momentics@gmail.com>
//
// Transient overlay workspaces for scratch evaluation.
//
// A Space shadows a parent api.Store: writes and deletes stay local, reads
// fall through to the parent unless shadowed. Spaces implement api.Store
// themselves, so evaluation frames can be stacked. Clear and Bind are the
// only operations the scratch pool relies on.
package space
