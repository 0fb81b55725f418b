// Package identity maps a project directory to its collection and guards
// against touching collections that belong to another user or host.
//
// The collection id is the first 63 hex characters of
// sha256("{user}@{hostname}:{abs_path}").
package identity
