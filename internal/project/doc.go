// Package project assembles the pieces one project needs: its merged
// configuration, the shared collection store, the configured embedding
// function and the sync and query engines built on them.
package project
