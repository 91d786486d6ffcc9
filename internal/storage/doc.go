// Package storage provides the persistence layer for the toy's long-term
// memory.
//
// It currently supports:
//   - Interaction history appends (taps, shakes, button presses)
//   - Named state blobs (mood counters, learned preferences)
package storage
