// Package storage defines the persistence contracts for wallet records.
//
// Implementations must report ErrNotFound for missing keys and ErrConflict for
// unique-key collisions and for guarded updates whose precondition no longer
// holds.
package storage
