// Package memorybackend provides an in-process implementation of unitofwork.Backend.
//
// Values are copied on the way in and on the way out, so later in-place mutations
// of an entity's collections never leak into the stored state. That makes it a
// faithful stand-in for a database in tests: only what the tracker persists is stored.
package memorybackend
