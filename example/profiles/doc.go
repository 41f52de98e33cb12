// Package profiles is an example entity for the unitofwork tracker: an evaluation
// profile with scalar fields and two array columns (cost REAL[], kpis TEXT[]).
//
// Persistence is not mixed into the entity. A Profile only exposes its identity and
// fields; saving, loading and updating go through a Unit of Work that is passed in.
package profiles
