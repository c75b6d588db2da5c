// Package diagnostic collects configuration problems found while mapping
// types, both at runtime (descriptor construction) and statically (the
// scanner's check command).
//
// Every diagnostic carries a code (the error kind), the type and field it
// concerns, and optional "did you mean" suggestions. Errors convert into
// structured errors of the map phase, combined with multierr.
package diagnostic
