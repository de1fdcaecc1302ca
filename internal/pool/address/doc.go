// Package address implements provenance-preserving pointer arithmetic.
//
// Every pointer produced by this package is derived from its input through
// unsafe.Add, so the result keeps pointing into the same allocation as the
// input (Go's equivalent of capability provenance). Raw integer addresses are
// only turned back into pointers for mapped memory that is not managed by the
// Go garbage collector (see PointerCast).
//
// Granules come in two flavours:
//   - Static granules (Word, Cache, Page, ...) whose power-of-two property is
//     checked at compile time by constant expressions in this package.
//   - Dynamic granules passed as a value to the *Dyn functions, checked on
//     entry.
//
// Building with -tags allocdebug enables the provenance assertions in Offset
// and the alignment functions.
package address
