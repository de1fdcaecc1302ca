//go:build allocdebug

package address

import (
	"fmt"
	"unsafe"
)

// Debug reports whether provenance assertions are compiled in.
const Debug = true

// checkProvenance asserts that arithmetic did not change the validity of a
// pointer: a valid input must give a valid output and a nil input can only
// stay nil.
func checkProvenance(in, out unsafe.Pointer) {
	if (in == nil) != (out == nil) {
		panic(fmt.Sprintf("address: provenance changed: %p -> %p", in, out))
	}
}
