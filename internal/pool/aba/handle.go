package aba

// Handle identifies a node living in an arena. Handles stand in for raw
// pointers so that a reference and a generation fit in one atomic word.
type Handle uint32

// Nil is the null handle.
const Nil Handle = 0

// IsNil reports whether h is the null handle.
func (h Handle) IsNil() bool { return h == Nil }

// Index converts a non-nil handle to a zero-based arena index.
func (h Handle) Index() uint32 { return uint32(h) - 1 }

// FromIndex converts a zero-based arena index to a handle.
func FromIndex(i uint32) Handle { return Handle(i + 1) }
