//go:build aba_boxed && !aba_plain

package aba

// Slot is the build-selected slot strategy.
type Slot = BoxedSlot

// Cmp is the snapshot type of Slot.
type Cmp = BoxedCmp

// Strategy names the build-selected strategy.
const Strategy = "boxed"
