//go:build aba_plain

package aba

// Slot is the build-selected slot strategy.
type Slot = PlainSlot

// Cmp is the snapshot type of Slot.
type Cmp = PlainCmp

// Strategy names the build-selected strategy.
const Strategy = "plain"
