package alloc

import "math/bits"

const (
	// ChunkBits is log2 of the chunk size objects are carved from.
	ChunkBits = 16

	// ChunkSize is the size and alignment of every chunk.
	ChunkSize = 1 << ChunkBits

	minClassBits = 4
	maxClassBits = 15

	// NumClasses is the number of size classes.
	NumClasses = maxClassBits - minClassBits + 1

	// MaxSize is the largest request served.
	MaxSize = 1 << maxClassBits
)

// A chunk holds at least two objects of the largest class.
const _ uint = ChunkSize/2 - MaxSize

// SizeToClass returns the size class serving size bytes. A zero size is
// served from the smallest class. ok is false above MaxSize.
func SizeToClass(size uintptr) (class uint8, ok bool) {
	if size > MaxSize {
		return 0, false
	}
	if size <= 1<<minClassBits {
		return 0, true
	}
	return uint8(bits.Len(uint(size-1)) - minClassBits), true
}

// ClassSize returns the object size of class.
func ClassSize(class uint8) uintptr {
	return 1 << (uint(class) + minClassBits)
}
