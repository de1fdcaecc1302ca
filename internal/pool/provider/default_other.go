//go:build !unix

package provider

func defaultProvider() MemoryProvider {
	return NewHeapProvider()
}
