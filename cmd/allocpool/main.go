// Command allocpool inspects and exercises the allocator pool.
//
// Usage:
//
//	allocpool info                 # strategy, configuration, CPU support
//	allocpool stress -g 16 -n 5000 # concurrent alloc/free with cross frees
//	allocpool check --leak         # run the empty check, optionally leaking
//	allocpool version
//
// Pool options are taken from ALLOCPOOL_OPTIONS.
package main

func main() {
	execute()
}
