package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
	"unsafe"

	"braces.dev/errtrace"
	"github.com/spf13/cobra"

	"github.com/kolkov/allocpool/allocpool"
)

type stressOptions struct {
	Goroutines int
	Iterations int
	MaxSize    int
	Batch      int
	Sweep      time.Duration
}

type stressResult struct {
	Goroutines int             `json:"goroutines"`
	Allocs     int             `json:"allocs"`
	CrossFrees int             `json:"cross_frees"`
	Delivered  int             `json:"delivered"`
	Instances  int             `json:"instances"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	Stats      allocpool.Stats `json:"stats"`
}

var stressOpts = stressOptions{
	Goroutines: 8,
	Iterations: 2000,
	MaxSize:    1024,
	Batch:      64,
}

func init() {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Allocate and free concurrently, then check the pool is empty",
		Long: `The stress command runs goroutines that acquire instances, allocate
objects of random sizes and free half of them locally. The other half is
freed by a neighbouring goroutine through a different instance, so it
travels as remote frees. At the end every pending free is delivered and the
empty check must pass.`,
		Example: `  allocpool stress
  allocpool stress -g 32 -n 10000 --sweep 1ms
  allocpool stress --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runStress(cmd.Context(), stressOpts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, res)
			}
			printInfo(w, "stress: %d goroutines, %d allocations, %d cross frees in %s\n",
				res.Goroutines, res.Allocs, res.CrossFrees, res.Elapsed)
			printInfo(w, "  instances: %d\n", res.Instances)
			printInfo(w, "  remote frees delivered by sweeps: %d\n", res.Delivered)
			printInfo(w, "  remote posts: %d\n", res.Stats.RemotePosts)
			printInfo(w, "  chunks: %d\n", res.Stats.Chunks)
			printInfo(w, "pool is empty\n")
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&stressOpts.Goroutines, "goroutines", "g", stressOpts.Goroutines, "Number of worker goroutines")
	f.IntVarP(&stressOpts.Iterations, "iterations", "n", stressOpts.Iterations, "Allocations per goroutine")
	f.IntVar(&stressOpts.MaxSize, "max-size", stressOpts.MaxSize, "Largest allocation in bytes")
	f.IntVar(&stressOpts.Batch, "batch", stressOpts.Batch, "Allocations per acquire/release cycle")
	f.DurationVar(&stressOpts.Sweep, "sweep", 0, "Run a cleanup sweeper at this interval (0 = off)")
	rootCmd.AddCommand(cmd)
}

func runStress(ctx context.Context, opts stressOptions) (stressResult, error) {
	if opts.Goroutines < 1 || opts.Iterations < 1 || opts.Batch < 1 {
		return stressResult{}, errtrace.New("stress: goroutines, iterations and batch must be positive")
	}
	if opts.Sweep < 0 {
		return stressResult{}, errtrace.Errorf("stress: sweep interval %v is negative", opts.Sweep)
	}
	if opts.MaxSize < 1 || opts.MaxSize > allocpool.MaxSize {
		return stressResult{}, errtrace.Errorf("stress: max-size must be between 1 and %d", allocpool.MaxSize)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	var (
		sweepWG   sync.WaitGroup
		delivered int
		sweepErr  error
	)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if opts.Sweep > 0 {
		sweepWG.Add(1)
		go func() {
			defer sweepWG.Done()
			delivered, sweepErr = allocpool.RunSweeper(sweepCtx, opts.Sweep)
		}()
	}

	kept := make([][]unsafe.Pointer, opts.Goroutines)
	errs := make([]error, opts.Goroutines)

	var wg sync.WaitGroup
	for w := 0; w < opts.Goroutines; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			kept[w], errs[w] = stressWorker(w, opts)
		}(w)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return stressResult{}, errtrace.Wrap(err)
		}
	}

	cross := 0
	for w := 0; w < opts.Goroutines; w++ {
		cross += len(kept[w])
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			a := allocpool.Acquire()
			defer allocpool.Release(a)
			for _, p := range kept[(w+1)%opts.Goroutines] {
				a.Dealloc(p)
			}
		}(w)
	}
	wg.Wait()

	stopSweep()
	sweepWG.Wait()
	if sweepErr != nil {
		return stressResult{}, errtrace.Wrap(sweepErr)
	}
	delivered += allocpool.CleanupUnused()

	if err := allocpool.CheckEmpty(); err != nil {
		return stressResult{}, errtrace.Wrap(err)
	}

	return stressResult{
		Goroutines: opts.Goroutines,
		Allocs:     opts.Goroutines * opts.Iterations,
		CrossFrees: cross,
		Delivered:  delivered,
		Instances:  allocpool.Instances(),
		Elapsed:    time.Since(start),
		Stats:      allocpool.AggregateStats(),
	}, nil
}

// stressWorker allocates opts.Iterations objects, freeing even ones at once
// and returning odd ones for another goroutine to free.
func stressWorker(w int, opts stressOptions) ([]unsafe.Pointer, error) {
	rng := rand.New(rand.NewPCG(uint64(w), 0x9e3779b97f4a7c15))
	var kept []unsafe.Pointer

	for done := 0; done < opts.Iterations; {
		a := allocpool.Acquire()
		for i := 0; i < opts.Batch && done < opts.Iterations; i++ {
			size := uintptr(1 + rng.IntN(opts.MaxSize))
			p, err := a.Alloc(size)
			if err != nil {
				allocpool.Release(a)
				return nil, errtrace.Errorf("worker %d: %w", w, err)
			}
			*(*byte)(p) = byte(w)
			if done%2 == 0 {
				a.Dealloc(p)
			} else {
				kept = append(kept, p)
			}
			done++
		}
		allocpool.Release(a)
	}
	return kept, nil
}
