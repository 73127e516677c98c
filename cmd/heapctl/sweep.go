package main

import (
	"github.com/spf13/cobra"

	"github.com/heapcore-go/heapcore/heap"
)

var (
	sweepSize      int32
	sweepCount     int
	sweepPoolSize  int32
	sweepSegment   uint64
	sweepFinalized bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Allocate finalizable objects and run the small-object sweep against them",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := &demoRuntime{simulateFinalizers: sweepFinalized}
		pool, err := heap.NewPool(sweepPoolSize, false, heap.NewOSMemory(), rt, heap.DebugOptions{CollectPrintf: verbose})
		if err != nil {
			return err
		}
		defer pool.Destroy()

		buckets := heap.NewBuckets(heap.DebugOptions{CollectPrintf: verbose})
		moreMemory := func() (*heap.Pool, error) { return pool, nil }

		for i := 0; i < sweepCount; i++ {
			if _, _, err := buckets.Alloc(sweepSize, heap.Finalize, moreMemory); err != nil {
				printError("allocation %d: %v\n", i, err)
				break
			}
		}
		printInfo("allocated up to %d finalizable slot(s); pool free_pages=%d/%d\n", sweepCount, pool.NumFreePages(), pool.NPages())

		freed := pool.RunFinalizers(uintptr(sweepSegment))
		buckets.Reclaim(pool, freed)

		printInfo("sweep complete: finalized=%d segment=0x%x pool free_pages=%d/%d\n",
			rt.finalizedCount, sweepSegment, pool.NumFreePages(), pool.NPages())
		return nil
	},
}

func init() {
	sweepCmd.Flags().Int32Var(&sweepSize, "size", 64, "requested allocation size in bytes")
	sweepCmd.Flags().IntVar(&sweepCount, "count", 16, "number of finalizable objects to allocate")
	sweepCmd.Flags().Int32Var(&sweepPoolSize, "pool-pages", 256, "pages to reserve for the backing pool")
	sweepCmd.Flags().Uint64Var(&sweepSegment, "segment", 0, "segment address passed to run_finalizers")
	sweepCmd.Flags().BoolVar(&sweepFinalized, "simulate-finalizers", true, "treat every FINALIZE-tagged object as having a finalizer in the segment")
	rootCmd.AddCommand(sweepCmd)
}
