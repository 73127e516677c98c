package main

import (
	"github.com/spf13/cobra"

	"github.com/heapcore-go/heapcore/heap"
)

var (
	freeSize      int32
	freeCount     int
	freeKeepEvery int
	freePoolSize  int32
)

var freeCmd = &cobra.Command{
	Use:   "free",
	Short: "Allocate a batch of small objects, free most of them, and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := &demoRuntime{}
		pool, err := heap.NewPool(freePoolSize, false, heap.NewOSMemory(), rt, heap.DebugOptions{CollectPrintf: verbose})
		if err != nil {
			return err
		}
		defer pool.Destroy()

		buckets := heap.NewBuckets(heap.DebugOptions{CollectPrintf: verbose})
		moreMemory := func() (*heap.Pool, error) { return pool, nil }

		addrs := make([]uintptr, 0, freeCount)
		for i := 0; i < freeCount; i++ {
			addr, _, err := buckets.Alloc(freeSize, heap.None, moreMemory)
			if err != nil {
				printError("allocation %d: %v\n", i, err)
				break
			}
			addrs = append(addrs, addr)
		}
		printInfo("allocated %d slot(s); pool free_pages=%d/%d\n", len(addrs), pool.NumFreePages(), pool.NPages())

		freed := 0
		for i, addr := range addrs {
			if freeKeepEvery > 0 && i%freeKeepEvery == 0 {
				continue
			}
			buckets.Free(addr)
			freed++
		}
		printInfo("freed %d of %d slot(s); pool free_pages=%d/%d (pages are reused via the bin's free list, not returned to the pool)\n",
			freed, len(addrs), pool.NumFreePages(), pool.NPages())
		return nil
	},
}

func init() {
	freeCmd.Flags().Int32Var(&freeSize, "size", 64, "requested allocation size in bytes")
	freeCmd.Flags().IntVar(&freeCount, "count", 16, "number of objects to allocate before freeing")
	freeCmd.Flags().IntVar(&freeKeepEvery, "keep-every", 4, "keep every Nth allocation instead of freeing it (0 frees all)")
	freeCmd.Flags().Int32Var(&freePoolSize, "pool-pages", 256, "pages to reserve for the backing pool")
	rootCmd.AddCommand(freeCmd)
}
