package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heapcore-go/heapcore/heap"
)

var (
	allocSize     int32
	allocCount    int
	allocLarge    bool
	allocPoolSize int32
	allocFlags    string
)

func parseAttrFlags(s string) (heap.Attr, error) {
	var a heap.Attr
	if s == "" {
		return a, nil
	}
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "finalize":
			a |= heap.Finalize
		case "noscan":
			a |= heap.NoScan
		case "appendable":
			a |= heap.Appendable
		case "nointerior":
			a |= heap.NoInterior
		case "structfinal":
			a |= heap.StructFinal
		default:
			return 0, fmt.Errorf("unrecognized attribute flag %q", name)
		}
	}
	return a, nil
}

var allocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "Create a pool and perform one or more allocations against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		attr, err := parseAttrFlags(allocFlags)
		if err != nil {
			return err
		}

		rt := &demoRuntime{}
		pool, err := heap.NewPool(allocPoolSize, allocLarge, heap.NewOSMemory(), rt, heap.DebugOptions{CollectPrintf: verbose})
		if err != nil {
			return err
		}
		defer pool.Destroy()

		var results []map[string]any
		if allocLarge {
			nPagesNeeded := (allocSize + heap.PageSize - 1) / heap.PageSize
			for i := 0; i < allocCount; i++ {
				idx := pool.AllocPages(nPagesNeeded)
				if idx == heap.NotFound {
					printError("allocation %d: no run of %d pages available\n", i, nPagesNeeded)
					break
				}
				pool.MarkLargeRun(idx, nPagesNeeded)
				addr := pool.Base() + uintptr(idx)*heap.PageSize
				if attr != heap.None {
					pool.SetBits(pool.BitIndex(addr), attr)
				}
				results = append(results, map[string]any{"addr": addr, "pages": nPagesNeeded, "attr": uint32(attr)})
			}
		} else {
			buckets := heap.NewBuckets(heap.DebugOptions{CollectPrintf: verbose})
			moreMemory := func() (*heap.Pool, error) { return pool, nil }
			for i := 0; i < allocCount; i++ {
				addr, size, err := buckets.Alloc(allocSize, attr, moreMemory)
				if err != nil {
					printError("allocation %d: %v\n", i, err)
					break
				}
				results = append(results, map[string]any{"addr": addr, "size": size, "attr": uint32(attr)})
			}
		}

		if jsonOut {
			return printJSON(results)
		}
		for _, r := range results {
			printInfo("allocated addr=0x%x %v\n", r["addr"], r)
		}
		printInfo("pool free_pages=%d/%d after %d allocation(s)\n", pool.NumFreePages(), pool.NPages(), len(results))
		return nil
	},
}

func init() {
	allocCmd.Flags().Int32Var(&allocSize, "size", 64, "requested allocation size in bytes")
	allocCmd.Flags().IntVar(&allocCount, "count", 1, "number of allocations to perform")
	allocCmd.Flags().BoolVar(&allocLarge, "large", false, "use the large-object path instead of a bin")
	allocCmd.Flags().Int32Var(&allocPoolSize, "pool-pages", 256, "pages to reserve for the backing pool")
	allocCmd.Flags().StringVar(&allocFlags, "attrs", "", "comma-separated attribute flags: finalize,noscan,appendable,nointerior,structfinal")
	rootCmd.AddCommand(allocCmd)
}
