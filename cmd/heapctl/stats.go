package main

import (
	"container/heap"
	"fmt"

	"github.com/spf13/cobra"

	heapcore "github.com/heapcore-go/heapcore/heap"
)

var (
	statsPoolCount int
	statsPoolPages int32
	statsTopK      int
)

// poolStat is one ranked entry: a pool's label and its free-page ratio.
// Grounded on hive/alloc's worstHBINHeap, which ranks HBINs by wasted space
// the same way.
type poolStat struct {
	label string
	pages int32
	free  int32
}

func (s poolStat) ratio() float64 { return float64(s.free) / float64(s.pages) }

// worstHeap is a bounded max-heap over poolStat.ratio(): the root holds the
// *least* fragmented (highest-ratio) entry currently kept, so it's the one
// evicted when a worse (lower-ratio) candidate arrives and the heap is
// already at capacity.
type worstHeap []poolStat

func (h worstHeap) Len() int            { return len(h) }
func (h worstHeap) Less(i, j int) bool  { return h[i].ratio() > h[j].ratio() }
func (h worstHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x interface{}) { *h = append(*h, x.(poolStat)) }
func (h *worstHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Create pools with varying occupancy and rank the most fragmented by free-page ratio",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := &demoRuntime{}
		var pools []*heapcore.Pool
		defer func() {
			for _, p := range pools {
				p.Destroy()
			}
		}()

		h := &worstHeap{}
		heap.Init(h)

		for i := 0; i < statsPoolCount; i++ {
			pool, err := heapcore.NewPool(statsPoolPages, true, heapcore.NewOSMemory(), rt, heapcore.DebugOptions{})
			if err != nil {
				return err
			}
			pools = append(pools, pool)

			// Occupy a growing share of each successive pool so the ranking
			// has real variance to sort through.
			toAlloc := (int32(i) + 1) * statsPoolPages / int32(statsPoolCount+1)
			if toAlloc > 0 {
				if idx := pool.AllocPages(toAlloc); idx != heapcore.NotFound {
					pool.MarkLargeRun(idx, toAlloc)
				}
			}

			entry := poolStat{label: fmt.Sprintf("pool-%d", i), pages: pool.NPages(), free: pool.NumFreePages()}
			if h.Len() < statsTopK {
				heap.Push(h, entry)
			} else if entry.ratio() < (*h)[0].ratio() {
				heap.Pop(h)
				heap.Push(h, entry)
			}
		}

		// Drain the heap into ascending-ratio (worst-first) order.
		ranked := make([]poolStat, h.Len())
		for i := len(ranked) - 1; i >= 0; i-- {
			ranked[i] = heap.Pop(h).(poolStat)
		}

		if jsonOut {
			return printJSON(ranked)
		}
		printInfo("worst %d of %d pool(s) by free-page ratio:\n", len(ranked), statsPoolCount)
		for rank, s := range ranked {
			printInfo("  %d. %s free=%d/%d (%.1f%% free)\n", rank+1, s.label, s.free, s.pages, s.ratio()*100)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsPoolCount, "pools", 5, "number of pools to create")
	statsCmd.Flags().Int32Var(&statsPoolPages, "pool-pages", 64, "pages per pool")
	statsCmd.Flags().IntVar(&statsTopK, "top", 3, "number of worst pools to report")
	rootCmd.AddCommand(statsCmd)
}
