package main

import (
	"github.com/spf13/cobra"

	"github.com/heapcore-go/heapcore/heap"
)

var (
	createPoolPages int32
	createPoolLarge bool
)

var createPoolCmd = &cobra.Command{
	Use:   "create-pool",
	Short: "Create a Pool and report its initial state",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := &demoRuntime{}
		pool, err := heap.NewPool(createPoolPages, createPoolLarge, heap.NewOSMemory(), rt, heap.DebugOptions{})
		if err != nil {
			return err
		}
		defer pool.Destroy()

		result := map[string]any{
			"base":       pool.Base(),
			"top":        pool.Top(),
			"npages":     pool.NPages(),
			"free_pages": pool.NumFreePages(),
			"is_large":   pool.IsLarge(),
		}
		if jsonOut {
			return printJSON(result)
		}
		printInfo("pool created: base=0x%x top=0x%x npages=%d free_pages=%d large=%v\n",
			pool.Base(), pool.Top(), pool.NPages(), pool.NumFreePages(), pool.IsLarge())
		return nil
	},
}

func init() {
	createPoolCmd.Flags().Int32Var(&createPoolPages, "pages", 256, "number of pages to reserve")
	createPoolCmd.Flags().BoolVar(&createPoolLarge, "large", false, "create a large-object pool instead of a small-object pool")
	rootCmd.AddCommand(createPoolCmd)
}
