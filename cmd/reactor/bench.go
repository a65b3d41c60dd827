package main

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/render"
)

type benchConfig struct {
	Size     int
	Shuffles int
	Seed     int64
}

type benchResult struct {
	Reorders int
	Moves    int
	// MinMoves is the sum over all reorders of size minus the longest
	// increasing subsequence, the fewest moves any reconciler can make.
	MinMoves int
	Inserts  int
	Removes  int
	Elapsed  time.Duration
}

func benchCmd() *cobra.Command {
	cfg := benchConfig{Size: 1000, Shuffles: 100, Seed: 1}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure keyed list reconciliation",
		Long: `Reconcile random permutations of a keyed list and report how many
moves each reorder needed next to the theoretical minimum.

Examples:
  reactor bench
  reactor bench --size 10000 --shuffles 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Size <= 0 || cfg.Shuffles <= 0 {
				return fmt.Errorf("--size and --shuffles must be positive")
			}
			res, err := runBench(cfg)
			if err != nil {
				return err
			}
			printBench(cmd.OutOrStdout(), cfg, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Size, "size", "n", cfg.Size, "Number of rows")
	cmd.Flags().IntVarP(&cfg.Shuffles, "shuffles", "k", cfg.Shuffles, "Number of random reorders")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")

	return cmd
}

func runBench(cfg benchConfig) (benchResult, error) {
	rt := reactive.New(reactive.WithLogger(cliLogger(io.Discard)))
	doc := render.NewDocument()
	rng := rand.New(rand.NewSource(cfg.Seed))

	order := make([]int, cfg.Size)
	for i := range order {
		order[i] = i
	}
	list := reactive.NewSource(rt, order)

	rt.Mount(doc.Root(), func(anchor *render.Node) {
		reactive.Each(rt, anchor, list.Get, nil, func(a *render.Node, item *reactive.Source[int], _ *reactive.Source[int]) {
			insertText(a, strconv.Itoa(item.Peek()))
		})
	})
	if err := rt.FlushSync(nil); err != nil {
		return benchResult{}, err
	}
	doc.TakePatches()

	var res benchResult
	start := time.Now()
	for i := 0; i < cfg.Shuffles; i++ {
		next := append([]int(nil), order...)
		rng.Shuffle(len(next), func(a, b int) { next[a], next[b] = next[b], next[a] })

		if err := rt.FlushSync(func() { list.Set(next) }); err != nil {
			return res, err
		}
		patches := doc.TakePatches()
		res.Reorders++
		res.Moves += render.Count(patches, render.PatchMoveNode)
		res.Inserts += render.Count(patches, render.PatchInsertNode)
		res.Removes += render.Count(patches, render.PatchRemoveNode)
		res.MinMoves += cfg.Size - lisLength(positions(order, next))
		order = next
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// positions maps each element of next to its index in prev.
func positions(prev, next []int) []int {
	index := make(map[int]int, len(prev))
	for i, v := range prev {
		index[v] = i
	}
	out := make([]int, len(next))
	for i, v := range next {
		out[i] = index[v]
	}
	return out
}

// lisLength returns the length of the longest strictly increasing
// subsequence of seq.
func lisLength(seq []int) int {
	var tails []int
	for _, v := range seq {
		i := sort.SearchInts(tails, v)
		if i == len(tails) {
			tails = append(tails, v)
		} else {
			tails[i] = v
		}
	}
	return len(tails)
}

func printBench(w io.Writer, cfg benchConfig, res benchResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Rows:            %d\n", cfg.Size)
	fmt.Fprintf(w, "  Reorders:        %d\n", res.Reorders)
	fmt.Fprintf(w, "  Moves/reorder:   %.1f\n", float64(res.Moves)/float64(res.Reorders))
	fmt.Fprintf(w, "  Minimum:         %.1f\n", float64(res.MinMoves)/float64(res.Reorders))
	fmt.Fprintf(w, "  Inserts/removes: %d/%d\n", res.Inserts, res.Removes)
	fmt.Fprintf(w, "  Wall time:       %s (%s/reorder)\n",
		res.Elapsed.Round(time.Microsecond),
		(res.Elapsed / time.Duration(res.Reorders)).Round(time.Microsecond))
	fmt.Fprintln(w)
}
