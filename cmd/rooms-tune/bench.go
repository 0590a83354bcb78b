package main

import (
	"fmt"
	"io"
	"math/rand"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tourrooms/solver"
)

type runResult struct {
	keys    map[string]string
	elapsed time.Duration
}

func newBenchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated runs over shuffled input and check they agree",
		RunE: func(cmd *cobra.Command, args []string) error {
			travelers, configs, err := loadInputs(cmd, v.GetString("bench.in"))
			if err != nil {
				return err
			}
			runs := v.GetInt("bench.runs")
			if runs < 1 {
				return fmt.Errorf("runs must be at least 1")
			}
			return bench(cmd.OutOrStdout(), travelers, configs, runs)
		},
	}
	cmd.Flags().String("in", "cohort.json", "cohort file written by fetch")
	cmd.Flags().StringArray("rooms", nil, "room counts per gender, e.g. female=2x2,3x1 (repeatable)")
	cmd.Flags().Int("runs", 20, "number of optimizer runs")
	bindFlags(v, cmd, "bench", "in", "runs")
	return cmd
}

func bench(w io.Writer, travelers []traveler, configs map[string][]solver.RoomConfig, runs int) error {
	var results []runResult
	for run := range runs {
		rng := rand.New(rand.NewSource(int64(run * 31337)))
		shuffled := slices.Clone(travelers)
		if run > 0 {
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		}
		start := time.Now()
		all := solver.ComputeAll(shuffled, configs)
		elapsed := time.Since(start)

		keys := map[string]string{}
		for g, a := range all {
			keys[g] = normalizeKey(a.Rooms())
		}
		results = append(results, runResult{keys: keys, elapsed: elapsed})
	}
	return printStats(w, results, runs)
}

// printStats reports timing and, per gender, how many distinct room
// memberships were produced. More than one is an error.
func printStats(w io.Writer, results []runResult, runs int) error {
	var total time.Duration
	seen := map[string]map[string]int{}
	for _, r := range results {
		total += r.elapsed
		for g, k := range r.keys {
			if seen[g] == nil {
				seen[g] = map[string]int{}
			}
			seen[g][k]++
		}
	}

	fmt.Fprintf(w, "runs: %d\n", runs)
	fmt.Fprintf(w, "avg time: %v\n", total/time.Duration(runs))

	var unstable []string
	for _, g := range sortedGenders(seen) {
		fmt.Fprintf(w, "  %s: %d unique solution(s)\n", g, len(seen[g]))
		if len(seen[g]) > 1 {
			unstable = append(unstable, g)
		}
	}
	if len(unstable) > 0 {
		return fmt.Errorf("non-deterministic rooms for %v", unstable)
	}
	fmt.Fprintf(w, "identical rooms in all %d runs\n", runs)
	return nil
}
