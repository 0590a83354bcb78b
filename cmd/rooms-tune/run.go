package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tourrooms/solver"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute room assignments for a cohort file and print metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			travelers, configs, err := loadInputs(cmd, v.GetString("run.in"))
			if err != nil {
				return err
			}
			all := solver.ComputeAll(travelers, configs)
			for _, g := range sortedGenders(all) {
				printAssignment(cmd.OutOrStdout(), all[g], v.GetBool("run.verbose"))
			}
			return nil
		},
	}
	cmd.Flags().String("in", "cohort.json", "cohort file written by fetch")
	cmd.Flags().StringArray("rooms", nil, "room counts per gender, e.g. female=2x2,3x1 (repeatable)")
	cmd.Flags().BoolP("verbose", "v", false, "print room occupants")
	bindFlags(v, cmd, "run", "in", "verbose")
	return cmd
}

func printAssignment(w io.Writer, a *solver.Assignment[string, string], verbose bool) {
	m := a.Metrics()
	fmt.Fprintf(w, "--- %s ---\n", m.Gender)
	fmt.Fprintf(w, "  travelers: %d\n", m.TotalTravelers)
	fmt.Fprintf(w, "  rooms: %d\n", m.TotalRooms)
	fmt.Fprintf(w, "  unassigned: %d\n", m.Unassigned)
	fmt.Fprintf(w, "  preferences satisfied: %d\n", m.PreferencesSatisfied)
	fmt.Fprintf(w, "  mutual pairs: %d\n", m.MutualPreferencesSatisfied)
	if verbose {
		for _, r := range m.Rooms {
			fmt.Fprintf(w, "  room %d (%d/%d, cohesion %d): %v\n", r.ID, len(r.Occupants), r.Capacity, r.Cohesion, r.Occupants)
		}
		if len(m.UnassignedIDs) > 0 {
			fmt.Fprintf(w, "  unassigned: %v\n", m.UnassignedIDs)
		}
	}
	fmt.Fprintln(w)
}
