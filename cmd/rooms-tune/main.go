// Command rooms-tune fetches a tour cohort from a running server and runs
// the room optimizer against it offline.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tourrooms/solver"
)

type traveler = solver.Traveler[string, string]

// cohortFile matches the body of GET /api/tours/{tourID}/travelers.
type cohortFile struct {
	Travelers []traveler `json:"travelers"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ROOMS")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "rooms-tune",
		Short:         "Fetch tour cohorts and run the room optimizer offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFetchCmd(v), newRunCmd(v), newBenchCmd(v))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readCohort(path string) ([]traveler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cohort: %w", err)
	}
	var c cohortFile
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decoding cohort %s: %w", path, err)
	}
	return c.Travelers, nil
}

// parseRooms reads values such as "female=2x2,3x1", meaning two double rooms
// and one triple for the female partition.
func parseRooms(values []string) (map[string][]solver.RoomConfig, error) {
	out := map[string][]solver.RoomConfig{}
	for _, val := range values {
		gender, list, ok := strings.Cut(val, "=")
		gender = strings.ToLower(strings.TrimSpace(gender))
		if !ok || gender == "" {
			return nil, fmt.Errorf("invalid rooms %q: want gender=CAPACITYxCOUNT,...", val)
		}
		for _, part := range strings.Split(list, ",") {
			c, n, ok := strings.Cut(strings.TrimSpace(part), "x")
			capacity, err1 := strconv.Atoi(c)
			count, err2 := strconv.Atoi(n)
			if !ok || err1 != nil || err2 != nil || capacity < 1 || count < 0 {
				return nil, fmt.Errorf("invalid room config %q in %q", part, val)
			}
			out[gender] = append(out[gender], solver.RoomConfig{Capacity: capacity, Count: count})
		}
	}
	return out, nil
}

// normalizeKey describes room membership independently of room numbering:
// occupants sorted within a room, rooms sorted by their first occupant.
func normalizeKey(rooms []solver.Room[string, string]) string {
	var gs [][]string
	for _, r := range rooms {
		if len(r.Occupants) == 0 {
			continue
		}
		members := slices.Clone(r.Occupants)
		slices.Sort(members)
		gs = append(gs, members)
	}
	slices.SortFunc(gs, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	var buf strings.Builder
	for _, g := range gs {
		buf.WriteString(strings.Join(g, ","))
		buf.WriteByte(';')
	}
	return buf.String()
}

func sortedGenders[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// bindFlags binds flags to viper keys under prefix ("run.in"), or to the
// bare flag names when prefix is empty.
func bindFlags(v *viper.Viper, cmd *cobra.Command, prefix string, names ...string) {
	for _, name := range names {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
}

func loadInputs(cmd *cobra.Command, in string) ([]traveler, map[string][]solver.RoomConfig, error) {
	travelers, err := readCohort(in)
	if err != nil {
		return nil, nil, err
	}
	values, err := cmd.Flags().GetStringArray("rooms")
	if err != nil {
		return nil, nil, err
	}
	configs, err := parseRooms(values)
	if err != nil {
		return nil, nil, err
	}
	return travelers, configs, nil
}
