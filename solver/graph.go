package solver

import (
	"cmp"
	"slices"
	"strings"
)

type Unresolved[ID cmp.Ordered] struct {
	Traveler ID
	Slot     Slot[ID]
}

// BuildPreferences resolves raw preference slots into traveler IDs. Slots
// carrying a known ID resolve directly; the rest fall back to matching the
// first other traveler with the same name, which is ambiguous when names
// collide (see NameCollisions). Slots that match nobody are returned as
// unresolved and dropped from the graph.
func BuildPreferences[ID cmp.Ordered, G comparable](raw []RawTraveler[ID, G]) ([]Traveler[ID, G], []Unresolved[ID]) {
	known := make(map[ID]bool, len(raw))
	byName := map[string][]ID{}
	for _, r := range raw {
		known[r.ID] = true
		if name := strings.TrimSpace(r.Name); name != "" {
			byName[name] = append(byName[name], r.ID)
		}
	}

	travelers := make([]Traveler[ID, G], 0, len(raw))
	var unresolved []Unresolved[ID]
	for _, r := range raw {
		t := Traveler[ID, G]{ID: r.ID, Name: r.Name, Gender: r.Gender}
		slots := r.Slots[:min(len(r.Slots), MaxPreferences)]
		for _, slot := range slots {
			if !slot.HasID && strings.TrimSpace(slot.Name) == "" {
				continue
			}
			id, ok := resolveSlot(known, byName, r.ID, slot)
			if !ok {
				unresolved = append(unresolved, Unresolved[ID]{Traveler: r.ID, Slot: slot})
				continue
			}
			if id == r.ID || slices.Contains(t.Preferences, id) {
				continue
			}
			t.Preferences = append(t.Preferences, id)
		}
		travelers = append(travelers, t)
	}
	return travelers, unresolved
}

func resolveSlot[ID cmp.Ordered](known map[ID]bool, byName map[string][]ID, self ID, slot Slot[ID]) (ID, bool) {
	if slot.HasID && known[slot.ID] {
		return slot.ID, true
	}
	for _, id := range byName[strings.TrimSpace(slot.Name)] {
		if id != self {
			return id, true
		}
	}
	var zero ID
	return zero, false
}

// NameCollisions lists display names shared by more than one traveler.
func NameCollisions[ID cmp.Ordered, G comparable](raw []RawTraveler[ID, G]) []string {
	counts := map[string]int{}
	for _, r := range raw {
		if name := strings.TrimSpace(r.Name); name != "" {
			counts[name]++
		}
	}
	var names []string
	for name, c := range counts {
		if c > 1 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Partition returns the travelers of one gender in input order.
func Partition[ID cmp.Ordered, G comparable](travelers []Traveler[ID, G], gender G) []Traveler[ID, G] {
	var out []Traveler[ID, G]
	for _, t := range travelers {
		if t.Gender == gender {
			out = append(out, t)
		}
	}
	return out
}
