package solver

import "cmp"

type Metrics[ID cmp.Ordered, G comparable] struct {
	Gender                     G
	TotalTravelers             int
	TotalRooms                 int
	UnderfilledRooms           int
	Unassigned                 int
	PreferencesSatisfied       int
	MutualPreferencesSatisfied int
	Rooms                      []Room[ID, G]
	UnassignedIDs              []ID
	// Satisfied holds, per traveler, how many of their own preferences
	// share their room. Unassigned travelers map to zero.
	Satisfied map[ID]int
	// Attainable holds, per traveler, how many of their preferences name a
	// traveler in this partition. Satisfied never exceeds it.
	Attainable map[ID]int
}

// Measure derives satisfaction figures from a room list and the partition's
// traveler pool. It keeps no state, so equal inputs give equal results.
// A mutual pair is counted once, from the side with the smaller ID.
func Measure[ID cmp.Ordered, G comparable](gender G, rooms []Room[ID, G], pool []Traveler[ID, G]) Metrics[ID, G] {
	byID := make(map[ID]Traveler[ID, G], len(pool))
	for _, t := range pool {
		byID[t.ID] = t
	}
	roomOf := map[ID]int{}
	for i, r := range rooms {
		for _, id := range r.Occupants {
			roomOf[id] = i
		}
	}

	m := Metrics[ID, G]{
		Gender:         gender,
		TotalTravelers: len(byID),
		Satisfied:      make(map[ID]int, len(byID)),
		Attainable:     make(map[ID]int, len(byID)),
	}
	for _, r := range rooms {
		m.Rooms = append(m.Rooms, r.clone())
		switch {
		case len(r.Occupants) >= MinOccupants:
			m.TotalRooms++
		case len(r.Occupants) > 0:
			m.UnderfilledRooms++
		}
	}

	seen := map[ID]bool{}
	for _, t := range pool {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		for _, p := range t.Preferences {
			if _, ok := byID[p]; ok {
				m.Attainable[t.ID]++
			}
		}
		ri, placed := roomOf[t.ID]
		if !placed {
			m.Satisfied[t.ID] = 0
			m.UnassignedIDs = append(m.UnassignedIDs, t.ID)
			continue
		}
		n := 0
		for _, p := range t.Preferences {
			pr, ok := roomOf[p]
			if !ok || pr != ri {
				continue
			}
			n++
			if other, ok := byID[p]; ok && other.Prefers(t.ID) && t.ID < p {
				m.MutualPreferencesSatisfied++
			}
		}
		m.Satisfied[t.ID] = n
		m.PreferencesSatisfied += n
	}
	m.Unassigned = len(m.UnassignedIDs)
	return m
}
