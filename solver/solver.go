// Package solver groups travelers into rooms by gender and capacity while
// greedily maximising mutual roommate preferences.
package solver

import (
	"cmp"
	"fmt"
	"slices"
)

// Assignment is one partition's rooming snapshot. It is never modified in
// place: Move and Remove return a new snapshot with Version incremented.
type Assignment[ID cmp.Ordered, G comparable] struct {
	gender     G
	scores     *scoreMatrix[ID, G]
	rooms      []Room[ID, G]
	unassigned []ID
	version    int
}

func ComputeAssignment[ID cmp.Ordered, G comparable](travelers []Traveler[ID, G], configs []RoomConfig, gender G) *Assignment[ID, G] {
	m := newScoreMatrix(Partition(travelers, gender))
	rooms, unassigned := m.pack(configs, gender)
	return &Assignment[ID, G]{
		gender:     gender,
		scores:     m,
		rooms:      rooms,
		unassigned: unassigned,
		version:    1,
	}
}

// ComputeAll runs one assignment per gender. Genders present among the
// travelers but missing from configs still get an assignment, with every
// traveler unassigned.
func ComputeAll[ID cmp.Ordered, G comparable](travelers []Traveler[ID, G], configs map[G][]RoomConfig) map[G]*Assignment[ID, G] {
	out := map[G]*Assignment[ID, G]{}
	for g := range configs {
		out[g] = ComputeAssignment(travelers, configs[g], g)
	}
	for _, g := range Genders(travelers) {
		if _, ok := out[g]; !ok {
			out[g] = ComputeAssignment(travelers, nil, g)
		}
	}
	return out
}

// Genders lists the distinct genders in order of first appearance.
func Genders[ID cmp.Ordered, G comparable](travelers []Traveler[ID, G]) []G {
	var out []G
	for _, t := range travelers {
		if !slices.Contains(out, t.Gender) {
			out = append(out, t.Gender)
		}
	}
	return out
}

func (a *Assignment[ID, G]) Gender() G {
	return a.gender
}

func (a *Assignment[ID, G]) Version() int {
	return a.version
}

func (a *Assignment[ID, G]) Travelers() []Traveler[ID, G] {
	return slices.Clone(a.scores.travelers)
}

func (a *Assignment[ID, G]) Traveler(id ID) (Traveler[ID, G], bool) {
	i, ok := a.scores.index[id]
	if !ok {
		return Traveler[ID, G]{}, false
	}
	return a.scores.travelers[i], true
}

func (a *Assignment[ID, G]) Rooms() []Room[ID, G] {
	out := make([]Room[ID, G], len(a.rooms))
	for i, r := range a.rooms {
		out[i] = r.clone()
	}
	return out
}

func (a *Assignment[ID, G]) Unassigned() []ID {
	return slices.Clone(a.unassigned)
}

func (a *Assignment[ID, G]) Metrics() Metrics[ID, G] {
	return Measure(a.gender, a.rooms, a.scores.travelers)
}

func (a *Assignment[ID, G]) roomIndex(roomID int) int {
	return slices.IndexFunc(a.rooms, func(r Room[ID, G]) bool { return r.ID == roomID })
}

// RoomOf reports the room currently holding the traveler.
func (a *Assignment[ID, G]) RoomOf(id ID) (int, bool) {
	for _, r := range a.rooms {
		if slices.Contains(r.Occupants, id) {
			return r.ID, true
		}
	}
	return 0, false
}

// Move relocates a traveler. A nil from means the traveler is expected in
// the unassigned pool; a nil to returns them to it. A rejected move
// returns the receiver untouched together with the reason.
func (a *Assignment[ID, G]) Move(id ID, from, to *int) (*Assignment[ID, G], error) {
	if _, ok := a.scores.index[id]; !ok {
		return a, ErrUnknownTraveler
	}
	cur, placed := a.RoomOf(id)
	if from == nil {
		if placed {
			return a, fmt.Errorf("%w: traveler is in room %d", ErrNotInRoom, cur)
		}
	} else {
		if a.roomIndex(*from) < 0 {
			return a, fmt.Errorf("%w: %d", ErrUnknownRoom, *from)
		}
		if !placed || cur != *from {
			return a, ErrNotInRoom
		}
	}
	if to == nil {
		if !placed {
			return a, nil
		}
	} else {
		ti := a.roomIndex(*to)
		if ti < 0 {
			return a, fmt.Errorf("%w: %d", ErrUnknownRoom, *to)
		}
		dst := a.rooms[ti]
		if slices.Contains(dst.Occupants, id) {
			return a, ErrAlreadyInRoom
		}
		if dst.Full() {
			return a, ErrRoomFull
		}
	}

	rooms := a.Rooms()
	for i := range rooms {
		if placed && rooms[i].ID == cur {
			rooms[i].Occupants = slices.DeleteFunc(rooms[i].Occupants, func(o ID) bool { return o == id })
		}
		if to != nil && rooms[i].ID == *to {
			rooms[i].Occupants = append(rooms[i].Occupants, id)
		}
	}
	return a.rebuild(rooms, a.version+1), nil
}

func (a *Assignment[ID, G]) Remove(id ID, roomID int) (*Assignment[ID, G], error) {
	return a.Move(id, &roomID, nil)
}

// rebuild derives cohesion and the unassigned pool from the room occupants
// alone, so a snapshot never carries numbers from its predecessor.
func (a *Assignment[ID, G]) rebuild(rooms []Room[ID, G], version int) *Assignment[ID, G] {
	placed := map[ID]bool{}
	for i := range rooms {
		rooms[i].Gender = a.gender
		rooms[i].Cohesion = a.scores.cohesion(rooms[i].Occupants)
		for _, id := range rooms[i].Occupants {
			placed[id] = true
		}
	}
	var unassigned []ID
	for _, t := range a.scores.travelers {
		if !placed[t.ID] {
			unassigned = append(unassigned, t.ID)
		}
	}
	return &Assignment[ID, G]{
		gender:     a.gender,
		scores:     a.scores,
		rooms:      rooms,
		unassigned: unassigned,
		version:    version,
	}
}
