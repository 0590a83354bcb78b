package solver

import (
	"cmp"
	"slices"
)

// MaxPreferences is the number of roommate slots a traveler may fill in.
const MaxPreferences = 3

type Traveler[ID cmp.Ordered, G comparable] struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Gender      G      `json:"gender"`
	Preferences []ID   `json:"preferences"`
}

func (t Traveler[ID, G]) Prefers(other ID) bool {
	return slices.Contains(t.Preferences, other)
}

// Slot is one raw roommate preference. When HasID is set the ID is tried
// first; Name is the fallback used when the ID is unknown to the cohort.
type Slot[ID cmp.Ordered] struct {
	ID    ID
	HasID bool
	Name  string
}

type RawTraveler[ID cmp.Ordered, G comparable] struct {
	ID     ID
	Name   string
	Gender G
	Slots  []Slot[ID]
}

type RoomConfig struct {
	Capacity int `json:"capacity"`
	Count    int `json:"count"`
}

// TotalSpots counts the beds the packer can fill. Rooms below MinOccupants
// are never filled, so they add nothing.
func TotalSpots(configs []RoomConfig) int {
	n := 0
	for _, c := range configs {
		if c.Capacity >= MinOccupants && c.Count > 0 {
			n += c.Capacity * c.Count
		}
	}
	return n
}

type Room[ID cmp.Ordered, G comparable] struct {
	ID        int  `json:"id"`
	Capacity  int  `json:"capacity"`
	Occupants []ID `json:"occupants"`
	Gender    G    `json:"gender"`
	Cohesion  int  `json:"cohesion"`
}

func (r Room[ID, G]) Full() bool {
	return len(r.Occupants) >= r.Capacity
}

func (r Room[ID, G]) clone() Room[ID, G] {
	r.Occupants = slices.Clone(r.Occupants)
	return r
}
