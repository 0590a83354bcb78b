package solver

import (
	"cmp"
	"fmt"
)

// State is the serialisable form of an Assignment.
type State[ID cmp.Ordered, G comparable] struct {
	Gender    G                 `json:"gender"`
	Version   int               `json:"version"`
	Travelers []Traveler[ID, G] `json:"travelers"`
	Rooms     []Room[ID, G]     `json:"rooms"`
}

func (a *Assignment[ID, G]) State() State[ID, G] {
	return State[ID, G]{
		Gender:    a.gender,
		Version:   a.version,
		Travelers: a.Travelers(),
		Rooms:     a.Rooms(),
	}
}

// Restore validates a State and rebuilds the snapshot from it. Stored
// cohesion values are ignored and recomputed.
func Restore[ID cmp.Ordered, G comparable](s State[ID, G]) (*Assignment[ID, G], error) {
	base := &Assignment[ID, G]{
		gender:  s.Gender,
		scores:  newScoreMatrix(Partition(s.Travelers, s.Gender)),
		version: s.Version,
	}
	roomIDs := map[int]bool{}
	placed := map[ID]int{}
	for _, r := range s.Rooms {
		if r.Gender != s.Gender {
			return nil, fmt.Errorf("%w: room %d has a different gender", ErrInvalidState, r.ID)
		}
		if roomIDs[r.ID] {
			return nil, fmt.Errorf("%w: duplicate room %d", ErrInvalidState, r.ID)
		}
		roomIDs[r.ID] = true
		if r.Capacity < 1 || len(r.Occupants) > r.Capacity {
			return nil, fmt.Errorf("%w: room %d exceeds capacity %d", ErrInvalidState, r.ID, r.Capacity)
		}
		for _, id := range r.Occupants {
			if _, ok := base.scores.index[id]; !ok {
				return nil, fmt.Errorf("%w: room %d holds unknown traveler %v", ErrInvalidState, r.ID, id)
			}
			if prev, dup := placed[id]; dup {
				return nil, fmt.Errorf("%w: traveler %v in rooms %d and %d", ErrInvalidState, id, prev, r.ID)
			}
			placed[id] = r.ID
		}
	}
	rooms := make([]Room[ID, G], len(s.Rooms))
	for i, r := range s.Rooms {
		rooms[i] = r.clone()
	}
	return base.rebuild(rooms, s.Version), nil
}
