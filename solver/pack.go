package solver

import (
	"cmp"
	"slices"
)

// MinOccupants is the smallest room the packer will create.
const MinOccupants = 2

// normalizeConfigs merges configs that share a capacity, drops tiers that
// could never hold MinOccupants travelers, and orders the tiers largest
// first.
func normalizeConfigs(configs []RoomConfig) []RoomConfig {
	counts := map[int]int{}
	for _, c := range configs {
		if c.Capacity < MinOccupants || c.Count <= 0 {
			continue
		}
		counts[c.Capacity] += c.Count
	}
	tiers := make([]RoomConfig, 0, len(counts))
	for capacity, count := range counts {
		tiers = append(tiers, RoomConfig{Capacity: capacity, Count: count})
	}
	slices.SortFunc(tiers, func(a, b RoomConfig) int { return b.Capacity - a.Capacity })
	return tiers
}

type candidate struct {
	idx   int
	score int
}

// bestGroup tries every available traveler as a seed, surrounds it with its
// size-1 highest scoring partners and keeps the group with the highest
// total cohesion. Pool order is ascending ID, so ties go to the lowest
// seed and, within a seed, to the lowest partner IDs.
func (m *scoreMatrix[ID, G]) bestGroup(available []bool, size int) ([]int, int) {
	var pool []int
	for i, ok := range available {
		if ok {
			pool = append(pool, i)
		}
	}
	if len(pool) < size {
		return nil, 0
	}

	var best []int
	bestScore := 0
	cands := make([]candidate, 0, len(pool))
	for _, seed := range pool {
		cands = cands[:0]
		for _, other := range pool {
			if other != seed {
				cands = append(cands, candidate{other, m.pair[seed][other]})
			}
		}
		slices.SortFunc(cands, func(a, b candidate) int {
			if a.score != b.score {
				return b.score - a.score
			}
			return cmp.Compare(a.idx, b.idx)
		})
		group := make([]int, 0, size)
		group = append(group, seed)
		for _, c := range cands[:size-1] {
			group = append(group, c.idx)
		}
		if score := m.groupCohesion(group); best == nil || score > bestScore {
			best, bestScore = group, score
		}
	}
	return best, bestScore
}

func (m *scoreMatrix[ID, G]) pack(configs []RoomConfig, gender G) ([]Room[ID, G], []ID) {
	available := make([]bool, m.size())
	for i := range available {
		available[i] = true
	}
	remaining := m.size()

	var rooms []Room[ID, G]
	nextID := 1
	for _, tier := range normalizeConfigs(configs) {
		for left := tier.Count; left > 0 && remaining >= tier.Capacity; left-- {
			group, score := m.bestGroup(available, tier.Capacity)
			if group == nil {
				break
			}
			occupants := make([]ID, len(group))
			for i, idx := range group {
				available[idx] = false
				occupants[i] = m.travelers[idx].ID
			}
			remaining -= len(group)
			rooms = append(rooms, Room[ID, G]{
				ID:        nextID,
				Capacity:  tier.Capacity,
				Occupants: occupants,
				Gender:    gender,
				Cohesion:  score,
			})
			nextID++
		}
	}

	unassigned := make([]ID, 0, remaining)
	for i, ok := range available {
		if ok {
			unassigned = append(unassigned, m.travelers[i].ID)
		}
	}
	return rooms, unassigned
}
