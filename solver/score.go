package solver

import (
	"cmp"
	"slices"
)

// PairScore is the symmetric compatibility of two travelers: one point for
// each direction in which a preference is stated.
func PairScore[ID cmp.Ordered, G comparable](a, b Traveler[ID, G]) int {
	if a.ID == b.ID {
		return 0
	}
	s := 0
	if a.Prefers(b.ID) {
		s++
	}
	if b.Prefers(a.ID) {
		s++
	}
	return s
}

type scoreMatrix[ID cmp.Ordered, G comparable] struct {
	travelers []Traveler[ID, G]
	index     map[ID]int
	pair      [][]int
}

// newScoreMatrix sorts the pool by ID and drops repeated IDs; every index
// based lookup below relies on that order.
func newScoreMatrix[ID cmp.Ordered, G comparable](pool []Traveler[ID, G]) *scoreMatrix[ID, G] {
	sorted := slices.Clone(pool)
	slices.SortStableFunc(sorted, func(a, b Traveler[ID, G]) int { return cmp.Compare(a.ID, b.ID) })
	sorted = slices.CompactFunc(sorted, func(a, b Traveler[ID, G]) bool { return a.ID == b.ID })

	m := &scoreMatrix[ID, G]{
		travelers: sorted,
		index:     make(map[ID]int, len(sorted)),
		pair:      make([][]int, len(sorted)),
	}
	for i, t := range sorted {
		m.index[t.ID] = i
		m.pair[i] = make([]int, len(sorted))
	}
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			s := PairScore(sorted[i], sorted[j])
			m.pair[i][j] = s
			m.pair[j][i] = s
		}
	}
	return m
}

func (m *scoreMatrix[ID, G]) size() int {
	return len(m.travelers)
}

func (m *scoreMatrix[ID, G]) score(a, b ID) int {
	i, ok := m.index[a]
	if !ok {
		return 0
	}
	j, ok := m.index[b]
	if !ok {
		return 0
	}
	return m.pair[i][j]
}

func (m *scoreMatrix[ID, G]) groupCohesion(members []int) int {
	c := 0
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			c += m.pair[members[i]][members[j]]
		}
	}
	return c
}

func (m *scoreMatrix[ID, G]) cohesion(ids []ID) int {
	members := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := m.index[id]; ok {
			members = append(members, i)
		}
	}
	return m.groupCohesion(members)
}
