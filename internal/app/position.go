package app

import "lattice/api/internal/store"

// nextPosition returns the append position for a sibling group: one past the
// highest occupied slot, or 0 when the group is empty. Positions are ordering
// keys only, so gaps in the input are fine.
func nextPosition(positions []int) int {
	next := 0
	for _, p := range positions {
		if p >= next {
			next = p + 1
		}
	}
	return next
}

func pagePositions(pages []store.Page) []int {
	positions := make([]int, 0, len(pages))
	for _, p := range pages {
		positions = append(positions, p.Position)
	}
	return positions
}

func favoritePositions(favorites []store.Favorite) []int {
	positions := make([]int, 0, len(favorites))
	for _, f := range favorites {
		positions = append(positions, f.Position)
	}
	return positions
}
