package mines

import "math/rand/v2"

// layMines picks MineCount distinct cells uniformly at random. The cell at
// index safe never gets a mine; pass -1 to allow every cell.
func (p GameParams) layMines(safe int, r *rand.Rand) []bool {
	size := p.Width * p.Height
	grid := make([]bool, size)

	candidates := make([]int, 0, size)
	for i := range size {
		if i != safe {
			candidates = append(candidates, i)
		}
	}

	k := len(candidates)
	for range p.MineCount {
		i := r.IntN(k)
		grid[candidates[i]] = true
		k--
		candidates[i] = candidates[k]
	}

	return grid
}
