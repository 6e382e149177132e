// Package grid provides the square-grid geometry shared by the map and combat
// reach rules.
package grid

// Position is a cell on the campaign map grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adjacent reports whether two positions are within one cell of each other,
// diagonals included. A position is not adjacent to itself.
func Adjacent(a, b Position) bool {
	if a == b {
		return false
	}
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx <= 1 && dy <= 1
}

// Steps counts grid moves along a path of waypoints using Chebyshev distance,
// so a diagonal move costs one step.
func Steps(path []Position) int {
	total := 0
	for i := 1; i < len(path); i++ {
		dx := path[i].X - path[i-1].X
		if dx < 0 {
			dx = -dx
		}
		dy := path[i].Y - path[i-1].Y
		if dy < 0 {
			dy = -dy
		}
		if dx > dy {
			total += dx
		} else {
			total += dy
		}
	}
	return total
}
