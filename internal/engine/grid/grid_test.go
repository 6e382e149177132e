package grid

import "testing"

func TestAdjacent(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want bool
	}{
		{name: "orthogonal neighbour", a: Position{X: 2, Y: 2}, b: Position{X: 2, Y: 3}, want: true},
		{name: "diagonal neighbour", a: Position{X: 2, Y: 2}, b: Position{X: 3, Y: 3}, want: true},
		{name: "same cell", a: Position{X: 2, Y: 2}, b: Position{X: 2, Y: 2}, want: false},
		{name: "two cells away", a: Position{X: 2, Y: 2}, b: Position{X: 4, Y: 2}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Adjacent(tc.a, tc.b); got != tc.want {
				t.Fatalf("Adjacent(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestSteps(t *testing.T) {
	path := []Position{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 3}}
	if got := Steps(path); got != 3 {
		t.Fatalf("expected 3 steps, got %d", got)
	}
	if got := Steps(nil); got != 0 {
		t.Fatalf("expected 0 steps for empty path, got %d", got)
	}
}
