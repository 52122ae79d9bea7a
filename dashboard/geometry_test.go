package dashboard

import "testing"

func TestBoundsOf(t *testing.T) {
	r := BoundsOf(Point{30, 5}, Point{10, 25})
	want := Rect{Left: 10, Top: 5, Right: 30, Bottom: 25, Width: 20, Height: 20}
	if r != want {
		t.Errorf("BoundsOf() = %+v, want %+v", r, want)
	}
	if r := BoundsOf(Point{4, 4}, Point{4, 4}); r.Width != 0 || r.Height != 0 {
		t.Errorf("BoundsOf() of a point has size %vx%v", r.Width, r.Height)
	}
}

func TestIntersects(t *testing.T) {
	base := RectAt(0, 0, 10, 10)
	tests := []struct {
		name string
		b    Rect
		want bool
	}{
		{"overlap", RectAt(5, 5, 10, 10), true},
		{"contained", RectAt(2, 2, 2, 2), true},
		{"containing", RectAt(-5, -5, 30, 30), true},
		{"touching right edge", RectAt(10, 0, 5, 5), false},
		{"touching bottom edge", RectAt(0, 10, 5, 5), false},
		{"touching corner", RectAt(10, 10, 5, 5), false},
		{"far away", RectAt(50, 50, 5, 5), false},
		{"zero area outside", RectAt(20, 20, 0, 0), false},
		{"zero area on edge", RectAt(10, 5, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(base, tt.b); got != tt.want {
				t.Errorf("Intersects(a, b) = %v, want %v", got, tt.want)
			}
			if Intersects(base, tt.b) != Intersects(tt.b, base) {
				t.Error("Intersects is not symmetric")
			}
		})
	}
}
