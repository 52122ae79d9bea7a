package dashboard

// Point is a position in view coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle. Width and Height are never negative.
type Rect struct {
	Left, Top, Right, Bottom float64
	Width, Height            float64
}

// BoundsOf returns the rectangle spanned by two corner points, in any order.
func BoundsOf(start, current Point) Rect {
	r := Rect{
		Left:   min(start.X, current.X),
		Top:    min(start.Y, current.Y),
		Right:  max(start.X, current.X),
		Bottom: max(start.Y, current.Y),
	}
	r.Width = r.Right - r.Left
	r.Height = r.Bottom - r.Top
	return r
}

// RectAt builds a rectangle from its top-left corner and size.
func RectAt(x, y, w, h float64) Rect {
	return BoundsOf(Point{x, y}, Point{x + w, y + h})
}

// Intersects reports whether a and b overlap. Rectangles that only share an
// edge do not intersect.
func Intersects(a, b Rect) bool {
	return a.Left < b.Right && a.Right > b.Left && a.Top < b.Bottom && a.Bottom > b.Top
}
