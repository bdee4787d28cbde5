package spatial

// PositionSetter is anything that can be placed in 3D space, typically a
// panner node.
type PositionSetter interface {
	SetPosition(x, y, z float64)
}

// Position wraps a location so it can be applied to a panner.
type Position struct {
	Location Vector3
}

// NewPosition returns a Position at loc.
func NewPosition(loc Vector3) Position {
	return Position{Location: loc}
}

// ApplyTo moves target to the position's location.
func (p Position) ApplyTo(target PositionSetter) {
	target.SetPosition(p.Location.X, p.Location.Y, p.Location.Z)
}
