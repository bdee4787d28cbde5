// Package spatial provides the 3D value types used to place voice sources
// and the listener in the game world.
package spatial

import "math"

// Vector3 is a point or direction in world coordinates (blocks).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vector3) Scale(s float64) Vector3 { return Vector3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product v × o.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean norm of v.
func (v Vector3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the Euclidean distance between v and o.
func (v Vector3) Distance(o Vector3) float64 { return v.Sub(o).Length() }

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// IsZero reports whether all components are zero.
func (v Vector3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// ForwardFromAngles converts a pitch/yaw pair in degrees (game convention:
// yaw 0 faces +Z, positive pitch looks down) into a unit forward vector.
func ForwardFromAngles(pitch, yaw float64) Vector3 {
	p := pitch * math.Pi / 180
	y := yaw * math.Pi / 180
	return Vector3{
		X: -math.Sin(y) * math.Cos(p),
		Y: -math.Sin(p),
		Z: math.Cos(y) * math.Cos(p),
	}
}
