package spatial

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestVectorArithmetic(t *testing.T) {
	a := Vector3{1, 2, 3}
	b := Vector3{4, 5, 6}

	if got := a.Add(b); got != (Vector3{5, 7, 9}) {
		t.Errorf("Add = %+v", got)
	}
	if got := b.Sub(a); got != (Vector3{3, 3, 3}) {
		t.Errorf("Sub = %+v", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot = %v, want 32", got)
	}
	if got := (Vector3{1, 0, 0}).Cross(Vector3{0, 1, 0}); got != (Vector3{0, 0, 1}) {
		t.Errorf("Cross = %+v, want +Z", got)
	}
	if got := (Vector3{3, 4, 0}).Length(); got != 5 {
		t.Errorf("Length = %v, want 5", got)
	}
}

func TestNormalize(t *testing.T) {
	n := Vector3{0, 0, 10}.Normalize()
	if n != (Vector3{0, 0, 1}) {
		t.Errorf("Normalize = %+v", n)
	}
	if z := (Vector3{}).Normalize(); !z.IsZero() {
		t.Errorf("zero vector normalized to %+v", z)
	}
}

func TestForwardFromAngles(t *testing.T) {
	tests := []struct {
		name         string
		pitch, yaw   float64
		wantX, wantZ float64
		wantY        float64
	}{
		{"south", 0, 0, 0, 1, 0},
		{"west", 0, 90, -1, 0, 0},
		{"north", 0, 180, 0, -1, 0},
		{"down", 90, 0, 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ForwardFromAngles(tt.pitch, tt.yaw)
			if !near(f.X, tt.wantX) || !near(f.Y, tt.wantY) || !near(f.Z, tt.wantZ) {
				t.Errorf("ForwardFromAngles(%v, %v) = %+v", tt.pitch, tt.yaw, f)
			}
		})
	}
}

type recorder struct{ x, y, z float64 }

func (r *recorder) SetPosition(x, y, z float64) { r.x, r.y, r.z = x, y, z }

func TestPositionApplyTo(t *testing.T) {
	var r recorder
	NewPosition(Vector3{7, -2, 3.5}).ApplyTo(&r)
	if r != (recorder{7, -2, 3.5}) {
		t.Errorf("applied %+v", r)
	}
}
