package geom

import (
	"math"
	"testing"

	"github.com/banshee-data/nuscenes-go/nuscenes"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestRotationQuatOrder(t *testing.T) {
	q := RotationQuat([4]float64{0.5, -0.5, 0.25, 1})
	if q.Real != 0.5 || q.Imag != -0.5 || q.Jmag != 0.25 || q.Kmag != 1 {
		t.Errorf("RotationQuat = %+v, want w,x,y,z mapped to Real,Imag,Jmag,Kmag", q)
	}
}

func TestIdentityApply(t *testing.T) {
	x, y, z := Identity().Apply(1.5, -2, 3)
	if !near(x, 1.5) || !near(y, -2) || !near(z, 3) {
		t.Errorf("Apply = (%v, %v, %v), want (1.5, -2, 3)", x, y, z)
	}
}

func TestFromPoseTranslation(t *testing.T) {
	tr := FromPose([4]float64{1, 0, 0, 0}, [3]float64{10, 20, 30})
	x, y, z := tr.Apply(1, 2, 3)
	if !near(x, 11) || !near(y, 22) || !near(z, 33) {
		t.Errorf("Apply = (%v, %v, %v), want (11, 22, 33)", x, y, z)
	}
}

func TestFromPoseRotation(t *testing.T) {
	// 90 degrees about +Z maps +X to +Y.
	s := math.Sqrt(0.5)
	tr := FromPose([4]float64{s, 0, 0, s}, [3]float64{})
	x, y, z := tr.Apply(1, 0, 0)
	if !near(x, 0) || !near(y, 1) || !near(z, 0) {
		t.Errorf("Apply = (%v, %v, %v), want (0, 1, 0)", x, y, z)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	s := math.Sqrt(0.5)
	tr := FromPose([4]float64{s, 0, s, 0}, [3]float64{4, -5, 6})
	inv := tr.Inverse()

	px, py, pz := 1.0, 2.0, 3.0
	wx, wy, wz := tr.Apply(px, py, pz)
	bx, by, bz := inv.Apply(wx, wy, wz)
	if !near(bx, px) || !near(by, py) || !near(bz, pz) {
		t.Errorf("inverse round trip = (%v, %v, %v), want (1, 2, 3)", bx, by, bz)
	}
}

func TestMulComposes(t *testing.T) {
	a := FromPose([4]float64{1, 0, 0, 0}, [3]float64{1, 0, 0})
	s := math.Sqrt(0.5)
	b := FromPose([4]float64{s, 0, 0, s}, [3]float64{})

	// a.Mul(b) rotates first, then translates.
	x, y, z := a.Mul(b).Apply(1, 0, 0)
	if !near(x, 1) || !near(y, 1) || !near(z, 0) {
		t.Errorf("Apply = (%v, %v, %v), want (1, 1, 0)", x, y, z)
	}
}

func TestIntrinsicMatrix(t *testing.T) {
	if _, ok := IntrinsicMatrix(nuscenes.CameraIntrinsic{}); ok {
		t.Error("absent intrinsic produced a matrix")
	}

	c := nuscenes.CameraIntrinsic{
		Valid: true,
		K: [3][3]float64{
			{1266.417, 0, 816.267},
			{0, 1266.417, 491.507},
			{0, 0, 1},
		},
	}
	k, ok := IntrinsicMatrix(c)
	if !ok {
		t.Fatal("valid intrinsic produced no matrix")
	}
	if got := k.At(0, 0); !near(got, 1266.417) {
		t.Errorf("K[0][0] = %v, want 1266.417", got)
	}

	// A point on the optical axis lands at the principal point.
	u, v, ok := ProjectPoint(k, 0, 0, 10)
	if !ok {
		t.Fatal("on-axis point did not project")
	}
	if !near(u, 816.267) || !near(v, 491.507) {
		t.Errorf("projection = (%v, %v), want principal point", u, v)
	}

	if _, _, ok := ProjectPoint(k, 0, 0, -1); ok {
		t.Error("point behind the camera projected")
	}
}
