// Package geom turns the pose fields of metadata records into rigid 4x4
// transforms and camera projections, for moving points between the sensor,
// ego-vehicle and global frames.
package geom

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/nuscenes-go/nuscenes"
)

// Transform is a 4x4 rigid transform, row-major:
// m00,m01,m02,m03, m10,... The last row is implicitly 0,0,0,1.
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// RotationQuat views a record's rotation field, stored in w,x,y,z order,
// as a gonum quaternion.
func RotationQuat(rotation [4]float64) quat.Number {
	return quat.Number{Real: rotation[0], Imag: rotation[1], Jmag: rotation[2], Kmag: rotation[3]}
}

// FromPose builds the transform that maps a point from the posed frame
// into its parent frame. rotation is a unit quaternion in w,x,y,z order,
// the order the metadata files use.
func FromPose(rotation [4]float64, translation [3]float64) Transform {
	q := RotationQuat(rotation)
	t := Identity()
	for col, e := range []quat.Number{
		{Imag: 1},
		{Jmag: 1},
		{Kmag: 1},
	} {
		r := quat.Mul(quat.Mul(q, e), quat.Conj(q))
		t[col] = r.Imag
		t[4+col] = r.Jmag
		t[8+col] = r.Kmag
	}
	t[3] = translation[0]
	t[7] = translation[1]
	t[11] = translation[2]
	return t
}

// Apply maps the point (x, y, z) through the transform.
func (t Transform) Apply(x, y, z float64) (wx, wy, wz float64) {
	wx = t[0]*x + t[1]*y + t[2]*z + t[3]
	wy = t[4]*x + t[5]*y + t[6]*z + t[7]
	wz = t[8]*x + t[9]*y + t[10]*z + t[11]
	return
}

// Mul composes two transforms; applying the result equals applying o
// first and then t.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[row*4+k] * o[k*4+col]
			}
			out[row*4+col] = sum
		}
	}
	return out
}

// Inverse returns the inverse of a rigid transform: the rotation
// transposed and the translation counter-rotated.
func (t Transform) Inverse() Transform {
	inv := Identity()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			inv[row*4+col] = t[col*4+row]
		}
	}
	tx, ty, tz := t[3], t[7], t[11]
	inv[3] = -(inv[0]*tx + inv[1]*ty + inv[2]*tz)
	inv[7] = -(inv[4]*tx + inv[5]*ty + inv[6]*tz)
	inv[11] = -(inv[8]*tx + inv[9]*ty + inv[10]*tz)
	return inv
}

// SensorToEgo returns the transform from the calibrated sensor's frame
// into the ego-vehicle frame.
func SensorToEgo(cs *nuscenes.CalibratedSensor) Transform {
	return FromPose(cs.Rotation, cs.Translation)
}

// EgoToGlobal returns the transform from the ego-vehicle frame into the
// global frame at the pose's timestamp.
func EgoToGlobal(ep *nuscenes.EgoPose) Transform {
	return FromPose(ep.Rotation, ep.Translation)
}

// SensorToGlobal composes the two frames of one sensor payload: points in
// the capturing sensor's frame map straight into the global frame.
func SensorToGlobal(sd nuscenes.SampleDataRef) Transform {
	ego := EgoToGlobal(sd.EgoPose().EgoPose)
	sensor := SensorToEgo(sd.CalibratedSensor().CalibratedSensor)
	return ego.Mul(sensor)
}

// IntrinsicMatrix returns the camera matrix as a 3x3 dense matrix. The
// second return is false for channels without an intrinsic.
func IntrinsicMatrix(c nuscenes.CameraIntrinsic) (*mat.Dense, bool) {
	if !c.Valid {
		return nil, false
	}
	m := mat.NewDense(3, 3, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, c.K[row][col])
		}
	}
	return m, true
}

// ProjectPoint projects a camera-frame point onto the image plane using
// the intrinsic matrix. The second return is false for points at or behind
// the camera plane.
func ProjectPoint(k *mat.Dense, x, y, z float64) (u, v float64, ok bool) {
	if z <= 0 {
		return 0, 0, false
	}
	var p mat.VecDense
	p.MulVec(k, mat.NewVecDense(3, []float64{x, y, z}))
	return p.AtVec(0) / p.AtVec(2), p.AtVec(1) / p.AtVec(2), true
}
