package pointcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func lidarBytes(points ...LidarPoint) []byte {
	var buf bytes.Buffer
	for _, p := range points {
		for _, v := range []float32{p.X, p.Y, p.Z, p.Intensity, p.Ring} {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	return buf.Bytes()
}

func TestDecodeLidar(t *testing.T) {
	want := []LidarPoint{
		{X: 1.5, Y: -2.25, Z: 0.5, Intensity: 37, Ring: 12},
		{X: 10, Y: 20, Z: 30, Intensity: 0, Ring: 31},
	}
	got, err := DecodeLidar(lidarBytes(want...))
	if err != nil {
		t.Fatalf("DecodeLidar: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("point count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecodeLidarEmpty(t *testing.T) {
	got, err := DecodeLidar(nil)
	if err != nil {
		t.Fatalf("DecodeLidar: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("point count = %d, want 0", len(got))
	}
}

func TestDecodeLidarRejectsPartialRecord(t *testing.T) {
	data := lidarBytes(LidarPoint{X: 1})
	if _, err := DecodeLidar(data[:len(data)-3]); err == nil {
		t.Error("truncated payload decoded without error")
	}
}

const radarHeader = `# .PCD v0.7 - Point Cloud Data file format
VERSION 0.7
FIELDS x y z dyn_prop id rcs vx vy vx_comp vy_comp is_quality_valid ambig_state x_rms y_rms invalid_state pdh0 vx_rms vy_rms
SIZE 4 4 4 1 1 4 4 4 4 4 1 1 1 1 1 1 1 1
TYPE F F F U U F F F F F U U U U U U U U
COUNT 1 1 1 1 1 1 1 1 1 1 1 1 1 1 1 1 1 1
WIDTH 2
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 2
DATA binary
`

func radarRecord(p RadarPoint) []byte {
	var buf bytes.Buffer
	for _, f := range []float32{p.X, p.Y, p.Z} {
		binary.Write(&buf, binary.LittleEndian, f)
	}
	buf.WriteByte(p.DynProp)
	buf.WriteByte(p.ID)
	for _, f := range []float32{p.RCS, p.VX, p.VY, p.VXComp, p.VYComp} {
		binary.Write(&buf, binary.LittleEndian, f)
	}
	for _, b := range []uint8{
		p.IsQualityValid, p.AmbigState, p.XRMS, p.YRMS,
		p.InvalidState, p.PDH0, p.VXRMS, p.VYRMS,
	} {
		buf.WriteByte(b)
	}
	return buf.Bytes()
}

func TestDecodeRadarBinary(t *testing.T) {
	want := []RadarPoint{
		{X: 12.5, Y: -3, Z: 0, DynProp: 1, ID: 7, RCS: -2.5, VX: 4, VYComp: -0.25, AmbigState: 3},
		{X: -8, Y: 16, Z: 0.5, ID: 8, VXComp: 1.25, IsQualityValid: 1, PDH0: 2},
	}
	var buf bytes.Buffer
	buf.WriteString(radarHeader)
	for _, p := range want {
		buf.Write(radarRecord(p))
	}

	got, err := DecodeRadar(&buf)
	if err != nil {
		t.Fatalf("DecodeRadar: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("point count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecodeRadarASCII(t *testing.T) {
	pcd := `VERSION 0.7
FIELDS x y z rcs
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH 1
HEIGHT 1
POINTS 1
DATA ascii
1.5 -2 0.25 -4.5
`
	got, err := DecodeRadar(strings.NewReader(pcd))
	if err != nil {
		t.Fatalf("DecodeRadar: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("point count = %d, want 1", len(got))
	}
	p := got[0]
	if p.X != 1.5 || p.Y != -2 || p.Z != 0.25 || p.RCS != -4.5 {
		t.Errorf("point = %+v, want x=1.5 y=-2 z=0.25 rcs=-4.5", p)
	}
}

func TestDecodeRadarTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(radarHeader)
	buf.Write(radarRecord(RadarPoint{X: 1}))

	if _, err := DecodeRadar(&buf); err == nil {
		t.Error("payload with one of two declared points decoded without error")
	}
}

func TestDecodeRadarHeaderMismatch(t *testing.T) {
	pcd := `VERSION 0.7
FIELDS x y z
SIZE 4 4
TYPE F F F
POINTS 0
DATA binary
`
	if _, err := DecodeRadar(strings.NewReader(pcd)); err == nil {
		t.Error("header with mismatched SIZE decoded without error")
	}
}

func TestReadScalarInteger(t *testing.T) {
	b := []byte{0xfe, 0xff}
	v, err := readScalar(b, 'I', 2)
	if err != nil {
		t.Fatalf("readScalar: %v", err)
	}
	if v != -2 {
		t.Errorf("readScalar I2 = %v, want -2", v)
	}
	u, err := readScalar(b, 'U', 2)
	if err != nil {
		t.Fatalf("readScalar: %v", err)
	}
	if u != math.MaxUint16-1 {
		t.Errorf("readScalar U2 = %v, want %d", u, math.MaxUint16-1)
	}
}
