// Package pointcloud decodes the sensor payload files referenced by
// sample data records: raw float32 lidar sweeps (.pcd.bin) and radar point
// clouds in the PCD container format.
package pointcloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/nuscenes-go/nuscenes"
)

// LidarPoint is one lidar return in the sensor frame. Ring is the laser
// channel index, stored as a float in the file.
type LidarPoint struct {
	X, Y, Z   float32
	Intensity float32
	Ring      float32
}

const lidarPointSize = 5 * 4

// DecodeLidar decodes a .pcd.bin payload: consecutive little-endian
// records of five float32 values. A length that is not a whole number of
// records is an error, not a truncation.
func DecodeLidar(data []byte) ([]LidarPoint, error) {
	if len(data)%lidarPointSize != 0 {
		return nil, fmt.Errorf("lidar payload is %d bytes, not a multiple of %d", len(data), lidarPointSize)
	}
	points := make([]LidarPoint, len(data)/lidarPointSize)
	for i := range points {
		rec := data[i*lidarPointSize:]
		points[i] = LidarPoint{
			X:         f32(rec[0:]),
			Y:         f32(rec[4:]),
			Z:         f32(rec[8:]),
			Intensity: f32(rec[12:]),
			Ring:      f32(rec[16:]),
		}
	}
	return points, nil
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// RadarPoint is one radar return with the full nuScenes field set. The
// compensated velocities vx_comp/vy_comp have ego motion removed.
type RadarPoint struct {
	X, Y, Z        float32
	DynProp        uint8
	ID             uint8
	RCS            float32
	VX, VY         float32
	VXComp, VYComp float32
	IsQualityValid uint8
	AmbigState     uint8
	XRMS, YRMS     uint8
	InvalidState   uint8
	PDH0           uint8
	VXRMS, VYRMS   uint8
}

// pcdHeader is the parsed preamble of a PCD file.
type pcdHeader struct {
	fields []string
	sizes  []int
	types  []byte
	counts []int
	points int
	data   string
}

// DecodeRadar decodes a radar PCD file. Fields are located by the names
// the header declares, so reordered or extended layouts still decode as
// long as the known fields keep their declared types.
func DecodeRadar(r io.Reader) ([]RadarPoint, error) {
	br := bufio.NewReader(r)
	hdr, err := parsePCDHeader(br)
	if err != nil {
		return nil, err
	}
	switch hdr.data {
	case "binary":
		return decodeRadarBinary(br, hdr)
	case "ascii":
		return decodeRadarASCII(br, hdr)
	}
	return nil, fmt.Errorf("unsupported pcd data encoding %q", hdr.data)
}

func parsePCDHeader(br *bufio.Reader) (*pcdHeader, error) {
	hdr := &pcdHeader{points: -1}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("pcd header ends before DATA: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		key, args := parts[0], parts[1:]
		switch key {
		case "FIELDS":
			hdr.fields = args
		case "SIZE":
			sizes, err := atoiAll(args)
			if err != nil {
				return nil, fmt.Errorf("pcd SIZE: %w", err)
			}
			hdr.sizes = sizes
		case "TYPE":
			hdr.types = make([]byte, len(args))
			for i, a := range args {
				if len(a) != 1 {
					return nil, fmt.Errorf("pcd TYPE entry %q is not a single letter", a)
				}
				hdr.types[i] = a[0]
			}
		case "COUNT":
			counts, err := atoiAll(args)
			if err != nil {
				return nil, fmt.Errorf("pcd COUNT: %w", err)
			}
			hdr.counts = counts
		case "POINTS":
			if len(args) != 1 {
				return nil, fmt.Errorf("pcd POINTS line has %d arguments", len(args))
			}
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("pcd POINTS: %w", err)
			}
			hdr.points = n
		case "DATA":
			if len(args) != 1 {
				return nil, fmt.Errorf("pcd DATA line has %d arguments", len(args))
			}
			hdr.data = args[0]
			return hdr, hdr.validate()
		}
	}
}

func (h *pcdHeader) validate() error {
	n := len(h.fields)
	if n == 0 {
		return fmt.Errorf("pcd header declares no FIELDS")
	}
	if len(h.sizes) != n || len(h.types) != n {
		return fmt.Errorf("pcd header FIELDS/SIZE/TYPE lengths disagree")
	}
	if h.counts == nil {
		h.counts = make([]int, n)
		for i := range h.counts {
			h.counts[i] = 1
		}
	}
	if len(h.counts) != n {
		return fmt.Errorf("pcd header FIELDS/COUNT lengths disagree")
	}
	for i, c := range h.counts {
		if c != 1 {
			return fmt.Errorf("pcd field %s has count %d, want 1", h.fields[i], c)
		}
	}
	if h.points < 0 {
		return fmt.Errorf("pcd header declares no POINTS")
	}
	return nil
}

func atoiAll(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// fieldSetters maps PCD field names to their slot in a RadarPoint.
var fieldSetters = map[string]func(*RadarPoint, float64){
	"x":                func(p *RadarPoint, v float64) { p.X = float32(v) },
	"y":                func(p *RadarPoint, v float64) { p.Y = float32(v) },
	"z":                func(p *RadarPoint, v float64) { p.Z = float32(v) },
	"dyn_prop":         func(p *RadarPoint, v float64) { p.DynProp = uint8(v) },
	"id":               func(p *RadarPoint, v float64) { p.ID = uint8(v) },
	"rcs":              func(p *RadarPoint, v float64) { p.RCS = float32(v) },
	"vx":               func(p *RadarPoint, v float64) { p.VX = float32(v) },
	"vy":               func(p *RadarPoint, v float64) { p.VY = float32(v) },
	"vx_comp":          func(p *RadarPoint, v float64) { p.VXComp = float32(v) },
	"vy_comp":          func(p *RadarPoint, v float64) { p.VYComp = float32(v) },
	"is_quality_valid": func(p *RadarPoint, v float64) { p.IsQualityValid = uint8(v) },
	"ambig_state":      func(p *RadarPoint, v float64) { p.AmbigState = uint8(v) },
	"x_rms":            func(p *RadarPoint, v float64) { p.XRMS = uint8(v) },
	"y_rms":            func(p *RadarPoint, v float64) { p.YRMS = uint8(v) },
	"invalid_state":    func(p *RadarPoint, v float64) { p.InvalidState = uint8(v) },
	"pdh0":             func(p *RadarPoint, v float64) { p.PDH0 = uint8(v) },
	"vx_rms":           func(p *RadarPoint, v float64) { p.VXRMS = uint8(v) },
	"vy_rms":           func(p *RadarPoint, v float64) { p.VYRMS = uint8(v) },
}

func decodeRadarBinary(br *bufio.Reader, hdr *pcdHeader) ([]RadarPoint, error) {
	stride := 0
	offsets := make([]int, len(hdr.fields))
	for i, size := range hdr.sizes {
		offsets[i] = stride
		stride += size
	}

	buf := make([]byte, stride*hdr.points)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, fmt.Errorf("pcd payload shorter than %d declared points: %w", hdr.points, err)
	}

	points := make([]RadarPoint, hdr.points)
	for i := range points {
		rec := buf[i*stride:]
		for j, name := range hdr.fields {
			set, ok := fieldSetters[name]
			if !ok {
				continue
			}
			v, err := readScalar(rec[offsets[j]:], hdr.types[j], hdr.sizes[j])
			if err != nil {
				return nil, fmt.Errorf("pcd field %s: %w", name, err)
			}
			set(&points[i], v)
		}
	}
	return points, nil
}

func decodeRadarASCII(br *bufio.Reader, hdr *pcdHeader) ([]RadarPoint, error) {
	points := make([]RadarPoint, 0, hdr.points)
	for len(points) < hdr.points {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			cols := strings.Fields(line)
			if len(cols) != len(hdr.fields) {
				return nil, fmt.Errorf("pcd row has %d columns, want %d", len(cols), len(hdr.fields))
			}
			var p RadarPoint
			for j, name := range hdr.fields {
				set, ok := fieldSetters[name]
				if !ok {
					continue
				}
				v, perr := strconv.ParseFloat(cols[j], 64)
				if perr != nil {
					return nil, fmt.Errorf("pcd field %s: %w", name, perr)
				}
				set(&p, v)
			}
			points = append(points, p)
		}
		if err == io.EOF {
			break
		}
	}
	if len(points) != hdr.points {
		return nil, fmt.Errorf("pcd payload has %d points, header declares %d", len(points), hdr.points)
	}
	return points, nil
}

func readScalar(b []byte, typ byte, size int) (float64, error) {
	switch {
	case typ == 'F' && size == 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case typ == 'F' && size == 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case typ == 'U' && size == 1:
		return float64(b[0]), nil
	case typ == 'U' && size == 2:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case typ == 'U' && size == 4:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case typ == 'I' && size == 1:
		return float64(int8(b[0])), nil
	case typ == 'I' && size == 2:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case typ == 'I' && size == 4:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	}
	return 0, fmt.Errorf("unsupported type %c size %d", typ, size)
}

// LoadLidar reads and decodes a .pcd.bin file.
func LoadLidar(path string) ([]LidarPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &nuscenes.FileError{Path: path, Err: err}
	}
	points, err := DecodeLidar(data)
	if err != nil {
		return nil, &nuscenes.FileError{Path: path, Err: err}
	}
	return points, nil
}

// LoadRadar reads and decodes a radar PCD file.
func LoadRadar(path string) ([]RadarPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &nuscenes.FileError{Path: path, Err: err}
	}
	points, err := DecodeRadar(bytes.NewReader(data))
	if err != nil {
		return nil, &nuscenes.FileError{Path: path, Err: err}
	}
	return points, nil
}

// LoadLidarData loads the payload of a lidar sample data record. Records
// of other modalities or file formats return nil without touching the
// filesystem, mirroring how callers iterate mixed sensor streams.
func LoadLidarData(sd nuscenes.SampleDataRef) ([]LidarPoint, error) {
	if sd.Fileformat != nuscenes.FileFormatPcd {
		return nil, nil
	}
	if sd.CalibratedSensor().Sensor().Modality != nuscenes.ModalityLidar {
		return nil, nil
	}
	return LoadLidar(sd.Path())
}

// LoadRadarData loads the payload of a radar sample data record, with the
// same skip behavior as LoadLidarData.
func LoadRadarData(sd nuscenes.SampleDataRef) ([]RadarPoint, error) {
	if sd.Fileformat != nuscenes.FileFormatPcd {
		return nil, nil
	}
	if sd.CalibratedSensor().Sensor().Modality != nuscenes.ModalityRadar {
		return nil, nil
	}
	return LoadRadar(sd.Path())
}
