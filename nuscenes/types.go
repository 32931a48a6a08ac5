package nuscenes

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a point in time with nanosecond precision. The wire format
// is a float64 of microseconds since the Unix epoch.
type Timestamp struct {
	time.Time
}

// MarshalJSON writes microseconds since epoch as a float.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	ns := t.UnixNano()
	us := float64(ns/1000) + float64(ns%1000)/1000.0
	return json.Marshal(us)
}

// UnmarshalJSON reads a float of microseconds and keeps sub-microsecond
// precision where the float carries it.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var us float64
	if err := json.Unmarshal(data, &us); err != nil {
		return err
	}
	whole := int64(us)
	frac := int64((us - float64(whole)) * 1000.0)
	t.Time = time.Unix(whole/1_000_000, (whole%1_000_000)*1000+frac).UTC()
	return nil
}

// Date is a calendar date without a time component, e.g. a log's capture
// date, encoded as "2006-01-02".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		return &ParseError{Value: s, Reason: "date must be formatted as " + dateLayout}
	}
	d.Time = parsed
	return nil
}

// CameraIntrinsic is a 3x3 camera matrix. nuScenes writes an empty array
// for channels without an intrinsic (lidar and radar); any row count other
// than 0 or 3 is malformed.
type CameraIntrinsic struct {
	K     [3][3]float64
	Valid bool
}

// MarshalJSON writes an empty array when the intrinsic is absent.
func (c CameraIntrinsic) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("[]"), nil
	}
	return json.Marshal(c.K)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CameraIntrinsic) UnmarshalJSON(data []byte) error {
	var rows [][3]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		*c = CameraIntrinsic{}
	case 3:
		c.Valid = true
		copy(c.K[:], rows)
	default:
		return fmt.Errorf("camera_intrinsic has %d rows, want 0 or 3", len(rows))
	}
	return nil
}

// Modality identifies the sensor family that produced a channel.
type Modality string

const (
	ModalityCamera Modality = "camera"
	ModalityLidar  Modality = "lidar"
	ModalityRadar  Modality = "radar"
)

// UnmarshalText rejects unknown modalities.
func (m *Modality) UnmarshalText(text []byte) error {
	switch v := Modality(text); v {
	case ModalityCamera, ModalityLidar, ModalityRadar:
		*m = v
		return nil
	}
	return &ParseError{Value: string(text), Reason: "unknown sensor modality"}
}

// FileFormat enumerates sample_data payload encodings. External decoders
// branch on it to pick an image or point-cloud loader.
type FileFormat string

const (
	FileFormatPcd FileFormat = "pcd"
	FileFormatJpg FileFormat = "jpg"
)

// UnmarshalText rejects unknown file formats.
func (f *FileFormat) UnmarshalText(text []byte) error {
	switch v := FileFormat(text); v {
	case FileFormatPcd, FileFormatJpg:
		*f = v
		return nil
	}
	return &ParseError{Value: string(text), Reason: "unknown sample_data fileformat"}
}

// VisibilityLevel is the fraction of an annotated object visible across
// all camera images, bucketed in percent.
type VisibilityLevel string

const (
	Visibility0to40   VisibilityLevel = "v0-40"
	Visibility40to60  VisibilityLevel = "v40-60"
	Visibility60to80  VisibilityLevel = "v60-80"
	Visibility80to100 VisibilityLevel = "v80-100"
)

// UnmarshalText rejects unknown visibility levels.
func (v *VisibilityLevel) UnmarshalText(text []byte) error {
	switch lv := VisibilityLevel(text); lv {
	case Visibility0to40, Visibility40to60, Visibility60to80, Visibility80to100:
		*v = lv
		return nil
	}
	return &ParseError{Value: string(text), Reason: "unknown visibility level"}
}

// Channel names a sensor mount position on the ego vehicle.
type Channel string

const (
	ChannelCamBack         Channel = "CAM_BACK"
	ChannelCamBackLeft     Channel = "CAM_BACK_LEFT"
	ChannelCamBackRight    Channel = "CAM_BACK_RIGHT"
	ChannelCamFront        Channel = "CAM_FRONT"
	ChannelCamFrontLeft    Channel = "CAM_FRONT_LEFT"
	ChannelCamFrontRight   Channel = "CAM_FRONT_RIGHT"
	ChannelCamFrontZoomed  Channel = "CAM_FRONT_ZOOMED"
	ChannelLidarTop        Channel = "LIDAR_TOP"
	ChannelRadarFront      Channel = "RADAR_FRONT"
	ChannelRadarFrontLeft  Channel = "RADAR_FRONT_LEFT"
	ChannelRadarFrontRight Channel = "RADAR_FRONT_RIGHT"
	ChannelRadarBackLeft   Channel = "RADAR_BACK_LEFT"
	ChannelRadarBackRight  Channel = "RADAR_BACK_RIGHT"
)

// UnmarshalText rejects unknown channels.
func (c *Channel) UnmarshalText(text []byte) error {
	switch v := Channel(text); v {
	case ChannelCamBack, ChannelCamBackLeft, ChannelCamBackRight,
		ChannelCamFront, ChannelCamFrontLeft, ChannelCamFrontRight,
		ChannelCamFrontZoomed, ChannelLidarTop,
		ChannelRadarFront, ChannelRadarFrontLeft, ChannelRadarFrontRight,
		ChannelRadarBackLeft, ChannelRadarBackRight:
		*c = v
		return nil
	}
	return &ParseError{Value: string(text), Reason: "unknown sensor channel"}
}

// Attribute is a property of an instance that can change while the
// category stays fixed, e.g. a vehicle being parked vs. moving.
type Attribute struct {
	Token       Token  `json:"token"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CalibratedSensor is a sensor as mounted on a particular vehicle, with
// its extrinsic pose and, for cameras, the intrinsic matrix.
type CalibratedSensor struct {
	Token           Token           `json:"token"`
	SensorToken     Token           `json:"sensor_token"`
	Rotation        [4]float64      `json:"rotation"` // quaternion, w x y z
	Translation     [3]float64      `json:"translation"`
	CameraIntrinsic CameraIntrinsic `json:"camera_intrinsic"`
}

// Category is an object class such as "vehicle.car".
type Category struct {
	Token       Token  `json:"token"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EgoPose is the vehicle pose in the global frame at one timestamp.
type EgoPose struct {
	Token       Token      `json:"token"`
	Timestamp   Timestamp  `json:"timestamp"`
	Rotation    [4]float64 `json:"rotation"` // quaternion, w x y z
	Translation [3]float64 `json:"translation"`
}

// Instance is one physical object tracked through a scene. Its
// annotations form a doubly-linked chain whose head, tail and length are
// declared redundantly here.
type Instance struct {
	Token                Token `json:"token"`
	CategoryToken        Token `json:"category_token"`
	NbrAnnotations       int   `json:"nbr_annotations"`
	FirstAnnotationToken Token `json:"first_annotation_token"`
	LastAnnotationToken  Token `json:"last_annotation_token"`

	// AnnotationTokens is the materialized first→last chain, derived at
	// load time; it is not part of the JSON schema.
	AnnotationTokens []Token `json:"-"`
}

// Log records one data-collection drive.
type Log struct {
	Token        Token  `json:"token"`
	DateCaptured Date   `json:"date_captured"`
	Location     string `json:"location"`
	Vehicle      string `json:"vehicle"`
	// Logfile is empty when the log carries no capture file.
	Logfile string `json:"logfile"`
}

// Map is a rasterized map image covering one or more logs.
type Map struct {
	Token     Token   `json:"token"`
	LogTokens []Token `json:"log_tokens"`
	Filename  string  `json:"filename"`
	Category  string  `json:"category"`
}

// Sample is one annotated keyframe of a scene. Samples of a scene form a
// doubly-linked chain via Prev/Next.
type Sample struct {
	Token      Token         `json:"token"`
	SceneToken Token         `json:"scene_token"`
	Timestamp  Timestamp     `json:"timestamp"`
	Prev       OptionalToken `json:"prev"`
	Next       OptionalToken `json:"next"`

	// Derived at load time by grouping the sample_annotation and
	// sample_data tables on their sample_token; not part of the JSON.
	AnnotationTokens []Token `json:"-"`
	DataTokens       []Token `json:"-"`
}

// SampleAnnotation is one annotated object box in one sample.
type SampleAnnotation struct {
	Token           Token                   `json:"token"`
	SampleToken     Token                   `json:"sample_token"`
	InstanceToken   Token                   `json:"instance_token"`
	AttributeTokens []Token                 `json:"attribute_tokens"`
	VisibilityToken OptionalVisibilityToken `json:"visibility_token"`
	Translation     [3]float64              `json:"translation"`
	Size            [3]float64              `json:"size"` // width, length, height
	Rotation        [4]float64              `json:"rotation"`
	NumLidarPts     int                     `json:"num_lidar_pts"`
	NumRadarPts     int                     `json:"num_radar_pts"`
	Prev            OptionalToken           `json:"prev"`
	Next            OptionalToken           `json:"next"`
}

// SampleData is one sensor payload (image or point cloud) tied to a
// sample. Payloads of one sample chain via Prev/Next.
type SampleData struct {
	Token                 Token         `json:"token"`
	SampleToken           Token         `json:"sample_token"`
	EgoPoseToken          Token         `json:"ego_pose_token"`
	CalibratedSensorToken Token         `json:"calibrated_sensor_token"`
	Filename              string        `json:"filename"`
	Fileformat            FileFormat    `json:"fileformat"`
	IsKeyFrame            bool          `json:"is_key_frame"`
	Timestamp             Timestamp     `json:"timestamp"`
	Prev                  OptionalToken `json:"prev"`
	Next                  OptionalToken `json:"next"`
}

// Scene is a contiguous ~20s drive extract; its samples form a chain
// whose head, tail and length are declared redundantly here.
type Scene struct {
	Token            Token  `json:"token"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	LogToken         Token  `json:"log_token"`
	NbrSamples       int    `json:"nbr_samples"`
	FirstSampleToken Token  `json:"first_sample_token"`
	LastSampleToken  Token  `json:"last_sample_token"`

	// SampleTokens is the materialized first→last chain, derived at load
	// time; it is not part of the JSON schema.
	SampleTokens []Token `json:"-"`
}

// Sensor is a sensor type and mount channel.
type Sensor struct {
	Token    Token    `json:"token"`
	Channel  Channel  `json:"channel"`
	Modality Modality `json:"modality"`
}

// Visibility describes one visibility bucket.
type Visibility struct {
	Token       VisibilityToken `json:"token"`
	Level       VisibilityLevel `json:"level"`
	Description string          `json:"description"`
}

// recordToken lets the generic table loader key records uniformly.
func (a Attribute) recordToken() Token        { return a.Token }
func (c CalibratedSensor) recordToken() Token { return c.Token }
func (c Category) recordToken() Token         { return c.Token }
func (e EgoPose) recordToken() Token          { return e.Token }
func (i Instance) recordToken() Token         { return i.Token }
func (l Log) recordToken() Token              { return l.Token }
func (m Map) recordToken() Token              { return m.Token }
func (s Sample) recordToken() Token           { return s.Token }
func (s SampleAnnotation) recordToken() Token { return s.Token }
func (s SampleData) recordToken() Token       { return s.Token }
func (s Scene) recordToken() Token            { return s.Token }
func (s Sensor) recordToken() Token           { return s.Token }

// chain exposes the linked-list fields of chained record kinds to the
// integrity checker.
func (s Sample) chain() (this Token, prev, next OptionalToken) {
	return s.Token, s.Prev, s.Next
}

func (s SampleAnnotation) chain() (this Token, prev, next OptionalToken) {
	return s.Token, s.Prev, s.Next
}

func (s SampleData) chain() (this Token, prev, next OptionalToken) {
	return s.Token, s.Prev, s.Next
}
