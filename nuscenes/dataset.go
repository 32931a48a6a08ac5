// Package nuscenes loads nuScenes-format driving datasets: the 13 JSON
// metadata tables of a dataset version, verified for referential and chain
// integrity, indexed, and exposed through an immutable Dataset with cheap
// cloneable record handles.
//
// A Dataset and its handles are safe for concurrent readers. Handles stay
// valid for the lifetime of the Dataset and navigation between them never
// re-reads the filesystem.
package nuscenes

import (
	"fmt"
	"path/filepath"
)

// Dataset is an immutable, fully indexed dataset version. All maps and
// derived orders are built once by the Loader; nothing mutates afterwards.
type Dataset struct {
	version string
	dir     string

	attribute        map[Token]*Attribute
	calibratedSensor map[Token]*CalibratedSensor
	category         map[Token]*Category
	egoPose          map[Token]*EgoPose
	instance         map[Token]*Instance
	log              map[Token]*Log
	mapRecords       map[Token]*Map
	sample           map[Token]*Sample
	sampleAnnotation map[Token]*SampleAnnotation
	sampleData       map[Token]*SampleData
	scene            map[Token]*Scene
	sensor           map[Token]*Sensor
	visibility       map[VisibilityToken]*Visibility

	egoPosesChrono   []Token
	samplesChrono    []Token
	sampleDataChrono []Token
	scenesChrono     []Token
}

// Version returns the dataset version the Dataset was loaded from,
// e.g. "v1.0-mini".
func (d *Dataset) Version() string { return d.version }

// Dir returns the dataset root directory.
func (d *Dataset) Dir() string { return d.dir }

// dangling reports navigation across a reference that does not resolve.
// With the default loader this cannot happen; it indicates the dataset was
// loaded with Check disabled on corrupted input.
func dangling(kind string, tok fmt.Stringer) string {
	return fmt.Sprintf("nuscenes: dangling %s token %s; was the dataset loaded with Check disabled?", kind, tok)
}

// Attribute looks up an attribute record by token.
func (d *Dataset) Attribute(tok Token) (AttributeRef, bool) {
	rec, ok := d.attribute[tok]
	return AttributeRef{Attribute: rec, ds: d}, ok
}

// CalibratedSensor looks up a calibrated sensor record by token.
func (d *Dataset) CalibratedSensor(tok Token) (CalibratedSensorRef, bool) {
	rec, ok := d.calibratedSensor[tok]
	return CalibratedSensorRef{CalibratedSensor: rec, ds: d}, ok
}

// Category looks up a category record by token.
func (d *Dataset) Category(tok Token) (CategoryRef, bool) {
	rec, ok := d.category[tok]
	return CategoryRef{Category: rec, ds: d}, ok
}

// EgoPose looks up an ego pose record by token.
func (d *Dataset) EgoPose(tok Token) (EgoPoseRef, bool) {
	rec, ok := d.egoPose[tok]
	return EgoPoseRef{EgoPose: rec, ds: d}, ok
}

// Instance looks up an instance record by token.
func (d *Dataset) Instance(tok Token) (InstanceRef, bool) {
	rec, ok := d.instance[tok]
	return InstanceRef{Instance: rec, ds: d}, ok
}

// Log looks up a log record by token.
func (d *Dataset) Log(tok Token) (LogRef, bool) {
	rec, ok := d.log[tok]
	return LogRef{Log: rec, ds: d}, ok
}

// Map looks up a map record by token.
func (d *Dataset) Map(tok Token) (MapRef, bool) {
	rec, ok := d.mapRecords[tok]
	return MapRef{Map: rec, ds: d}, ok
}

// Sample looks up a sample record by token.
func (d *Dataset) Sample(tok Token) (SampleRef, bool) {
	rec, ok := d.sample[tok]
	return SampleRef{Sample: rec, ds: d}, ok
}

// SampleAnnotation looks up a sample annotation record by token.
func (d *Dataset) SampleAnnotation(tok Token) (SampleAnnotationRef, bool) {
	rec, ok := d.sampleAnnotation[tok]
	return SampleAnnotationRef{SampleAnnotation: rec, ds: d}, ok
}

// SampleData looks up a sample data record by token.
func (d *Dataset) SampleData(tok Token) (SampleDataRef, bool) {
	rec, ok := d.sampleData[tok]
	return SampleDataRef{SampleData: rec, ds: d}, ok
}

// Scene looks up a scene record by token.
func (d *Dataset) Scene(tok Token) (SceneRef, bool) {
	rec, ok := d.scene[tok]
	return SceneRef{Scene: rec, ds: d}, ok
}

// Sensor looks up a sensor record by token.
func (d *Dataset) Sensor(tok Token) (SensorRef, bool) {
	rec, ok := d.sensor[tok]
	return SensorRef{Sensor: rec, ds: d}, ok
}

// Visibility looks up a visibility record by its numeric token.
func (d *Dataset) Visibility(tok VisibilityToken) (VisibilityRef, bool) {
	rec, ok := d.visibility[tok]
	return VisibilityRef{Visibility: rec, ds: d}, ok
}

// Attributes returns handles to every attribute record, in map order.
func (d *Dataset) Attributes() []AttributeRef {
	out := make([]AttributeRef, 0, len(d.attribute))
	for _, rec := range d.attribute {
		out = append(out, AttributeRef{Attribute: rec, ds: d})
	}
	return out
}

// CalibratedSensors returns handles to every calibrated sensor record, in
// map order.
func (d *Dataset) CalibratedSensors() []CalibratedSensorRef {
	out := make([]CalibratedSensorRef, 0, len(d.calibratedSensor))
	for _, rec := range d.calibratedSensor {
		out = append(out, CalibratedSensorRef{CalibratedSensor: rec, ds: d})
	}
	return out
}

// Categories returns handles to every category record, in map order.
func (d *Dataset) Categories() []CategoryRef {
	out := make([]CategoryRef, 0, len(d.category))
	for _, rec := range d.category {
		out = append(out, CategoryRef{Category: rec, ds: d})
	}
	return out
}

// EgoPoses returns handles to every ego pose record, in map order.
func (d *Dataset) EgoPoses() []EgoPoseRef {
	out := make([]EgoPoseRef, 0, len(d.egoPose))
	for _, rec := range d.egoPose {
		out = append(out, EgoPoseRef{EgoPose: rec, ds: d})
	}
	return out
}

// Instances returns handles to every instance record, in map order.
func (d *Dataset) Instances() []InstanceRef {
	out := make([]InstanceRef, 0, len(d.instance))
	for _, rec := range d.instance {
		out = append(out, InstanceRef{Instance: rec, ds: d})
	}
	return out
}

// Logs returns handles to every log record, in map order.
func (d *Dataset) Logs() []LogRef {
	out := make([]LogRef, 0, len(d.log))
	for _, rec := range d.log {
		out = append(out, LogRef{Log: rec, ds: d})
	}
	return out
}

// Maps returns handles to every map record, in map order.
func (d *Dataset) Maps() []MapRef {
	out := make([]MapRef, 0, len(d.mapRecords))
	for _, rec := range d.mapRecords {
		out = append(out, MapRef{Map: rec, ds: d})
	}
	return out
}

// Samples returns handles to every sample record, in map order.
func (d *Dataset) Samples() []SampleRef {
	out := make([]SampleRef, 0, len(d.sample))
	for _, rec := range d.sample {
		out = append(out, SampleRef{Sample: rec, ds: d})
	}
	return out
}

// SampleAnnotations returns handles to every sample annotation record, in
// map order.
func (d *Dataset) SampleAnnotations() []SampleAnnotationRef {
	out := make([]SampleAnnotationRef, 0, len(d.sampleAnnotation))
	for _, rec := range d.sampleAnnotation {
		out = append(out, SampleAnnotationRef{SampleAnnotation: rec, ds: d})
	}
	return out
}

// SampleDatas returns handles to every sample data record, in map order.
func (d *Dataset) SampleDatas() []SampleDataRef {
	out := make([]SampleDataRef, 0, len(d.sampleData))
	for _, rec := range d.sampleData {
		out = append(out, SampleDataRef{SampleData: rec, ds: d})
	}
	return out
}

// Scenes returns handles to every scene record, in map order.
func (d *Dataset) Scenes() []SceneRef {
	out := make([]SceneRef, 0, len(d.scene))
	for _, rec := range d.scene {
		out = append(out, SceneRef{Scene: rec, ds: d})
	}
	return out
}

// Sensors returns handles to every sensor record, in map order.
func (d *Dataset) Sensors() []SensorRef {
	out := make([]SensorRef, 0, len(d.sensor))
	for _, rec := range d.sensor {
		out = append(out, SensorRef{Sensor: rec, ds: d})
	}
	return out
}

// Visibilities returns handles to every visibility record, in map order.
func (d *Dataset) Visibilities() []VisibilityRef {
	out := make([]VisibilityRef, 0, len(d.visibility))
	for _, rec := range d.visibility {
		out = append(out, VisibilityRef{Visibility: rec, ds: d})
	}
	return out
}

// EgoPosesChrono returns ego pose handles ordered by ascending timestamp.
func (d *Dataset) EgoPosesChrono() []EgoPoseRef {
	out := make([]EgoPoseRef, len(d.egoPosesChrono))
	for i, tok := range d.egoPosesChrono {
		out[i] = EgoPoseRef{EgoPose: d.egoPose[tok], ds: d}
	}
	return out
}

// SamplesChrono returns sample handles ordered by ascending timestamp.
func (d *Dataset) SamplesChrono() []SampleRef {
	out := make([]SampleRef, len(d.samplesChrono))
	for i, tok := range d.samplesChrono {
		out[i] = SampleRef{Sample: d.sample[tok], ds: d}
	}
	return out
}

// SampleDatasChrono returns sample data handles ordered by ascending
// timestamp.
func (d *Dataset) SampleDatasChrono() []SampleDataRef {
	out := make([]SampleDataRef, len(d.sampleDataChrono))
	for i, tok := range d.sampleDataChrono {
		out[i] = SampleDataRef{SampleData: d.sampleData[tok], ds: d}
	}
	return out
}

// ScenesChrono returns scene handles ordered by the timestamp of each
// scene's earliest sample.
func (d *Dataset) ScenesChrono() []SceneRef {
	out := make([]SceneRef, len(d.scenesChrono))
	for i, tok := range d.scenesChrono {
		out[i] = SceneRef{Scene: d.scene[tok], ds: d}
	}
	return out
}

func (d *Dataset) mustSample(tok Token) SampleRef {
	rec, ok := d.sample[tok]
	if !ok {
		panic(dangling("sample", tok))
	}
	return SampleRef{Sample: rec, ds: d}
}

func (d *Dataset) mustSampleAnnotation(tok Token) SampleAnnotationRef {
	rec, ok := d.sampleAnnotation[tok]
	if !ok {
		panic(dangling("sample annotation", tok))
	}
	return SampleAnnotationRef{SampleAnnotation: rec, ds: d}
}

func (d *Dataset) mustSampleData(tok Token) SampleDataRef {
	rec, ok := d.sampleData[tok]
	if !ok {
		panic(dangling("sample data", tok))
	}
	return SampleDataRef{SampleData: rec, ds: d}
}

// AttributeRef is a handle to an attribute record. Handles are small
// values; copy them freely.
type AttributeRef struct {
	*Attribute
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r AttributeRef) Dataset() *Dataset { return r.ds }

// CalibratedSensorRef is a handle to a calibrated sensor record.
type CalibratedSensorRef struct {
	*CalibratedSensor
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r CalibratedSensorRef) Dataset() *Dataset { return r.ds }

// Sensor navigates to the underlying sensor record.
func (r CalibratedSensorRef) Sensor() SensorRef {
	rec, ok := r.ds.sensor[r.SensorToken]
	if !ok {
		panic(dangling("sensor", r.SensorToken))
	}
	return SensorRef{Sensor: rec, ds: r.ds}
}

// CategoryRef is a handle to a category record.
type CategoryRef struct {
	*Category
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r CategoryRef) Dataset() *Dataset { return r.ds }

// EgoPoseRef is a handle to an ego pose record.
type EgoPoseRef struct {
	*EgoPose
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r EgoPoseRef) Dataset() *Dataset { return r.ds }

// InstanceRef is a handle to an instance record.
type InstanceRef struct {
	*Instance
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r InstanceRef) Dataset() *Dataset { return r.ds }

// Category navigates to the instance's category.
func (r InstanceRef) Category() CategoryRef {
	rec, ok := r.ds.category[r.CategoryToken]
	if !ok {
		panic(dangling("category", r.CategoryToken))
	}
	return CategoryRef{Category: rec, ds: r.ds}
}

// Annotations returns the instance's annotations in chain order, first to
// last.
func (r InstanceRef) Annotations() []SampleAnnotationRef {
	out := make([]SampleAnnotationRef, len(r.AnnotationTokens))
	for i, tok := range r.AnnotationTokens {
		out[i] = r.ds.mustSampleAnnotation(tok)
	}
	return out
}

// FirstAnnotation navigates to the head of the annotation chain.
func (r InstanceRef) FirstAnnotation() SampleAnnotationRef {
	return r.ds.mustSampleAnnotation(r.FirstAnnotationToken)
}

// LastAnnotation navigates to the tail of the annotation chain.
func (r InstanceRef) LastAnnotation() SampleAnnotationRef {
	return r.ds.mustSampleAnnotation(r.LastAnnotationToken)
}

// LogRef is a handle to a log record.
type LogRef struct {
	*Log
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r LogRef) Dataset() *Dataset { return r.ds }

// LogfilePath returns the absolute path of the log's capture file. The
// second return is false when the log carries none.
func (r LogRef) LogfilePath() (string, bool) {
	if r.Logfile == "" {
		return "", false
	}
	return filepath.Join(r.ds.dir, r.Logfile), true
}

// MapRef is a handle to a map record.
type MapRef struct {
	*Map
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r MapRef) Dataset() *Dataset { return r.ds }

// Logs returns the logs the map covers.
func (r MapRef) Logs() []LogRef {
	out := make([]LogRef, len(r.LogTokens))
	for i, tok := range r.LogTokens {
		rec, ok := r.ds.log[tok]
		if !ok {
			panic(dangling("log", tok))
		}
		out[i] = LogRef{Log: rec, ds: r.ds}
	}
	return out
}

// Path returns the absolute path of the map image.
func (r MapRef) Path() string {
	return filepath.Join(r.ds.dir, r.Filename)
}

// SampleRef is a handle to a sample record.
type SampleRef struct {
	*Sample
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r SampleRef) Dataset() *Dataset { return r.ds }

// Scene navigates to the sample's scene.
func (r SampleRef) Scene() SceneRef {
	rec, ok := r.ds.scene[r.SceneToken]
	if !ok {
		panic(dangling("scene", r.SceneToken))
	}
	return SceneRef{Scene: rec, ds: r.ds}
}

// Next returns the next sample in the scene chain, if any. The method
// shadows the embedded wire field of the same name; reach the raw token
// through r.Sample.Next.
func (r SampleRef) Next() (SampleRef, bool) {
	if !r.Sample.Next.Valid {
		return SampleRef{}, false
	}
	return r.ds.mustSample(r.Sample.Next.Token), true
}

// Prev returns the previous sample in the scene chain, if any.
func (r SampleRef) Prev() (SampleRef, bool) {
	if !r.Sample.Prev.Valid {
		return SampleRef{}, false
	}
	return r.ds.mustSample(r.Sample.Prev.Token), true
}

// Annotations returns the annotations grouped under this sample. The group
// order is not meaningful.
func (r SampleRef) Annotations() []SampleAnnotationRef {
	out := make([]SampleAnnotationRef, len(r.AnnotationTokens))
	for i, tok := range r.AnnotationTokens {
		out[i] = r.ds.mustSampleAnnotation(tok)
	}
	return out
}

// Data returns the sensor payloads grouped under this sample. The group
// order is not meaningful.
func (r SampleRef) Data() []SampleDataRef {
	out := make([]SampleDataRef, len(r.DataTokens))
	for i, tok := range r.DataTokens {
		out[i] = r.ds.mustSampleData(tok)
	}
	return out
}

// SampleAnnotationRef is a handle to a sample annotation record.
type SampleAnnotationRef struct {
	*SampleAnnotation
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r SampleAnnotationRef) Dataset() *Dataset { return r.ds }

// Sample navigates to the annotated sample.
func (r SampleAnnotationRef) Sample() SampleRef {
	return r.ds.mustSample(r.SampleToken)
}

// Instance navigates to the tracked object instance.
func (r SampleAnnotationRef) Instance() InstanceRef {
	rec, ok := r.ds.instance[r.InstanceToken]
	if !ok {
		panic(dangling("instance", r.InstanceToken))
	}
	return InstanceRef{Instance: rec, ds: r.ds}
}

// Attributes returns the annotation's attributes.
func (r SampleAnnotationRef) Attributes() []AttributeRef {
	out := make([]AttributeRef, len(r.AttributeTokens))
	for i, tok := range r.AttributeTokens {
		rec, ok := r.ds.attribute[tok]
		if !ok {
			panic(dangling("attribute", tok))
		}
		out[i] = AttributeRef{Attribute: rec, ds: r.ds}
	}
	return out
}

// Visibility returns the annotation's visibility bucket, if recorded.
func (r SampleAnnotationRef) Visibility() (VisibilityRef, bool) {
	if !r.VisibilityToken.Valid {
		return VisibilityRef{}, false
	}
	rec, ok := r.ds.visibility[r.VisibilityToken.Token]
	if !ok {
		panic(dangling("visibility", r.VisibilityToken.Token))
	}
	return VisibilityRef{Visibility: rec, ds: r.ds}, true
}

// Next returns the instance's next annotation, if any. The method shadows
// the embedded wire field of the same name; reach the raw token through
// r.SampleAnnotation.Next.
func (r SampleAnnotationRef) Next() (SampleAnnotationRef, bool) {
	if !r.SampleAnnotation.Next.Valid {
		return SampleAnnotationRef{}, false
	}
	return r.ds.mustSampleAnnotation(r.SampleAnnotation.Next.Token), true
}

// Prev returns the instance's previous annotation, if any.
func (r SampleAnnotationRef) Prev() (SampleAnnotationRef, bool) {
	if !r.SampleAnnotation.Prev.Valid {
		return SampleAnnotationRef{}, false
	}
	return r.ds.mustSampleAnnotation(r.SampleAnnotation.Prev.Token), true
}

// SampleDataRef is a handle to a sample data record.
type SampleDataRef struct {
	*SampleData
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r SampleDataRef) Dataset() *Dataset { return r.ds }

// Sample navigates to the owning sample.
func (r SampleDataRef) Sample() SampleRef {
	return r.ds.mustSample(r.SampleToken)
}

// EgoPose navigates to the vehicle pose at capture time.
func (r SampleDataRef) EgoPose() EgoPoseRef {
	rec, ok := r.ds.egoPose[r.EgoPoseToken]
	if !ok {
		panic(dangling("ego pose", r.EgoPoseToken))
	}
	return EgoPoseRef{EgoPose: rec, ds: r.ds}
}

// CalibratedSensor navigates to the capturing sensor's calibration.
func (r SampleDataRef) CalibratedSensor() CalibratedSensorRef {
	rec, ok := r.ds.calibratedSensor[r.CalibratedSensorToken]
	if !ok {
		panic(dangling("calibrated sensor", r.CalibratedSensorToken))
	}
	return CalibratedSensorRef{CalibratedSensor: rec, ds: r.ds}
}

// Next returns the sensor's next payload for the same sample stream, if
// any. The method shadows the embedded wire field of the same name; reach
// the raw token through r.SampleData.Next.
func (r SampleDataRef) Next() (SampleDataRef, bool) {
	if !r.SampleData.Next.Valid {
		return SampleDataRef{}, false
	}
	return r.ds.mustSampleData(r.SampleData.Next.Token), true
}

// Prev returns the sensor's previous payload, if any.
func (r SampleDataRef) Prev() (SampleDataRef, bool) {
	if !r.SampleData.Prev.Valid {
		return SampleDataRef{}, false
	}
	return r.ds.mustSampleData(r.SampleData.Prev.Token), true
}

// Path returns the absolute path of the payload file.
func (r SampleDataRef) Path() string {
	return filepath.Join(r.ds.dir, r.Filename)
}

// SceneRef is a handle to a scene record.
type SceneRef struct {
	*Scene
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r SceneRef) Dataset() *Dataset { return r.ds }

// Log navigates to the drive the scene was extracted from.
func (r SceneRef) Log() LogRef {
	rec, ok := r.ds.log[r.LogToken]
	if !ok {
		panic(dangling("log", r.LogToken))
	}
	return LogRef{Log: rec, ds: r.ds}
}

// Samples returns the scene's samples in chain order, first to last.
func (r SceneRef) Samples() []SampleRef {
	out := make([]SampleRef, len(r.SampleTokens))
	for i, tok := range r.SampleTokens {
		out[i] = r.ds.mustSample(tok)
	}
	return out
}

// FirstSample navigates to the head of the sample chain.
func (r SceneRef) FirstSample() SampleRef {
	return r.ds.mustSample(r.FirstSampleToken)
}

// LastSample navigates to the tail of the sample chain.
func (r SceneRef) LastSample() SampleRef {
	return r.ds.mustSample(r.LastSampleToken)
}

// SensorRef is a handle to a sensor record.
type SensorRef struct {
	*Sensor
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r SensorRef) Dataset() *Dataset { return r.ds }

// VisibilityRef is a handle to a visibility record.
type VisibilityRef struct {
	*Visibility
	ds *Dataset
}

// Dataset returns the owning dataset.
func (r VisibilityRef) Dataset() *Dataset { return r.ds }
