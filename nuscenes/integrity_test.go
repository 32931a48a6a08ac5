package nuscenes

import (
	"errors"
	"strings"
	"testing"
)

func rawFromFixture(f *fixture) *rawTables {
	raw := &rawTables{
		attribute:        map[Token]Attribute{},
		calibratedSensor: map[Token]CalibratedSensor{},
		category:         map[Token]Category{},
		egoPose:          map[Token]EgoPose{},
		instance:         map[Token]Instance{},
		log:              map[Token]Log{},
		mapRecords:       map[Token]Map{},
		sample:           map[Token]Sample{},
		sampleAnnotation: map[Token]SampleAnnotation{},
		sampleData:       map[Token]SampleData{},
		scene:            map[Token]Scene{},
		sensor:           map[Token]Sensor{},
		visibility:       map[VisibilityToken]Visibility{},
	}
	for _, r := range f.attributes {
		raw.attribute[r.Token] = r
	}
	for _, r := range f.calibratedSensors {
		raw.calibratedSensor[r.Token] = r
	}
	for _, r := range f.categories {
		raw.category[r.Token] = r
	}
	for _, r := range f.egoPoses {
		raw.egoPose[r.Token] = r
	}
	for _, r := range f.instances {
		raw.instance[r.Token] = r
	}
	for _, r := range f.logs {
		raw.log[r.Token] = r
	}
	for _, r := range f.maps {
		raw.mapRecords[r.Token] = r
	}
	for _, r := range f.samples {
		raw.sample[r.Token] = r
	}
	for _, r := range f.sampleAnnotations {
		raw.sampleAnnotation[r.Token] = r
	}
	for _, r := range f.sampleData {
		raw.sampleData[r.Token] = r
	}
	for _, r := range f.scenes {
		raw.scene[r.Token] = r
	}
	for _, r := range f.sensors {
		raw.sensor[r.Token] = r
	}
	for _, r := range f.visibilities {
		raw.visibility[r.Token] = r
	}
	return raw
}

func TestCheckIntegrityClean(t *testing.T) {
	if err := checkIntegrity(rawFromFixture(newFixture())); err != nil {
		t.Errorf("checkIntegrity = %v, want nil", err)
	}
}

func TestCheckIntegrityDanglingTokens(t *testing.T) {
	missing := tk(0xff)
	cases := []struct {
		name   string
		mutate func(f *fixture)
		want   string
	}{
		{
			name:   "map log",
			mutate: func(f *fixture) { f.maps[0].LogTokens = []Token{missing} },
			want:   "does not refer to any log",
		},
		{
			name:   "instance category",
			mutate: func(f *fixture) { f.instances[0].CategoryToken = missing },
			want:   "does not refer to any category",
		},
		{
			name:   "instance first annotation",
			mutate: func(f *fixture) { f.instances[0].FirstAnnotationToken = missing },
			want:   "does not refer to any sample annotation",
		},
		{
			name:   "scene log",
			mutate: func(f *fixture) { f.scenes[0].LogToken = missing },
			want:   "does not refer to any log",
		},
		{
			name:   "scene first sample",
			mutate: func(f *fixture) { f.scenes[0].FirstSampleToken = missing },
			want:   "does not refer to any sample",
		},
		{
			name:   "sample scene",
			mutate: func(f *fixture) { f.samples[0].SceneToken = missing },
			want:   "does not refer to any scene",
		},
		{
			name:   "annotation sample",
			mutate: func(f *fixture) { f.sampleAnnotations[0].SampleToken = missing },
			want:   "does not refer to any sample",
		},
		{
			name:   "annotation instance",
			mutate: func(f *fixture) { f.sampleAnnotations[0].InstanceToken = missing },
			want:   "does not refer to any instance",
		},
		{
			name:   "annotation attribute",
			mutate: func(f *fixture) { f.sampleAnnotations[0].AttributeTokens = []Token{missing} },
			want:   "does not refer to any attribute",
		},
		{
			name: "annotation visibility",
			mutate: func(f *fixture) {
				f.sampleAnnotations[0].VisibilityToken = OptionalVisibilityToken{Token: 9, Valid: true}
			},
			want: "does not refer to any visibility",
		},
		{
			name:   "sample data ego pose",
			mutate: func(f *fixture) { f.sampleData[0].EgoPoseToken = missing },
			want:   "does not refer to any ego pose",
		},
		{
			name:   "sample data calibrated sensor",
			mutate: func(f *fixture) { f.sampleData[0].CalibratedSensorToken = missing },
			want:   "does not refer to any calibrated sensor",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.mutate(f)
			err := checkIntegrity(rawFromFixture(f))
			var corrupted *CorruptedError
			if !errors.As(err, &corrupted) {
				t.Fatalf("checkIntegrity = %v, want *CorruptedError", err)
			}
			if !strings.Contains(corrupted.Reason, tc.want) {
				t.Errorf("Reason = %q, want substring %q", corrupted.Reason, tc.want)
			}
		})
	}
}

func TestChainSymmetryDetectsOneSidedLink(t *testing.T) {
	f := newFixture()
	// D1 declares next = D2 but D2 forgets prev = D1.
	f.sampleData[1].Prev = OptionalToken{}

	err := checkIntegrity(rawFromFixture(f))
	var corrupted *CorruptedError
	if !errors.As(err, &corrupted) {
		t.Fatalf("checkIntegrity = %v, want *CorruptedError", err)
	}
	if want := "sample_data chain is asymmetric"; !strings.Contains(corrupted.Reason, want) {
		t.Errorf("Reason = %q, want substring %q", corrupted.Reason, want)
	}
}

func TestChainSymmetryDetectsDivergentLink(t *testing.T) {
	f := newFixture()
	// A2 claims its predecessor is itself rather than A1.
	f.sampleAnnotations[1].Prev = Some(tokA2)

	err := checkIntegrity(rawFromFixture(f))
	var corrupted *CorruptedError
	if !errors.As(err, &corrupted) {
		t.Fatalf("checkIntegrity = %v, want *CorruptedError", err)
	}
	if want := "sample_annotation chain is asymmetric"; !strings.Contains(corrupted.Reason, want) {
		t.Errorf("Reason = %q, want substring %q", corrupted.Reason, want)
	}
}

func TestChainEdges(t *testing.T) {
	table := map[Token]Sample{
		tokS1: {Token: tokS1, Next: Some(tokS2)},
		tokS2: {Token: tokS2, Prev: Some(tokS1)},
	}
	prev, next := chainEdges(table)
	if len(prev) != 1 || len(next) != 1 {
		t.Fatalf("edge counts = %d prev, %d next, want 1 and 1", len(prev), len(next))
	}
	want := chainEdge{from: tokS1, to: tokS2}
	if prev[0] != want {
		t.Errorf("prev edge = %v, want %v", prev[0], want)
	}
	if next[0] != want {
		t.Errorf("next edge = %v, want %v", next[0], want)
	}
}

func TestCheckChainSymmetryEmpty(t *testing.T) {
	if err := checkChainSymmetry("sample", nil, nil); err != nil {
		t.Errorf("checkChainSymmetry = %v, want nil", err)
	}
}
