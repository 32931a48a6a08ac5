package nuscenes

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Loader loads a dataset directory. Check controls whether referential and
// chain-symmetry integrity are verified before indexing. DefaultLoader
// enables it, because hand-authored and partially-copied datasets are
// common; disable it only for known-good data where load time matters.
// With Check off, dangling cross-references survive into the Dataset and
// navigating across one panics (see Dataset).
type Loader struct {
	Check bool
}

// DefaultLoader verifies integrity before indexing.
var DefaultLoader = Loader{Check: true}

// Load reads <dir>/<version>/*.json with DefaultLoader settings.
func Load(version, dir string) (*Dataset, error) {
	return DefaultLoader.Load(version, dir)
}

// rawTables holds the freshly parsed per-file maps before indexing.
type rawTables struct {
	attribute        map[Token]Attribute
	calibratedSensor map[Token]CalibratedSensor
	category         map[Token]Category
	egoPose          map[Token]EgoPose
	instance         map[Token]Instance
	log              map[Token]Log
	mapRecords       map[Token]Map
	sample           map[Token]Sample
	sampleAnnotation map[Token]SampleAnnotation
	sampleData       map[Token]SampleData
	scene            map[Token]Scene
	sensor           map[Token]Sensor
	visibility       map[VisibilityToken]Visibility
}

// Load reads the 13 metadata tables of <dir>/<version>, verifies them when
// Check is set, and builds the immutable Dataset. The table files are
// independent, so they are read and decoded concurrently; the first
// failure aborts the whole load.
func (l Loader) Load(version, dir string) (*Dataset, error) {
	metaDir := filepath.Join(dir, version)

	var raw rawTables
	var g errgroup.Group
	g.Go(func() error { return loadTable(&raw.attribute, filepath.Join(metaDir, "attribute.json")) })
	g.Go(func() error {
		return loadTable(&raw.calibratedSensor, filepath.Join(metaDir, "calibrated_sensor.json"))
	})
	g.Go(func() error { return loadTable(&raw.category, filepath.Join(metaDir, "category.json")) })
	g.Go(func() error { return loadTable(&raw.egoPose, filepath.Join(metaDir, "ego_pose.json")) })
	g.Go(func() error { return loadTable(&raw.instance, filepath.Join(metaDir, "instance.json")) })
	g.Go(func() error { return loadTable(&raw.log, filepath.Join(metaDir, "log.json")) })
	g.Go(func() error { return loadTable(&raw.mapRecords, filepath.Join(metaDir, "map.json")) })
	g.Go(func() error { return loadTable(&raw.sample, filepath.Join(metaDir, "sample.json")) })
	g.Go(func() error {
		return loadTable(&raw.sampleAnnotation, filepath.Join(metaDir, "sample_annotation.json"))
	})
	g.Go(func() error { return loadTable(&raw.sampleData, filepath.Join(metaDir, "sample_data.json")) })
	g.Go(func() error { return loadTable(&raw.scene, filepath.Join(metaDir, "scene.json")) })
	g.Go(func() error { return loadTable(&raw.sensor, filepath.Join(metaDir, "sensor.json")) })
	g.Go(func() error {
		// Visibility keys by its numeric token, not a Token.
		var items []Visibility
		if err := loadJSON(filepath.Join(metaDir, "visibility.json"), &items); err != nil {
			return err
		}
		m := make(map[VisibilityToken]Visibility, len(items))
		for _, v := range items {
			m[v.Token] = v
		}
		raw.visibility = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.Check {
		if err := checkIntegrity(&raw); err != nil {
			return nil, err
		}
	}

	return buildDataset(version, dir, &raw)
}

// record is any metadata type keyed by a Token.
type record interface {
	recordToken() Token
}

// loadTable decodes one JSON array file into a token-keyed map. Each
// goroutine of the load writes a distinct rawTables field, so the *dst
// stores never race.
func loadTable[T record](dst *map[Token]T, path string) error {
	var items []T
	if err := loadJSON(path, &items); err != nil {
		return err
	}
	m := make(map[Token]T, len(items))
	for _, item := range items {
		m[item.recordToken()] = item
	}
	*dst = m
	return nil
}

func loadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}
