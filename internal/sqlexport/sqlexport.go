// Package sqlexport writes a loaded dataset into a relational SQLite
// database, so the metadata can be queried with plain SQL instead of the
// navigation API.
package sqlexport

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/nuscenes-go/internal/sqlexport/migrations"
	"github.com/banshee-data/nuscenes-go/nuscenes"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the export database at path and migrates it to
// the latest schema. Pass ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open export database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Export writes every record of the dataset in one transaction and
// returns the export run id.
func (db *DB) Export(d *nuscenes.Dataset) (runID string, err error) {
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin export transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	runID = uuid.New().String()
	if _, err = tx.Exec(
		"INSERT INTO export_run (id, version, dir) VALUES (?, ?, ?)",
		runID, d.Version(), d.Dir(),
	); err != nil {
		return "", fmt.Errorf("insert export run: %w", err)
	}

	steps := []func(*sql.Tx, *nuscenes.Dataset) error{
		exportAttributes,
		exportCategories,
		exportSensors,
		exportCalibratedSensors,
		exportEgoPoses,
		exportLogs,
		exportMaps,
		exportVisibilities,
		exportScenes,
		exportSamples,
		exportInstances,
		exportSampleAnnotations,
		exportSampleData,
	}
	for _, step := range steps {
		if err = step(tx, d); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit export transaction: %w", err)
	}
	return runID, nil
}

// jsonText encodes a value as JSON for a TEXT column.
func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func optToken(t nuscenes.OptionalToken) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Token.String(), Valid: true}
}

func exportAttributes(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare("INSERT INTO attribute (token, name, description) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range d.Attributes() {
		if _, err := stmt.Exec(a.Token.String(), a.Name, a.Description); err != nil {
			return fmt.Errorf("insert attribute %s: %w", a.Token, err)
		}
	}
	return nil
}

func exportCategories(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare("INSERT INTO category (token, name, description) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range d.Categories() {
		if _, err := stmt.Exec(c.Token.String(), c.Name, c.Description); err != nil {
			return fmt.Errorf("insert category %s: %w", c.Token, err)
		}
	}
	return nil
}

func exportSensors(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare("INSERT INTO sensor (token, channel, modality) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range d.Sensors() {
		if _, err := stmt.Exec(s.Token.String(), string(s.Channel), string(s.Modality)); err != nil {
			return fmt.Errorf("insert sensor %s: %w", s.Token, err)
		}
	}
	return nil
}

func exportCalibratedSensors(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO calibrated_sensor
		(token, sensor_token, rotation, translation, camera_intrinsic)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, cs := range d.CalibratedSensors() {
		rot, err := jsonText(cs.Rotation)
		if err != nil {
			return err
		}
		trans, err := jsonText(cs.Translation)
		if err != nil {
			return err
		}
		var intrinsic sql.NullString
		if cs.CameraIntrinsic.Valid {
			k, err := jsonText(cs.CameraIntrinsic.K)
			if err != nil {
				return err
			}
			intrinsic = sql.NullString{String: k, Valid: true}
		}
		if _, err := stmt.Exec(cs.Token.String(), cs.SensorToken.String(), rot, trans, intrinsic); err != nil {
			return fmt.Errorf("insert calibrated_sensor %s: %w", cs.Token, err)
		}
	}
	return nil
}

func exportEgoPoses(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO ego_pose
		(token, timestamp_us, rotation, translation) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ep := range d.EgoPoses() {
		rot, err := jsonText(ep.Rotation)
		if err != nil {
			return err
		}
		trans, err := jsonText(ep.Translation)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(ep.Token.String(), ep.Timestamp.UnixMicro(), rot, trans); err != nil {
			return fmt.Errorf("insert ego_pose %s: %w", ep.Token, err)
		}
	}
	return nil
}

func exportLogs(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO log
		(token, date_captured, location, vehicle, logfile) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range d.Logs() {
		var logfile sql.NullString
		if l.Logfile != "" {
			logfile = sql.NullString{String: l.Logfile, Valid: true}
		}
		if _, err := stmt.Exec(l.Token.String(), l.DateCaptured.Format("2006-01-02"), l.Location, l.Vehicle, logfile); err != nil {
			return fmt.Errorf("insert log %s: %w", l.Token, err)
		}
	}
	return nil
}

func exportMaps(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare("INSERT INTO map (token, filename, category) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	link, err := tx.Prepare("INSERT INTO map_log (map_token, log_token) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer link.Close()
	for _, m := range d.Maps() {
		if _, err := stmt.Exec(m.Token.String(), m.Filename, m.Category); err != nil {
			return fmt.Errorf("insert map %s: %w", m.Token, err)
		}
		for _, logTok := range m.LogTokens {
			if _, err := link.Exec(m.Token.String(), logTok.String()); err != nil {
				return fmt.Errorf("insert map_log %s -> %s: %w", m.Token, logTok, err)
			}
		}
	}
	return nil
}

func exportVisibilities(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare("INSERT INTO visibility (token, level, description) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, v := range d.Visibilities() {
		if _, err := stmt.Exec(uint32(v.Token), string(v.Level), v.Description); err != nil {
			return fmt.Errorf("insert visibility %s: %w", v.Token, err)
		}
	}
	return nil
}

func exportScenes(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO scene
		(token, name, description, log_token, nbr_samples, first_sample_token, last_sample_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sc := range d.Scenes() {
		if _, err := stmt.Exec(
			sc.Token.String(), sc.Name, sc.Description, sc.LogToken.String(),
			sc.NbrSamples, sc.FirstSampleToken.String(), sc.LastSampleToken.String(),
		); err != nil {
			return fmt.Errorf("insert scene %s: %w", sc.Token, err)
		}
	}
	return nil
}

func exportSamples(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO sample
		(token, scene_token, timestamp_us, prev_token, next_token) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range d.Samples() {
		if _, err := stmt.Exec(
			s.Token.String(), s.SceneToken.String(), s.Timestamp.UnixMicro(),
			optToken(s.Sample.Prev), optToken(s.Sample.Next),
		); err != nil {
			return fmt.Errorf("insert sample %s: %w", s.Token, err)
		}
	}
	return nil
}

func exportInstances(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO instance
		(token, category_token, nbr_annotations, first_annotation_token, last_annotation_token)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, inst := range d.Instances() {
		if _, err := stmt.Exec(
			inst.Token.String(), inst.CategoryToken.String(), inst.NbrAnnotations,
			inst.FirstAnnotationToken.String(), inst.LastAnnotationToken.String(),
		); err != nil {
			return fmt.Errorf("insert instance %s: %w", inst.Token, err)
		}
	}
	return nil
}

func exportSampleAnnotations(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO sample_annotation
		(token, sample_token, instance_token, visibility_token, translation, size, rotation,
		 num_lidar_pts, num_radar_pts, prev_token, next_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	link, err := tx.Prepare("INSERT INTO annotation_attribute (annotation_token, attribute_token) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer link.Close()
	for _, ann := range d.SampleAnnotations() {
		trans, err := jsonText(ann.Translation)
		if err != nil {
			return err
		}
		size, err := jsonText(ann.Size)
		if err != nil {
			return err
		}
		rot, err := jsonText(ann.Rotation)
		if err != nil {
			return err
		}
		var vis sql.NullInt64
		if ann.VisibilityToken.Valid {
			vis = sql.NullInt64{Int64: int64(ann.VisibilityToken.Token), Valid: true}
		}
		if _, err := stmt.Exec(
			ann.Token.String(), ann.SampleToken.String(), ann.InstanceToken.String(), vis,
			trans, size, rot, ann.NumLidarPts, ann.NumRadarPts,
			optToken(ann.SampleAnnotation.Prev), optToken(ann.SampleAnnotation.Next),
		); err != nil {
			return fmt.Errorf("insert sample_annotation %s: %w", ann.Token, err)
		}
		for _, attrTok := range ann.AttributeTokens {
			if _, err := link.Exec(ann.Token.String(), attrTok.String()); err != nil {
				return fmt.Errorf("insert annotation_attribute %s -> %s: %w", ann.Token, attrTok, err)
			}
		}
	}
	return nil
}

func exportSampleData(tx *sql.Tx, d *nuscenes.Dataset) error {
	stmt, err := tx.Prepare(`INSERT INTO sample_data
		(token, sample_token, ego_pose_token, calibrated_sensor_token, filename, fileformat,
		 is_key_frame, timestamp_us, prev_token, next_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sd := range d.SampleDatas() {
		if _, err := stmt.Exec(
			sd.Token.String(), sd.SampleToken.String(), sd.EgoPoseToken.String(),
			sd.CalibratedSensorToken.String(), sd.Filename, string(sd.Fileformat),
			sd.IsKeyFrame, sd.Timestamp.UnixMicro(),
			optToken(sd.SampleData.Prev), optToken(sd.SampleData.Next),
		); err != nil {
			return fmt.Errorf("insert sample_data %s: %w", sd.Token, err)
		}
	}
	return nil
}
