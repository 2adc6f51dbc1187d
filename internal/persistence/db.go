// Package persistence provides SQLite-based storage of simulation runs:
// per-step statistics as they happen, plus a full city snapshot at the end
// of a run.
package persistence

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/cityblocks/internal/engine"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS step_stats (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		buildings INTEGER NOT NULL,
		standing_buildings INTEGER NOT NULL,
		units INTEGER NOT NULL,
		occupied_units INTEGER NOT NULL,
		vacant_units INTEGER NOT NULL,
		households INTEGER NOT NULL,
		housed INTEGER NOT NULL,
		unhoused INTEGER NOT NULL,
		owners INTEGER NOT NULL,
		constructed INTEGER NOT NULL,
		demolished INTEGER NOT NULL,
		moved_in INTEGER NOT NULL,
		moved_out INTEGER NOT NULL,
		price_per_area REAL NOT NULL,
		unmet_fraction REAL NOT NULL,
		ceiling REAL NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS parcels (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		group_id INTEGER NOT NULL,
		capacity REAL NOT NULL,
		zoning INTEGER NOT NULL,
		area_built REAL NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS buildings (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		parcel_id INTEGER NOT NULL,
		footprint REAL NOT NULL,
		vintage_zoning INTEGER NOT NULL,
		floors INTEGER NOT NULL,
		built INTEGER NOT NULL,
		demolished INTEGER,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS units (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		building_id INTEGER NOT NULL,
		size REAL NOT NULL,
		value REAL NOT NULL,
		occupant INTEGER NOT NULL,
		owner INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS households (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		arrived INTEGER NOT NULL,
		housed INTEGER NOT NULL,
		owns INTEGER NOT NULL,
		budget REAL NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_step_stats_run ON step_stats(run_id);
	CREATE INDEX IF NOT EXISTS idx_buildings_parcel ON buildings(run_id, parcel_id);
	CREATE INDEX IF NOT EXISTS idx_units_building ON units(run_id, building_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and returns its identifier.
func (db *DB) BeginRun(seed int64) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec("INSERT INTO runs (id, seed) VALUES (?, ?)", id, seed)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// SaveStepStats appends one step's statistics to the run.
func (db *DB) SaveStepStats(runID string, st engine.SimStats) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO step_stats
		(run_id, step, buildings, standing_buildings, units, occupied_units,
		 vacant_units, households, housed, unhoused, owners, constructed,
		 demolished, moved_in, moved_out, price_per_area, unmet_fraction, ceiling)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, st.Step, st.Buildings, st.StandingBuildings, st.Units,
		st.OccupiedUnits, st.VacantUnits, st.Households, st.Housed,
		st.Unhoused, st.Owners, st.Constructed, st.Demolished,
		st.MovedIn, st.MovedOut, st.PricePerArea, st.UnmetFraction, st.Ceiling,
	)
	if err != nil {
		return fmt.Errorf("save step %d stats: %w", st.Step, err)
	}
	return nil
}

// SaveParcels writes the run's parcels (full replace).
func (db *DB) SaveParcels(runID string, parcels []engine.ParcelSnapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM parcels WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO parcels
		(run_id, id, group_id, capacity, zoning, area_built)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range parcels {
		if _, err := stmt.Exec(runID, p.ID, p.Group, p.Capacity, p.Zoning, p.AreaBuilt); err != nil {
			return fmt.Errorf("insert parcel %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// SaveBuildings writes the run's buildings, demolished ones included.
func (db *DB) SaveBuildings(runID string, buildings []engine.BuildingSnapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM buildings WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO buildings
		(run_id, id, parcel_id, footprint, vintage_zoning, floors, built, demolished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range buildings {
		if _, err := stmt.Exec(runID, b.ID, b.Parcel, b.Footprint,
			b.VintageZoning, b.Floors, b.Built, b.Demolished); err != nil {
			return fmt.Errorf("insert building %d: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// SaveUnits writes the run's living units.
func (db *DB) SaveUnits(runID string, units []engine.UnitSnapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM units WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO units
		(run_id, id, building_id, size, value, occupant, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range units {
		if _, err := stmt.Exec(runID, u.ID, u.Building, u.Size,
			u.Value, u.Occupant, u.Owner); err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// SaveHouseholds writes the run's households.
func (db *DB) SaveHouseholds(runID string, households []engine.HouseholdSnapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM households WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO households
		(run_id, id, arrived, housed, owns, budget)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range households {
		owns := 0
		if h.Owns {
			owns = 1
		}
		if _, err := stmt.Exec(runID, h.ID, h.Arrived, h.Housed, owns, h.Budget); err != nil {
			return fmt.Errorf("insert household %d: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair for the run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value for the run.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value,
		"SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// SaveCityState performs a full save of the simulation's current state.
func (db *DB) SaveCityState(runID string, sim *engine.Simulation) error {
	st := sim.StatsSnapshot()
	slog.Info("saving city state",
		"run", runID,
		"step", st.Step,
		"buildings", st.Buildings,
		"households", st.Households,
	)

	if err := db.SaveParcels(runID, sim.ParcelSnapshots()); err != nil {
		return fmt.Errorf("save parcels: %w", err)
	}
	if err := db.SaveBuildings(runID, sim.BuildingSnapshots()); err != nil {
		return fmt.Errorf("save buildings: %w", err)
	}
	if err := db.SaveUnits(runID, sim.UnitSnapshots()); err != nil {
		return fmt.Errorf("save units: %w", err)
	}
	if err := db.SaveHouseholds(runID, sim.HouseholdSnapshots()); err != nil {
		return fmt.Errorf("save households: %w", err)
	}
	if err := db.SaveMeta(runID, "last_step", fmt.Sprintf("%d", st.Step)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("city state saved", "run", runID)
	return nil
}

// StatsHistory returns the run's per-step statistics in step order.
func (db *DB) StatsHistory(runID string) ([]engine.SimStats, error) {
	rows, err := db.conn.Queryx(`SELECT step, buildings, standing_buildings,
		units, occupied_units, vacant_units, households, housed, unhoused,
		owners, constructed, demolished, moved_in, moved_out,
		price_per_area, unmet_fraction, ceiling
		FROM step_stats WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.SimStats
	for rows.Next() {
		var st engine.SimStats
		if err := rows.Scan(&st.Step, &st.Buildings, &st.StandingBuildings,
			&st.Units, &st.OccupiedUnits, &st.VacantUnits, &st.Households,
			&st.Housed, &st.Unhoused, &st.Owners, &st.Constructed,
			&st.Demolished, &st.MovedIn, &st.MovedOut,
			&st.PricePerArea, &st.UnmetFraction, &st.Ceiling); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
