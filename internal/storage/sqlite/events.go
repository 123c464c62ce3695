// Package sqlite persists flight events and the paired flight entries
// derived from them. All writes funnel through a single serialized worker
// so producers never block on the database.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/queue"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Statement is one pre-built SQL statement waiting for the writer.
type Statement struct {
	SQL  string
	Args []interface{}
}

// EventsStorage is the SQLite-backed logbook store.
type EventsStorage struct {
	db     *sql.DB
	logger *logger.Logger

	pending *queue.Queue[Statement]
	running atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewEventsStorage opens (and if needed initializes) the logbook database.
func NewEventsStorage(dbPath string, log *logger.Logger) (*EventsStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &EventsStorage{
		db:      db,
		logger:  storageLogger,
		pending: queue.New[Statement](),
		done:    make(chan struct{}),
	}, nil
}

// initDatabase initializes the database schema.
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS logbook_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			address TEXT NOT NULL,
			address_type INTEGER NOT NULL,
			aircraft_type INTEGER NOT NULL DEFAULT 0,
			event TEXT NOT NULL CHECK (event IN ('T', 'L')),
			lat REAL,
			lon REAL,
			location_icao TEXT,
			flight_time INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logbook_events table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS logbook_events_addr_ts
		ON logbook_events(address, address_type, ts)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logbook_events index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS logbook_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			address_type INTEGER NOT NULL,
			aircraft_type INTEGER NOT NULL DEFAULT 0,
			takeoff_ts INTEGER,
			takeoff_lat REAL,
			takeoff_lon REAL,
			takeoff_icao TEXT,
			landing_ts INTEGER,
			landing_lat REAL,
			landing_lon REAL,
			landing_icao TEXT,
			flight_time INTEGER NOT NULL DEFAULT 0,
			flown_distance INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logbook_entries table: %w", err)
	}

	// Every landing pairs itself with the latest preceding takeoff of the
	// same aircraft. A landing with no takeoff on record produces no entry.
	_, err = db.Exec(`
		CREATE TRIGGER IF NOT EXISTS logbook_pair_landing
		AFTER INSERT ON logbook_events WHEN NEW.event = 'L'
		BEGIN
			INSERT INTO logbook_entries (
				address, address_type, aircraft_type,
				takeoff_ts, takeoff_lat, takeoff_lon, takeoff_icao,
				landing_ts, landing_lat, landing_lon, landing_icao,
				flight_time)
			SELECT NEW.address, NEW.address_type, NEW.aircraft_type,
				t.ts, t.lat, t.lon, t.location_icao,
				NEW.ts, NEW.lat, NEW.lon, NEW.location_icao,
				NEW.flight_time
			FROM (
				SELECT ts, lat, lon, location_icao FROM logbook_events
				WHERE address = NEW.address
					AND address_type = NEW.address_type
					AND event = 'T' AND ts <= NEW.ts
				ORDER BY ts DESC LIMIT 1
			) AS t;
		END
	`)
	if err != nil {
		return fmt.Errorf("failed to create pairing trigger: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *EventsStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Enqueue hands a statement to the serialized writer. Never blocks.
func (s *EventsStorage) Enqueue(stmt Statement) {
	s.pending.Push(stmt)
}

// QueueLen returns the number of statements waiting to be executed.
func (s *EventsStorage) QueueLen() int {
	return s.pending.Len()
}

// Start launches the statement writer goroutine.
func (s *EventsStorage) Start() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Refused to start sqlite writer: already running")
		return
	}
	go s.run()
}

// Stop drains the remaining statements and joins the writer goroutine.
func (s *EventsStorage) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.once.Do(func() { <-s.done })
}

func (s *EventsStorage) run() {
	defer close(s.done)

	for {
		stmt, ok := s.pending.Pop()
		if !ok {
			if !s.running.Load() {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if _, err := s.db.Exec(stmt.SQL, stmt.Args...); err != nil {
			s.logger.Error("Failed to execute statement",
				logger.String("sql", stmt.SQL),
				logger.Error(err))
		}
	}
}

// InsertEventStmt builds the insert statement for a flight event.
func InsertEventStmt(ev FlightEvent) Statement {
	return Statement{
		SQL: `INSERT INTO logbook_events
			(ts, address, address_type, aircraft_type, event, lat, lon, location_icao, flight_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []interface{}{
			ev.Ts, ev.Address, int(ev.AddressType), ev.AircraftType,
			string(ev.Event), ev.Lat, ev.Lon, nullableString(ev.Location), ev.FlightTime,
		},
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertEvent writes a flight event synchronously, bypassing the queue.
// Used by the background jobs which already run off the hot path.
func (s *EventsStorage) InsertEvent(ev FlightEvent) error {
	stmt := InsertEventStmt(ev)
	if _, err := s.db.Exec(stmt.SQL, stmt.Args...); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListRecentTakeoffs returns takeoff events with ts >= since.
func (s *EventsStorage) ListRecentTakeoffs(since int64) ([]FlightEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, address, address_type, aircraft_type, event, lat, lon, location_icao, flight_time
		FROM logbook_events
		WHERE event = 'T' AND ts >= ?
		ORDER BY ts`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query takeoffs: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// UpdateTakeoff rewrites the time and location of a takeoff event after
// refinement against the recorded track.
func (s *EventsStorage) UpdateTakeoff(id int64, ts int64, lat, lon float64, icao string) error {
	_, err := s.db.Exec(`
		UPDATE logbook_events SET ts = ?, lat = ?, lon = ?, location_icao = ?
		WHERE id = ?`, ts, lat, lon, nullableString(icao), id)
	if err != nil {
		return fmt.Errorf("failed to update takeoff: %w", err)
	}
	return nil
}

// FindMostRecentTakeoff returns the latest takeoff event recorded for an
// aircraft, or nil when none exists.
func (s *EventsStorage) FindMostRecentTakeoff(addrType ogn.AddressType, addr string) (*FlightEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, address, address_type, aircraft_type, event, lat, lon, location_icao, flight_time
		FROM logbook_events
		WHERE address = ? AND address_type = ? AND event = 'T'
		ORDER BY ts DESC LIMIT 1`, addr, int(addrType))
	if err != nil {
		return nil, fmt.Errorf("failed to query takeoff: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// ListRecentEvents returns the latest events, newest first.
func (s *EventsStorage) ListRecentEvents(limit int) ([]FlightEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, address, address_type, aircraft_type, event, lat, lon, location_icao, flight_time
		FROM logbook_events
		ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListUncomputedFlights returns flights landed at or after since that are
// still missing a flown distance, oldest first.
func (s *EventsStorage) ListUncomputedFlights(since int64, limit int) ([]FlightEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, address, address_type, aircraft_type,
			takeoff_ts, takeoff_lat, takeoff_lon, takeoff_icao,
			landing_ts, landing_lat, landing_lon, landing_icao,
			flight_time, flown_distance
		FROM logbook_entries
		WHERE flown_distance IS NULL AND takeoff_ts IS NOT NULL
			AND landing_ts IS NOT NULL AND landing_ts >= ?
		ORDER BY id LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SetFlownDistance records the computed track length [km] for a flight.
func (s *EventsStorage) SetFlownDistance(id int64, km int64) error {
	_, err := s.db.Exec(`UPDATE logbook_entries SET flown_distance = ? WHERE id = ?`, km, id)
	if err != nil {
		return fmt.Errorf("failed to set flown distance: %w", err)
	}
	return nil
}

// ListRecentFlights returns the latest completed flights, newest first.
func (s *EventsStorage) ListRecentFlights(limit int) ([]FlightEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, address, address_type, aircraft_type,
			takeoff_ts, takeoff_lat, takeoff_lon, takeoff_icao,
			landing_ts, landing_lat, landing_lon, landing_icao,
			flight_time, flown_distance
		FROM logbook_entries
		ORDER BY landing_ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEvents(rows *sql.Rows) ([]FlightEvent, error) {
	var events []FlightEvent
	for rows.Next() {
		var ev FlightEvent
		var addrType int
		var lat, lon sql.NullFloat64
		var icao sql.NullString
		var kind string
		if err := rows.Scan(&ev.ID, &ev.Ts, &ev.Address, &addrType, &ev.AircraftType,
			&kind, &lat, &lon, &icao, &ev.FlightTime); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.AddressType = ogn.AddressType(addrType)
		ev.Event = EventKind(kind)
		ev.Lat = lat.Float64
		ev.Lon = lon.Float64
		ev.Location = icao.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]FlightEntry, error) {
	var entries []FlightEntry
	for rows.Next() {
		var e FlightEntry
		var addrType int
		var tTs, lTs, dist sql.NullInt64
		var tLat, tLon, lLat, lLon sql.NullFloat64
		var tIcao, lIcao sql.NullString
		if err := rows.Scan(&e.ID, &e.Address, &addrType, &e.AircraftType,
			&tTs, &tLat, &tLon, &tIcao,
			&lTs, &lLat, &lLon, &lIcao,
			&e.FlightTime, &dist); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.AddressType = ogn.AddressType(addrType)
		e.TakeoffTs = nullInt(tTs)
		e.TakeoffLat = nullFloat(tLat)
		e.TakeoffLon = nullFloat(tLon)
		e.TakeoffIcao = nullStr(tIcao)
		e.LandingTs = nullInt(lTs)
		e.LandingLat = nullFloat(lLat)
		e.LandingLon = nullFloat(lLon)
		e.LandingIcao = nullStr(lIcao)
		e.FlownDistKm = nullInt(dist)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
