package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/models"
)

// SQLiteStore implements the Store interface using SQLite with the
// go-sqlite3 driver.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Ensure SQLiteStore satisfies the Store interface at compile time.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// PRAGMAs for WAL mode, incremental auto-vacuum, foreign keys, and a busy
// timeout, then creates the tracked_flights table and its indexes if they do
// not already exist.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Limit to a single connection so WAL mode works correctly for an
	// embedded database and we avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.migrateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("SQLite flight store initialised", zap.String("path", dbPath))
	return s, nil
}

// applyPragmas sets the SQLite PRAGMAs required for correct operation.
func (s *SQLiteStore) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA auto_vacuum=INCREMENTAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// createSchema creates the tracked_flights table and all supporting indexes.
func (s *SQLiteStore) createSchema() error {
	const createTable = `
CREATE TABLE IF NOT EXISTS tracked_flights (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    flight_number       TEXT NOT NULL,
    state               TEXT NOT NULL DEFAULT 'active',
    marker              TEXT NOT NULL DEFAULT '',
    alert_id            TEXT NOT NULL DEFAULT '',
    reminders_enabled   INTEGER NOT NULL DEFAULT 1,
    international       INTEGER NOT NULL DEFAULT 0,
    origin_code         TEXT NOT NULL DEFAULT '',
    origin_name         TEXT NOT NULL DEFAULT '',
    origin_terminal     TEXT NOT NULL DEFAULT '',
    origin_lat          REAL NOT NULL DEFAULT 0,
    origin_lon          REAL NOT NULL DEFAULT 0,
    dest_code           TEXT NOT NULL DEFAULT '',
    dest_name           TEXT NOT NULL DEFAULT '',
    dest_terminal       TEXT NOT NULL DEFAULT '',
    dest_lat            REAL NOT NULL DEFAULT 0,
    dest_lon            REAL NOT NULL DEFAULT 0,
    scheduled_departure TEXT NOT NULL,
    scheduled_arrival   TEXT NOT NULL,
    estimated_arrival   TEXT,
    departed_at         TEXT,
    landed_at           TEXT,
    canceled            INTEGER NOT NULL DEFAULT 0,
    diverted            INTEGER NOT NULL DEFAULT 0,
    user_lat            REAL,
    user_lon            REAL,
    version             INTEGER NOT NULL DEFAULT 1,
    lock_owner          TEXT NOT NULL DEFAULT '',
    lock_expires        TEXT,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_flights_state ON tracked_flights (state);`,
		`CREATE INDEX IF NOT EXISTS idx_flights_user ON tracked_flights (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_flights_alert ON tracked_flights (alert_id, state);`,
		`CREATE INDEX IF NOT EXISTS idx_flights_reminders ON tracked_flights (state, reminders_enabled, marker);`,
		`CREATE INDEX IF NOT EXISTS idx_flights_arrival ON tracked_flights (scheduled_arrival);`,
	}

	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// migrateSchema applies incremental schema migrations for existing databases.
func (s *SQLiteStore) migrateSchema() error {
	// Check whether the advisory lock columns already exist.
	rows, err := s.db.Query("PRAGMA table_info(tracked_flights)")
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	hasLockOwner := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		if name == "lock_owner" {
			hasLockOwner = true
			break
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating table info: %w", err)
	}

	if !hasLockOwner {
		if _, err := s.db.Exec("ALTER TABLE tracked_flights ADD COLUMN lock_owner TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("adding lock_owner column: %w", err)
		}
		if _, err := s.db.Exec("ALTER TABLE tracked_flights ADD COLUMN lock_expires TEXT"); err != nil {
			return fmt.Errorf("adding lock_expires column: %w", err)
		}
		s.logger.Info("migrated schema: added advisory lock columns")
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// InsertFlight inserts a new tracked flight record. Zero-valued lifecycle
// fields are given their initial values: state active, version 1, and
// creation timestamps of now.
func (s *SQLiteStore) InsertFlight(f *models.TrackedFlight) error {
	if f.State == "" {
		f.State = models.StateActive
	}
	if f.Version == 0 {
		f.Version = 1
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}

	var userLat, userLon sql.NullFloat64
	if f.UserLocation != nil {
		userLat = sql.NullFloat64{Float64: f.UserLocation.Latitude, Valid: true}
		userLon = sql.NullFloat64{Float64: f.UserLocation.Longitude, Valid: true}
	}

	const query = `
INSERT INTO tracked_flights (
    id, user_id, flight_number, state, marker, alert_id,
    reminders_enabled, international,
    origin_code, origin_name, origin_terminal, origin_lat, origin_lon,
    dest_code, dest_name, dest_terminal, dest_lat, dest_lon,
    scheduled_departure, scheduled_arrival, estimated_arrival,
    departed_at, landed_at, canceled, diverted,
    user_lat, user_lon, version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		f.ID,
		f.UserID,
		f.FlightNumber,
		f.State,
		f.Marker,
		f.AlertID,
		boolToInt(f.RemindersEnabled),
		boolToInt(f.International),
		f.Origin.Code,
		f.Origin.Name,
		f.Origin.Terminal,
		f.Origin.Location.Latitude,
		f.Origin.Location.Longitude,
		f.Destination.Code,
		f.Destination.Name,
		f.Destination.Terminal,
		f.Destination.Location.Latitude,
		f.Destination.Location.Longitude,
		formatTime(f.ScheduledDeparture),
		formatTime(f.ScheduledArrival),
		formatZeroableTime(f.EstimatedArrival),
		formatNullableTime(f.DepartedAt),
		formatNullableTime(f.LandedAt),
		boolToInt(f.Canceled),
		boolToInt(f.Diverted),
		userLat,
		userLon,
		f.Version,
		formatTime(f.CreatedAt),
		formatTime(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert flight: %w", err)
	}
	return nil
}

// GetFlight retrieves a flight by its record ID.
func (s *SQLiteStore) GetFlight(id string) (*models.TrackedFlight, error) {
	const query = `SELECT
    id, user_id, flight_number, state, marker, alert_id,
    reminders_enabled, international,
    origin_code, origin_name, origin_terminal, origin_lat, origin_lon,
    dest_code, dest_name, dest_terminal, dest_lat, dest_lon,
    scheduled_departure, scheduled_arrival, estimated_arrival,
    departed_at, landed_at, canceled, diverted,
    user_lat, user_lon, version, created_at, updated_at
FROM tracked_flights WHERE id = ?`

	f, err := s.scanFlight(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

// ListNotStale returns every flight that has not reached the stale state.
// This is the lifecycle monitor's batch: both active and recently landed
// flights still need their staleness evaluated.
func (s *SQLiteStore) ListNotStale() ([]*models.TrackedFlight, error) {
	const query = `SELECT
    id, user_id, flight_number, state, marker, alert_id,
    reminders_enabled, international,
    origin_code, origin_name, origin_terminal, origin_lat, origin_lon,
    dest_code, dest_name, dest_terminal, dest_lat, dest_lon,
    scheduled_departure, scheduled_arrival, estimated_arrival,
    departed_at, landed_at, canceled, diverted,
    user_lat, user_lon, version, created_at, updated_at
FROM tracked_flights
WHERE state != ?
ORDER BY scheduled_arrival ASC`

	return s.queryFlights(query, models.StateStale)
}

// ListReminderCandidates returns active flights that could still need a
// reminder. The filter mirrors the dispatcher's eligibility rules so runs
// stay cheap: reminders enabled, a known user location, not canceled or
// diverted, and the final reminder not yet sent. The dispatcher re-checks
// each rule on the fresh record before sending.
func (s *SQLiteStore) ListReminderCandidates() ([]*models.TrackedFlight, error) {
	const query = `SELECT
    id, user_id, flight_number, state, marker, alert_id,
    reminders_enabled, international,
    origin_code, origin_name, origin_terminal, origin_lat, origin_lon,
    dest_code, dest_name, dest_terminal, dest_lat, dest_lon,
    scheduled_departure, scheduled_arrival, estimated_arrival,
    departed_at, landed_at, canceled, diverted,
    user_lat, user_lon, version, created_at, updated_at
FROM tracked_flights
WHERE state = ?
  AND reminders_enabled = 1
  AND canceled = 0
  AND diverted = 0
  AND marker != ?
  AND user_lat IS NOT NULL
  AND user_lon IS NOT NULL
ORDER BY scheduled_arrival ASC`

	return s.queryFlights(query, models.StateActive, models.MarkerLeaveNowSent)
}

// ListAlertIDs returns the distinct provider alert IDs referenced by
// non-stale flights.
func (s *SQLiteStore) ListAlertIDs() ([]string, error) {
	const query = `SELECT DISTINCT alert_id FROM tracked_flights WHERE alert_id != '' AND state != ?`

	rows, err := s.db.Query(query, models.StateStale)
	if err != nil {
		return nil, fmt.Errorf("query alert ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alert id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

// MarkLanded records the actual arrival time and moves the flight to the
// landed state.
func (s *SQLiteStore) MarkLanded(id string, landedAt time.Time, version int64) error {
	return s.casUpdate(id, version, "state = ?, landed_at = ?", models.StateLanded, formatTime(landedAt))
}

// MarkStale retires a flight. The alert reference is cleared in the same
// statement, so a stale flight can never still point at a live subscription.
func (s *SQLiteStore) MarkStale(id string, version int64) error {
	return s.casUpdate(id, version, "state = ?, alert_id = ''", models.StateStale)
}

// UpdateArrival stores a fresh arrival estimate for the flight.
func (s *SQLiteStore) UpdateArrival(id string, estimated time.Time, version int64) error {
	return s.casUpdate(id, version, "estimated_arrival = ?", formatTime(estimated))
}

// SetMarker records the last-sent reminder marker for the flight.
func (s *SQLiteStore) SetMarker(id string, marker string, version int64) error {
	return s.casUpdate(id, version, "marker = ?", marker)
}

// AcquireFlightLock claims the advisory per-flight lock for owner. The claim
// is a single conditional UPDATE, so two concurrent claimants cannot both
// win. Expired locks are claimable; crashed holders therefore block a flight
// for at most the TTL.
func (s *SQLiteStore) AcquireFlightLock(id, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	const query = `
UPDATE tracked_flights
SET lock_owner = ?, lock_expires = ?
WHERE id = ?
  AND (lock_owner = '' OR lock_expires IS NULL OR lock_expires < ?)`

	res, err := s.db.Exec(query, owner, formatTime(now.Add(ttl)), id, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("acquire flight lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseFlightLock releases the advisory lock if owner still holds it. A
// lock already expired and claimed by someone else is left alone; release is
// best-effort on every exit path.
func (s *SQLiteStore) ReleaseFlightLock(id, owner string) error {
	const query = `UPDATE tracked_flights SET lock_owner = '', lock_expires = NULL WHERE id = ? AND lock_owner = ?`
	if _, err := s.db.Exec(query, id, owner); err != nil {
		return fmt.Errorf("release flight lock: %w", err)
	}
	return nil
}

// PurgeStale permanently removes stale flights whose last update is older
// than the retention period. updated_at is set by the stale transition, so
// it doubles as the stale-since timestamp.
func (s *SQLiteStore) PurgeStale(retention time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-retention))
	res, err := s.db.Exec(`DELETE FROM tracked_flights WHERE state = ? AND updated_at < ?`, models.StateStale, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stale flights: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// CountByState returns the number of flights in each lifecycle state.
func (s *SQLiteStore) CountByState() (map[string]int, error) {
	const query = `SELECT state, COUNT(*) FROM tracked_flights GROUP BY state`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		models.StateActive: 0,
		models.StateLanded: 0,
		models.StateStale:  0,
	}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan count by state: %w", err)
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

// RunIncrementalVacuum triggers an incremental vacuum to reclaim unused pages.
func (s *SQLiteStore) RunIncrementalVacuum() error {
	_, err := s.db.Exec("PRAGMA incremental_vacuum")
	if err != nil {
		return fmt.Errorf("incremental vacuum: %w", err)
	}
	return nil
}

// GetDatabaseSizeBytes returns the current size of the database in bytes,
// computed as page_count * page_size.
func (s *SQLiteStore) GetDatabaseSizeBytes() (int64, error) {
	var pageCount int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page_count: %w", err)
	}

	var pageSize int64
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page_size: %w", err)
	}

	return pageCount * pageSize, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// casUpdate executes a version-guarded update of a single flight, bumping
// the version and updated_at on success. A zero row count is classified as
// ErrNotFound when the flight is gone or ErrConflict when its version moved.
func (s *SQLiteStore) casUpdate(id string, version int64, setClause string, args ...interface{}) error {
	query := fmt.Sprintf(
		"UPDATE tracked_flights SET %s, version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		setClause)
	args = append(args, formatTime(time.Now()), id, version)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update flight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM tracked_flights WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("checking flight existence: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// scanFlight scans a single row into a TrackedFlight.
func (s *SQLiteStore) scanFlight(row *sql.Row) (*models.TrackedFlight, error) {
	var f models.TrackedFlight
	var remindersEnabled, international, canceled, diverted int
	var scheduledDeparture, scheduledArrival, createdAt, updatedAt string
	var estimatedArrival, departedAt, landedAt sql.NullString
	var userLat, userLon sql.NullFloat64

	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.FlightNumber,
		&f.State,
		&f.Marker,
		&f.AlertID,
		&remindersEnabled,
		&international,
		&f.Origin.Code,
		&f.Origin.Name,
		&f.Origin.Terminal,
		&f.Origin.Location.Latitude,
		&f.Origin.Location.Longitude,
		&f.Destination.Code,
		&f.Destination.Name,
		&f.Destination.Terminal,
		&f.Destination.Location.Latitude,
		&f.Destination.Location.Longitude,
		&scheduledDeparture,
		&scheduledArrival,
		&estimatedArrival,
		&departedAt,
		&landedAt,
		&canceled,
		&diverted,
		&userLat,
		&userLon,
		&f.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan flight: %w", err)
	}

	if err := populateFlightTimes(&f, scheduledDeparture, scheduledArrival, createdAt, updatedAt,
		estimatedArrival, departedAt, landedAt); err != nil {
		return nil, err
	}
	populateFlightFlags(&f, remindersEnabled, international, canceled, diverted, userLat, userLon)

	return &f, nil
}

// queryFlights executes a query that returns multiple flight rows.
func (s *SQLiteStore) queryFlights(query string, args ...interface{}) ([]*models.TrackedFlight, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer rows.Close()

	var results []*models.TrackedFlight
	for rows.Next() {
		var f models.TrackedFlight
		var remindersEnabled, international, canceled, diverted int
		var scheduledDeparture, scheduledArrival, createdAt, updatedAt string
		var estimatedArrival, departedAt, landedAt sql.NullString
		var userLat, userLon sql.NullFloat64

		err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.FlightNumber,
			&f.State,
			&f.Marker,
			&f.AlertID,
			&remindersEnabled,
			&international,
			&f.Origin.Code,
			&f.Origin.Name,
			&f.Origin.Terminal,
			&f.Origin.Location.Latitude,
			&f.Origin.Location.Longitude,
			&f.Destination.Code,
			&f.Destination.Name,
			&f.Destination.Terminal,
			&f.Destination.Location.Latitude,
			&f.Destination.Location.Longitude,
			&scheduledDeparture,
			&scheduledArrival,
			&estimatedArrival,
			&departedAt,
			&landedAt,
			&canceled,
			&diverted,
			&userLat,
			&userLon,
			&f.Version,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if err := populateFlightTimes(&f, scheduledDeparture, scheduledArrival, createdAt, updatedAt,
			estimatedArrival, departedAt, landedAt); err != nil {
			return nil, err
		}
		populateFlightFlags(&f, remindersEnabled, international, canceled, diverted, userLat, userLon)

		results = append(results, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return results, nil
}

// populateFlightTimes parses the stored RFC3339 time columns into the flight.
func populateFlightTimes(f *models.TrackedFlight, scheduledDeparture, scheduledArrival, createdAt, updatedAt string,
	estimatedArrival, departedAt, landedAt sql.NullString) error {
	var err error

	f.ScheduledDeparture, err = time.Parse(time.RFC3339, scheduledDeparture)
	if err != nil {
		return fmt.Errorf("parse scheduled_departure: %w", err)
	}

	f.ScheduledArrival, err = time.Parse(time.RFC3339, scheduledArrival)
	if err != nil {
		return fmt.Errorf("parse scheduled_arrival: %w", err)
	}

	f.EstimatedArrival, err = parseZeroableTime(estimatedArrival)
	if err != nil {
		return fmt.Errorf("parse estimated_arrival: %w", err)
	}

	f.DepartedAt, err = parseNullableTime(departedAt)
	if err != nil {
		return fmt.Errorf("parse departed_at: %w", err)
	}

	f.LandedAt, err = parseNullableTime(landedAt)
	if err != nil {
		return fmt.Errorf("parse landed_at: %w", err)
	}

	f.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}

	f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}

	return nil
}

// populateFlightFlags converts the stored integer flags and nullable user
// coordinates into their model form.
func populateFlightFlags(f *models.TrackedFlight, remindersEnabled, international, canceled, diverted int,
	userLat, userLon sql.NullFloat64) {
	f.RemindersEnabled = remindersEnabled != 0
	f.International = international != 0
	f.Canceled = canceled != 0
	f.Diverted = diverted != 0

	if userLat.Valid && userLon.Valid {
		f.UserLocation = &models.Location{
			Latitude:  userLat.Float64,
			Longitude: userLon.Float64,
		}
	}
}

// formatTime renders a time as UTC RFC3339 text. Times are stored as text,
// always in UTC, so lexicographic comparison matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatNullableTime converts a *time.Time to a sql.NullString in RFC3339 format.
func formatNullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// formatZeroableTime converts a time.Time to a sql.NullString, storing the
// zero time as NULL.
func formatZeroableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// parseNullableTime converts a sql.NullString in RFC3339 format to a *time.Time.
func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseZeroableTime converts a sql.NullString in RFC3339 format to a
// time.Time, mapping NULL to the zero time.
func parseZeroableTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, ns.String)
}

// boolToInt converts a Go bool to a SQLite integer (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
