package factorydata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/querybuilder"
)

// Date layouts.
const (
	// inputDateLayout is the yyyy/MM/dd layout of request dates.
	inputDateLayout = "2006/01/02"

	// storedDateLayout is how dates are stored, so ranges compare as text.
	storedDateLayout = "2006-01-02"
)

// recordColumns lists device_factory_data columns in scan order.
const recordColumns = `id, manufacturing_date, model, imei, serial_number, platform_version,
	iccid, ssid, bssid, msisdn, imsi, record_date, factory_admin, created_at, state,
	package_serial_number, device_type, region, vin`

// Repository persists factory data records. Every state-changing method
// appends a history row in the same transaction as the change.
type Repository interface {
	// Create inserts a PROVISIONED record built from req. The bool reports
	// whether a generated key was produced; when false the record is nil.
	// Returns apperr.ErrDateParse for malformed dates and
	// apperr.ErrAlreadyExists on a unique key collision.
	Create(ctx context.Context, req *CreateRequest, userID string) (*DeviceFactoryData, bool, error)

	// CreateGuest is Create plus a vin_details association. A blank VIN
	// reports false without writing anything.
	CreateGuest(ctx context.Context, req *CreateRequest, userID string) (*DeviceFactoryData, bool, error)

	// FindBySerialNumber returns apperr.ErrNotFound when absent.
	FindBySerialNumber(ctx context.Context, serialNumber string) (*DeviceFactoryData, error)

	// FindByVin returns the newest record carrying vin, or apperr.ErrNotFound.
	FindByVin(ctx context.Context, vin string) (*DeviceFactoryData, error)

	// UpdateVehicle applies patch to the newest record carrying vin.
	UpdateVehicle(ctx context.Context, vin string, patch VehiclePatch, userID string) (*DeviceFactoryData, error)

	// Decommission moves the newest record carrying vin to DECOMMISSIONED.
	// Decommissioning twice is a no-op that appends no history.
	Decommission(ctx context.Context, vin string, userID string) (*DeviceFactoryData, error)
}

// SQLiteRepository implements Repository, Reader and HistoryReader using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create inserts a new record and its PROVISIONED history row.
func (r *SQLiteRepository) Create(ctx context.Context, req *CreateRequest, userID string) (*DeviceFactoryData, bool, error) {
	rec, err := r.newRecord(req, userID)
	if err != nil {
		return nil, false, err
	}

	var (
		created *DeviceFactoryData
		ok      bool
	)
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		created, ok, txErr = r.insertProvisioned(ctx, tx, rec, userID)
		return txErr
	})
	if err != nil {
		return nil, false, err
	}
	return created, ok, nil
}

// CreateGuest inserts the record, its VIN association and its history row in
// one transaction, so a failed association leaves no orphan record.
func (r *SQLiteRepository) CreateGuest(ctx context.Context, req *CreateRequest, userID string) (*DeviceFactoryData, bool, error) {
	if strings.TrimSpace(req.Vin) == "" {
		return nil, false, nil
	}

	rec, err := r.newRecord(req, userID)
	if err != nil {
		return nil, false, err
	}

	var (
		created *DeviceFactoryData
		ok      bool
	)
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		created, ok, txErr = r.insertProvisioned(ctx, tx, rec, userID)
		if txErr != nil || !ok {
			return txErr
		}

		_, txErr = tx.ExecContext(ctx,
			`INSERT INTO vin_details (factory_data_id, vin, created_at) VALUES (?, ?, ?)`,
			created.ID, created.Vin, r.now().Format(time.RFC3339),
		)
		if txErr != nil {
			return mapWriteError(fmt.Errorf("inserting vin details: %w", txErr))
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return created, true, nil
}

// FindBySerialNumber retrieves a record by serial number.
func (r *SQLiteRepository) FindBySerialNumber(ctx context.Context, serialNumber string) (*DeviceFactoryData, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM device_factory_data WHERE serial_number = ?`,
		serialNumber,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound.Withf("no device with serial number %q", serialNumber)
		}
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("querying by serial number: %w", err))
	}
	return rec, nil
}

// FindByVin retrieves the newest record carrying vin.
func (r *SQLiteRepository) FindByVin(ctx context.Context, vin string) (*DeviceFactoryData, error) {
	return findByVin(ctx, r.db, vin)
}

// UpdateVehicle applies patch and appends an UPDATED history row.
func (r *SQLiteRepository) UpdateVehicle(ctx context.Context, vin string, patch VehiclePatch, userID string) (*DeviceFactoryData, error) {
	var fields []querybuilder.Field
	if patch.Model != nil {
		fields = append(fields, querybuilder.Field{Name: "model", Value: nullableString(*patch.Model)})
	}
	if patch.Region != nil {
		fields = append(fields, querybuilder.Field{Name: "region", Value: nullableString(*patch.Region)})
	}
	if patch.PlatformVersion != nil {
		fields = append(fields, querybuilder.Field{Name: "platform_version", Value: nullableString(*patch.PlatformVersion)})
	}
	if patch.PackageSerialNumber != nil {
		fields = append(fields, querybuilder.Field{Name: "package_serial_number", Value: nullableString(*patch.PackageSerialNumber)})
	}

	var updated *DeviceFactoryData
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := findByVin(ctx, tx, vin)
		if err != nil {
			return err
		}

		set := querybuilder.BuildPredicate("SET", ",", fields)
		if set == nil {
			updated = current
			return nil
		}

		//nolint:gosec // column names come from the fixed patch fields above
		query := "UPDATE device_factory_data " + set.SQL + " WHERE id = ?"
		if _, err := tx.ExecContext(ctx, query, append(set.Args, current.ID)...); err != nil {
			return apperr.ErrDatabase.Wrap(fmt.Errorf("updating device: %w", err))
		}

		updated, err = getByID(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		return r.appendHistory(ctx, tx, updated, ActionUpdated, userID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Decommission sets the DECOMMISSIONED state and appends history.
func (r *SQLiteRepository) Decommission(ctx context.Context, vin string, userID string) (*DeviceFactoryData, error) {
	var rec *DeviceFactoryData
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := findByVin(ctx, tx, vin)
		if err != nil {
			return err
		}
		if current.State == StateDecommissioned {
			rec = current
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE device_factory_data SET state = ? WHERE id = ?`,
			string(StateDecommissioned), current.ID,
		); err != nil {
			return apperr.ErrDatabase.Wrap(fmt.Errorf("decommissioning device: %w", err))
		}

		rec, err = getByID(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		return r.appendHistory(ctx, tx, rec, ActionDecommissioned, userID)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// newRecord builds the row to insert, forcing the PROVISIONED state.
func (r *SQLiteRepository) newRecord(req *CreateRequest, userID string) (*DeviceFactoryData, error) {
	manufactured, err := parseInputDate("manufacturing_date", req.ManufacturingDate)
	if err != nil {
		return nil, err
	}
	recorded, err := parseInputDate("record_date", req.RecordDate)
	if err != nil {
		return nil, err
	}

	return &DeviceFactoryData{
		ManufacturingDate:   manufactured,
		Model:               strings.TrimSpace(req.Model),
		Imei:                strings.TrimSpace(req.Imei),
		SerialNumber:        strings.TrimSpace(req.SerialNumber),
		PlatformVersion:     strings.TrimSpace(req.PlatformVersion),
		Iccid:               strings.TrimSpace(req.Iccid),
		Ssid:                strings.TrimSpace(req.Ssid),
		Bssid:               strings.TrimSpace(req.Bssid),
		Msisdn:              strings.TrimSpace(req.Msisdn),
		Imsi:                strings.TrimSpace(req.Imsi),
		RecordDate:          recorded,
		FactoryAdmin:        userID,
		CreatedAt:           r.now().Truncate(time.Second),
		State:               StateProvisioned,
		PackageSerialNumber: strings.TrimSpace(req.PackageSerialNumber),
		DeviceType:          strings.ToLower(strings.TrimSpace(req.DeviceType)),
		Region:              strings.TrimSpace(req.Region),
		Vin:                 strings.ToUpper(strings.TrimSpace(req.Vin)),
	}, nil
}

// insertedID reads the generated row id. ok is false when the driver
// generated none.
func insertedID(res sql.Result) (id int64, ok bool, err error) {
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, apperr.ErrDatabase.Wrap(fmt.Errorf("reading inserted id: %w", err))
	}
	return id, id > 0, nil
}

// insertProvisioned inserts rec, re-reads it and appends the PROVISIONED
// history row.
func (r *SQLiteRepository) insertProvisioned(ctx context.Context, tx *sql.Tx, rec *DeviceFactoryData, userID string) (*DeviceFactoryData, bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO device_factory_data (
			manufacturing_date, model, imei, serial_number, platform_version,
			iccid, ssid, bssid, msisdn, imsi, record_date, factory_admin, created_at,
			state, package_serial_number, device_type, region, vin
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableDate(rec.ManufacturingDate),
		nullableString(rec.Model),
		nullableString(rec.Imei),
		rec.SerialNumber,
		nullableString(rec.PlatformVersion),
		nullableString(rec.Iccid),
		nullableString(rec.Ssid),
		nullableString(rec.Bssid),
		nullableString(rec.Msisdn),
		nullableString(rec.Imsi),
		nullableDate(rec.RecordDate),
		rec.FactoryAdmin,
		rec.CreatedAt.Format(time.RFC3339),
		string(rec.State),
		nullableString(rec.PackageSerialNumber),
		rec.DeviceType,
		nullableString(rec.Region),
		nullableString(rec.Vin),
	)
	if err != nil {
		return nil, false, mapWriteError(fmt.Errorf("inserting device: %w", err))
	}

	id, ok, err := insertedID(res)
	if err != nil || !ok {
		return nil, false, err
	}

	created, err := getByID(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	if err := r.appendHistory(ctx, tx, created, ActionProvisioned, userID); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.ErrDatabase.Wrap(fmt.Errorf("starting transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.ErrDatabase.Wrap(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func getByID(ctx context.Context, q querier, id int64) (*DeviceFactoryData, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM device_factory_data WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound.Withf("no device with id %d", id)
		}
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("querying device by id: %w", err))
	}
	return rec, nil
}

func findByVin(ctx context.Context, q querier, vin string) (*DeviceFactoryData, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	row := q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM device_factory_data WHERE vin = ? ORDER BY id DESC LIMIT 1`, vin)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound.Withf("no device with vin %q", vin)
		}
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("querying device by vin: %w", err))
	}
	return rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans the recordColumns projection into a DeviceFactoryData.
func scanRecord(s rowScanner) (*DeviceFactoryData, error) {
	var d DeviceFactoryData
	var manufactured, recorded, model, imei, platform sql.NullString
	var iccid, ssid, bssid, msisdn, imsi sql.NullString
	var pkgSerial, region, vin sql.NullString
	var createdAt, state string

	err := s.Scan(
		&d.ID, &manufactured, &model, &imei, &d.SerialNumber, &platform,
		&iccid, &ssid, &bssid, &msisdn, &imsi, &recorded, &d.FactoryAdmin, &createdAt, &state,
		&pkgSerial, &d.DeviceType, &region, &vin,
	)
	if err != nil {
		return nil, err
	}

	d.ManufacturingDate = parseStoredDate(manufactured)
	d.RecordDate = parseStoredDate(recorded)
	d.Model = model.String
	d.Imei = imei.String
	d.PlatformVersion = platform.String
	d.Iccid = iccid.String
	d.Ssid = ssid.String
	d.Bssid = bssid.String
	d.Msisdn = msisdn.String
	d.Imsi = imsi.String
	d.PackageSerialNumber = pkgSerial.String
	d.Region = region.String
	d.Vin = vin.String
	d.State = State(state)
	d.CreatedAt = parseTimestamp(createdAt)

	return &d, nil
}

// parseInputDate parses a yyyy/MM/dd request date. Blank yields nil. A
// malformed date is a technical error: callers upstream are expected to
// send the fixed layout.
func parseInputDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(inputDateLayout, raw)
	if err != nil {
		return nil, apperr.ErrDateParse.Withf("%s %q does not match yyyy/MM/dd", field, raw).Wrap(err)
	}
	return &t, nil
}

func parseStoredDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(storedDateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseTimestamp parses an RFC3339 timestamp, falling back to SQLite's
// datetime() format for rows written by hand.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullableString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(storedDateLayout), Valid: true}
}

// mapWriteError turns unique constraint violations into
// apperr.ErrAlreadyExists and everything else into apperr.ErrDatabase.
func mapWriteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return apperr.ErrAlreadyExists.Wrap(err)
	}
	return apperr.ErrDatabase.Wrap(err)
}
