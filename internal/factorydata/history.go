package factorydata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/factory-data-core/internal/apperr"
)

// History limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// snapshotColumns are the record columns copied into every history row.
const snapshotColumns = `manufacturing_date, model, imei, serial_number, platform_version,
	iccid, ssid, bssid, msisdn, imsi, record_date, factory_admin, created_at, state,
	package_serial_number, device_type, region, vin`

// HistoryReader reads the append-only history of a record.
type HistoryReader interface {
	// History returns history entries for the record with serialNumber,
	// newest first. limit <= 0 selects the default of 50; values above 200
	// are clamped. Returns apperr.ErrNotFound when the serial is unknown.
	History(ctx context.Context, serialNumber string, limit int) ([]HistoryEntry, error)
}

// appendHistory snapshots the current row of rec into the history table.
// History rows are never updated or deleted.
func (r *SQLiteRepository) appendHistory(ctx context.Context, q querier, rec *DeviceFactoryData, action Action, actor string) error {
	//nolint:gosec // snapshotColumns is a constant
	_, err := q.ExecContext(ctx, `
		INSERT INTO device_factory_data_history (factory_data_id, action, actor, audit_at, `+snapshotColumns+`)
		SELECT id, ?, ?, ?, `+snapshotColumns+`
		FROM device_factory_data
		WHERE id = ?`,
		string(action), actor, r.now().Format(time.RFC3339), rec.ID,
	)
	if err != nil {
		return apperr.ErrDatabase.Wrap(fmt.Errorf("appending %s history: %w", action, err))
	}
	return nil
}

// History implements HistoryReader.
func (r *SQLiteRepository) History(ctx context.Context, serialNumber string, limit int) ([]HistoryEntry, error) {
	rec, err := r.FindBySerialNumber(ctx, strings.TrimSpace(serialNumber))
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, actor, audit_at, factory_data_id, `+snapshotColumns+`
		FROM device_factory_data_history
		WHERE factory_data_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		rec.ID, limit,
	)
	if err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("querying history: %w", err))
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var action, auditAt string

		snap, err := scanRecord(prefixScanner{
			rowScanner: rows,
			prefix:     []any{&entry.ID, &action, &entry.Actor, &auditAt},
		})
		if err != nil {
			return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("scanning history: %w", err))
		}

		entry.Action = Action(action)
		entry.AuditAt = parseTimestamp(auditAt)
		entry.FactoryDataID = snap.ID
		entry.Snapshot = *snap
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("iterating history: %w", err))
	}
	return entries, nil
}

// prefixScanner scans leading columns into prefix before handing the rest to
// the caller's destinations.
type prefixScanner struct {
	rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	all := make([]any, 0, len(p.prefix)+len(dest))
	all = append(all, p.prefix...)
	all = append(all, dest...)
	return p.rowScanner.Scan(all...)
}
