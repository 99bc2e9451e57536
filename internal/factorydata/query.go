package factorydata

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/querybuilder"
)

// tableAlias qualifies columns in read queries.
const tableAlias = "d"

// Reader is the read side of the store. Every method takes the same Search
// so the listing, its total and its per-state breakdown always agree.
type Reader interface {
	// Find returns one page of matching records.
	Find(ctx context.Context, s Search) ([]DeviceFactoryData, error)

	// Count returns the number of matching records, ignoring pagination.
	Count(ctx context.Context, s Search) (int64, error)

	// CountByState returns matching records grouped by state.
	CountByState(ctx context.Context, s Search) (map[State]int64, error)
}

// whereClause renders the filters of s. Column names come from InputType and
// the allow-lists checked by ValidateFilters, never from raw request text.
func whereClause(s Search) (querybuilder.Fragment, error) {
	var parts []querybuilder.Fragment

	if col := s.InputType.column(); col != "" && len(s.Inputs) > 0 {
		values := make([]any, len(s.Inputs))
		for i, in := range s.Inputs {
			values[i] = in
		}
		parts = append(parts, querybuilder.BuildInClause(tableAlias+"."+col, values))
	}

	if len(s.States) > 0 {
		values := make([]any, len(s.States))
		for i, st := range s.States {
			values[i] = string(st)
		}
		parts = append(parts, querybuilder.BuildInClause(tableAlias+".state", values))
	}

	parts = append(parts, querybuilder.BuildLikeClause(s.LikeFields, s.LikeValues))

	ranges, err := querybuilder.BuildRangeClause(s.RangeFields, s.RangeValues)
	if err != nil {
		if errors.Is(err, querybuilder.ErrInvalidRange) {
			return querybuilder.Fragment{}, apperr.ErrInvalidRange.Wrap(err)
		}
		return querybuilder.Fragment{}, err
	}
	parts = append(parts, ranges)

	where := querybuilder.Join(parts...)
	if where.SQL != "" {
		where.SQL = " WHERE " + where.SQL
	}
	return where, nil
}

// Find implements Reader.
func (r *SQLiteRepository) Find(ctx context.Context, s Search) ([]DeviceFactoryData, error) {
	where, err := whereClause(s)
	if err != nil {
		return nil, err
	}

	order := querybuilder.BuildOrderByClause(s.SortBy, s.Order, tableAlias)
	if order == "" {
		order = querybuilder.BuildOrderByClause("id", "asc", tableAlias)
	}

	size := s.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	page := s.Page
	if page <= 0 {
		page = DefaultPage
	}

	//nolint:gosec // fragments carry allow-listed identifiers and ? placeholders only
	query := `SELECT ` + qualifiedColumns() + ` FROM device_factory_data ` + tableAlias +
		where.SQL + order + ` LIMIT ? OFFSET ?`
	offset, ok := pageOffset(page, size)
	if !ok {
		return nil, apperr.ErrInvalidPage.Withf("page %d is out of range for size %d", page, size)
	}
	args := append(where.Args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("querying devices: %w", err))
	}
	defer rows.Close()

	items := make([]DeviceFactoryData, 0, size)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("scanning device: %w", err))
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("iterating devices: %w", err))
	}
	return items, nil
}

// Count implements Reader.
func (r *SQLiteRepository) Count(ctx context.Context, s Search) (int64, error) {
	where, err := whereClause(s)
	if err != nil {
		return 0, err
	}

	var total int64
	//nolint:gosec // see Find
	query := `SELECT COUNT(*) FROM device_factory_data ` + tableAlias + where.SQL
	if err := r.db.QueryRowContext(ctx, query, where.Args...).Scan(&total); err != nil {
		return 0, apperr.ErrDatabase.Wrap(fmt.Errorf("counting devices: %w", err))
	}
	return total, nil
}

// CountByState implements Reader. States with no matching record are absent
// from the map.
func (r *SQLiteRepository) CountByState(ctx context.Context, s Search) (map[State]int64, error) {
	where, err := whereClause(s)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // see Find
	query := `SELECT ` + tableAlias + `.state, COUNT(*) FROM device_factory_data ` + tableAlias +
		where.SQL + ` GROUP BY ` + tableAlias + `.state`
	rows, err := r.db.QueryContext(ctx, query, where.Args...)
	if err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("counting devices by state: %w", err))
	}
	defer rows.Close()

	counts := make(map[State]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("scanning state count: %w", err))
		}
		counts[State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.ErrDatabase.Wrap(fmt.Errorf("iterating state counts: %w", err))
	}
	return counts, nil
}

// qualifiedColumns prefixes recordColumns with the table alias.
func qualifiedColumns() string {
	return tableAlias + ".id, " + tableAlias + ".manufacturing_date, " + tableAlias + ".model, " +
		tableAlias + ".imei, " + tableAlias + ".serial_number, " + tableAlias + ".platform_version, " +
		tableAlias + ".iccid, " + tableAlias + ".ssid, " + tableAlias + ".bssid, " +
		tableAlias + ".msisdn, " + tableAlias + ".imsi, " + tableAlias + ".record_date, " +
		tableAlias + ".factory_admin, " + tableAlias + ".created_at, " + tableAlias + ".state, " +
		tableAlias + ".package_serial_number, " + tableAlias + ".device_type, " +
		tableAlias + ".region, " + tableAlias + ".vin"
}
