package factorydata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MandatoryParamsSource resolves the ordered list of request fields that must
// be non-blank for a device type. An unknown device type yields an empty list.
type MandatoryParamsSource interface {
	Lookup(ctx context.Context, deviceType string) ([]string, error)
}

// SQLiteMandatoryParams reads the device_type_mandatory_params table.
type SQLiteMandatoryParams struct {
	db *sql.DB
}

// NewSQLiteMandatoryParams creates a table-backed MandatoryParamsSource.
func NewSQLiteMandatoryParams(db *sql.DB) *SQLiteMandatoryParams {
	return &SQLiteMandatoryParams{db: db}
}

// Lookup returns the configured field names for deviceType, matched
// case-insensitively, in position order.
func (s *SQLiteMandatoryParams) Lookup(ctx context.Context, deviceType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field_name
		FROM device_type_mandatory_params
		WHERE LOWER(device_type) = LOWER(?)
		ORDER BY position, field_name`,
		strings.TrimSpace(deviceType),
	)
	if err != nil {
		return nil, fmt.Errorf("querying mandatory params: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning mandatory param: %w", err)
		}
		fields = append(fields, strings.TrimSpace(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mandatory params: %w", err)
	}
	return fields, nil
}

// StaticMandatoryParams is an in-memory MandatoryParamsSource keyed by
// lower-case device type.
type StaticMandatoryParams map[string][]string

// Lookup implements MandatoryParamsSource.
func (s StaticMandatoryParams) Lookup(_ context.Context, deviceType string) ([]string, error) {
	return s[strings.ToLower(strings.TrimSpace(deviceType))], nil
}
