package factorydata

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
)

// Pagination defaults and bounds.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 5000
)

// Creation IMEI lengths: a plain IMEI or an IMEISV.
const (
	imeiLength   = 15
	imeiSVLength = 16
)

// vinExcludedLetters never appear in a VIN.
const vinExcludedLetters = "IOQ"

// Allow-lists for request-supplied column names.
var (
	sortableFields = map[string]struct{}{
		"id": {}, "imei": {}, "serial_number": {}, "model": {}, "created_at": {},
		"manufacturing_date": {}, "record_date": {}, "state": {}, "device_type": {},
		"region": {}, "vin": {}, "platform_version": {},
	}

	likeFields = map[string]struct{}{
		"model": {}, "region": {}, "device_type": {}, "platform_version": {},
		"serial_number": {}, "imei": {}, "vin": {}, "package_serial_number": {},
		"factory_admin": {},
	}

	rangeFields = map[string]struct{}{
		"id_id":                                 {},
		"created_at_created_at":                 {},
		"manufacturing_date_manufacturing_date": {},
		"record_date_record_date":               {},
		"manufacturing_date_record_date":        {},
	}
)

// SerialNumberFinder looks up a record by serial number. It returns
// apperr.ErrNotFound when none exists.
type SerialNumberFinder interface {
	FindBySerialNumber(ctx context.Context, serialNumber string) (*DeviceFactoryData, error)
}

// Validator checks request-shaped input against configuration.
type Validator struct {
	cfg     config.FactoryDataConfig
	allowed []string
	params  MandatoryParamsSource
	finder  SerialNumberFinder
	fields  *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator(cfg config.FactoryDataConfig, params MandatoryParamsSource, finder SerialNumberFinder) *Validator {
	return &Validator{
		cfg:     cfg,
		allowed: cfg.AllowedDeviceTypes,
		params:  params,
		finder:  finder,
		fields:  validator.New(),
	}
}

// ValidatePage parses a 1-based page number. Blank yields DefaultPage.
func ValidatePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPage, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page <= 0 {
		return 0, apperr.ErrInvalidPage.Withf("page %q must be a positive integer", raw)
	}
	return page, nil
}

// ValidateSize parses a page size in [1, MaxPageSize]. Blank yields
// DefaultPageSize.
func ValidateSize(raw string) (int, error) {
	return parseSize(raw, DefaultPageSize, MaxPageSize)
}

// ValidateSize parses a page size using the configured bounds.
func (v *Validator) ValidateSize(raw string) (int, error) {
	return parseSize(raw, v.cfg.DefaultPageSize, v.cfg.MaxPageSize)
}

func parseSize(raw string, def, maxSize int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 || size > maxSize {
		return 0, apperr.ErrInvalidSize.Withf("size %q must be an integer between 1 and %d", raw, maxSize)
	}
	return size, nil
}

// ValidateImei checks an IMEI used as a search input: digits only and at
// least the configured minimum length.
func (v *Validator) ValidateImei(raw string) (string, error) {
	imei := strings.TrimSpace(raw)
	if imei == "" || !isDigits(imei) {
		return "", apperr.ErrInvalidImei.Withf("imei %q must be numeric", raw)
	}
	if len(imei) < v.cfg.ImeiMinLength {
		return "", apperr.ErrInvalidImei.Withf("imei must have at least %d digits", v.cfg.ImeiMinLength)
	}
	return imei, nil
}

// ValidateCreationImei checks an IMEI on a new record: exactly 15 digits, or
// 16 for an IMEISV.
func ValidateCreationImei(raw string) (string, error) {
	imei := strings.TrimSpace(raw)
	if !isDigits(imei) || (len(imei) != imeiLength && len(imei) != imeiSVLength) {
		return "", apperr.ErrInvalidImei.Withf("imei must be %d or %d digits", imeiLength, imeiSVLength)
	}
	return imei, nil
}

// ValidateSerialNumber checks for a non-blank ASCII alphanumeric serial of at
// least the configured minimum length.
func (v *Validator) ValidateSerialNumber(raw string) (string, error) {
	serial := strings.TrimSpace(raw)
	if serial == "" || !isAlphanumeric(serial) {
		return "", apperr.ErrInvalidSerial.Withf("serial number %q must be alphanumeric", raw)
	}
	if len(serial) < v.cfg.SerialMinLength {
		return "", apperr.ErrInvalidSerial.Withf("serial number must have at least %d characters", v.cfg.SerialMinLength)
	}
	return serial, nil
}

// ValidateVin checks a 17 character VIN and returns it upper-cased.
func (v *Validator) ValidateVin(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if err := v.fields.Var(vin, "required,len=17,alphanum"); err != nil {
		return "", apperr.ErrInvalidVin.Withf("vin %q must be 17 alphanumeric characters", raw)
	}
	if strings.ContainsAny(vin, vinExcludedLetters) {
		return "", apperr.ErrInvalidVin.Withf("vin %q must not contain I, O or Q", raw)
	}
	return vin, nil
}

// ValidateAllowedDeviceType checks deviceType against allowList
// case-insensitively and returns it lower-cased.
func ValidateAllowedDeviceType(deviceType string, allowList []string) (string, error) {
	dt := strings.TrimSpace(deviceType)
	if dt == "" {
		return "", apperr.ErrInvalidDeviceType.Withf("device type is required")
	}
	for _, allowed := range allowList {
		if strings.EqualFold(dt, strings.TrimSpace(allowed)) {
			return strings.ToLower(dt), nil
		}
	}
	return "", apperr.ErrInvalidDeviceType.Withf("device type %q is not allowed", deviceType)
}

// ValidateMandatoryParamsForDeviceType checks that every field configured as
// mandatory for the request's device type is present and non-blank.
//
// A device type without configured fields, or a configuration that names no
// request field at all, is a server misconfiguration (apperr.ErrConfigEmpty).
// A blank value is a client error (apperr.ErrMandatoryMissing) that does not
// name the missing field.
func (v *Validator) ValidateMandatoryParamsForDeviceType(ctx context.Context, req *CreateRequest) error {
	deviceType, err := ValidateAllowedDeviceType(req.DeviceType, v.allowed)
	if err != nil {
		return err
	}

	flattened := req.Fields()

	mandatory, err := v.params.Lookup(ctx, deviceType)
	if err != nil {
		return apperr.ErrDatabase.Wrap(err)
	}
	if len(mandatory) == 0 {
		return apperr.ErrConfigEmpty.Withf("no mandatory parameters configured for device type %q", deviceType)
	}

	wanted := make(map[string]struct{}, len(mandatory))
	for _, name := range mandatory {
		wanted[name] = struct{}{}
	}

	reduced := make(map[string]*string, len(mandatory))
	for _, f := range flattened {
		if _, ok := wanted[f.Name]; !ok {
			continue
		}
		if strings.TrimSpace(f.Value) == "" {
			reduced[f.Name] = nil
			continue
		}
		value := f.Value
		reduced[f.Name] = &value
	}

	if len(reduced) == 0 {
		return apperr.ErrConfigEmpty.Withf("mandatory parameters for device type %q match no request field", deviceType)
	}

	for _, value := range reduced {
		if value == nil {
			return apperr.ErrMandatoryMissing
		}
	}
	return nil
}

// CheckDuplicateSerialNumber fails with apperr.ErrAlreadyExists when a record
// with serialNumber exists.
func (v *Validator) CheckDuplicateSerialNumber(ctx context.Context, serialNumber string) error {
	existing, err := v.finder.FindBySerialNumber(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing != nil {
		return apperr.ErrAlreadyExists.Withf("device with serial number %q already exists", serialNumber)
	}
	return nil
}

// ValidateInputType parses a search input type. Blank means no identifier
// filter.
func ValidateInputType(raw string) (InputType, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	t := InputType(raw)
	if t.column() == "" {
		return "", apperr.ErrInvalidInputType.Withf("input type %q is not one of imei, serial_number, device_id, vin", raw)
	}
	return t, nil
}

// ValidateSort checks sortBy against the sortable allow-list and normalises
// the direction.
func ValidateSort(sortBy, order string) (string, string, error) {
	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	if sortBy != "" {
		if _, ok := sortableFields[sortBy]; !ok {
			return "", "", apperr.ErrInvalidSortField.Withf("sort field %q is not allowed", sortBy)
		}
	}

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return sortBy, "asc", nil
	case "desc":
		return sortBy, "desc", nil
	default:
		return "", "", apperr.ErrInvalidSortField.Withf("order %q must be asc or desc", order)
	}
}

// ValidateFilters checks like and range filter fields against their
// allow-lists and that each field list pairs with its value list.
func ValidateFilters(s *Search) error {
	if len(s.LikeFields) != len(s.LikeValues) {
		return apperr.ErrInvalidFilter.Withf("like_fields and like_values must have the same length")
	}
	for _, f := range s.LikeFields {
		if _, ok := likeFields[f]; !ok {
			return apperr.ErrInvalidFilter.Withf("like field %q is not allowed", f)
		}
	}

	if len(s.RangeFields) != len(s.RangeValues) {
		return apperr.ErrInvalidFilter.Withf("range_fields and range_values must have the same length")
	}
	for _, f := range s.RangeFields {
		if _, ok := rangeFields[f]; !ok {
			return apperr.ErrInvalidFilter.Withf("range field %q is not allowed", f)
		}
	}
	return nil
}

// ValidateInputs checks every search input against the rules of its type and
// returns the normalised values.
func (v *Validator) ValidateInputs(t InputType, inputs []string) ([]string, error) {
	if len(inputs) > 0 && t == "" {
		return nil, apperr.ErrInvalidInputType.Withf("input_type is required when input is given")
	}

	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		var (
			norm string
			err  error
		)
		switch t {
		case InputImei:
			norm, err = v.ValidateImei(in)
		case InputSerialNumber:
			norm, err = v.ValidateSerialNumber(in)
		case InputVin:
			norm, err = v.ValidateVin(in)
		case InputDeviceID:
			if _, perr := strconv.ParseInt(in, 10, 64); perr != nil {
				err = apperr.ErrInvalidInputType.Withf("device id %q must be numeric", in)
			}
			norm = in
		}
		if err != nil {
			return nil, err
		}
		out = append(out, norm)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return s != ""
}
