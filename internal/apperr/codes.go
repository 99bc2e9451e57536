package apperr

// Validation errors. The caller can correct these.
var (
	ErrInvalidPage       = New(KindValidation, "FD-1001", "INVALID_PAGE", "page must be a positive integer")
	ErrInvalidSize       = New(KindValidation, "FD-1002", "INVALID_SIZE", "size must be an integer between 1 and 5000")
	ErrInvalidImei       = New(KindValidation, "FD-1003", "INVALID_IMEI", "imei is invalid")
	ErrInvalidSerial     = New(KindValidation, "FD-1004", "INVALID_SERIAL_NUMBER", "serial number is invalid")
	ErrInvalidVin        = New(KindValidation, "FD-1005", "INVALID_VIN", "vin is invalid")
	ErrInvalidDeviceType = New(KindValidation, "FD-1006", "INVALID_DEVICE_TYPE", "device type is not allowed")
	ErrMandatoryMissing  = New(KindValidation, "FD-1007", "MANDATORY_PARAMS_MISSING", "one or more mandatory parameters are missing")
	ErrAlreadyExists     = New(KindValidation, "FD-1008", "ALREADY_EXISTS", "device with this serial number already exists")
	ErrInvalidSortField  = New(KindValidation, "FD-1009", "INVALID_SORT_FIELD", "sort field is not allowed")
	ErrInvalidInputType  = New(KindValidation, "FD-1010", "INVALID_INPUT_TYPE", "input type is not allowed")
	ErrInvalidFilter     = New(KindValidation, "FD-1011", "INVALID_FILTER", "filter parameters are invalid")
	ErrInvalidRange      = New(KindValidation, "FD-1012", "INVALID_RANGE", "range value must have the form lower_upper")
	ErrInvalidState      = New(KindValidation, "FD-1013", "INVALID_STATE", "state is not recognised")
	ErrInvalidRequest    = New(KindValidation, "FD-1014", "INVALID_REQUEST", "request body is invalid")
)

// Lookup errors.
var (
	ErrNotFound = New(KindNotFound, "FD-2001", "NOT_FOUND", "device factory data not found")
)

// Technical and configuration errors. These indicate a bug or misconfiguration.
var (
	ErrConfigEmpty = New(KindTechnical, "FD-5001", "CONFIG_EMPTY", "mandatory parameter configuration is empty for device type")
	ErrDateParse   = New(KindTechnical, "FD-5002", "DATE_PARSE", "date does not match yyyy/MM/dd")
	ErrDatabase    = New(KindTechnical, "FD-5003", "DATABASE", "database operation failed")
	ErrInternal    = New(KindTechnical, "FD-5004", "INTERNAL", "internal error")
)

// External mirror errors.
var (
	ErrSwmCreate = New(KindMirror, "FD-6001", "SWM_CREATE_FAILED", "vehicle creation in SWM failed")
	ErrSwmUpdate = New(KindMirror, "FD-6002", "SWM_UPDATE_FAILED", "vehicle update in SWM failed")
	ErrSwmDelete = New(KindMirror, "FD-6003", "SWM_DELETE_FAILED", "vehicle deletion in SWM failed")
)

// Session and auth errors.
var (
	ErrSessionNull  = New(KindSession, "FD-7001", "SESSION_NULL", "SWM session is null")
	ErrUnauthorized = New(KindAuth, "FD-8001", "UNAUTHORIZED", "missing or invalid bearer token")
	ErrForbidden    = New(KindAuth, "FD-8002", "FORBIDDEN", "role lacks the required permission")
)
