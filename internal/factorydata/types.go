package factorydata

import (
	"strings"
	"time"
)

// State is the lifecycle state of a factory data record.
type State string

// Lifecycle states.
const (
	StateProvisioned    State = "PROVISIONED"
	StateActive         State = "ACTIVE"
	StateSuspended      State = "SUSPENDED"
	StateDecommissioned State = "DECOMMISSIONED"
)

// AllStates returns every recognised state.
func AllStates() []State {
	return []State{StateProvisioned, StateActive, StateSuspended, StateDecommissioned}
}

// ParseState parses a state case-insensitively.
func ParseState(s string) (State, bool) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStates() {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Action names a state-changing operation recorded in history.
type Action string

// History actions.
const (
	ActionProvisioned    Action = "PROVISIONED"
	ActionUpdated        Action = "UPDATED"
	ActionDecommissioned Action = "DECOMMISSIONED"
)

// DeviceFactoryData is the canonical record of one manufactured unit.
// Optional text columns are empty strings when absent.
type DeviceFactoryData struct {
	ID                  int64      `json:"id"`
	ManufacturingDate   *time.Time `json:"manufacturing_date,omitempty"`
	Model               string     `json:"model,omitempty"`
	Imei                string     `json:"imei,omitempty"`
	SerialNumber        string     `json:"serial_number"`
	PlatformVersion     string     `json:"platform_version,omitempty"`
	Iccid               string     `json:"iccid,omitempty"`
	Ssid                string     `json:"ssid,omitempty"`
	Bssid               string     `json:"bssid,omitempty"`
	Msisdn              string     `json:"msisdn,omitempty"`
	Imsi                string     `json:"imsi,omitempty"`
	RecordDate          *time.Time `json:"record_date,omitempty"`
	FactoryAdmin        string     `json:"factory_admin"`
	CreatedAt           time.Time  `json:"created_at"`
	State               State      `json:"state"`
	PackageSerialNumber string     `json:"package_serial_number,omitempty"`
	DeviceType          string     `json:"device_type"`
	Region              string     `json:"region,omitempty"`
	Vin                 string     `json:"vin,omitempty"`
}

// CreateRequest is the inbound shape of a creation request. Dates use the
// yyyy/MM/dd layout.
type CreateRequest struct {
	ManufacturingDate   string `json:"manufacturing_date"`
	Model               string `json:"model"`
	Imei                string `json:"imei"`
	SerialNumber        string `json:"serial_number"`
	PlatformVersion     string `json:"platform_version"`
	Iccid               string `json:"iccid"`
	Ssid                string `json:"ssid"`
	Bssid               string `json:"bssid"`
	Msisdn              string `json:"msisdn"`
	Imsi                string `json:"imsi"`
	RecordDate          string `json:"record_date"`
	PackageSerialNumber string `json:"package_serial_number"`
	DeviceType          string `json:"device_type"`
	Region              string `json:"region"`
	Vin                 string `json:"vin"`
}

// NamedValue is one entry of a request projection.
type NamedValue struct {
	Name  string
	Value string
}

// Fields projects the request into an ordered field/value list. Names match
// the column names used by the mandatory parameter table.
func (r *CreateRequest) Fields() []NamedValue {
	return []NamedValue{
		{"manufacturing_date", r.ManufacturingDate},
		{"model", r.Model},
		{"imei", r.Imei},
		{"serial_number", r.SerialNumber},
		{"platform_version", r.PlatformVersion},
		{"iccid", r.Iccid},
		{"ssid", r.Ssid},
		{"bssid", r.Bssid},
		{"msisdn", r.Msisdn},
		{"imsi", r.Imsi},
		{"record_date", r.RecordDate},
		{"package_serial_number", r.PackageSerialNumber},
		{"device_type", r.DeviceType},
		{"region", r.Region},
		{"vin", r.Vin},
	}
}

// VehiclePatch carries the mutable metadata of a vehicle update. Nil fields
// are left unchanged.
type VehiclePatch struct {
	Model               *string `json:"model,omitempty"`
	Region              *string `json:"region,omitempty"`
	PlatformVersion     *string `json:"platform_version,omitempty"`
	PackageSerialNumber *string `json:"package_serial_number,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p VehiclePatch) IsEmpty() bool {
	return p.Model == nil && p.Region == nil && p.PlatformVersion == nil && p.PackageSerialNumber == nil
}

// HistoryEntry is an immutable snapshot of a record taken when an action
// changed it.
type HistoryEntry struct {
	ID            int64             `json:"id"`
	FactoryDataID int64             `json:"factory_data_id"`
	Action        Action            `json:"action"`
	Actor         string            `json:"actor"`
	AuditAt       time.Time         `json:"audit_at"`
	Snapshot      DeviceFactoryData `json:"snapshot"`
}

// InputType selects the identifier column a search matches on. It is the
// allow-list that keeps request values out of SQL identifiers.
type InputType string

// Search input types.
const (
	InputImei         InputType = "imei"
	InputSerialNumber InputType = "serial_number"
	InputDeviceID     InputType = "device_id"
	InputVin          InputType = "vin"
)

// column returns the database column for the input type.
func (t InputType) column() string {
	switch t {
	case InputImei:
		return "imei"
	case InputSerialNumber:
		return "serial_number"
	case InputDeviceID:
		return "id"
	case InputVin:
		return "vin"
	default:
		return ""
	}
}

// Search describes a filtered, sorted and paginated read. Zero values mean
// "no constraint"; Page and Size are expected to be validated already.
type Search struct {
	InputType   InputType
	Inputs      []string
	States      []State
	LikeFields  []string
	LikeValues  []string
	RangeFields []string
	RangeValues []string
	SortBy      string
	Order       string
	Page        int
	Size        int
}

// Page is one page of search results.
type Page struct {
	Items []DeviceFactoryData `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

// IsFirst reports whether this is the first page.
func (p Page) IsFirst() bool {
	return p.Page <= 1
}

// IsLast reports whether no results exist beyond this page.
func (p Page) IsLast() bool {
	if p.Page <= 0 || p.Size <= 0 {
		return true
	}
	// Past the final page; also keeps the product below from overflowing.
	if int64(p.Page-1) > p.Total/int64(p.Size) {
		return true
	}
	return int64(p.Page)*int64(p.Size) >= p.Total
}

// MirrorOutcome reports what happened on the SWM side of a change.
type MirrorOutcome string

// Mirror outcomes.
const (
	MirrorDone     MirrorOutcome = "mirrored"
	MirrorSkipped  MirrorOutcome = "skipped"
	MirrorNotFound MirrorOutcome = "not_found"
	MirrorFailed   MirrorOutcome = "failed"
)

// Result is the outcome of a state-changing service operation.
type Result struct {
	Record *DeviceFactoryData `json:"record"`
	Mirror MirrorOutcome      `json:"mirror"`
}

// Event describes a completed state-changing action for event sinks.
type Event struct {
	Action     Action
	Actor      string
	Record     *DeviceFactoryData
	Mirror     MirrorOutcome
	OccurredAt time.Time
}
