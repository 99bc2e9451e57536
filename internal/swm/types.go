package swm

import "time"

// SessionHeader carries the session token on every authenticated call.
const SessionHeader = "SessionId"

// successCode is the action-result code SWM returns for a created vehicle.
const successCode = 0

// Session is the cached login token and when it was issued.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// Vehicle is one vehicle in a creation request. ModelCode is resolved to an
// SWM vehicle model id before sending.
type Vehicle struct {
	Vin                 string `json:"vin"`
	Imei                string `json:"imei,omitempty"`
	SerialNumber        string `json:"serialNumber,omitempty"`
	ModelCode           string `json:"-"`
	Region              string `json:"region,omitempty"`
	DeviceType          string `json:"deviceType,omitempty"`
	PlatformVersion     string `json:"platformVersion,omitempty"`
	PackageSerialNumber string `json:"packageSerialNumber,omitempty"`
	Iccid               string `json:"iccid,omitempty"`
	Msisdn              string `json:"msisdn,omitempty"`
	Imsi                string `json:"imsi,omitempty"`
	VehicleModelID      int64  `json:"vehicleModelId"`
}

// CreateVehicleRequest asks SWM to create vehicles.
type CreateVehicleRequest struct {
	Vehicles []Vehicle
}

// UpdateVehicleRequest changes the metadata of the SWM vehicle with Vin.
type UpdateVehicleRequest struct {
	Vin                 string
	ModelCode           string
	Region              string
	PlatformVersion     string
	PackageSerialNumber string
}

// DeleteVehicleRequest removes the SWM vehicle with Vin.
type DeleteVehicleRequest struct {
	Vin string
}

// VehicleModel pairs an SWM model code with its internal id.
type VehicleModel struct {
	ID        int64  `json:"id"`
	ModelCode string `json:"modelCode"`
}

// Wire shapes.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"sessionId"`
}

type listModelsResponse struct {
	VehicleModels []VehicleModel `json:"vehicleModels"`
}

type createVehiclesBody struct {
	Vehicles []Vehicle `json:"vehicles"`
}

type actionResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type createVehiclesResponse struct {
	ActionResults []actionResult `json:"actionResults"`
}

type vehicleRef struct {
	ID  int64  `json:"id"`
	Vin string `json:"vin"`
}

type listVehiclesResponse struct {
	Vehicles []vehicleRef `json:"vehicles"`
}

type updateVehicleBody struct {
	ID                  int64  `json:"id"`
	Vin                 string `json:"vin"`
	VehicleModelID      int64  `json:"vehicleModelId,omitempty"`
	Region              string `json:"region,omitempty"`
	PlatformVersion     string `json:"platformVersion,omitempty"`
	PackageSerialNumber string `json:"packageSerialNumber,omitempty"`
}

type deleteVehiclesBody struct {
	VehicleIDs []int64 `json:"vehicleIds"`
}
