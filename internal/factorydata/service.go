package factorydata

import (
	"context"
	"strings"
	"time"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/swm"
)

// Mirror is the external vehicle-management system local changes are
// mirrored to. *swm.Client implements it.
type Mirror interface {
	CreateVehicle(ctx context.Context, req swm.CreateVehicleRequest) (bool, error)
	UpdateVehicle(ctx context.Context, req swm.UpdateVehicleRequest) (bool, error)
	DeleteVehicle(ctx context.Context, req swm.DeleteVehicleRequest) (bool, error)
}

// EventSink receives an Event after every committed state change. Publishing
// is best effort and never fails the operation.
type EventSink interface {
	Publish(ctx context.Context, evt Event)
}

// Store is everything the service needs from persistence.
type Store interface {
	Repository
	Reader
	HistoryReader
}

// Logger is the logging interface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service runs the factory data workflows: validate, change the local store,
// then mirror the change into SWM.
//
// The local change is committed before the mirror call. A mirror failure is
// returned to the caller together with the committed record, so the two
// systems may diverge until the change is repeated.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	validator *Validator
	store     Store
	mirror    Mirror
	events    EventSink
	logger    Logger
	now       func() time.Time
}

// NewService creates a Service.
//
// Parameters:
//   - validator: request validation, normally built over the same store
//   - store: persistence
//   - mirror: SWM client, or nil when mirroring is disabled
//   - events: event sink, or nil
//   - logger: may be nil
func NewService(validator *Validator, store Store, mirror Mirror, events EventSink, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		validator: validator,
		store:     store,
		mirror:    mirror,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validator returns the service's validator.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Create provisions a new record. When the record carries a VIN the vehicle
// is created in SWM as well.
//
// Returns:
//   - validation errors for bad or missing fields and duplicate serials
//   - apperr.ErrConfigEmpty when the device type has no mandatory params
//   - a mirror or session error, with the committed Result, when SWM fails
func (s *Service) Create(ctx context.Context, req CreateRequest, userID string) (Result, error) {
	if err := s.validateCreate(ctx, &req); err != nil {
		return Result{}, err
	}

	rec, ok, err := s.store.Create(ctx, &req, userID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperr.ErrInternal.Withf("no identifier was generated for serial number %q", req.SerialNumber)
	}

	s.logger.Info("device provisioned", "id", rec.ID, "serial_number", rec.SerialNumber, "device_type", rec.DeviceType)

	return s.mirrorCreate(ctx, rec, userID)
}

// CreateGuest provisions a record for a self-registered vehicle. The VIN is
// required and is stored with its association in the same transaction.
func (s *Service) CreateGuest(ctx context.Context, req CreateRequest, userID string) (Result, error) {
	if strings.TrimSpace(req.Vin) == "" {
		return Result{}, apperr.ErrInvalidVin.Withf("vin is required for guest registration")
	}
	if err := s.validateCreate(ctx, &req); err != nil {
		return Result{}, err
	}

	rec, ok, err := s.store.CreateGuest(ctx, &req, userID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperr.ErrInternal.Withf("guest registration for vin %q produced no record", req.Vin)
	}

	s.logger.Info("guest vehicle provisioned", "id", rec.ID, "vin", rec.Vin)

	return s.mirrorCreate(ctx, rec, userID)
}

// UpdateVehicle changes the metadata of the newest record carrying vin and
// mirrors the change.
func (s *Service) UpdateVehicle(ctx context.Context, vin string, patch VehiclePatch, userID string) (Result, error) {
	vin, err := s.validator.ValidateVin(vin)
	if err != nil {
		return Result{}, err
	}
	if patch.IsEmpty() {
		return Result{}, apperr.ErrInvalidRequest.Withf("no fields to update")
	}

	rec, err := s.store.UpdateVehicle(ctx, vin, patch, userID)
	if err != nil {
		return Result{}, err
	}

	outcome, mirrorErr := s.callMirror(ctx, "update", func(m Mirror) (bool, error) {
		return m.UpdateVehicle(ctx, swm.UpdateVehicleRequest{
			Vin:                 rec.Vin,
			ModelCode:           rec.Model,
			Region:              rec.Region,
			PlatformVersion:     rec.PlatformVersion,
			PackageSerialNumber: rec.PackageSerialNumber,
		})
	}, MirrorFailed)
	if outcome == MirrorFailed && mirrorErr == nil {
		mirrorErr = apperr.ErrSwmUpdate.Withf("SWM did not confirm the update of vin %q", rec.Vin)
	}

	s.publish(ctx, ActionUpdated, userID, rec, outcome)
	return Result{Record: rec, Mirror: outcome}, mirrorErr
}

// DeleteVehicle decommissions the newest record carrying vin and deletes the
// vehicle from SWM. A vehicle unknown to SWM is reported as MirrorNotFound,
// not as an error. Local rows are never removed.
func (s *Service) DeleteVehicle(ctx context.Context, vin string, userID string) (Result, error) {
	vin, err := s.validator.ValidateVin(vin)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.store.Decommission(ctx, vin, userID)
	if err != nil {
		return Result{}, err
	}

	outcome, mirrorErr := s.callMirror(ctx, "delete", func(m Mirror) (bool, error) {
		return m.DeleteVehicle(ctx, swm.DeleteVehicleRequest{Vin: rec.Vin})
	}, MirrorNotFound)

	s.publish(ctx, ActionDecommissioned, userID, rec, outcome)
	return Result{Record: rec, Mirror: outcome}, mirrorErr
}

// Search returns one page of records matching q.
func (s *Service) Search(ctx context.Context, q SearchQuery) (Page, error) {
	search, err := s.validator.ParseSearch(q)
	if err != nil {
		return Page{}, err
	}

	items, err := s.store.Find(ctx, search)
	if err != nil {
		return Page{}, err
	}
	total, err := s.store.Count(ctx, search)
	if err != nil {
		return Page{}, err
	}

	return Page{Items: items, Total: total, Page: search.Page, Size: search.Size}, nil
}

// Count returns the number of records matching q, ignoring pagination.
func (s *Service) Count(ctx context.Context, q SearchQuery) (int64, error) {
	search, err := s.validator.ParseSearch(q)
	if err != nil {
		return 0, err
	}
	return s.store.Count(ctx, search)
}

// CountByState returns the records matching q grouped by state. Every known
// state is present in the result, with zero when nothing matches.
func (s *Service) CountByState(ctx context.Context, q SearchQuery) (map[State]int64, error) {
	search, err := s.validator.ParseSearch(q)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountByState(ctx, search)
	if err != nil {
		return nil, err
	}
	for _, st := range AllStates() {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// History returns the newest history entries of the record with
// serialNumber.
func (s *Service) History(ctx context.Context, serialNumber string, limit int) ([]HistoryEntry, error) {
	serial, err := s.validator.ValidateSerialNumber(serialNumber)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, serial, limit)
}

// validateCreate runs the creation checks and normalises identifiers in req.
func (s *Service) validateCreate(ctx context.Context, req *CreateRequest) error {
	if err := s.validator.ValidateMandatoryParamsForDeviceType(ctx, req); err != nil {
		return err
	}

	if strings.TrimSpace(req.Imei) != "" {
		imei, err := ValidateCreationImei(req.Imei)
		if err != nil {
			return err
		}
		req.Imei = imei
	}

	serial, err := s.validator.ValidateSerialNumber(req.SerialNumber)
	if err != nil {
		return err
	}
	req.SerialNumber = serial

	if strings.TrimSpace(req.Vin) != "" {
		vin, err := s.validator.ValidateVin(req.Vin)
		if err != nil {
			return err
		}
		req.Vin = vin
	}

	return s.validator.CheckDuplicateSerialNumber(ctx, serial)
}

// mirrorCreate creates rec in SWM when it has a VIN and publishes the
// PROVISIONED event.
func (s *Service) mirrorCreate(ctx context.Context, rec *DeviceFactoryData, userID string) (Result, error) {
	outcome := MirrorSkipped
	var mirrorErr error

	if rec.Vin != "" {
		outcome, mirrorErr = s.callMirror(ctx, "create", func(m Mirror) (bool, error) {
			return m.CreateVehicle(ctx, swm.CreateVehicleRequest{Vehicles: []swm.Vehicle{vehicleFromRecord(rec)}})
		}, MirrorFailed)
		if outcome == MirrorFailed && mirrorErr == nil {
			mirrorErr = apperr.ErrSwmCreate.Withf("SWM did not confirm the creation of vin %q", rec.Vin)
		}
	}

	s.publish(ctx, ActionProvisioned, userID, rec, outcome)
	return Result{Record: rec, Mirror: outcome}, mirrorErr
}

// callMirror runs fn against the mirror. onFalse is the outcome reported when
// fn returns false without an error.
func (s *Service) callMirror(ctx context.Context, op string, fn func(Mirror) (bool, error), onFalse MirrorOutcome) (MirrorOutcome, error) {
	if s.mirror == nil {
		return MirrorSkipped, nil
	}

	ok, err := fn(s.mirror)
	switch {
	case err != nil:
		s.logger.Warn("SWM mirror failed, local change kept", "operation", op, "error", err)
		return MirrorFailed, err
	case !ok:
		s.logger.Warn("SWM mirror reported no change", "operation", op, "outcome", string(onFalse))
		return onFalse, nil
	default:
		return MirrorDone, nil
	}
}

func (s *Service) publish(ctx context.Context, action Action, actor string, rec *DeviceFactoryData, outcome MirrorOutcome) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, Event{
		Action:     action,
		Actor:      actor,
		Record:     rec,
		Mirror:     outcome,
		OccurredAt: s.now(),
	})
}

func vehicleFromRecord(rec *DeviceFactoryData) swm.Vehicle {
	return swm.Vehicle{
		Vin:                 rec.Vin,
		Imei:                rec.Imei,
		SerialNumber:        rec.SerialNumber,
		ModelCode:           rec.Model,
		Region:              rec.Region,
		DeviceType:          rec.DeviceType,
		PlatformVersion:     rec.PlatformVersion,
		PackageSerialNumber: rec.PackageSerialNumber,
		Iccid:               rec.Iccid,
		Msisdn:              rec.Msisdn,
		Imsi:                rec.Imsi,
	}
}
