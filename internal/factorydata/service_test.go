package factorydata

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/swm"
)

// fakeMirror records mirror calls and returns canned results.
type fakeMirror struct {
	mu sync.Mutex

	createOK, updateOK, deleteOK    bool
	createErr, updateErr, deleteErr error

	created []swm.CreateVehicleRequest
	updated []swm.UpdateVehicleRequest
	deleted []swm.DeleteVehicleRequest
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{createOK: true, updateOK: true, deleteOK: true}
}

func (m *fakeMirror) CreateVehicle(_ context.Context, req swm.CreateVehicleRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.createOK, m.createErr
}

func (m *fakeMirror) UpdateVehicle(_ context.Context, req swm.UpdateVehicleRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, req)
	return m.updateOK, m.updateErr
}

func (m *fakeMirror) DeleteVehicle(_ context.Context, req swm.DeleteVehicleRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, req)
	return m.deleteOK, m.deleteErr
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func setupTestService(t *testing.T, mirror Mirror) (*Service, *SQLiteRepository, *recordingSink) {
	t.Helper()

	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	validator := NewValidator(testFactoryConfig(), NewSQLiteMandatoryParams(db.DB), repo)
	sink := &recordingSink{}
	return NewService(validator, repo, mirror, sink, nil), repo, sink
}

func TestService_CreateDashcam(t *testing.T) {
	mirror := newFakeMirror()
	svc, repo, sink := setupTestService(t, mirror)
	ctx := context.Background()

	res, err := svc.Create(ctx, dashcamRequest("DC0001", "356938035643809"), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Record == nil || res.Record.State != StateProvisioned {
		t.Fatalf("Create() record = %+v, want PROVISIONED", res.Record)
	}
	if res.Mirror != MirrorSkipped {
		t.Errorf("Mirror = %q, want skipped for a record without VIN", res.Mirror)
	}
	if len(mirror.created) != 0 {
		t.Errorf("mirror called %d times for a record without VIN", len(mirror.created))
	}

	history, err := repo.History(ctx, "DC0001", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Action != ActionProvisioned {
		t.Errorf("History() = %+v, want one PROVISIONED entry", history)
	}

	if len(sink.events) != 1 || sink.events[0].Action != ActionProvisioned || sink.events[0].Actor != "admin" {
		t.Errorf("events = %+v, want one PROVISIONED event", sink.events)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, _, _ := setupTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, dashcamRequest("DC0001", "356938035643809"), "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr *apperr.Error
	}{
		{name: "duplicate serial", mutate: func(r *CreateRequest) {}, wantErr: apperr.ErrAlreadyExists},
		{name: "missing mandatory", mutate: func(r *CreateRequest) { r.SerialNumber = "DC0002"; r.Iccid = "" }, wantErr: apperr.ErrMandatoryMissing},
		{name: "short imei", mutate: func(r *CreateRequest) { r.SerialNumber = "DC0002"; r.Imei = "35693803564" }, wantErr: apperr.ErrInvalidImei},
		{name: "bad serial", mutate: func(r *CreateRequest) { r.SerialNumber = "DC-02" }, wantErr: apperr.ErrInvalidSerial},
		{name: "bad vin", mutate: func(r *CreateRequest) { r.SerialNumber = "DC0002"; r.Vin = "SHORT" }, wantErr: apperr.ErrInvalidVin},
		{name: "unknown device type", mutate: func(r *CreateRequest) { r.DeviceType = "tracker" }, wantErr: apperr.ErrInvalidDeviceType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := dashcamRequest("DC0001", "356938035643809")
			tt.mutate(&req)
			if _, err := svc.Create(ctx, req, "admin"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_CreateMirrorsVehicle(t *testing.T) {
	mirror := newFakeMirror()
	svc, _, sink := setupTestService(t, mirror)

	res, err := svc.Create(context.Background(), obdRequest("OB0001", "356938035643811", "1hgcm82633a004352"), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Mirror != MirrorDone {
		t.Errorf("Mirror = %q, want mirrored", res.Mirror)
	}

	if len(mirror.created) != 1 {
		t.Fatalf("mirror create calls = %d, want 1", len(mirror.created))
	}
	v := mirror.created[0].Vehicles[0]
	if v.Vin != "1HGCM82633A004352" || v.ModelCode != "OBD-7" || v.SerialNumber != "OB0001" {
		t.Errorf("mirrored vehicle = %+v", v)
	}
	if sink.events[0].Mirror != MirrorDone {
		t.Errorf("event mirror = %q, want mirrored", sink.events[0].Mirror)
	}
}

func TestService_CreateMirrorFailureKeepsLocalRecord(t *testing.T) {
	mirror := newFakeMirror()
	mirror.createOK = false
	mirror.createErr = apperr.ErrSwmCreate.Withf("code 5: model invalid")
	svc, repo, _ := setupTestService(t, mirror)

	res, err := svc.Create(context.Background(), obdRequest("OB0001", "356938035643811", "1HGCM82633A004352"), "admin")
	if !errors.Is(err, apperr.ErrSwmCreate) {
		t.Fatalf("Create() error = %v, want ErrSwmCreate", err)
	}
	if res.Mirror != MirrorFailed || res.Record == nil {
		t.Errorf("Create() result = %+v, want committed record with failed mirror", res)
	}

	if _, err := repo.FindBySerialNumber(context.Background(), "OB0001"); err != nil {
		t.Errorf("local record missing after mirror failure: %v", err)
	}
}

func TestService_CreateGuest(t *testing.T) {
	mirror := newFakeMirror()
	svc, _, _ := setupTestService(t, mirror)
	ctx := context.Background()

	req := obdRequest("OB0001", "356938035643811", "")
	if _, err := svc.CreateGuest(ctx, req, "guest"); !errors.Is(err, apperr.ErrInvalidVin) {
		t.Fatalf("CreateGuest(no vin) error = %v, want ErrInvalidVin", err)
	}

	req.Vin = "1HGCM82633A004352"
	res, err := svc.CreateGuest(ctx, req, "guest")
	if err != nil {
		t.Fatalf("CreateGuest() error = %v", err)
	}
	if res.Mirror != MirrorDone || res.Record.Vin != "1HGCM82633A004352" {
		t.Errorf("CreateGuest() = %+v", res)
	}
}

func TestService_UpdateVehicle(t *testing.T) {
	mirror := newFakeMirror()
	svc, _, sink := setupTestService(t, mirror)
	ctx := context.Background()

	if _, err := svc.Create(ctx, obdRequest("OB0001", "356938035643811", "1HGCM82633A004352"), "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.UpdateVehicle(ctx, "1HGCM82633A004352", VehiclePatch{}, "admin"); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("UpdateVehicle(empty patch) error = %v, want ErrInvalidRequest", err)
	}

	res, err := svc.UpdateVehicle(ctx, "1hgcm82633a004352", VehiclePatch{Region: strPtr("APAC")}, "admin")
	if err != nil {
		t.Fatalf("UpdateVehicle() error = %v", err)
	}
	if res.Record.Region != "APAC" || res.Mirror != MirrorDone {
		t.Errorf("UpdateVehicle() = %+v", res)
	}
	if len(mirror.updated) != 1 || mirror.updated[0].Region != "APAC" || mirror.updated[0].Vin != "1HGCM82633A004352" {
		t.Errorf("mirror updates = %+v", mirror.updated)
	}
	if last := sink.events[len(sink.events)-1]; last.Action != ActionUpdated {
		t.Errorf("last event = %q, want UPDATED", last.Action)
	}
}

func TestService_UpdateVehicleUnconfirmed(t *testing.T) {
	mirror := newFakeMirror()
	mirror.updateOK = false
	svc, _, _ := setupTestService(t, mirror)
	ctx := context.Background()

	if _, err := svc.Create(ctx, obdRequest("OB0001", "356938035643811", "1HGCM82633A004352"), "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.UpdateVehicle(ctx, "1HGCM82633A004352", VehiclePatch{Model: strPtr("OBD-9")}, "admin")
	if !errors.Is(err, apperr.ErrSwmUpdate) || res.Mirror != MirrorFailed {
		t.Fatalf("UpdateVehicle() = %+v, %v, want failed mirror", res, err)
	}
}

func TestService_DeleteVehicle(t *testing.T) {
	tests := []struct {
		name        string
		deleteOK    bool
		deleteErr   error
		wantMirror  MirrorOutcome
		wantErrCode *apperr.Error
	}{
		{name: "mirrored", deleteOK: true, wantMirror: MirrorDone},
		{name: "unknown to swm", deleteOK: false, wantMirror: MirrorNotFound},
		{name: "swm failure", deleteErr: apperr.ErrSwmDelete, wantMirror: MirrorFailed, wantErrCode: apperr.ErrSwmDelete},
		{name: "session failure", deleteErr: apperr.ErrSessionNull, wantMirror: MirrorFailed, wantErrCode: apperr.ErrSessionNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mirror := newFakeMirror()
			mirror.deleteOK = tt.deleteOK
			mirror.deleteErr = tt.deleteErr
			svc, repo, _ := setupTestService(t, mirror)
			ctx := context.Background()

			if _, err := svc.Create(ctx, obdRequest("OB0001", "356938035643811", "1HGCM82633A004352"), "admin"); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			res, err := svc.DeleteVehicle(ctx, "1HGCM82633A004352", "admin")
			if tt.wantErrCode == nil && err != nil {
				t.Fatalf("DeleteVehicle() error = %v", err)
			}
			if tt.wantErrCode != nil && !errors.Is(err, tt.wantErrCode) {
				t.Fatalf("DeleteVehicle() error = %v, want %v", err, tt.wantErrCode)
			}
			if res.Mirror != tt.wantMirror {
				t.Errorf("Mirror = %q, want %q", res.Mirror, tt.wantMirror)
			}

			rec, err := repo.FindBySerialNumber(ctx, "OB0001")
			if err != nil {
				t.Fatalf("FindBySerialNumber() error = %v", err)
			}
			if rec.State != StateDecommissioned {
				t.Errorf("State = %q, want DECOMMISSIONED", rec.State)
			}
		})
	}
}

func TestService_DeleteVehicleUnknownVin(t *testing.T) {
	mirror := newFakeMirror()
	svc, _, _ := setupTestService(t, mirror)

	if _, err := svc.DeleteVehicle(context.Background(), "1HGCM82633A004352", "admin"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("DeleteVehicle() error = %v, want ErrNotFound", err)
	}
	if len(mirror.deleted) != 0 {
		t.Errorf("mirror called for a VIN with no local record")
	}
}

func TestService_MirrorDisabled(t *testing.T) {
	svc, _, _ := setupTestService(t, nil)

	res, err := svc.Create(context.Background(), obdRequest("OB0001", "356938035643811", "1HGCM82633A004352"), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Mirror != MirrorSkipped {
		t.Errorf("Mirror = %q, want skipped", res.Mirror)
	}
}

func TestService_SearchCountAndStates(t *testing.T) {
	svc, repo, _ := setupTestService(t, nil)
	seedSearchData(t, repo)
	ctx := context.Background()

	page, err := svc.Search(ctx, SearchQuery{LikeFields: "device_type", LikeValues: "dashcam", Size: "2"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(page.Items) != 2 || page.Total != 3 {
		t.Errorf("Search() items = %d total = %d, want 2 of 3", len(page.Items), page.Total)
	}
	if !page.IsFirst() || page.IsLast() {
		t.Errorf("page 1 of 2: IsFirst = %v IsLast = %v", page.IsFirst(), page.IsLast())
	}

	count, err := svc.Count(ctx, SearchQuery{State: "decommissioned"})
	if err != nil || count != 1 {
		t.Errorf("Count(decommissioned) = %d, %v, want 1", count, err)
	}

	states, err := svc.CountByState(ctx, SearchQuery{})
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if states[StateProvisioned] != 4 || states[StateDecommissioned] != 1 || states[StateActive] != 0 {
		t.Errorf("CountByState() = %v", states)
	}
	if len(states) != len(AllStates()) {
		t.Errorf("CountByState() has %d states, want every state", len(states))
	}

	if _, err := svc.Search(ctx, SearchQuery{Size: "5001"}); !errors.Is(err, apperr.ErrInvalidSize) {
		t.Errorf("Search(size 5001) error = %v, want ErrInvalidSize", err)
	}
}

func TestService_History(t *testing.T) {
	svc, _, _ := setupTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, dashcamRequest("DC0001", "356938035643809"), "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	entries, err := svc.History(ctx, "DC0001", 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("History() = %d entries, %v", len(entries), err)
	}

	if _, err := svc.History(ctx, "bad!", 0); !errors.Is(err, apperr.ErrInvalidSerial) {
		t.Errorf("History(bad serial) error = %v, want ErrInvalidSerial", err)
	}
}
