package factorydata

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/database"
	_ "github.com/nerrad567/factory-data-core/migrations"
)

// testClock is the fixed time used by repositories in tests.
var testClock = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// setupTestDB opens an in-memory database with every migration applied.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

// setupTestRepo returns a repository over a migrated database with a fixed
// clock.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	repo.now = func() time.Time { return testClock }
	return repo
}

func testFactoryConfig() config.FactoryDataConfig {
	return config.FactoryDataConfig{
		AllowedDeviceTypes: []string{"dashcam", "telematics", "obd"},
		ImeiMinLength:      3,
		SerialMinLength:    6,
		DefaultPageSize:    20,
		MaxPageSize:        5000,
	}
}

// dashcamRequest returns a request with every dashcam mandatory field set.
func dashcamRequest(serial, imei string) CreateRequest {
	return CreateRequest{
		ManufacturingDate: "2026/01/15",
		Model:             "DC-200",
		Imei:              imei,
		SerialNumber:      serial,
		PlatformVersion:   "1.4.2",
		Iccid:             "8944500102198304826",
		RecordDate:        "2026/02/01",
		DeviceType:        "dashcam",
		Region:            "EU",
	}
}

// obdRequest returns a request with every obd mandatory field set.
func obdRequest(serial, imei, vin string) CreateRequest {
	return CreateRequest{
		Model:        "OBD-7",
		Imei:         imei,
		SerialNumber: serial,
		DeviceType:   "obd",
		Region:       "US",
		Vin:          vin,
	}
}

func mustCreate(t *testing.T, repo *SQLiteRepository, req CreateRequest) *DeviceFactoryData {
	t.Helper()
	rec, ok, err := repo.Create(context.Background(), &req, "factory-admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !ok {
		t.Fatal("Create() ok = false, want true")
	}
	return rec
}

func strPtr(s string) *string {
	return &s
}
