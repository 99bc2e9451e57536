package factorydata

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nerrad567/factory-data-core/internal/apperr"
)

// seedSearchData creates five records: three dashcams (one decommissioned)
// and two obd units with VINs.
func seedSearchData(t *testing.T, repo *SQLiteRepository) []*DeviceFactoryData {
	t.Helper()

	var recs []*DeviceFactoryData
	for _, req := range []CreateRequest{
		dashcamRequest("DC0001", "356938035640001"),
		dashcamRequest("DC0002", "356938035640002"),
		dashcamRequest("DC0003", "356938035640003"),
		obdRequest("OB0001", "356938035650001", "1HGCM82633A000001"),
		obdRequest("OB0002", "356938035650002", "1HGCM82633A000002"),
	} {
		recs = append(recs, mustCreate(t, repo, req))
	}

	if _, err := repo.Decommission(context.Background(), "1HGCM82633A000002", "admin"); err != nil {
		t.Fatalf("Decommission() error = %v", err)
	}
	return recs
}

func TestSQLiteRepository_FindByInputType(t *testing.T) {
	repo := setupTestRepo(t)
	recs := seedSearchData(t, repo)
	ctx := context.Background()

	tests := []struct {
		name    string
		search  Search
		wantIDs []int64
	}{
		{
			name:    "imei",
			search:  Search{InputType: InputImei, Inputs: []string{"356938035640002"}},
			wantIDs: []int64{recs[1].ID},
		},
		{
			name:    "serial numbers",
			search:  Search{InputType: InputSerialNumber, Inputs: []string{"DC0001", "OB0001"}},
			wantIDs: []int64{recs[0].ID, recs[3].ID},
		},
		{
			name:    "device id",
			search:  Search{InputType: InputDeviceID, Inputs: []string{"3"}},
			wantIDs: []int64{3},
		},
		{
			name:    "vin",
			search:  Search{InputType: InputVin, Inputs: []string{"1HGCM82633A000001"}},
			wantIDs: []int64{recs[3].ID},
		},
		{
			name:    "no filters",
			search:  Search{},
			wantIDs: []int64{recs[0].ID, recs[1].ID, recs[2].ID, recs[3].ID, recs[4].ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.search)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			assertIDs(t, got, tt.wantIDs)
		})
	}
}

func TestSQLiteRepository_FindFilters(t *testing.T) {
	repo := setupTestRepo(t)
	recs := seedSearchData(t, repo)
	ctx := context.Background()

	tests := []struct {
		name    string
		search  Search
		wantIDs []int64
	}{
		{
			name:    "state",
			search:  Search{States: []State{StateDecommissioned}},
			wantIDs: []int64{recs[4].ID},
		},
		{
			name:    "like is case insensitive",
			search:  Search{LikeFields: []string{"model"}, LikeValues: []string{"obd"}},
			wantIDs: []int64{recs[3].ID, recs[4].ID},
		},
		{
			name:    "like wildcards match literally",
			search:  Search{LikeFields: []string{"model", "region"}, LikeValues: []string{"%", "_"}},
			wantIDs: nil,
		},
		{
			name:    "like hyphen still matches",
			search:  Search{LikeFields: []string{"model"}, LikeValues: []string{"c-2"}},
			wantIDs: []int64{recs[0].ID, recs[1].ID, recs[2].ID},
		},
		{
			name:    "id range",
			search:  Search{RangeFields: []string{"id_id"}, RangeValues: []string{"2_3"}},
			wantIDs: []int64{recs[1].ID, recs[2].ID},
		},
		{
			name:    "manufacturing date range",
			search:  Search{RangeFields: []string{"manufacturing_date_manufacturing_date"}, RangeValues: []string{"2026-01-01_2026-01-31"}},
			wantIDs: []int64{recs[0].ID, recs[1].ID, recs[2].ID},
		},
		{
			name: "combined",
			search: Search{
				InputType:  InputSerialNumber,
				Inputs:     []string{"DC0001", "DC0002", "OB0002"},
				States:     []State{StateProvisioned},
				LikeFields: []string{"region"},
				LikeValues: []string{"eu"},
			},
			wantIDs: []int64{recs[0].ID, recs[1].ID},
		},
		{
			name:    "mismatched like lists are ignored",
			search:  Search{LikeFields: []string{"model", "region"}, LikeValues: []string{"obd"}},
			wantIDs: []int64{recs[0].ID, recs[1].ID, recs[2].ID, recs[3].ID, recs[4].ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.search)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			assertIDs(t, got, tt.wantIDs)
		})
	}
}

func TestSQLiteRepository_FindSortAndPage(t *testing.T) {
	repo := setupTestRepo(t)
	recs := seedSearchData(t, repo)
	ctx := context.Background()

	got, err := repo.Find(ctx, Search{SortBy: "id", Order: "desc", Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	assertIDs(t, got, []int64{recs[4].ID, recs[3].ID})

	got, err = repo.Find(ctx, Search{SortBy: "id", Order: "desc", Page: 3, Size: 2})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	assertIDs(t, got, []int64{recs[0].ID})

	got, err = repo.Find(ctx, Search{Page: 4, Size: 2})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Find(past last page) len = %d, want 0", len(got))
	}
}

func TestSQLiteRepository_FindPageOverflow(t *testing.T) {
	repo := setupTestRepo(t)
	seedSearchData(t, repo)

	_, err := repo.Find(context.Background(), Search{Page: math.MaxInt64, Size: 20})
	if !errors.Is(err, apperr.ErrInvalidPage) {
		t.Fatalf("Find() error = %v, want ErrInvalidPage", err)
	}

	// The largest page whose offset still fits is simply past the end.
	got, err := repo.Find(context.Background(), Search{Page: math.MaxInt64, Size: 1})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Find(huge page) len = %d, want 0", len(got))
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, size int
		want       int64
		wantOK     bool
	}{
		{1, 20, 0, true},
		{3, 20, 40, true},
		{math.MaxInt64, 1, math.MaxInt64 - 1, true},
		{math.MaxInt64, 20, 0, false},
		{math.MaxInt64/20 + 2, 20, 0, false},
	}
	for _, tt := range tests {
		got, ok := pageOffset(tt.page, tt.size)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("pageOffset(%d, %d) = %d, %v; want %d, %v", tt.page, tt.size, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPage_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		page      Page
		wantFirst bool
		wantLast  bool
	}{
		{"only page", Page{Page: 1, Size: 20, Total: 5}, true, true},
		{"first of two", Page{Page: 1, Size: 2, Total: 3}, true, false},
		{"exact last", Page{Page: 2, Size: 2, Total: 4}, false, true},
		{"past the end", Page{Page: 9, Size: 2, Total: 4}, false, true},
		{"huge page", Page{Page: math.MaxInt64, Size: 20, Total: 1}, false, true},
		{"empty result", Page{Page: 1, Size: 20, Total: 0}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.page.IsFirst(); got != tt.wantFirst {
				t.Errorf("IsFirst() = %v, want %v", got, tt.wantFirst)
			}
			if got := tt.page.IsLast(); got != tt.wantLast {
				t.Errorf("IsLast() = %v, want %v", got, tt.wantLast)
			}
		})
	}
}

func TestSQLiteRepository_FindInvalidRange(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Find(context.Background(), Search{RangeFields: []string{"id_id"}, RangeValues: []string{"1_1_1"}})
	if !errors.Is(err, apperr.ErrInvalidRange) {
		t.Fatalf("Find() error = %v, want ErrInvalidRange", err)
	}
}

func TestSQLiteRepository_Count(t *testing.T) {
	repo := setupTestRepo(t)
	seedSearchData(t, repo)
	ctx := context.Background()

	total, err := repo.Count(ctx, Search{Page: 1, Size: 1})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 5 {
		t.Errorf("Count() = %d, want 5 (pagination ignored)", total)
	}

	total, err = repo.Count(ctx, Search{LikeFields: []string{"device_type"}, LikeValues: []string{"dash"}})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 3 {
		t.Errorf("Count(dashcam) = %d, want 3", total)
	}
}

func TestSQLiteRepository_CountByState(t *testing.T) {
	repo := setupTestRepo(t)
	seedSearchData(t, repo)

	counts, err := repo.CountByState(context.Background(), Search{})
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if counts[StateProvisioned] != 4 || counts[StateDecommissioned] != 1 {
		t.Errorf("CountByState() = %v, want 4 PROVISIONED, 1 DECOMMISSIONED", counts)
	}
	if _, ok := counts[StateActive]; ok {
		t.Errorf("CountByState() reported ACTIVE with no matching rows")
	}
}

func assertIDs(t *testing.T, got []DeviceFactoryData, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("record[%d].ID = %d, want %d", i, got[i].ID, want[i])
		}
	}
}
