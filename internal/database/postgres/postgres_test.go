//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(seed float32) []float32 {
	emb := make([]float32, 512)
	for i := range emb {
		emb[i] = seed + float32(i)/512.0
	}
	return emb
}

func TestEmployeeRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEmployeeRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		emp := &database.Employee{
			EmployeeID:   "emp-1",
			EmployeeCode: "E001",
			Name:         "Alice",
			Department:   "Engineering",
			Embedding:    testEmbedding(0.1),
			IsActive:     true,
			RegisteredAt: 1700000000000,
		}
		if err := repo.Create(ctx, emp); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}

		got, err := repo.Get(ctx, "emp-1")
		if err != nil {
			t.Fatalf("Failed to get employee: %v", err)
		}
		if got == nil {
			t.Fatal("Expected employee, got nil")
		}
		if got.EmployeeCode != "E001" {
			t.Errorf("Expected code E001, got %s", got.EmployeeCode)
		}
		if got.RegisteredAt != 1700000000000 {
			t.Errorf("Millisecond timestamp must round-trip, got %d", got.RegisteredAt)
		}
		if len(got.Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(got.Embedding))
		}
	})

	t.Run("GetByCode", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, "E001")
		if err != nil {
			t.Fatalf("Failed to get by code: %v", err)
		}
		if got == nil || got.EmployeeID != "emp-1" {
			t.Errorf("Expected emp-1, got %+v", got)
		}
	})

	t.Run("ListWithDepartmentFilter", func(t *testing.T) {
		if err := repo.Create(ctx, &database.Employee{
			EmployeeID:   "emp-2",
			EmployeeCode: "E002",
			Name:         "Bob",
			Department:   "Výroba",
			IsActive:     true,
			RegisteredAt: 1700000000000,
		}); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}

		list, err := repo.List(ctx, "vyroba")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(list) != 1 || list[0].EmployeeID != "emp-2" {
			t.Errorf("Diacritics-insensitive filter failed, got %+v", list)
		}
	})

	t.Run("UpdatePartial", func(t *testing.T) {
		dept := "Operations"
		got, err := repo.Update(ctx, "emp-1", database.EmployeeUpdate{Department: &dept})
		if err != nil {
			t.Fatalf("Failed to update: %v", err)
		}
		if got == nil || got.Department != "Operations" {
			t.Errorf("Expected Operations, got %+v", got)
		}
		if got.Name != "Alice" {
			t.Errorf("Untouched fields must survive, got name %s", got.Name)
		}
	})

	t.Run("ActiveEmbeddingsOrdered", func(t *testing.T) {
		list, err := repo.ActiveEmbeddings(ctx)
		if err != nil {
			t.Fatalf("Failed to load embeddings: %v", err)
		}
		// emp-2 has no embedding, only emp-1 qualifies.
		if len(list) != 1 || list[0].EmployeeID != "emp-1" {
			t.Errorf("Expected only emp-1, got %+v", list)
		}
	})

	t.Run("Deactivate", func(t *testing.T) {
		ok, err := repo.Deactivate(ctx, "emp-2")
		if err != nil {
			t.Fatalf("Failed to deactivate: %v", err)
		}
		if !ok {
			t.Fatal("Expected deactivation to succeed")
		}
		list, err := repo.List(ctx, "")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		for _, emp := range list {
			if emp.EmployeeID == "emp-2" {
				t.Error("Deactivated employee must not be listed")
			}
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	employees := NewEmployeeRepository(pool)
	repo := NewAttendanceRepository(pool)

	if err := employees.Create(ctx, &database.Employee{
		EmployeeID: "emp-1", EmployeeCode: "E001", Name: "Alice",
		Department: "Engineering", IsActive: true, RegisteredAt: 1700000000000,
	}); err != nil {
		t.Fatalf("Failed to create employee: %v", err)
	}

	base := int64(1700000000000)

	t.Run("InsertAndGet", func(t *testing.T) {
		ev := &database.AttendanceEvent{
			ID:           "ev-1",
			EmployeeID:   "emp-1",
			EmployeeCode: "E001",
			CheckType:    database.CheckIn,
			Timestamp:    base,
			DeviceID:     "tablet-1",
			Location:     "HQ",
			SyncStatus:   database.SyncSynced,
			Mode:         database.ModeOnline,
			Confidence:   1.0,
			SyncedAt:     base,
		}
		if err := repo.Insert(ctx, ev); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}

		got, err := repo.Get(ctx, "ev-1")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got == nil {
			t.Fatal("Expected event, got nil")
		}
		if got.Timestamp != base {
			t.Errorf("Millisecond timestamp must round-trip, got %d", got.Timestamp)
		}
	})

	t.Run("LatestSinceStrictlyGreater", func(t *testing.T) {
		// sinceMs equal to the stored timestamp must exclude it.
		got, err := repo.LatestSince(ctx, "emp-1", database.CheckIn, base)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}
		if got != nil {
			t.Errorf("Expected no event at since == timestamp, got %+v", got)
		}

		got, err = repo.LatestSince(ctx, "emp-1", database.CheckIn, base-1)
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}
		if got == nil || got.ID != "ev-1" {
			t.Errorf("Expected ev-1 at since == timestamp-1, got %+v", got)
		}
	})

	t.Run("MarkSynced", func(t *testing.T) {
		if err := repo.MarkSynced(ctx, "ev-1", "Warehouse", base+1000); err != nil {
			t.Fatalf("Failed to mark synced: %v", err)
		}
		got, err := repo.Get(ctx, "ev-1")
		if err != nil || got == nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got.Location != "Warehouse" {
			t.Errorf("Expected refreshed location, got %s", got.Location)
		}
		if got.Timestamp != base {
			t.Errorf("Immutable timestamp changed: %d", got.Timestamp)
		}
	})

	t.Run("HistoryAndBounds", func(t *testing.T) {
		out := &database.AttendanceEvent{
			ID: "ev-2", EmployeeID: "emp-1", EmployeeCode: "E001",
			CheckType: database.CheckOut, Timestamp: base + 8*3600*1000,
			DeviceID: "tablet-1", SyncStatus: database.SyncSynced,
			Mode: database.ModeOnline, Confidence: 1.0, SyncedAt: base,
		}
		if err := repo.Insert(ctx, out); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}

		events, err := repo.History(ctx, "emp-1", base-1000, base+24*3600*1000)
		if err != nil {
			t.Fatalf("Failed to query history: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(events))
		}
		if events[0].ID != "ev-2" {
			t.Errorf("Expected newest first, got %s", events[0].ID)
		}

		first, found, err := repo.EarliestTimestamp(ctx, "emp-1", database.CheckIn, base-1000, base+24*3600*1000)
		if err != nil || !found {
			t.Fatalf("Expected earliest check-in, err %v found %v", err, found)
		}
		if first != base {
			t.Errorf("Expected %d, got %d", base, first)
		}

		last, found, err := repo.LatestTimestamp(ctx, "emp-1", database.CheckOut, base-1000, base+24*3600*1000)
		if err != nil || !found {
			t.Fatalf("Expected latest check-out, err %v found %v", err, found)
		}
		if last != base+8*3600*1000 {
			t.Errorf("Expected %d, got %d", base+8*3600*1000, last)
		}
	})

	t.Run("DaysPresent", func(t *testing.T) {
		nextDay := &database.AttendanceEvent{
			ID: "ev-3", EmployeeID: "emp-1", EmployeeCode: "E001",
			CheckType: database.CheckIn, Timestamp: base + 26*3600*1000,
			DeviceID: "tablet-1", SyncStatus: database.SyncSynced,
			Mode: database.ModeOffline, Confidence: 1.0, SyncedAt: base,
		}
		if err := repo.Insert(ctx, nextDay); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}

		days, err := repo.DaysPresent(ctx, "emp-1", base-1000, base+48*3600*1000)
		if err != nil {
			t.Fatalf("Failed to count days: %v", err)
		}
		if days != 2 {
			t.Errorf("Expected 2 distinct days, got %d", days)
		}
	})
}

func TestTrialDeviceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewTrialDeviceRepository(pool)

	dev := &database.TrialDevice{
		DeviceID:     "dev-1",
		TrialKey:     "SAT-TRIAL-2025-CLIENT-TEST",
		DeviceModel:  "Pixel 7",
		RegisteredAt: 1700000000000,
	}
	if err := repo.Upsert(ctx, dev); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	t.Run("GetAndCount", func(t *testing.T) {
		got, err := repo.Get(ctx, "dev-1", dev.TrialKey)
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got == nil || got.RegisteredAt != 1700000000000 {
			t.Errorf("Unexpected device %+v", got)
		}

		count, err := repo.CountByKey(ctx, dev.TrialKey)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 device, got %d", count)
		}
	})

	t.Run("UpsertPreservesRegistration", func(t *testing.T) {
		again := *dev
		again.RegisteredAt = 1700009999999
		again.AppVersion = "2.1.0"
		if err := repo.Upsert(ctx, &again); err != nil {
			t.Fatalf("Failed to re-upsert: %v", err)
		}

		got, err := repo.Get(ctx, "dev-1", dev.TrialKey)
		if err != nil || got == nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got.RegisteredAt != 1700000000000 {
			t.Errorf("Re-registration must not move the clock, got %d", got.RegisteredAt)
		}
		if got.AppVersion != "2.1.0" {
			t.Errorf("Metadata should refresh, got %s", got.AppVersion)
		}
	})
}
