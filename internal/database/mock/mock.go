// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// MockDirectory is an in-memory implementation of database.EmployeeWriter.
type MockDirectory struct {
	mu        sync.RWMutex
	employees map[string]*database.Employee

	// Error injection
	GetError    error
	ListError   error
	CreateError error
	UpdateError error
}

// NewMockDirectory creates an empty mock employee directory.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{employees: make(map[string]*database.Employee)}
}

// AddEmployee seeds an employee into the mock store.
func (m *MockDirectory) AddEmployee(emp database.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.EmployeeID] = &emp
}

// Get retrieves an employee by ID regardless of active state.
func (m *MockDirectory) Get(ctx context.Context, employeeID string) (*database.Employee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[employeeID]
	if !ok {
		return nil, nil
	}
	cp := *emp
	return &cp, nil
}

// GetByCode retrieves an active employee by code.
func (m *MockDirectory) GetByCode(ctx context.Context, employeeCode string) (*database.Employee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, emp := range m.employees {
		if emp.IsActive && emp.EmployeeCode == employeeCode {
			cp := *emp
			return &cp, nil
		}
	}
	return nil, nil
}

// List returns active employees ordered by name, optionally filtered by
// normalized department.
func (m *MockDirectory) List(ctx context.Context, department string) ([]database.Employee, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := database.NormalizeName(department)
	var out []database.Employee
	for _, emp := range m.employees {
		if !emp.IsActive {
			continue
		}
		if want != "" && database.NormalizeName(emp.Department) != want {
			continue
		}
		out = append(out, *emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ActiveEmbeddings returns active employees with a face enrollment.
func (m *MockDirectory) ActiveEmbeddings(ctx context.Context) ([]database.Employee, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Employee
	for _, emp := range m.employees {
		if emp.IsActive && len(emp.Embedding) > 0 {
			out = append(out, *emp)
		}
	}
	// Stable order keeps matcher tests deterministic regardless of map order.
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// Create inserts an employee.
func (m *MockDirectory) Create(ctx context.Context, emp *database.Employee) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *emp
	m.employees[emp.EmployeeID] = &cp
	return nil
}

// Update applies a partial update to an active employee.
func (m *MockDirectory) Update(ctx context.Context, employeeID string, upd database.EmployeeUpdate) (*database.Employee, error) {
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.employees[employeeID]
	if !ok || !emp.IsActive {
		return nil, nil
	}
	if upd.Name != nil {
		emp.Name = *upd.Name
	}
	if upd.Department != nil {
		emp.Department = *upd.Department
	}
	if upd.FaceID != nil {
		emp.FaceID = *upd.FaceID
	}
	if upd.Embedding != nil {
		emp.Embedding = append([]float32(nil), upd.Embedding...)
	}
	cp := *emp
	return &cp, nil
}

// Deactivate soft-deletes an employee.
func (m *MockDirectory) Deactivate(ctx context.Context, employeeID string) (bool, error) {
	if m.UpdateError != nil {
		return false, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.employees[employeeID]
	if !ok || !emp.IsActive {
		return false, nil
	}
	emp.IsActive = false
	return true, nil
}

// MockLedger is an in-memory implementation of database.AttendanceLedger.
type MockLedger struct {
	mu     sync.RWMutex
	events map[string]*database.AttendanceEvent

	// Error injection
	GetError    error
	InsertError error
	UpdateError error
	QueryError  error
}

// NewMockLedger creates an empty mock attendance ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{events: make(map[string]*database.AttendanceEvent)}
}

// AddEvent seeds an event into the mock ledger.
func (m *MockLedger) AddEvent(event database.AttendanceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = &event
}

// Get retrieves an event by ID.
func (m *MockLedger) Get(ctx context.Context, id string) (*database.AttendanceEvent, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

// LatestSince returns the newest event for (employeeID, check) with
// timestamp strictly greater than sinceMs.
func (m *MockLedger) LatestSince(ctx context.Context, employeeID string, check database.CheckType, sinceMs int64) (*database.AttendanceEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *database.AttendanceEvent
	for _, ev := range m.events {
		if ev.EmployeeID != employeeID || ev.CheckType != check || ev.Timestamp <= sinceMs {
			continue
		}
		if latest == nil || ev.Timestamp > latest.Timestamp {
			latest = ev
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Insert appends a new event.
func (m *MockLedger) Insert(ctx context.Context, event *database.AttendanceEvent) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

// MarkSynced updates sync status and optionally location.
func (m *MockLedger) MarkSynced(ctx context.Context, id string, location string, syncedAtMs int64) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil
	}
	ev.SyncStatus = database.SyncSynced
	ev.SyncedAt = syncedAtMs
	if location != "" {
		ev.Location = location
	}
	return nil
}

// History returns events within [fromMs, toMs], newest first.
func (m *MockLedger) History(ctx context.Context, employeeID string, fromMs, toMs int64) ([]database.AttendanceEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.AttendanceEvent
	for _, ev := range m.events {
		if ev.EmployeeID == employeeID && ev.Timestamp >= fromMs && ev.Timestamp <= toMs {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// EarliestTimestamp returns the earliest matching timestamp in range.
func (m *MockLedger) EarliestTimestamp(ctx context.Context, employeeID string, check database.CheckType, fromMs, toMs int64) (int64, bool, error) {
	if m.QueryError != nil {
		return 0, false, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best int64
	found := false
	for _, ev := range m.events {
		if ev.EmployeeID != employeeID || ev.CheckType != check || ev.Timestamp < fromMs || ev.Timestamp > toMs {
			continue
		}
		if !found || ev.Timestamp < best {
			best = ev.Timestamp
			found = true
		}
	}
	return best, found, nil
}

// LatestTimestamp returns the latest matching timestamp in range.
func (m *MockLedger) LatestTimestamp(ctx context.Context, employeeID string, check database.CheckType, fromMs, toMs int64) (int64, bool, error) {
	if m.QueryError != nil {
		return 0, false, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best int64
	found := false
	for _, ev := range m.events {
		if ev.EmployeeID != employeeID || ev.CheckType != check || ev.Timestamp < fromMs || ev.Timestamp > toMs {
			continue
		}
		if !found || ev.Timestamp > best {
			best = ev.Timestamp
			found = true
		}
	}
	return best, found, nil
}

// DaysPresent counts distinct UTC days with at least one event in range.
func (m *MockLedger) DaysPresent(ctx context.Context, employeeID string, fromMs, toMs int64) (int, error) {
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	days := make(map[int64]struct{})
	for _, ev := range m.events {
		if ev.EmployeeID == employeeID && ev.Timestamp >= fromMs && ev.Timestamp <= toMs {
			days[ev.Timestamp/86400000] = struct{}{}
		}
	}
	return len(days), nil
}

// Count returns the number of stored events.
func (m *MockLedger) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// MockTrialStore is an in-memory implementation of database.TrialDeviceStore.
type MockTrialStore struct {
	mu      sync.RWMutex
	devices map[string]*database.TrialDevice

	// Error injection
	GetError    error
	UpsertError error
}

// NewMockTrialStore creates an empty mock trial device store.
func NewMockTrialStore() *MockTrialStore {
	return &MockTrialStore{devices: make(map[string]*database.TrialDevice)}
}

func trialKeyFor(deviceID, trialKey string) string {
	return deviceID + "\x00" + trialKey
}

// AddDevice seeds a device registration.
func (m *MockTrialStore) AddDevice(dev database.TrialDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[trialKeyFor(dev.DeviceID, dev.TrialKey)] = &dev
}

// Get retrieves a device registration.
func (m *MockTrialStore) Get(ctx context.Context, deviceID, trialKey string) (*database.TrialDevice, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	dev, ok := m.devices[trialKeyFor(deviceID, trialKey)]
	if !ok {
		return nil, nil
	}
	cp := *dev
	return &cp, nil
}

// CountByKey counts registrations for a trial key.
func (m *MockTrialStore) CountByKey(ctx context.Context, trialKey string) (int, error) {
	if m.GetError != nil {
		return 0, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, dev := range m.devices {
		if dev.TrialKey == trialKey {
			count++
		}
	}
	return count, nil
}

// Upsert inserts or refreshes a device registration, preserving the
// original registration time.
func (m *MockTrialStore) Upsert(ctx context.Context, dev *database.TrialDevice) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := trialKeyFor(dev.DeviceID, dev.TrialKey)
	cp := *dev
	if existing, ok := m.devices[key]; ok {
		cp.RegisteredAt = existing.RegisteredAt
	}
	m.devices[key] = &cp
	return nil
}
