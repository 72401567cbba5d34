package match

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/kozaktomas/attendance-server/internal/database/mock"
)

func seedDirectory(t *testing.T, employees ...database.Employee) *mock.MockDirectory {
	t.Helper()
	dir := mock.NewMockDirectory()
	for _, emp := range employees {
		dir.AddEmployee(emp)
	}
	return dir
}

func TestScanMatcher_ExactMatch(t *testing.T) {
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-1", EmployeeCode: "E001", Name: "Alice", IsActive: true, Embedding: []float32{1, 0, 0}},
		database.Employee{EmployeeID: "emp-2", EmployeeCode: "E002", Name: "Bob", IsActive: true, Embedding: []float32{0, 1, 0}},
	)
	m := NewScanMatcher(dir, 3)

	result, err := m.Match(context.Background(), []float32{1, 0, 0}, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a match, got nil")
	}
	if result.EmployeeID != "emp-1" {
		t.Errorf("expected emp-1, got %s", result.EmployeeID)
	}
	if math.Abs(result.Similarity-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0, got %f", result.Similarity)
	}
	if !result.Matched {
		t.Error("expected Matched to be true")
	}
}

func TestScanMatcher_BelowThreshold(t *testing.T) {
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-1", IsActive: true, Embedding: []float32{1, 0, 0}},
	)
	m := NewScanMatcher(dir, 3)

	// Orthogonal query scores 0, far below any sane threshold.
	result, err := m.Match(context.Background(), []float32{0, 1, 0}, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected no match, got %s at %f", result.EmployeeID, result.Similarity)
	}
}

func TestScanMatcher_JustBelowThreshold(t *testing.T) {
	// cos(angle) between (1,0) and (0.95, sqrt(1-0.95^2)) is exactly 0.95;
	// nudge below so the comparison is unambiguous.
	enrolled := []float32{0.94, float32(math.Sqrt(1 - 0.94*0.94))}
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-1", IsActive: true, Embedding: enrolled},
	)
	m := NewScanMatcher(dir, 2)

	result, err := m.Match(context.Background(), []float32{1, 0}, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected no match at similarity ~0.94, got %f", result.Similarity)
	}
}

func TestScanMatcher_TieBreakLowestID(t *testing.T) {
	// Two employees share an identical embedding; the lower employee ID
	// must win every time.
	shared := []float32{0.6, 0.8, 0}
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-b", IsActive: true, Embedding: shared},
		database.Employee{EmployeeID: "emp-a", IsActive: true, Embedding: shared},
		database.Employee{EmployeeID: "emp-c", IsActive: true, Embedding: shared},
	)
	m := NewScanMatcher(dir, 3)

	for i := 0; i < 10; i++ {
		result, err := m.Match(context.Background(), shared, 0.95)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			t.Fatal("expected a match, got nil")
		}
		if result.EmployeeID != "emp-a" {
			t.Fatalf("tie-break must pick lowest employee ID, got %s", result.EmployeeID)
		}
	}
}

func TestScanMatcher_InvalidQuery(t *testing.T) {
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-1", IsActive: true, Embedding: []float32{1, 0, 0}},
	)
	m := NewScanMatcher(dir, 3)

	tests := []struct {
		name  string
		query []float32
	}{
		{"empty", nil},
		{"wrong dimension", []float32{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Match(context.Background(), tt.query, 0.95)
			if !errors.Is(err, ErrInvalidEmbedding) {
				t.Errorf("expected ErrInvalidEmbedding, got %v", err)
			}
		})
	}
}

func TestScanMatcher_SkipsInactive(t *testing.T) {
	dir := seedDirectory(t,
		database.Employee{EmployeeID: "emp-1", IsActive: false, Embedding: []float32{1, 0, 0}},
	)
	m := NewScanMatcher(dir, 3)

	result, err := m.Match(context.Background(), []float32{1, 0, 0}, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("inactive employees must not match")
	}
}

func TestScanMatcher_EmptyCorpus(t *testing.T) {
	m := NewScanMatcher(mock.NewMockDirectory(), 3)

	result, err := m.Match(context.Background(), []float32{1, 0, 0}, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("expected no match against empty corpus")
	}
}

func TestScanMatcher_DirectoryError(t *testing.T) {
	dir := mock.NewMockDirectory()
	dir.ListError = errors.New("connection refused")
	m := NewScanMatcher(dir, 3)

	_, err := m.Match(context.Background(), []float32{1, 0, 0}, 0.95)
	if err == nil {
		t.Fatal("expected error from directory failure")
	}
}
