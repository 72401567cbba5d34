package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// ErrInvalidEmbedding is returned when a query embedding is empty or has
// the wrong dimensionality.
var ErrInvalidEmbedding = errors.New("invalid embedding")

// tieEpsilon is the tolerance for treating two similarity scores as equal.
const tieEpsilon = 1e-9

// Result is the outcome of a successful similarity match.
type Result struct {
	EmployeeID   string
	EmployeeCode string
	Name         string
	Department   string
	Similarity   float64
	Matched      bool
}

// Matcher matches a query embedding against enrolled employees.
// Match returns nil when no employee scores at or above the threshold;
// that is a normal outcome, not an error.
//
// When several employees share the top score (within a small epsilon)
// the one with the lowest employee ID wins, so repeated calls are
// deterministic.
type Matcher interface {
	Match(ctx context.Context, query []float32, threshold float64) (*Result, error)
}

// Rebuilder is implemented by matchers that cache enrollment state and
// need a refresh after embeddings change.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// ScanMatcher is a full-scan Matcher over the employee directory.
// Every call fetches all active enrollments and computes cosine similarity
// against each, so it is always fresh. Fine at registration scale
// (hundreds to low thousands); HNSWMatcher serves larger corpora.
type ScanMatcher struct {
	directory database.EmployeeDirectory
	dim       int
}

// NewScanMatcher creates a full-scan matcher. dim is the expected
// embedding dimensionality; queries of any other length are rejected.
func NewScanMatcher(directory database.EmployeeDirectory, dim int) *ScanMatcher {
	return &ScanMatcher{directory: directory, dim: dim}
}

// Match scans all active enrollments and returns the best match at or
// above threshold, or nil when nothing qualifies.
func (m *ScanMatcher) Match(ctx context.Context, query []float32, threshold float64) (*Result, error) {
	if err := validateQuery(query, m.dim); err != nil {
		return nil, err
	}

	employees, err := m.directory.ActiveEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading enrolled embeddings: %w", err)
	}

	var best *Result
	for i := range employees {
		emp := &employees[i]
		if len(emp.Embedding) != len(query) {
			continue
		}
		sim := CosineSimilarity(query, emp.Embedding)
		if !betterCandidate(best, sim, emp.EmployeeID) {
			continue
		}
		best = &Result{
			EmployeeID:   emp.EmployeeID,
			EmployeeCode: emp.EmployeeCode,
			Name:         emp.Name,
			Department:   emp.Department,
			Similarity:   sim,
			Matched:      true,
		}
	}

	if best == nil || best.Similarity < threshold {
		return nil, nil
	}
	return best, nil
}

// validateQuery checks the query embedding shape.
func validateQuery(query []float32, dim int) error {
	if len(query) == 0 {
		return fmt.Errorf("%w: empty query", ErrInvalidEmbedding)
	}
	if dim > 0 && len(query) != dim {
		return fmt.Errorf("%w: got %d dimensions, expected %d", ErrInvalidEmbedding, len(query), dim)
	}
	return nil
}

// betterCandidate reports whether a candidate with the given similarity and
// employee ID should replace the current best. Scores within tieEpsilon are
// treated as equal and broken by lowest employee ID.
func betterCandidate(best *Result, sim float64, employeeID string) bool {
	if best == nil {
		return true
	}
	if sim > best.Similarity+tieEpsilon {
		return true
	}
	if sim >= best.Similarity-tieEpsilon && employeeID < best.EmployeeID {
		return true
	}
	return false
}
