package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/attendance-server/internal/database"
)

// HNSW index parameters for face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchCandidates is how many nearest neighbors are pulled from
	// the index per query before the exact re-scoring pass. More than one
	// so the deterministic tie-break sees all near-equal candidates.
	hnswSearchCandidates = 8
)

// HNSWMatcher is a Matcher backed by an in-memory HNSW index over enrolled
// employee embeddings. Same contract as ScanMatcher; the index only changes
// candidate selection, the reported similarity is always recomputed exactly.
//
// The index snapshots enrollment state at build time. Call Rebuild after
// registering or updating embeddings.
type HNSWMatcher struct {
	directory database.EmployeeDirectory
	dim       int

	mu           sync.RWMutex
	graph        *hnsw.Graph[string]
	idToEmployee map[string]*database.Employee
}

// NewHNSWMatcher creates an HNSW-backed matcher. The index is empty until
// the first Rebuild.
func NewHNSWMatcher(directory database.EmployeeDirectory, dim int) *HNSWMatcher {
	return &HNSWMatcher{
		directory:    directory,
		dim:          dim,
		idToEmployee: make(map[string]*database.Employee),
	}
}

// Rebuild reloads all active enrollments from the directory and rebuilds
// the index from scratch. Safe for concurrent use with Match.
func (m *HNSWMatcher) Rebuild(ctx context.Context) error {
	employees, err := m.directory.ActiveEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("loading enrolled embeddings: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	idTo := make(map[string]*database.Employee, len(employees))
	for i := range employees {
		emp := &employees[i]
		if len(emp.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(emp.EmployeeID, emp.Embedding))
		idTo[emp.EmployeeID] = emp
	}

	m.mu.Lock()
	m.graph = g
	m.idToEmployee = idTo
	m.mu.Unlock()
	return nil
}

// Count returns the number of enrollments currently indexed.
func (m *HNSWMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.idToEmployee)
}

// Match searches the index for nearest neighbors, then re-scores them with
// exact cosine similarity and applies the lowest-employee-ID tie-break.
func (m *HNSWMatcher) Match(ctx context.Context, query []float32, threshold float64) (*Result, error) {
	if err := validateQuery(query, m.dim); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph == nil || len(m.idToEmployee) == 0 {
		return nil, nil
	}

	neighbors := m.graph.Search(query, hnswSearchCandidates)

	var best *Result
	for _, n := range neighbors {
		emp, ok := m.idToEmployee[n.Key]
		if !ok || len(emp.Embedding) != len(query) {
			continue
		}
		// Recompute exact similarity; the graph distance is approximate
		// and must not decide ties.
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
