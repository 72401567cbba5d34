package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-server/internal/database"
)

// EmployeeRepository provides MySQL-backed employee storage. Embeddings are
// stored as JSON float arrays in a text column.
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new MySQL employee repository.
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// encodeEmbedding serializes an embedding to JSON, or NULL when empty.
func encodeEmbedding(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("encoding embedding: %w", err)
	}
	return string(data), nil
}

// decodeEmbedding parses a JSON embedding column, tolerating NULL.
func decodeEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return out, nil
}

const employeeColumns = `employee_id, employee_code, name, department, face_id, embedding, is_active, registered_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*database.Employee, error) {
	var emp database.Employee
	var faceID, rawEmbedding sql.NullString
	var updatedAt sql.NullInt64

	err := row.Scan(
		&emp.EmployeeID,
		&emp.EmployeeCode,
		&emp.Name,
		&emp.Department,
		&faceID,
		&rawEmbedding,
		&emp.IsActive,
		&emp.RegisteredAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	emp.FaceID = faceID.String
	emp.UpdatedAt = updatedAt.Int64
	emp.Embedding, err = decodeEmbedding(rawEmbedding)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// Get retrieves an employee by ID regardless of active state, returns nil if not found.
func (r *EmployeeRepository) Get(ctx context.Context, employeeID string) (*database.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_id = ?`

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee: %w", err)
	}
	return emp, nil
}

// GetByCode retrieves an active employee by employee code, returns nil if not found.
func (r *EmployeeRepository) GetByCode(ctx context.Context, employeeCode string) (*database.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_code = ? AND is_active = 1`

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, employeeCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee by code: %w", err)
	}
	return emp, nil
}

// List returns active employees ordered by name, with the department filter
// normalized in Go to match the Postgres backend exactly.
func (r *EmployeeRepository) List(ctx context.Context, department string) ([]database.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE is_active = 1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	want := database.NormalizeName(department)
	var out []database.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		if want != "" && database.NormalizeName(emp.Department) != want {
			continue
		}
		out = append(out, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

// ActiveEmbeddings returns active employees with a face enrollment,
// ordered by employee ID for deterministic matching.
func (r *EmployeeRepository) ActiveEmbeddings(ctx context.Context) ([]database.Employee, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE is_active = 1 AND embedding IS NOT NULL
		ORDER BY employee_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enrolled employees: %w", err)
	}
	defer rows.Close()

	var out []database.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

// Create inserts a new employee record.
func (r *EmployeeRepository) Create(ctx context.Context, emp *database.Employee) error {
	embedding, err := encodeEmbedding(emp.Embedding)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO employees (employee_id, employee_code, name, department, face_id, embedding, is_active, registered_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)
	`
	_, err = r.pool.Exec(ctx, query,
		emp.EmployeeID,
		emp.EmployeeCode,
		emp.Name,
		emp.Department,
		emp.FaceID,
		embedding,
		emp.IsActive,
		emp.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// Update applies a partial update to an active employee.
func (r *EmployeeRepository) Update(ctx context.Context, employeeID string, upd database.EmployeeUpdate) (*database.Employee, error) {
	embedding, err := encodeEmbedding(upd.Embedding)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE employees
		SET name = COALESCE(?, name),
		    department = COALESCE(?, department),
		    face_id = COALESCE(?, face_id),
		    embedding = COALESCE(?, embedding),
		    updated_at = ?
		WHERE employee_id = ? AND is_active = 1
	`
	result, err := r.pool.Exec(ctx, query,
		upd.Name,
		upd.Department,
		upd.FaceID,
		embedding,
		time.Now().UnixMilli(),
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 rows for no-op updates too, so confirm existence.
		emp, err := r.Get(ctx, employeeID)
		if err != nil || emp == nil || !emp.IsActive {
			return nil, err
		}
		return emp, nil
	}
	return r.Get(ctx, employeeID)
}

// Deactivate soft-deletes an employee. Returns false if no active employee matched.
func (r *EmployeeRepository) Deactivate(ctx context.Context, employeeID string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE employees SET is_active = 0, updated_at = ? WHERE employee_id = ? AND is_active = 1`,
		time.Now().UnixMilli(), employeeID,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate employee: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate employee rows: %w", err)
	}
	return n > 0, nil
}
