package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmployeeRepository provides PostgreSQL-backed employee storage.
// Embeddings live in a pgvector column on the employees table.
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new PostgreSQL employee repository.
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

const employeeColumns = `employee_id, employee_code, name, department, face_id, embedding, is_active, registered_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*database.Employee, error) {
	var emp database.Employee
	var faceID sql.NullString
	var vec nullVector
	var updatedAt sql.NullInt64

	err := row.Scan(
		&emp.EmployeeID,
		&emp.EmployeeCode,
		&emp.Name,
		&emp.Department,
		&faceID,
		&vec,
		&emp.IsActive,
		&emp.RegisteredAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	emp.FaceID = faceID.String
	emp.UpdatedAt = updatedAt.Int64
	if vec.valid {
		emp.Embedding = vec.vec.Slice()
	}
	return &emp, nil
}

// embeddingArg converts an embedding to a nullable pgvector query argument.
func embeddingArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// Get retrieves an employee by ID regardless of active state, returns nil if not found.
func (r *EmployeeRepository) Get(ctx context.Context, employeeID string) (*database.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_id = $1`

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
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_code = $1 AND is_active`

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, employeeCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee by code: %w", err)
	}
	return emp, nil
}

// List returns active employees ordered by name. A non-empty department
// filters case- and diacritic-insensitively, normalized in Go so both SQL
// backends behave identically.
func (r *EmployeeRepository) List(ctx context.Context, department string) ([]database.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE is_active ORDER BY name`

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
		WHERE is_active AND embedding IS NOT NULL
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
	query := `
		INSERT INTO employees (employee_id, employee_code, name, department, face_id, embedding, is_active, registered_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		emp.EmployeeID,
		emp.EmployeeCode,
		emp.Name,
		emp.Department,
		emp.FaceID,
		embeddingArg(emp.Embedding),
		emp.IsActive,
		emp.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// Update applies a partial update to an active employee, COALESCE-style:
// nil fields keep the stored value.
func (r *EmployeeRepository) Update(ctx context.Context, employeeID string, upd database.EmployeeUpdate) (*database.Employee, error) {
	query := `
		UPDATE employees
		SET name = COALESCE($2, name),
		    department = COALESCE($3, department),
		    face_id = COALESCE($4, face_id),
		    embedding = COALESCE($5, embedding),
		    updated_at = $6
		WHERE employee_id = $1 AND is_active
		RETURNING ` + employeeColumns

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query,
		employeeID,
		upd.Name,
		upd.Department,
		upd.FaceID,
		embeddingArg(upd.Embedding),
		nowMillisArg(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}
	return emp, nil
}

// Deactivate soft-deletes an employee. Returns false if no active employee matched.
func (r *EmployeeRepository) Deactivate(ctx context.Context, employeeID string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE employees SET is_active = FALSE, updated_at = $2 WHERE employee_id = $1 AND is_active`,
		employeeID, nowMillisArg(),
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
