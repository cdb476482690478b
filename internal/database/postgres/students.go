package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/roll-call/internal/database"
)

// StudentRepository provides PostgreSQL-backed student storage
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `er_number, name, batch, parent_phone, reference_key, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (database.Student, error) {
	var s database.Student
	err := row.Scan(&s.StudentID, &s.Name, &s.Batch, &s.ParentPhone, &s.ReferenceKey, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// UpsertStudent inserts a student or refreshes an existing one
func (r *StudentRepository) UpsertStudent(ctx context.Context, s *database.Student) error {
	query := `
		INSERT INTO students (er_number, name, batch, parent_phone, reference_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (er_number) DO UPDATE SET
			name = EXCLUDED.name,
			batch = EXCLUDED.batch,
			parent_phone = EXCLUDED.parent_phone,
			reference_key = EXCLUDED.reference_key,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, s.StudentID, s.Name, s.Batch, s.ParentPhone, s.ReferenceKey).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// GetStudent retrieves a student by enrollment number, returns nil if not found
func (r *StudentRepository) GetStudent(ctx context.Context, studentID string) (*database.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE er_number = $1`

	s, err := scanStudent(r.pool.QueryRow(ctx, query, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

// ListStudents returns students ordered by enrollment number
func (r *StudentRepository) ListStudents(ctx context.Context, batch string) ([]database.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE ($1 = '' OR batch = $1)
		ORDER BY er_number
	`

	rows, err := r.pool.Query(ctx, query, batch)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// CountStudents returns the total number of students
func (r *StudentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
