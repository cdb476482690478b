package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/quality"
)

// SessionRepository provides PostgreSQL-backed attendance session storage
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// SaveSession stores a session with its records and quality reports in one transaction
func (r *SessionRepository) SaveSession(ctx context.Context, s *database.AttendanceSession) error {
	if s.ID == uuid.Nil {
		s.ID = database.NewSessionID()
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, batch, class, subject, taken_at, report_key, threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, s.ID, s.Batch, s.Class, s.Subject, s.TakenAt, s.ReportKey, s.Threshold).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, rec := range s.Records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_records (session_id, er_number, student_name, status)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id, er_number) DO NOTHING
		`, s.ID, rec.StudentID, rec.StudentName, rec.Status)
		if err != nil {
			return fmt.Errorf("insert attendance record %s: %w", rec.StudentID, err)
		}
	}

	for _, q := range s.QualityReports {
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quality report %d: %w", q.ImageIndex, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quality_reports (session_id, image_index, report)
			VALUES ($1, $2, $3)
		`, s.ID, q.ImageIndex, string(payload))
		if err != nil {
			return fmt.Errorf("insert quality report %d: %w", q.ImageIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

const sessionSelect = `
	SELECT s.id, s.batch, s.class, s.subject, s.taken_at, s.report_key, s.threshold, s.created_at,
		COUNT(r.er_number) FILTER (WHERE r.status = 'Present'),
		COUNT(r.er_number) FILTER (WHERE r.status = 'Absent')
	FROM attendance_sessions s
	LEFT JOIN attendance_records r ON r.session_id = s.id
`

func scanSession(row interface{ Scan(...any) error }) (database.AttendanceSession, error) {
	var s database.AttendanceSession
	err := row.Scan(&s.ID, &s.Batch, &s.Class, &s.Subject, &s.TakenAt, &s.ReportKey, &s.Threshold, &s.CreatedAt,
		&s.PresentCount, &s.AbsentCount)
	return s, err
}

// GetSession retrieves a session with records and quality reports, returns nil if not found
func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*database.AttendanceSession, error) {
	query := sessionSelect + ` WHERE s.id = $1 GROUP BY s.id`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if s.Records, err = r.records(ctx, id); err != nil {
		return nil, err
	}
	if s.QualityReports, err = r.qualityReports(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) records(ctx context.Context, id uuid.UUID) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT er_number, student_name, status
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY status DESC, er_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get attendance records: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

func (r *SessionRepository) qualityReports(ctx context.Context, id uuid.UUID) ([]quality.Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT report FROM quality_reports WHERE session_id = $1 ORDER BY image_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get quality reports: %w", err)
	}
	defer rows.Close()

	var reports []quality.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan quality report: %w", err)
		}
		var q quality.Report
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, fmt.Errorf("decode quality report: %w", err)
		}
		reports = append(reports, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quality reports: %w", err)
	}
	return reports, nil
}

// ListSessions returns sessions newest first, without records
func (r *SessionRepository) ListSessions(ctx context.Context, batch string, limit int) ([]database.AttendanceSession, error) {
	query := sessionSelect + `
		WHERE ($1 = '' OR s.batch = $1)
		GROUP BY s.id
		ORDER BY s.taken_at DESC
		LIMIT $2
	`

	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := r.pool.Query(ctx, query, batch, lim)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []database.AttendanceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// HasReportKey reports whether a session references the report key
func (r *SessionRepository) HasReportKey(ctx context.Context, reportKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE report_key = $1)
	`, reportKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check report key: %w", err)
	}
	return exists, nil
}
