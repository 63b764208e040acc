package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
)

const reportColumns = `id, doctor_name, license_number, location, concern_type, description,
	contact_email, status, priority, resolved, report_date, updated_at, reporter_ip, reporter_device`

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`, reportArgs(r)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, uuid.UUID(reportID))
	return scanReport(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error] {
	return func(yield func(*models.Report, error) bool) {
		where, args := reportWhere(filter)
		rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports`+where+` ORDER BY seq`, args...)
		if err != nil {
			yield(nil, fmt.Errorf("list reports: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanReport(rows)
			if !yield(r, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("list reports: %w", err))
		}
	}
}

func (s *PostgresStore) Count(ctx context.Context, filter models.ReportFilter) (int, error) {
	where, args := reportWhere(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Execute(ctx context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error) {
	var updated *models.Report
	err := tx.Run(ctx, s.db, func(ctx context.Context, txn *sql.Tx) error {
		r, err := scanReport(txn.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, uuid.UUID(reportID)))
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)

		_, err = txn.ExecContext(ctx, `UPDATE reports SET status = $2, resolved = $3, updated_at = $4 WHERE id = $1`,
			uuid.UUID(r.ID), string(r.Status), r.Resolved, r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func reportWhere(filter models.ReportFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Priority != "" {
		add("priority", string(filter.Priority))
	}
	if filter.ConcernType != "" {
		add("concern_type", string(filter.ConcernType))
	}
	if filter.OpenOnly {
		clauses = append(clauses, "NOT resolved")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func reportArgs(r *models.Report) []any {
	return []any{
		uuid.UUID(r.ID), r.DoctorName, r.LicenseNumber, r.Location, string(r.ConcernType), r.Description,
		r.ContactEmail, string(r.Status), string(r.Priority), r.Resolved, r.ReportDate, r.UpdatedAt,
		r.Reporter.ClientIP, r.Reporter.Device,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                         models.Report
		rawID                     uuid.UUID
		concern, status, priority string
		reportDate, updatedAt     time.Time
	)
	err := row.Scan(&rawID, &r.DoctorName, &r.LicenseNumber, &r.Location, &concern, &r.Description,
		&r.ContactEmail, &status, &priority, &r.Resolved, &reportDate, &updatedAt,
		&r.Reporter.ClientIP, &r.Reporter.Device)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	r.ID = id.ReportID(rawID)
	r.ConcernType = models.ConcernType(concern)
	r.Status = models.ReportStatus(status)
	r.Priority = models.Priority(priority)
	r.ReportDate = reportDate.UTC()
	r.UpdatedAt = updatedAt.UTC()
	return &r, nil
}
