package doctor

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
	"github.com/lib/pq"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

const doctorColumns = `id, license_number, name, email, specialization, institution,
	graduation_year, address, bio, documents, status, is_active, submitted_date, updated_at,
	verified_date, expiry_date, ledger_receipt, approved_by,
	rejected_date, rejection_reason, rejected_by`

// PostgresStore persists doctors in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE for the duration of validate and mutate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Doctor) error {
	args := doctorArgs(d)
	_, err := s.db.ExecContext(ctx, `INSERT INTO doctors (`+doctorColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "doctors_pkey" {
				return sentinel.ErrConflict
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, doctorID id.DoctorID) (*models.Doctor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, uuid.UUID(doctorID))
	return scanDoctor(row)
}

func (s *PostgresStore) FindByLicense(ctx context.Context, license string) (*models.Doctor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE license_number = $1`, license)
	return scanDoctor(row)
}

// List streams matching rows in insertion order. The result set is closed
// when iteration stops.
func (s *PostgresStore) List(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error] {
	return func(yield func(*models.Doctor, error) bool) {
		where, args := doctorWhere(filter)
		rows, err := s.db.QueryContext(ctx, `SELECT `+doctorColumns+` FROM doctors`+where+` ORDER BY seq`, args...)
		if err != nil {
			yield(nil, fmt.Errorf("list doctors: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDoctor(rows)
			if !yield(d, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("list doctors: %w", err))
		}
	}
}

func (s *PostgresStore) Count(ctx context.Context, filter models.DoctorFilter) (int, error) {
	where, args := doctorWhere(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count doctors: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Execute(ctx context.Context, doctorID id.DoctorID, validate func(*models.Doctor) error, mutate func(*models.Doctor)) (*models.Doctor, error) {
	var updated *models.Doctor
	err := tx.Run(ctx, s.db, func(ctx context.Context, txn *sql.Tx) error {
		row := txn.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1 FOR UPDATE`, uuid.UUID(doctorID))
		d, err := scanDoctor(row)
		if err != nil {
			return err
		}
		if err := validate(d); err != nil {
			return err
		}
		mutate(d)

		_, err = txn.ExecContext(ctx, `UPDATE doctors SET
			license_number = $2, name = $3, email = $4, specialization = $5, institution = $6,
			graduation_year = $7, address = $8, bio = $9, documents = $10, status = $11,
			is_active = $12, submitted_date = $13, updated_at = $14,
			verified_date = $15, expiry_date = $16, ledger_receipt = $17, approved_by = $18,
			rejected_date = $19, rejection_reason = $20, rejected_by = $21
			WHERE id = $1`, doctorArgs(d)...)
		if err != nil {
			return fmt.Errorf("update doctor: %w", err)
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func doctorWhere(filter models.DoctorFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.IsActive != nil {
		add("is_active", *filter.IsActive)
	}
	if filter.Specialization != "" {
		add("specialization", filter.Specialization)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func doctorArgs(d *models.Doctor) []any {
	var (
		verifiedDate, expiryDate, rejectedDate  sql.NullTime
		receipt, approvedBy, reason, rejectedBy sql.NullString
	)
	if v := d.Verification; v != nil {
		verifiedDate = sql.NullTime{Time: v.VerifiedDate, Valid: true}
		expiryDate = sql.NullTime{Time: v.ExpiryDate, Valid: true}
		receipt = sql.NullString{String: v.LedgerReceipt, Valid: true}
		approvedBy = sql.NullString{String: v.ApprovedBy, Valid: true}
	}
	if r := d.Rejection; r != nil {
		rejectedDate = sql.NullTime{Time: r.RejectedDate, Valid: true}
		reason = sql.NullString{String: r.Reason, Valid: true}
		rejectedBy = sql.NullString{String: r.RejectedBy, Valid: true}
	}
	docs := d.Documents
	if docs == nil {
		docs = []string{}
	}
	return []any{
		uuid.UUID(d.ID), d.LicenseNumber, d.Name, d.Email, d.Specialization, d.Institution,
		d.GraduationYear, d.Address, d.Bio, pq.Array(docs), string(d.Status), d.IsActive,
		d.SubmittedDate, d.UpdatedAt,
		verifiedDate, expiryDate, receipt, approvedBy,
		rejectedDate, reason, rejectedBy,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoctor(row rowScanner) (*models.Doctor, error) {
	var (
		d                                       models.Doctor
		rawID                                   uuid.UUID
		status                                  string
		docs                                    pq.StringArray
		verifiedDate, expiryDate, rejectedDate  sql.NullTime
		receipt, approvedBy, reason, rejectedBy sql.NullString
		submitted, updated                      time.Time
	)
	err := row.Scan(&rawID, &d.LicenseNumber, &d.Name, &d.Email, &d.Specialization, &d.Institution,
		&d.GraduationYear, &d.Address, &d.Bio, &docs, &status, &d.IsActive, &submitted, &updated,
		&verifiedDate, &expiryDate, &receipt, &approvedBy,
		&rejectedDate, &reason, &rejectedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	d.ID = id.DoctorID(rawID)
	d.Status = models.DoctorStatus(status)
	d.Documents = []string(docs)
	if d.Documents == nil {
		d.Documents = []string{}
	}
	d.SubmittedDate = submitted.UTC()
	d.UpdatedAt = updated.UTC()
	if receipt.Valid {
		d.Verification = &models.Verification{
			VerifiedDate:  verifiedDate.Time.UTC(),
			ExpiryDate:    expiryDate.Time.UTC(),
			LedgerReceipt: receipt.String,
			ApprovedBy:    approvedBy.String,
		}
	}
	if rejectedDate.Valid {
		d.Rejection = &models.Rejection{
			RejectedDate: rejectedDate.Time.UTC(),
			Reason:       reason.String,
			RejectedBy:   rejectedBy.String,
		}
	}
	if err := d.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("doctor %s: %w", rawID, err)
	}
	return &d, nil
}
