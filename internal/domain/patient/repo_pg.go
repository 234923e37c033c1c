package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the PostgreSQL-backed Repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `id, reg_id, unique_id, name, dob, gender, age, phone, email,
	history, medicines, allergies, permanent_conditions, last_visit,
	version, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.RegID, &p.UniqueID, &p.Name, &p.DOB, &p.Gender, &p.Age,
		&p.Phone, &p.Email, &p.History, &p.Medicines, &p.Allergies,
		&p.PermanentConditions, &p.LastVisit, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.Version = 1
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, reg_id, unique_id, name, dob, gender, age, phone, email,
			history, medicines, allergies, permanent_conditions, last_visit, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.RegID, p.UniqueID, p.Name, p.DOB, p.Gender, p.Age, p.Phone, p.Email,
		p.History, p.Medicines, p.Allergies, p.PermanentConditions, p.LastVisit, p.Version)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY name ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return items, nil
}

// Update writes the full editable field set in one statement. The version
// guard in the WHERE clause turns a stale save into zero affected rows;
// a follow-up existence check separates ErrConflict from ErrNotFound.
func (r *repoPG) Update(ctx context.Context, id uuid.UUID, version int, f Fields) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `
		UPDATE patients SET name=$2, dob=$3, gender=$4, age=$5, phone=$6, email=$7,
			history=$8, medicines=$9, allergies=$10, permanent_conditions=$11,
			last_visit=$12, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $13
		RETURNING `+patientCols,
		id, f.Name, f.DOB, f.Gender, f.Age, f.Phone, f.Email,
		f.History, f.Medicines, f.Allergies, f.PermanentConditions,
		f.LastVisit, version))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update patient: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check patient existence: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}
	return nil, ErrNotFound
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
