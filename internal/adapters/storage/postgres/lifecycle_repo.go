package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/lifecycle"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation es el SQLSTATE de una UNIQUE rota.
const uniqueViolation = "23505"

// -------------------------
// Pregnancy checks
// -------------------------

type PregnancyChecksRepo struct {
	db *sql.DB
}

func NewPregnancyChecksRepo(db *sql.DB) *PregnancyChecksRepo {
	return &PregnancyChecksRepo{db: db}
}

func (r *PregnancyChecksRepo) List(ctx context.Context) ([]lifecycle.PregnancyCheck, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mother_id, father_id, mating_date, check_date, status, notes, created_at
		FROM pregnancy_checks
		ORDER BY check_date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lifecycle.PregnancyCheck, 0)
	for rows.Next() {
		var c lifecycle.PregnancyCheck
		var mating, check sql.NullTime
		var status string
		if err := rows.Scan(
			&c.ID,
			&c.MotherID,
			&c.FatherID,
			&mating,
			&check,
			&status,
			&c.Notes,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		c.MatingDate = fromNullDate(mating)
		if d := fromNullDate(check); d != nil {
			c.CheckDate = *d
		}
		c.Status = lifecycle.PregnancyStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PregnancyChecksRepo) Create(ctx context.Context, c lifecycle.PregnancyCheck) (lifecycle.PregnancyCheck, error) {
	check := c.CheckDate
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pregnancy_checks (
			id, mother_id, father_id, mating_date, check_date, status, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		c.ID,
		c.MotherID,
		c.FatherID,
		toNullDate(c.MatingDate),
		toNullDate(&check),
		string(c.Status),
		c.Notes,
		c.CreatedAt,
	)
	if err != nil {
		return lifecycle.PregnancyCheck{}, err
	}
	return c, nil
}

func (r *PregnancyChecksRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "pregnancy_checks", id)
}

// -------------------------
// Birth plans
// -------------------------

type BirthPlansRepo struct {
	db *sql.DB
}

func NewBirthPlansRepo(db *sql.DB) *BirthPlansRepo {
	return &BirthPlansRepo{db: db}
}

const planColumns = `
	id, mother_id, father_id,
	mating_date, expected_birth_date, actual_birth_date,
	status, expected_kittens, actual_kittens, notes,
	completed_at, created_at, updated_at`

func (r *BirthPlansRepo) List(ctx context.Context) ([]lifecycle.BirthPlan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM birth_plans ORDER BY expected_birth_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lifecycle.BirthPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *BirthPlansRepo) Create(ctx context.Context, p lifecycle.BirthPlan) (lifecycle.BirthPlan, error) {
	expected := p.ExpectedBirthDate
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO birth_plans (`+planColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		p.ID,
		p.MotherID,
		p.FatherID,
		toNullDate(p.MatingDate),
		toNullDate(&expected),
		toNullDate(p.ActualBirthDate),
		string(p.Status),
		toNullInt(p.ExpectedKittens),
		toNullInt(p.ActualKittens),
		p.Notes,
		toNullTime(p.CompletedAt),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return lifecycle.BirthPlan{}, err
	}
	return p, nil
}

func (r *BirthPlansRepo) Update(ctx context.Context, id string, patch lifecycle.BirthPlanPatch) (lifecycle.BirthPlan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return lifecycle.BirthPlan{}, lifecycle.ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.BirthPlan{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanPlan(tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM birth_plans WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.BirthPlan{}, lifecycle.ErrNotFound
	}
	if err != nil {
		return lifecycle.BirthPlan{}, err
	}

	next := patch.Apply(cur)
	next.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE birth_plans
		SET
			status = $2,
			actual_birth_date = $3,
			expected_kittens = $4,
			actual_kittens = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $1
	`,
		id,
		string(next.Status),
		toNullDate(next.ActualBirthDate),
		toNullInt(next.ExpectedKittens),
		toNullInt(next.ActualKittens),
		next.Notes,
		next.UpdatedAt,
	); err != nil {
		return lifecycle.BirthPlan{}, err
	}

	if err := tx.Commit(); err != nil {
		return lifecycle.BirthPlan{}, err
	}
	return next, nil
}

func (r *BirthPlansRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "birth_plans", id)
}

// Complete es idempotente: conserva el primer completed_at.
func (r *BirthPlansRepo) Complete(ctx context.Context, id string, at time.Time) (lifecycle.BirthPlan, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE birth_plans
		SET
			completed_at = COALESCE(completed_at, $2),
			updated_at = $2
		WHERE id = $1
		RETURNING `+planColumns,
		strings.TrimSpace(id),
		at.UTC(),
	)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.BirthPlan{}, lifecycle.ErrNotFound
	}
	return p, err
}

func scanPlan(s rowScanner) (lifecycle.BirthPlan, error) {
	var p lifecycle.BirthPlan
	var mating, expected, actual sql.NullTime
	var status string
	var expKittens, actKittens sql.NullInt64
	var completed sql.NullTime

	if err := s.Scan(
		&p.ID,
		&p.MotherID,
		&p.FatherID,
		&mating,
		&expected,
		&actual,
		&status,
		&expKittens,
		&actKittens,
		&p.Notes,
		&completed,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return lifecycle.BirthPlan{}, err
	}

	p.MatingDate = fromNullDate(mating)
	if d := fromNullDate(expected); d != nil {
		p.ExpectedBirthDate = *d
	}
	p.ActualBirthDate = fromNullDate(actual)
	p.Status = lifecycle.BirthStatus(status)
	p.ExpectedKittens = fromNullInt(expKittens)
	p.ActualKittens = fromNullInt(actKittens)
	p.CompletedAt = fromNullTime(completed)
	return p, nil
}

// -------------------------
// Kitten dispositions
// -------------------------

type DispositionsRepo struct {
	db *sql.DB
}

func NewDispositionsRepo(db *sql.DB) *DispositionsRepo {
	return &DispositionsRepo{db: db}
}

func (r *DispositionsRepo) Create(ctx context.Context, d lifecycle.KittenDisposition) (lifecycle.KittenDisposition, error) {
	var buyer, saleNotes sql.NullString
	var price sql.NullInt64
	var saleDate sql.NullTime
	if d.Sale != nil {
		buyer = sql.NullString{String: d.Sale.Buyer, Valid: true}
		saleNotes = sql.NullString{String: d.Sale.Notes, Valid: true}
		if d.Sale.Price != nil {
			price = sql.NullInt64{Int64: *d.Sale.Price, Valid: true}
		}
		saleDate = toNullDate(d.Sale.SaleDate)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kitten_dispositions (
			id, birth_record_id, kitten_id, name, gender, disposition,
			training_start_date,
			sale_buyer, sale_price, sale_date, sale_notes,
			death_date, death_reason,
			notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		d.ID,
		d.BirthRecordID,
		d.KittenID,
		d.Name,
		string(d.Gender),
		string(d.Disposition),
		toNullDate(d.TrainingStartDate),
		buyer,
		price,
		saleDate,
		saleNotes,
		toNullDate(d.DeathDate),
		d.DeathReason,
		d.Notes,
		d.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return lifecycle.KittenDisposition{}, lifecycle.ErrDuplicateDisposition
	}
	if err != nil {
		return lifecycle.KittenDisposition{}, err
	}
	return d, nil
}

func (r *DispositionsRepo) ListByBirthPlan(ctx context.Context, birthRecordID string) ([]lifecycle.KittenDisposition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, birth_record_id, kitten_id, name, gender, disposition,
			training_start_date,
			sale_buyer, sale_price, sale_date, sale_notes,
			death_date, death_reason,
			notes, created_at
		FROM kitten_dispositions
		WHERE birth_record_id = $1
		ORDER BY created_at ASC
	`, strings.TrimSpace(birthRecordID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lifecycle.KittenDisposition, 0)
	for rows.Next() {
		var d lifecycle.KittenDisposition
		var gender, disposition string
		var training, saleDate, death sql.NullTime
		var buyer, saleNotes sql.NullString
		var price sql.NullInt64

		if err := rows.Scan(
			&d.ID,
			&d.BirthRecordID,
			&d.KittenID,
			&d.Name,
			&gender,
			&disposition,
			&training,
			&buyer,
			&price,
			&saleDate,
			&saleNotes,
			&death,
			&d.DeathReason,
			&d.Notes,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}

		d.Gender = animals.Gender(gender)
		d.Disposition = lifecycle.Disposition(disposition)
		d.TrainingStartDate = fromNullDate(training)
		d.DeathDate = fromNullDate(death)
		if buyer.Valid || price.Valid || saleDate.Valid || saleNotes.Valid {
			d.Sale = &lifecycle.SaleInfo{
				Buyer:    buyer.String,
				SaleDate: fromNullDate(saleDate),
				Notes:    saleNotes.String,
			}
			if price.Valid {
				v := price.Int64
				d.Sale.Price = &v
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// deleteByID borra por id; table es siempre una constante del paquete.
func deleteByID(ctx context.Context, db *sql.DB, table, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return lifecycle.ErrNotFound
	}
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
